package template

import (
	"github.com/pathwayhq/pathway/pkg/models"
)

// ConditionEvaluator evaluates edge conditions written as template
// expressions, falling back to bare variable lookup for plain strings.
// It is the engine's default evaluator.
type ConditionEvaluator struct {
	fallback models.SimpleConditionEvaluator
}

// NewConditionEvaluator creates a template-backed condition evaluator.
func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{}
}

func (e *ConditionEvaluator) Evaluate(expression string, data map[string]any) (bool, error) {
	if !NeedsTemplating(expression) {
		return e.fallback.Evaluate(expression, data)
	}

	result, err := RenderWithVariables(expression, data)
	if err != nil {
		return false, err
	}

	return models.Truthy(result), nil
}
