// Package models provides condition evaluation for edge traversal.
package models

import (
	"strconv"
	"strings"
)

// ConditionEvaluator evaluates a boolean edge condition against the current
// variable bag. Implementations are pluggable; the engine only requires
// this contract.
type ConditionEvaluator interface {
	Evaluate(expression string, data map[string]any) (bool, error)
}

// SimpleConditionEvaluator resolves an expression as either a boolean
// literal or a bare variable reference into the bag, then applies Truthy.
// It covers the common cases without any expression language.
type SimpleConditionEvaluator struct{}

func (SimpleConditionEvaluator) Evaluate(expression string, data map[string]any) (bool, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return false, nil
	}

	if b, err := strconv.ParseBool(expression); err == nil {
		return b, nil
	}

	if value, ok := data[expression]; ok {
		return Truthy(value), nil
	}

	return false, nil
}

// Truthy converts a variable value to a boolean.
func Truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}

		return v != ""
	case int:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case float32:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	case nil:
		return false
	default:
		return false
	}
}
