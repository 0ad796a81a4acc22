package registry

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// RegisterSchema attaches a JSON schema to a node type. Node configs are
// checked against it by ValidateConfig; types without a schema accept any
// config.
func (r *Registry) RegisterSchema(nodeType string, schema map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.schemas[nodeType] = schema
}

// ValidateConfig validates a node config against the schema registered for
// its type, if any.
func (r *Registry) ValidateConfig(nodeType string, config map[string]any) error {
	r.mu.RLock()
	schema, ok := r.schemas[nodeType]
	r.mu.RUnlock()

	if !ok {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate config for node type %q: %w", nodeType, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}

		return fmt.Errorf("invalid config for node type %q: %s", nodeType, strings.Join(messages, "; "))
	}

	return nil
}
