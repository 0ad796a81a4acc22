package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pathwayhq/pathway/pkg/models"
	"gopkg.in/yaml.v3"
)

// loadFlowFile reads a flow definition from a JSON or YAML file. The
// format is picked by extension; anything that is not .yaml/.yml is
// treated as JSON.
func loadFlowFile(path string) (*models.Flow, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}

	var flow models.Flow

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &flow); err != nil {
			return nil, fmt.Errorf("failed to parse flow YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(content, &flow); err != nil {
			return nil, fmt.Errorf("failed to parse flow JSON: %w", err)
		}
	}

	if flow.Type == "" {
		flow.Type = models.FlowTypeManual
	}

	return &flow, nil
}

// parseVariables turns repeated key=value flags into a variable bag.
func parseVariables(pairs []string) (map[string]any, error) {
	variables := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid variable %q, expected key=value", pair)
		}

		variables[key] = value
	}

	return variables, nil
}
