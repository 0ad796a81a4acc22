// Package config provides configuration loading for the activator's trigger sources.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TriggerConfig describes one trigger source to run.
type TriggerConfig struct {
	Type          string         `yaml:"type"`
	ID            string         `yaml:"id"`
	Configuration map[string]any `yaml:"configuration"`
}

// ActivatorConfig is the structure of the triggers.yaml file.
type ActivatorConfig struct {
	Triggers []TriggerConfig `yaml:"triggers"`
}

// LoadActivatorConfig loads trigger configuration from a YAML file.
func LoadActivatorConfig(filepath string) (ActivatorConfig, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return ActivatorConfig{}, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var config ActivatorConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return ActivatorConfig{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	for i := range config.Triggers {
		if config.Triggers[i].Configuration == nil {
			config.Triggers[i].Configuration = make(map[string]any)
		}

		// The id doubles as the configuration id so trigger constructors
		// see a single consistent value.
		if config.Triggers[i].ID != "" {
			config.Triggers[i].Configuration["id"] = config.Triggers[i].ID
		}
	}

	return config, nil
}

// ValidateActivatorConfig checks the loaded configuration before any trigger
// source is constructed.
func ValidateActivatorConfig(config ActivatorConfig) error {
	for i, trigger := range config.Triggers {
		if trigger.Type == "" {
			return fmt.Errorf("triggers[%d]: type is required", i)
		}

		if trigger.ID == "" {
			return fmt.Errorf("triggers[%d]: id is required", i)
		}

		switch trigger.Type {
		case "schedule":
			if err := validateScheduleTrigger(trigger, i); err != nil {
				return err
			}
		case "queue":
			if err := validateQueueTrigger(trigger, i); err != nil {
				return err
			}
		default:
			return fmt.Errorf("triggers[%d]: unknown trigger type %q", i, trigger.Type)
		}
	}

	return nil
}

func validateScheduleTrigger(trigger TriggerConfig, index int) error {
	cronExpr, exists := trigger.Configuration["cron"]
	if !exists {
		return fmt.Errorf("triggers[%d]: schedule trigger requires 'cron' configuration", index)
	}

	cronStr, ok := cronExpr.(string)
	if !ok || cronStr == "" {
		return fmt.Errorf("triggers[%d]: schedule 'cron' must be a non-empty string", index)
	}

	flowName, ok := trigger.Configuration["flow_name"].(string)
	if !ok || flowName == "" {
		return fmt.Errorf("triggers[%d]: schedule trigger requires 'flow_name' configuration", index)
	}

	return nil
}

func validateQueueTrigger(trigger TriggerConfig, index int) error {
	queue, ok := trigger.Configuration["queue"].(string)
	if !ok || queue == "" {
		return fmt.Errorf("triggers[%d]: queue trigger requires 'queue' configuration", index)
	}

	return nil
}
