// Package web provides HTTP handlers and REST API endpoints for flow management.
package web

import "github.com/pathwayhq/pathway/pkg/models"

// CreateDefinitionRequest is the request body for storing a flow definition.
type CreateDefinitionRequest struct {
	Name    string          `json:"name"    validate:"required,min=1"`
	Label   string          `json:"label"`
	Type    models.FlowType `json:"type"`
	Version string          `json:"version" validate:"required,min=1"`
	Nodes   []*models.Node  `json:"nodes"   validate:"required,min=1"`
	Edges   []*models.Edge  `json:"edges"`
}

// ExecuteRequest is the request body for starting an instance of a flow.
type ExecuteRequest struct {
	Variables map[string]any `json:"variables"`
	Actor     string         `json:"actor"`
}

// CancelRequest is the optional request body for cancelling an instance.
type CancelRequest struct {
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelled_by"`
}

// ExecuteResponse reports the terminal outcome of a synchronous execution.
type ExecuteResponse struct {
	InstanceID   string                `json:"instance_id"`
	Status       models.InstanceStatus `json:"status"`
	Success      bool                  `json:"success"`
	Variables    map[string]any        `json:"variables,omitempty"`
	NodesVisited int                   `json:"nodes_visited"`
	Error        string                `json:"error,omitempty"`
	DurationMs   int64                 `json:"duration_ms"`
}
