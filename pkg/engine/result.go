package engine

import (
	"time"

	"github.com/pathwayhq/pathway/pkg/models"
)

// ExecutionResult is the engine's complete external contract per Execute
// call. All intermediate detail lives in Instance.History.
type ExecutionResult struct {
	Success      bool             `json:"success"`
	Instance     *models.Instance `json:"instance"`
	Variables    map[string]any   `json:"variables"`
	NodesVisited int              `json:"nodes_visited"`
	Error        string           `json:"error,omitempty"`
	Duration     time.Duration    `json:"duration"`
}
