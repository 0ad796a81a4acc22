package models

import "time"

// InstanceStatus represents the lifecycle state of a workflow instance.
type InstanceStatus string

const (
	InstanceStatusPending   InstanceStatus = "pending"   // Created, not yet executed
	InstanceStatusRunning   InstanceStatus = "running"   // Traversal in progress
	InstanceStatusCompleted InstanceStatus = "completed" // Reached an end node
	InstanceStatusFailed    InstanceStatus = "failed"    // Handler failure, dead end or node limit
	InstanceStatusCancelled InstanceStatus = "cancelled" // Aborted externally
)

// HistoryEntry records one transition taken during execution. Output, when
// present, is a snapshot of the handler output merged at the source node.
type HistoryEntry struct {
	FromState string         `json:"from_state"`
	ToState   string         `json:"to_state"`
	EdgeID    string         `json:"edge_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Output    map[string]any `json:"output,omitempty"`
}

// Instance is one execution of a Flow. Each instance exclusively owns its
// Data and History; the shared Flow definition stays read-only.
type Instance struct {
	ID           string         `json:"id"`
	WorkflowID   string         `json:"workflow_id"` // References Flow.Name
	Version      string         `json:"version"`
	CurrentState string         `json:"current_state"` // Node id
	Status       InstanceStatus `json:"status"`
	Data         map[string]any `json:"data"`
	History      []HistoryEntry `json:"history"`
	Error        string         `json:"error,omitempty"`
	StartedBy    string         `json:"started_by,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// Terminal reports whether the instance has reached a final status.
func (i *Instance) Terminal() bool {
	switch i.Status {
	case InstanceStatusCompleted, InstanceStatusFailed, InstanceStatusCancelled:
		return true
	default:
		return false
	}
}

// AppendHistory records a transition. History is append-only: past entries
// are never rewritten.
func (i *Instance) AppendHistory(entry HistoryEntry) {
	i.History = append(i.History, entry)
}
