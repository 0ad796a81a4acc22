package models

import "time"

// TaskStatus represents the lifecycle state of a human-task reference.
type TaskStatus string

const (
	TaskStatusOpen      TaskStatus = "open"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Task is a human-task reference attached to an instance. The engine only
// records tasks; suspension and assignment semantics live outside the core.
type Task struct {
	ID          string         `json:"id"`
	InstanceID  string         `json:"instance_id"`
	NodeID      string         `json:"node_id"`
	Name        string         `json:"name"`
	Assignee    string         `json:"assignee,omitempty"`
	Status      TaskStatus     `json:"status"`
	Data        map[string]any `json:"data,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}
