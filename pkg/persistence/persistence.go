// Package persistence provides the storage abstraction for workflow
// definitions, instances and tasks. The engine depends only on these
// contracts, never on a concrete backend.
package persistence

import (
	"context"
	"time"

	"github.com/pathwayhq/pathway/pkg/models"
)

// Persistence aggregates the repositories a backend must provide.
type Persistence interface {
	Definitions() DefinitionRepository
	Instances() InstanceRepository
	Tasks() TaskRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// DefinitionRepository stores immutable flow definitions, versioned by
// (name, version).
type DefinitionRepository interface {
	// Save stores a definition. Re-saving an existing (name, version)
	// replaces it and makes it the latest for that name.
	Save(ctx context.Context, flow *models.Flow) error

	// Get returns the definition with the given name and version. An empty
	// version selects the latest, meaning the most-recently-saved version
	// for that name, not the highest semver.
	Get(ctx context.Context, name, version string) (*models.Flow, error)

	// List returns the latest version of every stored definition.
	List(ctx context.Context) ([]*models.Flow, error)
}

// InstanceUpdate carries the partial fields applied by
// InstanceRepository.Update. Nil fields are left untouched.
type InstanceUpdate struct {
	Status       *models.InstanceStatus
	CurrentState *string
	Data         map[string]any
	History      []models.HistoryEntry
	Error        *string
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// SortOrder directions accepted by InstanceFilter.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// InstanceFilter selects instances for Query. Zero values mean "no
// constraint"; Statuses matches any of the listed statuses.
type InstanceFilter struct {
	WorkflowID string
	Statuses   []models.InstanceStatus
	StartedBy  string
	Skip       int
	Limit      int
	SortBy     string // created_at, started_at, completed_at, workflow_id, status
	SortOrder  string // asc or desc, default desc
}

// InstanceRepository stores execution records.
type InstanceRepository interface {
	Save(ctx context.Context, instance *models.Instance) error
	GetByID(ctx context.Context, id string) (*models.Instance, error)

	// Update applies the non-nil fields of the update to the stored
	// instance. Fails with ErrInstanceNotFound for unknown ids.
	Update(ctx context.Context, id string, update InstanceUpdate) error

	Query(ctx context.Context, filter InstanceFilter) ([]*models.Instance, error)
}

// TaskRepository stores human-task references attached to instances.
type TaskRepository interface {
	Save(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id string) (*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	ListByInstance(ctx context.Context, instanceID string) ([]*models.Task, error)
}
