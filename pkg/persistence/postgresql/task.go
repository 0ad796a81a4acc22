package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pathwayhq/pathway/pkg/models"
	"github.com/pathwayhq/pathway/pkg/persistence"
)

// TaskRepository stores human tasks in the tasks table.
type TaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *sql.DB, logger *slog.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

// Save upserts a task.
func (r *TaskRepository) Save(ctx context.Context, task *models.Task) error {
	dataJSON, err := json.Marshal(task.Data)
	if err != nil {
		return persistence.NewStoreError("Save", "task", task.ID, fmt.Errorf("failed to marshal data: %w", err))
	}

	query := `
		INSERT INTO tasks (id, instance_id, node_id, name, assignee, status, data, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			instance_id = EXCLUDED.instance_id,
			node_id = EXCLUDED.node_id,
			name = EXCLUDED.name,
			assignee = EXCLUDED.assignee,
			status = EXCLUDED.status,
			data = EXCLUDED.data,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		task.ID,
		task.InstanceID,
		task.NodeID,
		task.Name,
		task.Assignee,
		task.Status,
		dataJSON,
		task.CreatedAt,
		task.CompletedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "task", task.ID, err)
	}

	return nil
}

// GetByID returns the task with the given id.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	query := `
		SELECT id, instance_id, node_id, name, assignee, status, data, created_at, completed_at
		FROM tasks
		WHERE id = $1
	`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "task", id, persistence.ErrTaskNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", "task", id, err)
	}

	return task, nil
}

// Update rewrites an existing task. Fails with ErrTaskNotFound for unknown ids.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	_, err := r.GetByID(ctx, task.ID)
	if err != nil {
		return err
	}

	return r.Save(ctx, task)
}

// ListByInstance returns the tasks attached to an instance, oldest first.
func (r *TaskRepository) ListByInstance(ctx context.Context, instanceID string) ([]*models.Task, error) {
	query := `
		SELECT id, instance_id, node_id, name, assignee, status, data, created_at, completed_at
		FROM tasks
		WHERE instance_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, instanceID)
	if err != nil {
		return nil, persistence.NewStoreError("ListByInstance", "task", instanceID, err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	tasks := make([]*models.Task, 0)

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, persistence.NewStoreError("ListByInstance", "task", instanceID, err)
		}

		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("ListByInstance", "task", instanceID, err)
	}

	return tasks, nil
}

func scanTask(scanner interface{ Scan(dest ...any) error }) (*models.Task, error) {
	var (
		task     models.Task
		dataJSON []byte
	)

	err := scanner.Scan(
		&task.ID,
		&task.InstanceID,
		&task.NodeID,
		&task.Name,
		&task.Assignee,
		&task.Status,
		&dataJSON,
		&task.CreatedAt,
		&task.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if dataJSON != nil {
		if err := json.Unmarshal(dataJSON, &task.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal data: %w", err)
		}
	}

	return &task, nil
}
