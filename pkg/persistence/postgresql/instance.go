package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/pathwayhq/pathway/pkg/models"
	"github.com/pathwayhq/pathway/pkg/persistence"
)

const defaultQueryLimit = 100

// Sortable columns accepted by Query. Anything else is rejected before it
// reaches the SQL string.
var instanceSortColumns = map[string]bool{
	"created_at":   true,
	"started_at":   true,
	"completed_at": true,
	"workflow_id":  true,
	"status":       true,
}

// InstanceRepository stores workflow instances in the instances table.
type InstanceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewInstanceRepository creates a new instance repository.
func NewInstanceRepository(db *sql.DB, logger *slog.Logger) *InstanceRepository {
	return &InstanceRepository{db: db, logger: logger}
}

// Save upserts an instance.
func (r *InstanceRepository) Save(ctx context.Context, instance *models.Instance) error {
	dataJSON, err := json.Marshal(instance.Data)
	if err != nil {
		return persistence.NewStoreError("Save", "instance", instance.ID, fmt.Errorf("failed to marshal data: %w", err))
	}

	historyJSON, err := json.Marshal(instance.History)
	if err != nil {
		return persistence.NewStoreError("Save", "instance", instance.ID, fmt.Errorf("failed to marshal history: %w", err))
	}

	query := `
		INSERT INTO instances (
			id, workflow_id, version, current_state, status, data, history,
			error_message, started_by, created_at, started_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			version = EXCLUDED.version,
			current_state = EXCLUDED.current_state,
			status = EXCLUDED.status,
			data = EXCLUDED.data,
			history = EXCLUDED.history,
			error_message = EXCLUDED.error_message,
			started_by = EXCLUDED.started_by,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		instance.ID,
		instance.WorkflowID,
		instance.Version,
		instance.CurrentState,
		instance.Status,
		dataJSON,
		historyJSON,
		instance.Error,
		instance.StartedBy,
		instance.CreatedAt,
		instance.StartedAt,
		instance.CompletedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "instance", instance.ID, err)
	}

	return nil
}

// GetByID returns the instance with the given id.
func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.Instance, error) {
	query := `
		SELECT id, workflow_id, version, current_state, status, data, history,
			   error_message, started_by, created_at, started_at, completed_at
		FROM instances
		WHERE id = $1
	`

	instance, err := scanInstance(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "instance", id, persistence.ErrInstanceNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", "instance", id, err)
	}

	return instance, nil
}

// Update applies the non-nil fields of the update to the stored instance.
func (r *InstanceRepository) Update(ctx context.Context, id string, update persistence.InstanceUpdate) error {
	assignments := make([]string, 0, 7)
	args := make([]any, 0, 8)

	appendSet := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		appendSet("status", *update.Status)
	}

	if update.CurrentState != nil {
		appendSet("current_state", *update.CurrentState)
	}

	if update.Data != nil {
		dataJSON, err := json.Marshal(update.Data)
		if err != nil {
			return persistence.NewStoreError("Update", "instance", id, fmt.Errorf("failed to marshal data: %w", err))
		}

		appendSet("data", dataJSON)
	}

	if update.History != nil {
		historyJSON, err := json.Marshal(update.History)
		if err != nil {
			return persistence.NewStoreError("Update", "instance", id, fmt.Errorf("failed to marshal history: %w", err))
		}

		appendSet("history", historyJSON)
	}

	if update.Error != nil {
		appendSet("error_message", *update.Error)
	}

	if update.StartedAt != nil {
		appendSet("started_at", *update.StartedAt)
	}

	if update.CompletedAt != nil {
		appendSet("completed_at", *update.CompletedAt)
	}

	if len(assignments) == 0 {
		// Nothing to change; still report unknown ids.
		_, err := r.GetByID(ctx, id)

		return err
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE instances SET %s WHERE id = $%d", strings.Join(assignments, ", "), len(args))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return persistence.NewStoreError("Update", "instance", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("Update", "instance", id, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("Update", "instance", id, persistence.ErrInstanceNotFound)
	}

	return nil
}

// Query returns the instances matching the filter, sorted and paginated.
func (r *InstanceRepository) Query(ctx context.Context, filter persistence.InstanceFilter) ([]*models.Instance, error) {
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}

	if !instanceSortColumns[sortBy] {
		return nil, persistence.NewStoreError("Query", "instance", "", persistence.ErrInvalidFilter)
	}

	sortOrder := filter.SortOrder
	if sortOrder == "" {
		sortOrder = persistence.SortDesc
	}

	if sortOrder != persistence.SortAsc && sortOrder != persistence.SortDesc {
		return nil, persistence.NewStoreError("Query", "instance", "", persistence.ErrInvalidFilter)
	}

	conditions := make([]string, 0, 3)
	args := make([]any, 0, 5)

	if filter.WorkflowID != "" {
		args = append(args, filter.WorkflowID)
		conditions = append(conditions, fmt.Sprintf("workflow_id = $%d", len(args)))
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			statuses[i] = string(status)
		}

		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	if filter.StartedBy != "" {
		args = append(args, filter.StartedBy)
		conditions = append(conditions, fmt.Sprintf("started_by = $%d", len(args)))
	}

	var query strings.Builder

	query.WriteString(`
		SELECT id, workflow_id, version, current_state, status, data, history,
			   error_message, started_by, created_at, started_at, completed_at
		FROM instances
	`)

	if len(conditions) > 0 {
		query.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}

	query.WriteString(fmt.Sprintf(" ORDER BY %s %s", sortBy, strings.ToUpper(sortOrder)))

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	args = append(args, limit)
	query.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))

	if filter.Skip > 0 {
		args = append(args, filter.Skip)
		query.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, persistence.NewStoreError("Query", "instance", "", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	instances := make([]*models.Instance, 0)

	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, persistence.NewStoreError("Query", "instance", "", err)
		}

		instances = append(instances, instance)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("Query", "instance", "", err)
	}

	return instances, nil
}

func scanInstance(scanner interface{ Scan(dest ...any) error }) (*models.Instance, error) {
	var (
		instance              models.Instance
		dataJSON, historyJSON []byte
	)

	err := scanner.Scan(
		&instance.ID,
		&instance.WorkflowID,
		&instance.Version,
		&instance.CurrentState,
		&instance.Status,
		&dataJSON,
		&historyJSON,
		&instance.Error,
		&instance.StartedBy,
		&instance.CreatedAt,
		&instance.StartedAt,
		&instance.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	instance.Data = make(map[string]any)
	if dataJSON != nil {
		if err := json.Unmarshal(dataJSON, &instance.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal data: %w", err)
		}
	}

	if historyJSON != nil {
		if err := json.Unmarshal(historyJSON, &instance.History); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history: %w", err)
		}
	}

	return &instance, nil
}
