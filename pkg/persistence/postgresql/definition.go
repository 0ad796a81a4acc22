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

// DefinitionRepository stores flow definitions in the flow_definitions table.
type DefinitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(db *sql.DB, logger *slog.Logger) *DefinitionRepository {
	return &DefinitionRepository{db: db, logger: logger}
}

// Save upserts a definition. Re-saving bumps saved_at, which makes the
// saved version the latest for its name.
func (r *DefinitionRepository) Save(ctx context.Context, flow *models.Flow) error {
	nodesJSON, err := json.Marshal(flow.Nodes)
	if err != nil {
		return persistence.NewStoreError("Save", "definition", flow.Name, fmt.Errorf("failed to marshal nodes: %w", err))
	}

	edgesJSON, err := json.Marshal(flow.Edges)
	if err != nil {
		return persistence.NewStoreError("Save", "definition", flow.Name, fmt.Errorf("failed to marshal edges: %w", err))
	}

	query := `
		INSERT INTO flow_definitions (name, version, label, flow_type, nodes, edges, created_at, updated_at, saved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (name, version) DO UPDATE SET
			label = EXCLUDED.label,
			flow_type = EXCLUDED.flow_type,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			updated_at = EXCLUDED.updated_at,
			saved_at = NOW()
	`

	_, err = r.db.ExecContext(ctx, query,
		flow.Name,
		flow.Version,
		flow.Label,
		flow.Type,
		nodesJSON,
		edgesJSON,
		flow.CreatedAt,
		flow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "definition", flow.Name, err)
	}

	return nil
}

// Get returns the definition with the given name and version. An empty
// version selects the most-recently-saved version for that name.
func (r *DefinitionRepository) Get(ctx context.Context, name, version string) (*models.Flow, error) {
	var row *sql.Row

	if version == "" {
		query := `
			SELECT name, version, label, flow_type, nodes, edges, created_at, updated_at
			FROM flow_definitions
			WHERE name = $1
			ORDER BY saved_at DESC
			LIMIT 1
		`
		row = r.db.QueryRowContext(ctx, query, name)
	} else {
		query := `
			SELECT name, version, label, flow_type, nodes, edges, created_at, updated_at
			FROM flow_definitions
			WHERE name = $1 AND version = $2
		`
		row = r.db.QueryRowContext(ctx, query, name, version)
	}

	flow, err := scanFlow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("Get", "definition", name, persistence.ErrDefinitionNotFound)
		}

		return nil, persistence.NewStoreError("Get", "definition", name, err)
	}

	return flow, nil
}

// List returns the latest version of every stored definition, sorted by name.
func (r *DefinitionRepository) List(ctx context.Context) ([]*models.Flow, error) {
	query := `
		SELECT DISTINCT ON (name) name, version, label, flow_type, nodes, edges, created_at, updated_at
		FROM flow_definitions
		ORDER BY name, saved_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, persistence.NewStoreError("List", "definition", "", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var flows []*models.Flow

	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, persistence.NewStoreError("List", "definition", "", err)
		}

		flows = append(flows, flow)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("List", "definition", "", err)
	}

	return flows, nil
}

func scanFlow(scanner interface{ Scan(dest ...any) error }) (*models.Flow, error) {
	var (
		flow                 models.Flow
		nodesJSON, edgesJSON []byte
	)

	err := scanner.Scan(
		&flow.Name,
		&flow.Version,
		&flow.Label,
		&flow.Type,
		&nodesJSON,
		&edgesJSON,
		&flow.CreatedAt,
		&flow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(nodesJSON, &flow.Nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}

	if err := json.Unmarshal(edgesJSON, &flow.Edges); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
	}

	return &flow, nil
}
