// Package postgresql provides the PostgreSQL persistence backend for flow
// definitions, instances and tasks.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/pathwayhq/pathway/pkg/persistence"
	"github.com/pathwayhq/pathway/pkg/persistence/sqlbase"
)

// Persistence implements persistence.Persistence on top of PostgreSQL.
type Persistence struct {
	db          *sql.DB
	logger      *slog.Logger
	definitions *DefinitionRepository
	instances   *InstanceRepository
	tasks       *TaskRepository
}

// NewPersistence connects to the database, runs pending migrations and
// returns a ready persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:          database,
		logger:      logger,
		definitions: NewDefinitionRepository(database, logger),
		instances:   NewInstanceRepository(database, logger),
		tasks:       NewTaskRepository(database, logger),
	}, nil
}

// Definitions returns the flow definition repository.
func (p *Persistence) Definitions() persistence.DefinitionRepository {
	return p.definitions
}

// Instances returns the instance repository.
func (p *Persistence) Instances() persistence.InstanceRepository {
	return p.instances
}

// Tasks returns the task repository.
func (p *Persistence) Tasks() persistence.TaskRepository {
	return p.tasks
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
