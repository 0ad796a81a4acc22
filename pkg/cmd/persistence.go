package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pathwayhq/pathway/pkg/persistence"
	"github.com/pathwayhq/pathway/pkg/persistence/file"
	"github.com/pathwayhq/pathway/pkg/persistence/postgresql"
)

// NewPersistence dispatches on the database URL scheme: postgres:// and
// postgresql:// select PostgreSQL, anything else is treated as a file path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL persistence: %w", err)
		}

		return p, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch provider {
	case "postgres", "postgresql":
		return "postgresql"
	default:
		return "file"
	}
}
