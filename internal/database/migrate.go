package database

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var requiredTables = []string{"users", "roles", "user_roles"}

// EnsureSchema creates the schema when it is missing and always re-runs
// the idempotent role seed.
func (db *Database) EnsureSchema(ctx context.Context) error {
	missing, err := db.missingTables(ctx)
	if err != nil {
		return fmt.Errorf("checking schema: %w", err)
	}

	if len(missing) > 0 {
		slog.Info("applying initial schema", "missing_tables", missing)
		if err := db.applyMigration(ctx, "migrations/001_initial.up.sql"); err != nil {
			return err
		}
	}

	if err := db.applyMigration(ctx, "migrations/002_seed_roles.up.sql"); err != nil {
		return err
	}

	return nil
}

func (db *Database) missingTables(ctx context.Context) ([]string, error) {
	var missing []string
	for _, table := range requiredTables {
		var exists bool
		err := db.Pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`,
			table,
		).Scan(&exists)
		if err != nil {
			return nil, err
		}
		if !exists {
			missing = append(missing, table)
		}
	}
	return missing, nil
}

func (db *Database) applyMigration(ctx context.Context, name string) error {
	script, err := migrationFiles.ReadFile(name)
	if err != nil {
		return fmt.Errorf("reading migration %s: %w", name, err)
	}

	if _, err := db.Pool.Exec(ctx, string(script)); err != nil {
		return fmt.Errorf("applying migration %s: %w", name, err)
	}

	return nil
}
