package repository

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/PascalRepond/rero-mef/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// InitSchema creates all tables, sequences and indexes. With force,
// the record tables are dropped first, so a deployment starts clean.
func (r *Repository) InitSchema(ctx context.Context, force bool) error {
	if force {
		if err := r.DropSchema(ctx); err != nil {
			return err
		}
	}
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// DropSchema removes all record tables and the harvest configuration.
func (r *Repository) DropSchema(ctx context.Context) error {
	for _, e := range model.AllEntities {
		stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s, %s",
			e.PidstoreTable(), e.MetadataTable())
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to drop %s tables: %w", e, err)
		}
	}
	if _, err := r.pool.Exec(ctx, "DROP TABLE IF EXISTS oai_sources"); err != nil {
		return fmt.Errorf("failed to drop oai_sources: %w", err)
	}
	if _, err := r.pool.Exec(ctx, "DROP SEQUENCE IF EXISTS mef_pid_seq"); err != nil {
		return fmt.Errorf("failed to drop mef pid sequence: %w", err)
	}
	return nil
}
