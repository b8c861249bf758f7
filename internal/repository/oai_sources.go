package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// ErrOAISourceNotFound is returned for unconfigured harvest sources.
var ErrOAISourceNotFound = errors.New("oai source not found")

// UpsertOAISource creates or replaces a harvest source configuration.
// The last run timestamp of an existing source is preserved.
func (r *Repository) UpsertOAISource(ctx context.Context, src model.OAISource) error {
	query := `
		INSERT INTO oai_sources (name, baseurl, metadataprefix, setspecs, comment)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE
		SET baseurl = $2, metadataprefix = $3, setspecs = $4, comment = $5
	`
	_, err := r.pool.Exec(ctx, query,
		src.Name, src.BaseURL, src.MetadataPrefix, src.SetSpecs, src.Comment)
	if err != nil {
		return fmt.Errorf("failed to upsert oai source: %w", err)
	}
	return nil
}

// GetOAISource retrieves one harvest source configuration.
func (r *Repository) GetOAISource(ctx context.Context, name string) (model.OAISource, error) {
	query := `
		SELECT name, baseurl, metadataprefix, setspecs, comment, lastrun
		FROM oai_sources
		WHERE name = $1
	`
	src, err := scanOAISource(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.OAISource{}, ErrOAISourceNotFound
		}
		return model.OAISource{}, fmt.Errorf("failed to get oai source: %w", err)
	}
	return src, nil
}

// ListOAISources retrieves all harvest source configurations.
func (r *Repository) ListOAISources(ctx context.Context) ([]model.OAISource, error) {
	query := `
		SELECT name, baseurl, metadataprefix, setspecs, comment, lastrun
		FROM oai_sources
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list oai sources: %w", err)
	}
	defer rows.Close()

	var sources []model.OAISource
	for rows.Next() {
		src, err := scanOAISource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan oai source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// SetOAILastRun records the upper bound of a finished harvest.
func (r *Repository) SetOAILastRun(ctx context.Context, name string, lastRun time.Time) error {
	query := `UPDATE oai_sources SET lastrun = $2 WHERE name = $1`

	result, err := r.pool.Exec(ctx, query, name, lastRun)
	if err != nil {
		return fmt.Errorf("failed to set oai last run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrOAISourceNotFound
	}
	return nil
}

// DeleteOAISource removes a harvest source configuration.
func (r *Repository) DeleteOAISource(ctx context.Context, name string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM oai_sources WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete oai source: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrOAISourceNotFound
	}
	return nil
}

func scanOAISource(row pgx.Row) (model.OAISource, error) {
	var src model.OAISource
	var lastRun sql.NullTime
	err := row.Scan(
		&src.Name,
		&src.BaseURL,
		&src.MetadataPrefix,
		&src.SetSpecs,
		&src.Comment,
		&lastRun,
	)
	if lastRun.Valid {
		src.LastRun = lastRun.Time
	}
	return src, err
}
