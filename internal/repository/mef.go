package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// NextMEFPid draws the next MEF pid from the database sequence.
func (r *Repository) NextMEFPid(ctx context.Context) (string, error) {
	var next int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('mef_pid_seq')`).Scan(&next); err != nil {
		return "", fmt.Errorf("failed to get next mef pid: %w", err)
	}
	return strconv.FormatInt(next, 10), nil
}

// SetMEFPidFloor moves the MEF pid sequence past the given pid. Used
// after bulk loads, which bring their own pids.
func (r *Repository) SetMEFPidFloor(ctx context.Context, pid string) error {
	value, err := strconv.ParseInt(pid, 10, 64)
	if err != nil {
		return fmt.Errorf("mef pid %q is not numeric: %w", pid, err)
	}
	if _, err := r.pool.Exec(ctx, `SELECT setval('mef_pid_seq', $1)`, value); err != nil {
		return fmt.Errorf("failed to set mef pid sequence: %w", err)
	}
	return nil
}

// MaxPid returns the highest numeric pid of an entity, or "" when the
// table is empty.
func (r *Repository) MaxPid(ctx context.Context, e model.Entity) (string, error) {
	query := fmt.Sprintf(
		`SELECT pid_value FROM %s ORDER BY pid_value::BIGINT DESC LIMIT 1`,
		e.PidstoreTable())

	var pid string
	if err := r.pool.QueryRow(ctx, query).Scan(&pid); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get max %s pid: %w", e, err)
	}
	return pid, nil
}

// FindMEFByAgent retrieves the MEF record referencing an agent pid.
// The $ref URL ends with "/api/<entity>/<pid>" whatever host it was
// written with.
func (r *Repository) FindMEFByAgent(ctx context.Context, e model.Entity, pid string) (model.Record, error) {
	if !e.IsAgent() {
		return nil, fmt.Errorf("%w: %q is not an agent", model.ErrUnknownEntity, e)
	}
	query := `
		SELECT data FROM mef_metadata
		WHERE data #>> ARRAY[$1::TEXT, '$ref'] LIKE '%' || $2
	`
	suffix := fmt.Sprintf("/api/%s/%s", e, pid)

	var rec model.Record
	if err := r.pool.QueryRow(ctx, query, string(e), suffix).Scan(&rec); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to find mef by %s pid: %w", e, err)
	}
	return rec, nil
}

// FindMEFByViaf retrieves the MEF record built from a VIAF cluster.
func (r *Repository) FindMEFByViaf(ctx context.Context, viafPid string) (model.Record, error) {
	query := `SELECT data FROM mef_metadata WHERE data ->> 'viaf_pid' = $1`

	var rec model.Record
	if err := r.pool.QueryRow(ctx, query, viafPid).Scan(&rec); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to find mef by viaf pid: %w", err)
	}
	return rec, nil
}

// FindAgentByRelation retrieves the agent record superseding an old
// pid, i.e. the one whose relation_pid points back at it.
func (r *Repository) FindAgentByRelation(ctx context.Context, e model.Entity, oldPid string) (model.Record, error) {
	if !e.IsAgent() {
		return nil, fmt.Errorf("%w: %q is not an agent", model.ErrUnknownEntity, e)
	}
	query := fmt.Sprintf(`
		SELECT data FROM %s
		WHERE data #>> '{relation_pid,value}' = $1
		  AND data #>> '{relation_pid,type}' = 'redirect_from'
		LIMIT 1
	`, e.MetadataTable())

	var rec model.Record
	if err := r.pool.QueryRow(ctx, query, oldPid).Scan(&rec); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to find %s by relation pid: %w", e, err)
	}
	return rec, nil
}

// FindViafByAgent retrieves the VIAF cluster holding an agent pid.
func (r *Repository) FindViafByAgent(ctx context.Context, e model.Entity, pid string) (model.Record, error) {
	if !e.IsAgent() {
		return nil, fmt.Errorf("%w: %q is not an agent", model.ErrUnknownEntity, e)
	}
	query := `SELECT data FROM viaf_metadata WHERE data ->> $1 = $2`

	var rec model.Record
	if err := r.pool.QueryRow(ctx, query, e.ViafPidField(), pid).Scan(&rec); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to find viaf by %s pid: %w", e, err)
	}
	return rec, nil
}
