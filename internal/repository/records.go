package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// Common errors for record operations.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrRecordNoPid    = errors.New("record has no pid")
	ErrInvalidCursor  = errors.New("invalid pagination cursor")
)

// RecordStore accesses the pidstore and metadata tables of one entity.
// Table names come from the entity and never from user input.
type RecordStore struct {
	repo   *Repository
	entity model.Entity
}

// Records returns the store for an entity.
func (r *Repository) Records(e model.Entity) *RecordStore {
	return &RecordStore{repo: r, entity: e}
}

// Entity returns the entity the store serves.
func (s *RecordStore) Entity() model.Entity {
	return s.entity
}

// PaginationCursor represents decoded cursor for pagination.
type PaginationCursor struct {
	Pid string `json:"pid"`
}

// Get retrieves a record by pid.
func (s *RecordStore) Get(ctx context.Context, pid string) (model.Record, error) {
	query := fmt.Sprintf(`
		SELECT m.data
		FROM %s m
		JOIN %s p ON p.object_uuid = m.id
		WHERE p.pid_value = $1
	`, s.entity.MetadataTable(), s.entity.PidstoreTable())

	var rec model.Record
	if err := s.repo.pool.QueryRow(ctx, query, pid).Scan(&rec); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get %s record: %w", s.entity, err)
	}
	return rec, nil
}

// Exists checks whether a pid is registered.
func (s *RecordStore) Exists(ctx context.Context, pid string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE pid_value = $1)`,
		s.entity.PidstoreTable())

	var exists bool
	if err := s.repo.pool.QueryRow(ctx, query, pid).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s pid: %w", s.entity, err)
	}
	return exists, nil
}

// Create inserts a new record.
func (s *RecordStore) Create(ctx context.Context, rec model.Record) error {
	pid := rec.Pid()
	if pid == "" {
		return ErrRecordNoPid
	}
	if _, err := rec.AddMD5(); err != nil {
		return err
	}

	tx, err := s.repo.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	id := uuid.New()
	now := time.Now().UTC()

	pidQuery := fmt.Sprintf(`
		INSERT INTO %s (created, updated, pid_value, status, object_uuid)
		VALUES ($1, $1, $2, 'R', $3)
	`, s.entity.PidstoreTable())
	if _, err := tx.Exec(ctx, pidQuery, now, pid, id); err != nil {
		return fmt.Errorf("failed to register %s pid: %w", s.entity, err)
	}

	metaQuery := fmt.Sprintf(`
		INSERT INTO %s (created, updated, id, data, version_id)
		VALUES ($1, $1, $2, $3, 1)
	`, s.entity.MetadataTable())
	if _, err := tx.Exec(ctx, metaQuery, now, id, rec); err != nil {
		return fmt.Errorf("failed to create %s record: %w", s.entity, err)
	}

	return tx.Commit(ctx)
}

// Update replaces the metadata of an existing record.
func (s *RecordStore) Update(ctx context.Context, rec model.Record) error {
	pid := rec.Pid()
	if pid == "" {
		return ErrRecordNoPid
	}
	if _, err := rec.AddMD5(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s m
		SET data = $2, version_id = m.version_id + 1, updated = NOW()
		FROM %s p
		WHERE p.object_uuid = m.id AND p.pid_value = $1
	`, s.entity.MetadataTable(), s.entity.PidstoreTable())

	result, err := s.repo.pool.Exec(ctx, query, pid, rec)
	if err != nil {
		return fmt.Errorf("failed to update %s record: %w", s.entity, err)
	}
	if result.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// CreateOrUpdate stores a record and reports what happened. Records
// whose fingerprint matches the stored one are left untouched.
func (s *RecordStore) CreateOrUpdate(ctx context.Context, rec model.Record) (model.Record, model.Action, error) {
	pid := rec.Pid()
	if pid == "" {
		return nil, model.ActionError, ErrRecordNoPid
	}

	existing, err := s.Get(ctx, pid)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, model.ActionError, err
	}

	if existing == nil {
		if err := s.Create(ctx, rec); err != nil {
			return nil, model.ActionError, err
		}
		return rec, model.ActionCreate, nil
	}

	fp, err := model.Fingerprint(rec)
	if err != nil {
		return nil, model.ActionError, err
	}
	if fp == existing.MD5() {
		return existing, model.ActionUpToDate, nil
	}

	if err := s.Update(ctx, rec); err != nil {
		return nil, model.ActionError, err
	}
	return rec, model.ActionUpdate, nil
}

// Delete soft deletes a record: the pid row is flagged 'D' and the
// metadata stays readable.
func (s *RecordStore) Delete(ctx context.Context, pid string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = 'D', updated = NOW() WHERE pid_value = $1
	`, s.entity.PidstoreTable())

	result, err := s.repo.pool.Exec(ctx, query, pid)
	if err != nil {
		return fmt.Errorf("failed to delete %s record: %w", s.entity, err)
	}
	if result.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Status returns the pidstore status flag of a record.
func (s *RecordStore) Status(ctx context.Context, pid string) (string, error) {
	query := fmt.Sprintf(`SELECT status FROM %s WHERE pid_value = $1`, s.entity.PidstoreTable())

	var status string
	if err := s.repo.pool.QueryRow(ctx, query, pid).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrRecordNotFound
		}
		return "", fmt.Errorf("failed to get %s status: %w", s.entity, err)
	}
	return status, nil
}

// Purge removes a record and its pid for good.
func (s *RecordStore) Purge(ctx context.Context, pid string) error {
	tx, err := s.repo.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	metaQuery := fmt.Sprintf(`
		DELETE FROM %s m
		USING %s p
		WHERE p.object_uuid = m.id AND p.pid_value = $1
	`, s.entity.MetadataTable(), s.entity.PidstoreTable())
	if _, err := tx.Exec(ctx, metaQuery, pid); err != nil {
		return fmt.Errorf("failed to delete %s record: %w", s.entity, err)
	}

	pidQuery := fmt.Sprintf(`DELETE FROM %s WHERE pid_value = $1`, s.entity.PidstoreTable())
	result, err := tx.Exec(ctx, pidQuery, pid)
	if err != nil {
		return fmt.Errorf("failed to delete %s pid: %w", s.entity, err)
	}
	if result.RowsAffected() == 0 {
		return ErrRecordNotFound
	}

	return tx.Commit(ctx)
}

// Count returns the number of stored records.
func (s *RecordStore) Count(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.entity.PidstoreTable())

	var count int64
	if err := s.repo.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s records: %w", s.entity, err)
	}
	return count, nil
}

// pidOrder wraps a pid expression for ordering and comparison. MEF
// pids come out of a numeric sequence and sort numerically; source
// pids are opaque strings.
func (s *RecordStore) pidOrder(expr string) string {
	if s.entity == model.EntityMef {
		return expr + "::bigint"
	}
	return expr
}

// List retrieves a page of records ordered by pid, with a cursor to
// the next page.
func (s *RecordStore) List(ctx context.Context, cursor string, limit int) ([]model.Record, string, error) {
	var cursorData *PaginationCursor
	if cursor != "" {
		var err error
		cursorData, err = decodeCursor(cursor)
		if err != nil {
			return nil, "", ErrInvalidCursor
		}
	}

	query := fmt.Sprintf(`
		SELECT p.pid_value, m.data
		FROM %s m
		JOIN %s p ON p.object_uuid = m.id
	`, s.entity.MetadataTable(), s.entity.PidstoreTable())
	var args []any
	if cursorData != nil {
		query += fmt.Sprintf(" WHERE %s > %s", s.pidOrder("p.pid_value"), s.pidOrder("$1"))
		args = append(args, cursorData.Pid)
	}
	query += fmt.Sprintf(" ORDER BY %s LIMIT $%d", s.pidOrder("p.pid_value"), len(args)+1)
	args = append(args, limit+1) // Fetch one extra to determine hasMore

	rows, err := s.repo.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list %s records: %w", s.entity, err)
	}
	defer rows.Close()

	var records []model.Record
	var lastPid string
	for rows.Next() {
		var rec model.Record
		if err := rows.Scan(&lastPid, &rec); err != nil {
			return nil, "", fmt.Errorf("failed to scan %s record: %w", s.entity, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating %s records: %w", s.entity, err)
	}

	var nextCursor string
	if len(records) > limit {
		records = records[:limit]
		nextCursor = encodeCursor(&PaginationCursor{Pid: records[len(records)-1].Pid()})
	}

	return records, nextCursor, nil
}

// AllPids streams every registered pid in order.
func (s *RecordStore) AllPids(ctx context.Context, fn func(pid string) error) error {
	query := fmt.Sprintf(`SELECT pid_value FROM %s ORDER BY %s`,
		s.entity.PidstoreTable(), s.pidOrder("pid_value"))

	rows, err := s.repo.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to list %s pids: %w", s.entity, err)
	}
	defer rows.Close()

	for rows.Next() {
		var pid string
		if err := rows.Scan(&pid); err != nil {
			return fmt.Errorf("failed to scan %s pid: %w", s.entity, err)
		}
		if err := fn(pid); err != nil {
			return err
		}
	}
	return rows.Err()
}

// AllRecords streams every record in pid order.
func (s *RecordStore) AllRecords(ctx context.Context, fn func(rec model.Record) error) error {
	query := fmt.Sprintf(`
		SELECT m.data
		FROM %s m
		JOIN %s p ON p.object_uuid = m.id
		ORDER BY %s
	`, s.entity.MetadataTable(), s.entity.PidstoreTable(), s.pidOrder("p.pid_value"))

	rows, err := s.repo.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to export %s records: %w", s.entity, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec model.Record
		if err := rows.Scan(&rec); err != nil {
			return fmt.Errorf("failed to scan %s record: %w", s.entity, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// GetMany retrieves the records for a set of pids. Missing pids are
// skipped rather than reported.
func (s *RecordStore) GetMany(ctx context.Context, pids []string) ([]model.Record, error) {
	if len(pids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT m.data
		FROM %s m
		JOIN %s p ON p.object_uuid = m.id
		WHERE p.pid_value = ANY($1)
	`, s.entity.MetadataTable(), s.entity.PidstoreTable())

	rows, err := s.repo.pool.Query(ctx, query, pids)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s records: %w", s.entity, err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var rec model.Record
		if err := rows.Scan(&rec); err != nil {
			return nil, fmt.Errorf("failed to scan %s record: %w", s.entity, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// encodeCursor encodes pagination cursor to base64.
func encodeCursor(cursor *PaginationCursor) string {
	data, _ := json.Marshal(cursor)
	return base64.URLEncoding.EncodeToString(data)
}

// decodeCursor decodes base64 pagination cursor.
func decodeCursor(s string) (*PaginationCursor, error) {
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}

	var cursor PaginationCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, err
	}

	return &cursor, nil
}
