package repository

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"

	"github.com/PascalRepond/rero-mef/internal/fixtures"
	"github.com/PascalRepond/rero-mef/internal/model"
)

// copyBatchSize bounds the rows buffered per COPY round trip.
const copyBatchSize = 10000

// LoadCSV bulk loads the COPY files of one entity. The input must
// come from fresh tables: COPY does not resolve pid conflicts.
func (r *Repository) LoadCSV(ctx context.Context, e model.Entity, pidstore, metadata io.Reader) (int64, error) {
	pidColumns := []string{"created", "updated", "pid_value", "status", "object_uuid"}
	var rows [][]any
	flushPids := func() error {
		if len(rows) == 0 {
			return nil
		}
		_, err := r.pool.CopyFrom(ctx,
			pgx.Identifier{e.PidstoreTable()}, pidColumns, pgx.CopyFromRows(rows))
		rows = rows[:0]
		return err
	}
	err := fixtures.ReadPidstoreCSV(pidstore, func(row fixtures.PidstoreRow) error {
		rows = append(rows, []any{row.Created, row.Updated, row.Pid, row.Status, row.ObjectUUID})
		if len(rows) >= copyBatchSize {
			return flushPids()
		}
		return nil
	})
	if err == nil {
		err = flushPids()
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load %s pidstore: %w", e, err)
	}

	metaColumns := []string{"created", "updated", "id", "data", "version_id"}
	var count int64
	rows = rows[:0]
	flushMeta := func() error {
		if len(rows) == 0 {
			return nil
		}
		n, err := r.pool.CopyFrom(ctx,
			pgx.Identifier{e.MetadataTable()}, metaColumns, pgx.CopyFromRows(rows))
		count += n
		rows = rows[:0]
		return err
	}
	err = fixtures.ReadMetadataCSV(metadata, func(row fixtures.MetadataRow) error {
		rows = append(rows, []any{row.Created, row.Updated, row.ID, row.Data, row.VersionID})
		if len(rows) >= copyBatchSize {
			return flushMeta()
		}
		return nil
	})
	if err == nil {
		err = flushMeta()
	}
	if err != nil {
		return count, fmt.Errorf("failed to load %s metadata: %w", e, err)
	}
	return count, nil
}

// BulkSave stores a stream of records through CreateOrUpdate and
// reports the action counts.
func (r *Repository) BulkSave(ctx context.Context, e model.Entity, recs []model.Record) (map[model.Action]int, error) {
	store := r.Records(e)
	counts := map[model.Action]int{}
	for _, rec := range recs {
		_, action, err := store.CreateOrUpdate(ctx, rec)
		if err != nil {
			return counts, fmt.Errorf("failed to save %s record %s: %w", e, rec.Pid(), err)
		}
		counts[action]++
	}
	return counts, nil
}
