package fixtures

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/boltdb/bolt"

	"github.com/PascalRepond/rero-mef/internal/model"
)

var diffBucket = []byte("records")

// DiffResult counts the outcome of a dump comparison.
type DiffResult struct {
	Added     int
	Changed   int
	Deleted   int
	Unchanged int
}

// Diff compares two metadata dumps by pid and writes the added,
// changed and deleted records as JSON arrays. The old dump is staged
// in an on-disk bolt database, so dumps larger than memory compare
// fine. Records compare on their md5 fingerprint.
func Diff(oldCSV, newCSV io.Reader, added, changed, deleted io.Writer) (DiffResult, error) {
	var res DiffResult

	dir, err := os.MkdirTemp("", "mef-diff-")
	if err != nil {
		return res, fmt.Errorf("create diff workdir: %w", err)
	}
	defer os.RemoveAll(dir)

	db, err := bolt.Open(filepath.Join(dir, "old.db"), 0600, nil)
	if err != nil {
		return res, fmt.Errorf("open diff store: %w", err)
	}
	defer db.Close()

	if err := stageOldDump(db, oldCSV); err != nil {
		return res, err
	}

	addedW := NewJSONArrayWriter(added)
	changedW := NewJSONArrayWriter(changed)
	deletedW := NewJSONArrayWriter(deleted)

	err = ReadMetadataCSV(newCSV, func(row MetadataRow) error {
		pid := row.Data.Pid()
		if pid == "" {
			return fmt.Errorf("diff record without pid: %v", row.Data)
		}
		var old []byte
		err := db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(diffBucket)
			if v := b.Get([]byte(pid)); v != nil {
				old = append(old, v...)
				return b.Delete([]byte(pid))
			}
			return nil
		})
		if err != nil {
			return err
		}
		if old == nil {
			res.Added++
			return addedW.Write(row.Data)
		}
		oldFP, err := fingerprintRaw(old)
		if err != nil {
			return err
		}
		newFP, err := model.Fingerprint(row.Data)
		if err != nil {
			return err
		}
		if oldFP != newFP {
			res.Changed++
			return changedW.Write(row.Data)
		}
		res.Unchanged++
		return nil
	})
	if err != nil {
		return res, err
	}

	// Whatever stayed in the store exists only in the old dump.
	err = db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(diffBucket).ForEach(func(_, v []byte) error {
			var rec model.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			res.Deleted++
			return deletedW.Write(rec)
		})
	})
	if err != nil {
		return res, err
	}

	for _, w := range []*JSONArrayWriter{addedW, changedW, deletedW} {
		if err := w.Close(); err != nil {
			return res, err
		}
	}
	return res, nil
}

func stageOldDump(db *bolt.DB, oldCSV io.Reader) error {
	tx, err := db.Begin(true)
	if err != nil {
		return err
	}
	bucket, err := tx.CreateBucketIfNotExists(diffBucket)
	if err != nil {
		tx.Rollback()
		return err
	}
	n := 0
	err = ReadMetadataCSV(oldCSV, func(row MetadataRow) error {
		pid := row.Data.Pid()
		if pid == "" {
			return fmt.Errorf("diff record without pid: %v", row.Data)
		}
		raw, err := json.Marshal(row.Data)
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(pid), raw); err != nil {
			return err
		}
		// Bound transaction size on big dumps.
		if n++; n%10000 == 0 {
			if err := tx.Commit(); err != nil {
				return err
			}
			if tx, err = db.Begin(true); err != nil {
				return err
			}
			bucket = tx.Bucket(diffBucket)
		}
		return nil
	})
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func fingerprintRaw(raw []byte) (string, error) {
	var rec model.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", err
	}
	return model.Fingerprint(rec)
}
