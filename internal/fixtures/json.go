// Package fixtures reads and writes the bulk files used to set up an
// instance: JSON record dumps and the CSV files loaded into Postgres
// with COPY.
package fixtures

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// JSONArrayWriter writes records incrementally as one JSON array, so
// dumps of millions of records never sit in memory at once.
type JSONArrayWriter struct {
	w     io.Writer
	count int
	err   error
}

// NewJSONArrayWriter starts a JSON array on w.
func NewJSONArrayWriter(w io.Writer) *JSONArrayWriter {
	jw := &JSONArrayWriter{w: w}
	_, jw.err = io.WriteString(w, "[")
	return jw
}

// Write appends one record to the array.
func (jw *JSONArrayWriter) Write(rec model.Record) error {
	if jw.err != nil {
		return jw.err
	}
	raw, err := json.MarshalIndent(rec, "  ", "  ")
	if err != nil {
		jw.err = err
		return err
	}
	sep := "\n  "
	if jw.count > 0 {
		sep = ",\n  "
	}
	if _, err := io.WriteString(jw.w, sep+string(raw)); err != nil {
		jw.err = err
		return err
	}
	jw.count++
	return nil
}

// Count returns the number of records written so far.
func (jw *JSONArrayWriter) Count() int { return jw.count }

// Close terminates the array. The underlying writer stays open.
func (jw *JSONArrayWriter) Close() error {
	if jw.err != nil {
		return jw.err
	}
	_, jw.err = io.WriteString(jw.w, "\n]\n")
	return jw.err
}

// ReadJSONArray streams records out of a JSON array without loading
// the document as a whole. fn is called once per record.
func ReadJSONArray(r io.Reader, fn func(rec model.Record) error) error {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read json dump: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return errors.New("json dump must be an array of records")
	}
	for dec.More() {
		var rec model.Record
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("decode json dump record: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read json dump: %w", err)
	}
	return nil
}

// ReadJSONFile streams records out of a JSON dump file.
func ReadJSONFile(path string, fn func(rec model.Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open json dump: %w", err)
	}
	defer f.Close()
	return ReadJSONArray(f, fn)
}

// CountRecords counts the records of a JSON dump file.
func CountRecords(path string) (int, error) {
	count := 0
	err := ReadJSONFile(path, func(model.Record) error {
		count++
		return nil
	})
	return count, err
}
