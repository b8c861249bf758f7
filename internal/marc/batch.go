package marc

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// DumpResult counts the outcome of one dump transformation.
type DumpResult struct {
	Created    int
	Deleted    int
	Duplicates int
	Errors     int
}

// TransformDump converts a MARCXML stream into agent documents. Live
// documents go to live, deleted ones to deleted, each with its md5
// fingerprint set. A pid seen twice is an error for the later record,
// which is skipped. Records yielding no document are counted and
// mirrored to errs when non-nil so they can be inspected.
func TransformDump(t Transformer, r io.Reader, live, deleted func(model.Record) error,
	errs *Writer, logger *slog.Logger) (DumpResult, error) {
	var res DumpResult
	seen := make(map[string]bool)
	reader := NewReader(r)
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		doc, err := t.Transform(rec)
		if err != nil {
			if !errors.Is(err, ErrNoTransformation) {
				return res, err
			}
			res.Errors++
			if errs != nil {
				if werr := errs.Write(rec); werr != nil {
					return res, werr
				}
			}
			continue
		}
		pid := doc.Pid()
		if seen[pid] {
			res.Duplicates++
			if logger != nil {
				logger.Warn("duplicate pid in marc dump",
					"entity", string(t.Entity()), "pid", pid)
			}
			continue
		}
		seen[pid] = true
		if _, err := doc.AddMD5(); err != nil {
			return res, err
		}
		sink := live
		if doc.Deleted() {
			res.Deleted++
			sink = deleted
		} else {
			res.Created++
		}
		if err := sink(doc); err != nil {
			return res, err
		}
	}
}

// Writer emits parsed records back out as one MARCXML collection. It
// keeps the untransformable records of a dump around for inspection.
type Writer struct {
	w     io.Writer
	enc   *xml.Encoder
	count int
	err   error
}

// NewWriter starts a collection on w.
func NewWriter(w io.Writer) *Writer {
	mw := &Writer{w: w, enc: xml.NewEncoder(w)}
	_, mw.err = io.WriteString(w, "<collection>\n")
	return mw
}

// Write appends one record to the collection.
func (w *Writer) Write(rec *Record) error {
	if w.err != nil {
		return w.err
	}
	start := xml.StartElement{Name: xml.Name{Local: "record"}}
	if err := w.enc.EncodeElement(rec, start); err != nil {
		w.err = fmt.Errorf("encode marcxml record: %w", err)
		return w.err
	}
	if err := w.enc.Flush(); err != nil {
		w.err = err
		return w.err
	}
	if _, err := io.WriteString(w.w, "\n"); err != nil {
		w.err = err
		return w.err
	}
	w.count++
	return nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() int { return w.count }

// Close terminates the collection element.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	_, w.err = io.WriteString(w.w, "</collection>\n")
	return w.err
}
