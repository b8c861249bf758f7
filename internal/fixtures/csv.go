package fixtures

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// copyTimeLayout is the timestamp form Postgres COPY accepts.
const copyTimeLayout = "2006-01-02 15:04:05.000000"

// statusRegistered marks a pid as live in the pidstore.
const statusRegistered = "R"

// CSVWriter emits the two COPY files of one entity: the pidstore
// rows and the metadata rows, tab separated and in column order.
type CSVWriter struct {
	pidstore io.Writer
	metadata io.Writer
	created  string
	count    int
}

// NewCSVWriter returns a writer stamping all rows with the same
// creation time.
func NewCSVWriter(pidstore, metadata io.Writer, created time.Time) *CSVWriter {
	return &CSVWriter{
		pidstore: pidstore,
		metadata: metadata,
		created:  created.UTC().Format(copyTimeLayout),
	}
}

// Write appends one record to both files.
func (w *CSVWriter) Write(rec model.Record) error {
	pid := rec.Pid()
	if pid == "" {
		return fmt.Errorf("csv record without pid: %v", rec)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal csv record %s: %w", pid, err)
	}
	id := uuid.New().String()

	_, err = fmt.Fprintf(w.pidstore, "%s\t%s\t%s\t%s\t%s\n",
		w.created, w.created, pid, statusRegistered, id)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w.metadata, "%s\t%s\t%s\t%s\t1\n",
		w.created, w.created, id, EscapeCopy(string(raw)))
	if err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of records written so far.
func (w *CSVWriter) Count() int { return w.count }

// EscapeCopy escapes a value for the COPY text format.
func EscapeCopy(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		"\n", "\\n",
		"\r", "\\r",
		"\t", "\\t",
	)
	return r.Replace(s)
}

// UnescapeCopy reverses EscapeCopy.
func UnescapeCopy(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// MetadataRow is one parsed metadata COPY line.
type MetadataRow struct {
	Created   time.Time
	Updated   time.Time
	ID        uuid.UUID
	Data      model.Record
	VersionID int
}

// PidstoreRow is one parsed pidstore COPY line.
type PidstoreRow struct {
	Created    time.Time
	Updated    time.Time
	Pid        string
	Status     string
	ObjectUUID uuid.UUID
}

// ParseMetadataLine parses one metadata COPY line.
func ParseMetadataLine(line string) (MetadataRow, error) {
	var row MetadataRow
	fields := strings.Split(line, "\t")
	if len(fields) != 5 {
		return row, fmt.Errorf("metadata line has %d fields, want 5", len(fields))
	}
	var err error
	if row.Created, err = time.Parse(copyTimeLayout, fields[0]); err != nil {
		return row, fmt.Errorf("metadata created: %w", err)
	}
	if row.Updated, err = time.Parse(copyTimeLayout, fields[1]); err != nil {
		return row, fmt.Errorf("metadata updated: %w", err)
	}
	if row.ID, err = uuid.Parse(fields[2]); err != nil {
		return row, fmt.Errorf("metadata id: %w", err)
	}
	if err = json.Unmarshal([]byte(UnescapeCopy(fields[3])), &row.Data); err != nil {
		return row, fmt.Errorf("metadata json: %w", err)
	}
	if row.VersionID, err = strconv.Atoi(fields[4]); err != nil {
		return row, fmt.Errorf("metadata version: %w", err)
	}
	return row, nil
}

// ParsePidstoreLine parses one pidstore COPY line.
func ParsePidstoreLine(line string) (PidstoreRow, error) {
	var row PidstoreRow
	fields := strings.Split(line, "\t")
	if len(fields) != 5 {
		return row, fmt.Errorf("pidstore line has %d fields, want 5", len(fields))
	}
	var err error
	if row.Created, err = time.Parse(copyTimeLayout, fields[0]); err != nil {
		return row, fmt.Errorf("pidstore created: %w", err)
	}
	if row.Updated, err = time.Parse(copyTimeLayout, fields[1]); err != nil {
		return row, fmt.Errorf("pidstore updated: %w", err)
	}
	row.Pid = fields[2]
	row.Status = fields[3]
	if row.ObjectUUID, err = uuid.Parse(fields[4]); err != nil {
		return row, fmt.Errorf("pidstore object uuid: %w", err)
	}
	return row, nil
}

// ReadMetadataCSV streams parsed rows out of a metadata COPY file.
func ReadMetadataCSV(r io.Reader, fn func(row MetadataRow) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		row, err := ParseMetadataLine(text)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// ReadPidstoreCSV streams parsed rows out of a pidstore COPY file.
func ReadPidstoreCSV(r io.Reader, fn func(row PidstoreRow) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		row, err := ParsePidstoreLine(text)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// CSVToJSON converts a metadata COPY file back into a JSON dump.
func CSVToJSON(r io.Reader, w io.Writer) (int, error) {
	jw := NewJSONArrayWriter(w)
	err := ReadMetadataCSV(r, func(row MetadataRow) error {
		return jw.Write(row.Data)
	})
	if err != nil {
		return jw.Count(), err
	}
	return jw.Count(), jw.Close()
}
