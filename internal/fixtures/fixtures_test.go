package fixtures

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/PascalRepond/rero-mef/internal/model"
)

func testRecords() []model.Record {
	return []model.Record{
		{"pid": "1", "type": "bf:Person", "preferred_name": "Brontë, Charlotte"},
		{"pid": "2", "type": "bf:Person", "preferred_name": "Goethe, Johann Wolfgang von",
			"biographical_information": []any{"line one\nline two"}},
	}
}

func TestJSONArrayRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	jw := NewJSONArrayWriter(&buf)
	for _, rec := range testRecords() {
		if err := jw.Write(rec); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := jw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if jw.Count() != 2 {
		t.Errorf("count = %d", jw.Count())
	}

	var got []model.Record
	err := ReadJSONArray(&buf, func(rec model.Record) error {
		got = append(got, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records", len(got))
	}
	if got[0].Pid() != "1" || got[1].Pid() != "2" {
		t.Errorf("pids = %s, %s", got[0].Pid(), got[1].Pid())
	}
}

func TestJSONEmptyArray(t *testing.T) {
	var buf bytes.Buffer
	jw := NewJSONArrayWriter(&buf)
	if err := jw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	var recs []model.Record
	if err := json.Unmarshal(buf.Bytes(), &recs); err != nil {
		t.Fatalf("output is not valid json: %v\n%s", err, buf.String())
	}
	if len(recs) != 0 {
		t.Errorf("expected empty array, got %v", recs)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	var pidstore, metadata bytes.Buffer
	created := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	w := NewCSVWriter(&pidstore, &metadata, created)
	for _, rec := range testRecords() {
		if err := w.Write(rec); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if w.Count() != 2 {
		t.Errorf("count = %d", w.Count())
	}

	uuids := map[string]string{}
	err := ReadPidstoreCSV(bytes.NewReader(pidstore.Bytes()), func(row PidstoreRow) error {
		if row.Status != statusRegistered {
			t.Errorf("status = %q", row.Status)
		}
		if !row.Created.Equal(created) {
			t.Errorf("created = %v", row.Created)
		}
		uuids[row.ObjectUUID.String()] = row.Pid
		return nil
	})
	if err != nil {
		t.Fatalf("read pidstore: %v", err)
	}

	seen := 0
	err = ReadMetadataCSV(bytes.NewReader(metadata.Bytes()), func(row MetadataRow) error {
		seen++
		pid, ok := uuids[row.ID.String()]
		if !ok {
			t.Errorf("metadata uuid %s not in pidstore", row.ID)
		}
		if row.Data.Pid() != pid {
			t.Errorf("pid = %q, want %q", row.Data.Pid(), pid)
		}
		if row.VersionID != 1 {
			t.Errorf("version = %d", row.VersionID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	if seen != 2 {
		t.Errorf("read %d metadata rows", seen)
	}
}

func TestEscapeCopy(t *testing.T) {
	var tests = []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"tab\there", "tab\\there"},
		{"line\nbreak", "line\\nbreak"},
		{`back\slash`, `back\\slash`},
	}
	for _, test := range tests {
		if got := EscapeCopy(test.in); got != test.want {
			t.Errorf("EscapeCopy(%q) = %q, want %q", test.in, got, test.want)
		}
		if got := UnescapeCopy(test.want); got != test.in {
			t.Errorf("UnescapeCopy(%q) = %q, want %q", test.want, got, test.in)
		}
	}
}

func TestCSVToJSON(t *testing.T) {
	var pidstore, metadata bytes.Buffer
	w := NewCSVWriter(&pidstore, &metadata, time.Now())
	for _, rec := range testRecords() {
		if err := w.Write(rec); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	var out bytes.Buffer
	count, err := CSVToJSON(bytes.NewReader(metadata.Bytes()), &out)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d", count)
	}
	var recs []model.Record
	if err := json.Unmarshal(out.Bytes(), &recs); err != nil {
		t.Fatalf("output is not valid json: %v", err)
	}
	if len(recs) != 2 || recs[1]["preferred_name"] != "Goethe, Johann Wolfgang von" {
		t.Errorf("unexpected output %v", recs)
	}
}

func metadataCSV(t *testing.T, recs []model.Record) string {
	t.Helper()
	var pidstore, metadata bytes.Buffer
	w := NewCSVWriter(&pidstore, &metadata, time.Now())
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return metadata.String()
}

func TestDiff(t *testing.T) {
	oldCSV := metadataCSV(t, []model.Record{
		{"pid": "1", "preferred_name": "Kept, Same"},
		{"pid": "2", "preferred_name": "Changed, Before"},
		{"pid": "3", "preferred_name": "Dropped, Gone"},
	})
	newCSV := metadataCSV(t, []model.Record{
		{"pid": "1", "preferred_name": "Kept, Same"},
		{"pid": "2", "preferred_name": "Changed, After"},
		{"pid": "4", "preferred_name": "Added, New"},
	})

	var added, changed, deleted bytes.Buffer
	res, err := Diff(strings.NewReader(oldCSV), strings.NewReader(newCSV),
		&added, &changed, &deleted)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}

	want := DiffResult{Added: 1, Changed: 1, Deleted: 1, Unchanged: 1}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}

	var recs []model.Record
	if err := json.Unmarshal(added.Bytes(), &recs); err != nil {
		t.Fatalf("added output: %v", err)
	}
	if len(recs) != 1 || recs[0].Pid() != "4" {
		t.Errorf("added = %v", recs)
	}
	if err := json.Unmarshal(changed.Bytes(), &recs); err != nil {
		t.Fatalf("changed output: %v", err)
	}
	if len(recs) != 1 || recs[0]["preferred_name"] != "Changed, After" {
		t.Errorf("changed = %v", recs)
	}
	if err := json.Unmarshal(deleted.Bytes(), &recs); err != nil {
		t.Fatalf("deleted output: %v", err)
	}
	if len(recs) != 1 || recs[0].Pid() != "3" {
		t.Errorf("deleted = %v", recs)
	}
}
