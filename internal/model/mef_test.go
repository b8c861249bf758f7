package model

import (
	"encoding/json"
	"testing"
)

func TestMEFRecord_SourceRefs(t *testing.T) {
	m := &MEFRecord{Pid: "1"}
	if !m.Empty() {
		t.Error("expected empty record")
	}

	m.SetSourceRef(EntityGnd, &Ref{Ref: "https://mef.test/api/gnd/12"})
	m.SetSourceRef(EntityIdref, &Ref{Ref: "https://mef.test/api/idref/34"})

	sources := m.Sources()
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0] != EntityGnd || sources[1] != EntityIdref {
		t.Errorf("unexpected sources %v", sources)
	}

	m.SetSourceRef(EntityGnd, nil)
	if ref := m.SourceRef(EntityGnd); ref != nil {
		t.Errorf("expected cleared ref, got %+v", ref)
	}
}

func TestMEFRecord_JSONShape(t *testing.T) {
	m := &MEFRecord{
		Schema:  "https://mef.test/schemas/mef/mef-v0.0.1.json",
		Pid:     "1",
		ViafPid: "124265140",
		Gnd:     &Ref{Ref: "https://mef.test/api/gnd/12"},
	}

	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// Empty sources and deleted must be absent, not null.
	for _, key := range []string{"idref", "rero", "deleted", "md5"} {
		if _, ok := doc[key]; ok {
			t.Errorf("unexpected key %q in %s", key, raw)
		}
	}
	if doc["viaf_pid"] != "124265140" {
		t.Errorf("unexpected viaf_pid %v", doc["viaf_pid"])
	}
	gnd := doc["gnd"].(map[string]any)
	if gnd["$ref"] != "https://mef.test/api/gnd/12" {
		t.Errorf("unexpected gnd ref %v", gnd["$ref"])
	}
}

func TestMEFRecord_RoundTrip(t *testing.T) {
	m := &MEFRecord{Schema: "s", Pid: "9", Rero: &Ref{Ref: "u"}}
	rec, err := m.ToRecord()
	if err != nil {
		t.Fatalf("to record: %v", err)
	}
	if rec.Pid() != "9" {
		t.Errorf("unexpected pid %s", rec.Pid())
	}
	back, err := MEFFromRecord(rec)
	if err != nil {
		t.Fatalf("from record: %v", err)
	}
	if back.Rero == nil || back.Rero.Ref != "u" {
		t.Errorf("lost rero ref: %+v", back.Rero)
	}
}

func TestParseEntity(t *testing.T) {
	var tests = []struct {
		name string
		ok   bool
	}{
		{"gnd", true},
		{"idref", true},
		{"rero", true},
		{"viaf", true},
		{"mef", true},
		{"corero", false},
		{"", false},
	}
	for _, test := range tests {
		_, err := ParseEntity(test.name)
		if test.ok && err != nil {
			t.Errorf("ParseEntity(%q) unexpected error %v", test.name, err)
		}
		if !test.ok && err == nil {
			t.Errorf("ParseEntity(%q) expected error", test.name)
		}
	}
}

func TestEntityTables(t *testing.T) {
	if got := EntityGnd.PidstoreTable(); got != "gnd_pidstore" {
		t.Errorf("pidstore table: %s", got)
	}
	if got := EntityMef.MetadataTable(); got != "mef_metadata" {
		t.Errorf("metadata table: %s", got)
	}
	if got := EntityIdref.IndexName(); got != "agents_idref" {
		t.Errorf("index name: %s", got)
	}
	if got := EntityViaf.IndexName(); got != "viaf" {
		t.Errorf("index name: %s", got)
	}
}

func TestSourceLookup(t *testing.T) {
	s, ok := SourceByViafCode("DNB")
	if !ok || s.Name != "gnd" || !s.Aggregated {
		t.Errorf("unexpected source %+v ok=%v", s, ok)
	}
	if _, ok := SourceByViafCode("LC"); ok {
		t.Error("LC is not in the source table")
	}
	if code := ViafCodeFor(EntityIdref); code != "SUDOC" {
		t.Errorf("unexpected code %s", code)
	}
}
