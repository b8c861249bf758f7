package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Ref is a JSON reference to another record's API URL.
type Ref struct {
	Ref string `json:"$ref"`
}

// MEFRecord is a merged authority record. The shape is fixed: a pid,
// an optional VIAF cross reference and one reference per source. No
// other fields are ever set, which keeps the stored document within
// the published schema.
type MEFRecord struct {
	Schema  string `json:"$schema"`
	Pid     string `json:"pid"`
	ViafPid string `json:"viaf_pid,omitempty"`
	Gnd     *Ref   `json:"gnd,omitempty"`
	Idref   *Ref   `json:"idref,omitempty"`
	Rero    *Ref   `json:"rero,omitempty"`
	Deleted string `json:"deleted,omitempty"`
	MD5     string `json:"md5,omitempty"`
}

// SourceRef returns the reference held for a source, or nil.
func (m *MEFRecord) SourceRef(e Entity) *Ref {
	switch e {
	case EntityGnd:
		return m.Gnd
	case EntityIdref:
		return m.Idref
	case EntityRero:
		return m.Rero
	}
	return nil
}

// SetSourceRef stores (or clears, with nil) the reference for a source.
func (m *MEFRecord) SetSourceRef(e Entity, ref *Ref) {
	switch e {
	case EntityGnd:
		m.Gnd = ref
	case EntityIdref:
		m.Idref = ref
	case EntityRero:
		m.Rero = ref
	}
}

// Sources lists the agent entities the record references.
func (m *MEFRecord) Sources() []Entity {
	var out []Entity
	for _, e := range AgentEntities {
		if m.SourceRef(e) != nil {
			out = append(out, e)
		}
	}
	return out
}

// Empty reports whether the record references no agent at all.
func (m *MEFRecord) Empty() bool {
	return len(m.Sources()) == 0
}

// ToRecord converts to the generic storage form.
func (m *MEFRecord) ToRecord() (Record, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal mef record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal mef record: %w", err)
	}
	return rec, nil
}

// MEFFromRecord parses the generic storage form back into a MEFRecord.
func MEFFromRecord(rec Record) (*MEFRecord, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var m MEFRecord
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal mef record: %w", err)
	}
	return &m, nil
}

// RefURL builds the API URL referencing a record.
func RefURL(baseURL string, e Entity, pid string) string {
	return fmt.Sprintf("%s/api/%s/%s", baseURL, e, pid)
}

// PidFromRef extracts the pid from a reference URL.
func PidFromRef(ref *Ref) string {
	if ref == nil {
		return ""
	}
	i := strings.LastIndexByte(ref.Ref, '/')
	return ref.Ref[i+1:]
}

// MEFSchemaURL builds the published schema URL of MEF records.
func MEFSchemaURL(baseURL string) string {
	return baseURL + "/schemas/mef/mef-v0.0.1.json"
}
