package model

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Record is a schemaless authority record. Agent and VIAF documents
// carry source-specific fields, so they are kept as generic JSON
// objects; only the fields the system itself reads have accessors.
type Record map[string]any

// Pid returns the persistent identifier, or "" when missing.
func (r Record) Pid() string {
	pid, _ := r["pid"].(string)
	return pid
}

// SetPid sets the persistent identifier.
func (r Record) SetPid(pid string) {
	r["pid"] = pid
}

// Schema returns the $schema URL, or "".
func (r Record) Schema() string {
	s, _ := r["$schema"].(string)
	return s
}

// Deleted reports whether the record carries a deletion timestamp.
func (r Record) Deleted() bool {
	_, ok := r["deleted"]
	return ok
}

// MarkDeleted stamps the record with a deletion time in RFC3339.
func (r Record) MarkDeleted(t time.Time) {
	r["deleted"] = t.UTC().Format(time.RFC3339)
}

// MD5 returns the stored fingerprint, or "".
func (r Record) MD5() string {
	m, _ := r["md5"].(string)
	return m
}

// Clone returns a deep copy of the record via a JSON round trip.
func (r Record) Clone() (Record, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var out Record
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return out, nil
}

// AddMD5 computes and stores the record fingerprint. The fingerprint
// covers the canonical JSON form with "$schema" and "md5" excluded, so
// two records differing only in schema URL compare equal.
func (r Record) AddMD5() (string, error) {
	sum, err := Fingerprint(r)
	if err != nil {
		return "", err
	}
	r["md5"] = sum
	return sum, nil
}

// Fingerprint computes the md5 fingerprint of a record without
// mutating it.
func Fingerprint(r Record) (string, error) {
	trimmed := make(map[string]any, len(r))
	for k, v := range r {
		if k == "$schema" || k == "md5" {
			continue
		}
		trimmed[k] = v
	}
	// encoding/json sorts map keys, which gives a canonical form.
	raw, err := json.Marshal(trimmed)
	if err != nil {
		return "", fmt.Errorf("marshal for fingerprint: %w", err)
	}
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:]), nil
}

// RelationPid describes a pid redirection between records of the same
// source, e.g. an idref record superseding an older pid.
type RelationPid struct {
	Value string
	Type  string // "redirect_from" or "redirect_to"
}

// Relation extracts the relation_pid sub-object, if present.
func (r Record) Relation() *RelationPid {
	rel, ok := r["relation_pid"].(map[string]any)
	if !ok {
		return nil
	}
	value, _ := rel["value"].(string)
	typ, _ := rel["type"].(string)
	if value == "" || typ == "" {
		return nil
	}
	return &RelationPid{Value: value, Type: typ}
}

// SetRelation stores a relation_pid sub-object.
func (r Record) SetRelation(rel RelationPid) {
	r["relation_pid"] = map[string]any{
		"value": rel.Value,
		"type":  rel.Type,
	}
}
