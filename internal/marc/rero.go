package marc

import (
	"strings"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// ReroTransformer converts RERO MARC 21 authority records.
type ReroTransformer struct{}

// Entity implements Transformer.
func (t *ReroTransformer) Entity() model.Entity { return model.EntityRero }

// Transform implements Transformer.
func (t *ReroTransformer) Transform(rec *Record) (model.Record, error) {
	pid := t.pid(rec)
	if pid == "" {
		return nil, ErrNoTransformation
	}
	doc := newAgentDocument(pid)
	doc["identifier"] = "http://data.rero.ch/02-" + pid

	if rec.LeaderStatus() == 'd' {
		deletedNow(doc)
	}

	t.preferredName(rec, doc)
	t.variantNames(rec, doc)
	t.dates(rec, doc)
	t.biography(rec, doc)

	return doc, nil
}

// pid prefers the RERO control number from 035 $a, falling back to 001.
func (t *ReroTransformer) pid(rec *Record) string {
	if f := rec.Field("035"); f != nil {
		if v := f.Sub("a"); v != "" {
			return v
		}
	}
	return rec.ControlValue("001")
}

func (t *ReroTransformer) preferredName(rec *Record, doc model.Record) {
	if f := rec.Field("100"); f != nil {
		if name := joinNonEmpty(" ", f.Sub("a"), f.Sub("b"), f.Sub("c")); name != "" {
			doc["preferred_name"] = name
		}
	}
}

func (t *ReroTransformer) variantNames(rec *Record, doc model.Record) {
	var names []string
	for _, f := range rec.Fields("400") {
		if name := joinNonEmpty(" ", f.Sub("a"), f.Sub("b"), f.Sub("c")); name != "" {
			names = append(names, name)
		}
	}
	if len(names) > 0 {
		doc["variant_name"] = names
	}
}

// dates splits 100 $d "birth-death".
func (t *ReroTransformer) dates(rec *Record, doc model.Record) {
	f := rec.Field("100")
	if f == nil {
		return
	}
	parts := strings.SplitN(f.Sub("d"), "-", 2)
	if birth := strings.TrimSpace(parts[0]); birth != "" {
		doc["date_of_birth"] = birth
	}
	if len(parts) == 2 {
		if death := strings.TrimSpace(parts[1]); death != "" {
			doc["date_of_death"] = death
		}
	}
}

func (t *ReroTransformer) biography(rec *Record, doc model.Record) {
	var notes []string
	for _, f := range rec.Fields("680") {
		if note := f.Sub("a"); note != "" {
			notes = append(notes, note)
		}
	}
	if len(notes) > 0 {
		doc["biographical_information"] = notes
	}
}
