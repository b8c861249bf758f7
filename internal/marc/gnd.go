package marc

import (
	"strings"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// GndTransformer converts GND (Deutsche Nationalbibliothek) MARC 21
// authority records.
type GndTransformer struct{}

// Entity implements Transformer.
func (t *GndTransformer) Entity() model.Entity { return model.EntityGnd }

// Transform implements Transformer.
func (t *GndTransformer) Transform(rec *Record) (model.Record, error) {
	pid := rec.ControlValue("001")
	if pid == "" {
		return nil, ErrNoTransformation
	}
	doc := newAgentDocument(pid)
	doc["identifier"] = "https://d-nb.info/gnd/" + t.gndIdentifier(rec, pid)

	t.relationPid(rec, doc)
	// Deleted on record status 'd'; merged records (682 redirect)
	// are deletions of the old pid as well.
	if rec.LeaderStatus() == 'd' || doc.Relation() != nil {
		deletedNow(doc)
	}
	t.preferredName(rec, doc)
	t.variantNames(rec, doc)
	t.dates(rec, doc)
	t.gender(rec, doc)
	t.biography(rec, doc)
	t.isni(rec, doc)

	return doc, nil
}

// gndIdentifier prefers the 024 gnd identifier over the raw pid.
func (t *GndTransformer) gndIdentifier(rec *Record, pid string) string {
	for _, f := range rec.Fields("024") {
		if f.Sub("2") == "gnd" {
			if id := f.Sub("a"); id != "" {
				return id
			}
		}
	}
	return pid
}

// relationPid extracts the redirect target of merged records:
// 682 $0 with the (DE-101) control-number prefix.
func (t *GndTransformer) relationPid(rec *Record, doc model.Record) {
	for _, f := range rec.Fields("682") {
		for _, v := range f.SubAll("0") {
			if strings.HasPrefix(v, "(DE-101)") {
				doc.SetRelation(model.RelationPid{
					Value: strings.TrimPrefix(v, "(DE-101)"),
					Type:  "redirect_to",
				})
				return
			}
		}
	}
}

// preferredName builds from 100 $a plus numeration $b and titles $c.
func (t *GndTransformer) preferredName(rec *Record, doc model.Record) {
	if f := rec.Field("100"); f != nil {
		if name := joinNonEmpty(" ", f.Sub("a"), f.Sub("b"), f.Sub("c")); name != "" {
			doc["preferred_name"] = name
		}
	}
}

func (t *GndTransformer) variantNames(rec *Record, doc model.Record) {
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

// dates reads life dates from 548 $a with $4 == "datl" ("birth-death").
func (t *GndTransformer) dates(rec *Record, doc model.Record) {
	for _, f := range rec.Fields("548") {
		if f.Sub("4") != "datl" {
			continue
		}
		parts := strings.SplitN(f.Sub("a"), "-", 2)
		if birth := strings.TrimSpace(parts[0]); birth != "" {
			doc["date_of_birth"] = birth
		}
		if len(parts) == 2 {
			if death := strings.TrimSpace(parts[1]); death != "" {
				doc["date_of_death"] = death
			}
		}
		return
	}
}

// gender maps 375 $a per the GND code list (1 = male, 2 = female).
func (t *GndTransformer) gender(rec *Record, doc model.Record) {
	if f := rec.Field("375"); f != nil {
		switch f.Sub("a") {
		case "1", "male":
			doc["gender"] = "male"
		case "2", "female":
			doc["gender"] = "female"
		}
	}
}

func (t *GndTransformer) biography(rec *Record, doc model.Record) {
	var notes []string
	for _, f := range rec.Fields("678") {
		if note := joinNonEmpty(" ", f.Sub("a"), f.Sub("b")); note != "" {
			notes = append(notes, note)
		}
	}
	if len(notes) > 0 {
		doc["biographical_information"] = notes
	}
}

func (t *GndTransformer) isni(rec *Record, doc model.Record) {
	for _, f := range rec.Fields("024") {
		if f.Sub("2") == "isni" {
			if isni := f.Sub("a"); isni != "" {
				doc["isni"] = strings.ReplaceAll(isni, " ", "")
				return
			}
		}
	}
}
