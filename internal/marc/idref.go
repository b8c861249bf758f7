package marc

import (
	"strings"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// IdrefTransformer converts IDREF (Sudoc) UNIMARC authority records.
type IdrefTransformer struct{}

// Entity implements Transformer.
func (t *IdrefTransformer) Entity() model.Entity { return model.EntityIdref }

// Transform implements Transformer.
func (t *IdrefTransformer) Transform(rec *Record) (model.Record, error) {
	pid := rec.ControlValue("001")
	if pid == "" {
		return nil, ErrNoTransformation
	}
	doc := newAgentDocument(pid)
	doc["identifier"] = "http://www.idref.fr/" + pid

	// Record status 'd' in the leader marks a deletion.
	if rec.LeaderStatus() == 'd' {
		deletedNow(doc)
	}

	t.relationPid(rec, doc)
	t.gender(rec, doc)
	t.language(rec, doc)
	t.dates(rec, doc)
	t.preferredName(rec, doc)
	t.variantNames(rec, doc)
	t.biography(rec, doc)
	t.isni(rec, doc)

	return doc, nil
}

// relationPid extracts superseded Sudoc pids: 035 $a with $9 == "sudoc".
func (t *IdrefTransformer) relationPid(rec *Record, doc model.Record) {
	for _, f := range rec.Fields("035") {
		if f.Sub("9") == "sudoc" {
			if old := f.Sub("a"); old != "" {
				doc.SetRelation(model.RelationPid{Value: old, Type: "redirect_from"})
				return
			}
		}
	}
}

// gender maps 120 $a: a = female, b = male, - = not known.
func (t *IdrefTransformer) gender(rec *Record, doc model.Record) {
	if f := rec.Field("120"); f != nil {
		switch f.Sub("a") {
		case "a":
			doc["gender"] = "female"
		case "b":
			doc["gender"] = "male"
		}
	}
}

func (t *IdrefTransformer) language(rec *Record, doc model.Record) {
	if f := rec.Field("101"); f != nil {
		if langs := f.SubAll("a"); len(langs) > 0 {
			doc["language"] = langs
		}
	}
}

// dates reads 103 $a (birth) and $b (death), kept as ISO prefixes.
func (t *IdrefTransformer) dates(rec *Record, doc model.Record) {
	f := rec.Field("103")
	if f == nil {
		return
	}
	if birth := formatIdrefDate(f.Sub("a")); birth != "" {
		doc["date_of_birth"] = birth
	}
	if death := formatIdrefDate(f.Sub("b")); death != "" {
		doc["date_of_death"] = death
	}
}

// formatIdrefDate turns the packed "YYYYMMDD" form into "YYYY-MM-DD",
// keeping shorter year-only values as is.
func formatIdrefDate(v string) string {
	v = strings.TrimSpace(v)
	if len(v) == 8 {
		return v[:4] + "-" + v[4:6] + "-" + v[6:]
	}
	return v
}

// preferredName builds "Surname, Forename" from 200 $a and $b.
func (t *IdrefTransformer) preferredName(rec *Record, doc model.Record) {
	if f := rec.Field("200"); f != nil {
		if name := joinNonEmpty(", ", f.Sub("a"), f.Sub("b")); name != "" {
			doc["preferred_name"] = name
		}
	}
}

func (t *IdrefTransformer) variantNames(rec *Record, doc model.Record) {
	var names []string
	for _, f := range rec.Fields("400") {
		if name := joinNonEmpty(", ", f.Sub("a"), f.Sub("b")); name != "" {
			names = append(names, name)
		}
	}
	if len(names) > 0 {
		doc["variant_name"] = names
	}
}

func (t *IdrefTransformer) biography(rec *Record, doc model.Record) {
	var notes []string
	for _, f := range rec.Fields("340") {
		if note := f.Sub("a"); note != "" {
			notes = append(notes, note)
		}
	}
	if len(notes) > 0 {
		doc["biographical_information"] = notes
	}
}

func (t *IdrefTransformer) isni(rec *Record, doc model.Record) {
	if f := rec.Field("010"); f != nil {
		if isni := f.Sub("a"); isni != "" {
			doc["isni"] = strings.ReplaceAll(isni, " ", "")
		}
	}
}
