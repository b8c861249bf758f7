package marc

import (
	"testing"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// idrefRecord wraps xml fragments into a minimal UNIMARC record with
// a pid, the way transformation tests feed partial records.
func idrefRecord(t *testing.T, part string) *Record {
	t.Helper()
	raw := `<record>` + part +
		`<controlfield tag="001">069774331</controlfield></record>`
	rec, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse record: %v", err)
	}
	return rec
}

func transformIdref(t *testing.T, part string) model.Record {
	t.Helper()
	doc, err := (&IdrefTransformer{}).Transform(idrefRecord(t, part))
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	return doc
}

func TestIdrefDeleted(t *testing.T) {
	// Leader position 5 == 'd' marks a deletion.
	doc := transformIdref(t, `<leader>     dx  a22     3  45  </leader>`)
	if !doc.Deleted() {
		t.Error("expected deleted record")
	}

	doc = transformIdref(t, `<leader>     cx  a22     3  45  </leader>`)
	if doc.Deleted() {
		t.Error("record with status 'c' must not be deleted")
	}
}

func TestIdrefRelationPid(t *testing.T) {
	doc := transformIdref(t, `
		<datafield tag="035" ind1=" " ind2=" ">
			<subfield code="a">027630501</subfield>
			<subfield code="9">sudoc</subfield>
		</datafield>
		<datafield tag="035" ind1=" " ind2=" ">
			<subfield code="a">frBN001940328</subfield>
		</datafield>`)
	rel := doc.Relation()
	if rel == nil {
		t.Fatal("expected relation pid")
	}
	if rel.Value != "027630501" || rel.Type != "redirect_from" {
		t.Errorf("unexpected relation %+v", rel)
	}

	// 035 without $9 sudoc yields no relation.
	doc = transformIdref(t, `
		<datafield tag="035" ind1=" " ind2=" ">
			<subfield code="a">frBN001940328</subfield>
		</datafield>`)
	if doc.Relation() != nil {
		t.Error("expected no relation pid")
	}
}

func TestIdrefGender(t *testing.T) {
	var tests = []struct {
		code string
		want string
	}{
		{"a", "female"},
		{"b", "male"},
		{"-", ""},
	}
	for _, test := range tests {
		doc := transformIdref(t, `
			<datafield tag="120" ind1=" " ind2=" ">
				<subfield code="a">`+test.code+`</subfield>
			</datafield>`)
		got, _ := doc["gender"].(string)
		if got != test.want {
			t.Errorf("gender(%q) = %q, want %q", test.code, got, test.want)
		}
	}
}

func TestIdrefNamesAndDates(t *testing.T) {
	doc := transformIdref(t, `
		<datafield tag="103" ind1=" " ind2=" ">
			<subfield code="a">18160421</subfield>
			<subfield code="b">18550331</subfield>
		</datafield>
		<datafield tag="200" ind1=" " ind2=" ">
			<subfield code="a">Brontë</subfield>
			<subfield code="b">Charlotte</subfield>
		</datafield>
		<datafield tag="400" ind1=" " ind2=" ">
			<subfield code="a">Bell</subfield>
			<subfield code="b">Currer</subfield>
		</datafield>`)

	if doc["preferred_name"] != "Brontë, Charlotte" {
		t.Errorf("preferred_name = %v", doc["preferred_name"])
	}
	if doc["date_of_birth"] != "1816-04-21" {
		t.Errorf("date_of_birth = %v", doc["date_of_birth"])
	}
	if doc["date_of_death"] != "1855-03-31" {
		t.Errorf("date_of_death = %v", doc["date_of_death"])
	}
	variants, _ := doc["variant_name"].([]string)
	if len(variants) != 1 || variants[0] != "Bell, Currer" {
		t.Errorf("variant_name = %v", doc["variant_name"])
	}
}

func TestIdrefPidRequired(t *testing.T) {
	rec, err := Parse([]byte(`<record><leader>     cx  a22     3  45  </leader></record>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := (&IdrefTransformer{}).Transform(rec); err == nil {
		t.Error("expected error for record without pid")
	}
}
