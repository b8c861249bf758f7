package marc

import (
	"testing"

	"github.com/PascalRepond/rero-mef/internal/model"
)

func transformGnd(t *testing.T, raw string) model.Record {
	t.Helper()
	rec, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse record: %v", err)
	}
	doc, err := (&GndTransformer{}).Transform(rec)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	return doc
}

func TestGndRedirect(t *testing.T) {
	// A merged record redirects to the surviving pid and is treated as
	// a deletion of its own pid.
	doc := transformGnd(t, `<record>
		<leader>     cz  a2200000oc 4500</leader>
		<controlfield tag="001">100937187</controlfield>
		<datafield tag="682" ind1=" " ind2=" ">
			<subfield code="i">Umlenkung</subfield>
			<subfield code="0">(DE-101)100000193</subfield>
			<subfield code="0">(DE-588)100000193</subfield>
		</datafield>
	</record>`)

	rel := doc.Relation()
	if rel == nil {
		t.Fatal("expected relation pid")
	}
	if rel.Value != "100000193" || rel.Type != "redirect_to" {
		t.Errorf("unexpected relation %+v", rel)
	}
	if !doc.Deleted() {
		t.Error("merged record must be marked deleted")
	}
}

func TestGndTransform(t *testing.T) {
	doc := transformGnd(t, `<record>
		<leader>     cz  a2200000oc 4500</leader>
		<controlfield tag="001">118540238</controlfield>
		<datafield tag="024" ind1="7" ind2=" ">
			<subfield code="a">118540238</subfield>
			<subfield code="2">gnd</subfield>
		</datafield>
		<datafield tag="100" ind1="1" ind2=" ">
			<subfield code="a">Goethe, Johann Wolfgang von</subfield>
		</datafield>
		<datafield tag="375" ind1=" " ind2=" ">
			<subfield code="a">1</subfield>
		</datafield>
		<datafield tag="548" ind1=" " ind2=" ">
			<subfield code="a">1749-1832</subfield>
			<subfield code="4">datl</subfield>
		</datafield>
		<datafield tag="400" ind1="1" ind2=" ">
			<subfield code="a">Goethe, Johann Wolfgang</subfield>
		</datafield>
	</record>`)

	if doc.Pid() != "118540238" {
		t.Errorf("pid = %q", doc.Pid())
	}
	if doc["identifier"] != "https://d-nb.info/gnd/118540238" {
		t.Errorf("identifier = %v", doc["identifier"])
	}
	if doc["preferred_name"] != "Goethe, Johann Wolfgang von" {
		t.Errorf("preferred_name = %v", doc["preferred_name"])
	}
	if doc["gender"] != "male" {
		t.Errorf("gender = %v", doc["gender"])
	}
	if doc["date_of_birth"] != "1749" || doc["date_of_death"] != "1832" {
		t.Errorf("dates = %v / %v", doc["date_of_birth"], doc["date_of_death"])
	}
	if doc.Deleted() {
		t.Error("record must not be deleted")
	}
}
