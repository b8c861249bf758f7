package marc

import (
	"io"
	"strings"
	"testing"
)

const oaiCollection = `<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
	<ListRecords>
		<record>
			<header><identifier>oai:d-nb.de/authorities/118540238</identifier></header>
			<metadata>
				<record xmlns="http://www.loc.gov/MARC21/slim">
					<leader>     cz  a2200000oc 4500</leader>
					<controlfield tag="001">118540238</controlfield>
					<datafield tag="100" ind1="1" ind2=" ">
						<subfield code="a">Goethe, Johann Wolfgang von</subfield>
					</datafield>
				</record>
			</metadata>
		</record>
		<record>
			<header status="deleted"><identifier>oai:d-nb.de/authorities/1234</identifier></header>
			<metadata>
				<record xmlns="http://www.loc.gov/MARC21/slim">
					<leader>     dz  a2200000oc 4500</leader>
					<controlfield tag="001">1234</controlfield>
				</record>
			</metadata>
		</record>
	</ListRecords>
</OAI-PMH>`

func TestReaderSkipsEnvelope(t *testing.T) {
	r := NewReader(strings.NewReader(oaiCollection))

	rec, err := r.Next()
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	if got := rec.ControlValue("001"); got != "118540238" {
		t.Errorf("pid = %q, want 118540238", got)
	}
	if rec.LeaderStatus() != 'c' {
		t.Errorf("leader status = %q, want 'c'", rec.LeaderStatus())
	}
	f := rec.Field("100")
	if f == nil || f.Sub("a") != "Goethe, Johann Wolfgang von" {
		t.Errorf("unexpected 100 field: %+v", f)
	}

	rec, err = r.Next()
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if got := rec.ControlValue("001"); got != "1234" {
		t.Errorf("pid = %q, want 1234", got)
	}
	if rec.LeaderStatus() != 'd' {
		t.Errorf("leader status = %q, want 'd'", rec.LeaderStatus())
	}

	if _, err = r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReaderUnwrapsBareOAIWrapper(t *testing.T) {
	// The inner XML of a ListRecords page carries the OAI wrappers
	// without the envelope's namespace declaration.
	page := `<record>
		<header><identifier>oai:d-nb.de/authorities/118540238</identifier></header>
		<metadata>
			<record xmlns="http://www.loc.gov/MARC21/slim">
				<leader>     cz  a2200000oc 4500</leader>
				<controlfield tag="001">118540238</controlfield>
			</record>
		</metadata>
	</record>
	<record>
		<header status="deleted"><identifier>oai:d-nb.de/authorities/9999</identifier></header>
	</record>`

	r := NewReader(strings.NewReader(page))
	rec, err := r.Next()
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	if got := rec.ControlValue("001"); got != "118540238" {
		t.Errorf("pid = %q, want 118540238", got)
	}

	// The metadata-less deletion stub yields nothing.
	if _, err = r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestParseSingleRecord(t *testing.T) {
	rec, err := Parse([]byte(`<record>
		<controlfield tag="001">A000000001</controlfield>
		<datafield tag="035" ind1=" " ind2=" ">
			<subfield code="a">A000000001</subfield>
		</datafield>
		<datafield tag="035" ind1=" " ind2=" ">
			<subfield code="a">(RERO)0123</subfield>
		</datafield>
	</record>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := len(rec.Fields("035")); got != 2 {
		t.Fatalf("got %d 035 fields, want 2", got)
	}
	if got := rec.Fields("035")[1].Sub("a"); got != "(RERO)0123" {
		t.Errorf("second 035 $a = %q", got)
	}
	if rec.Field("100") != nil {
		t.Error("expected no 100 field")
	}
}

func TestParseEmptyInput(t *testing.T) {
	if _, err := Parse([]byte(`<collection></collection>`)); err == nil {
		t.Error("expected error for input without a record")
	}
}
