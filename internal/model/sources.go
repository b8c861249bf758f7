package model

// Source describes an authority source known to VIAF.
type Source struct {
	// Name is the local source name (and entity name when aggregated).
	Name string
	// ViafCode is the source code used by viaf.org, e.g. "DNB".
	ViafCode string
	// Info is the human readable institution name.
	Info string
	// Aggregated is true for sources the system stores locally.
	Aggregated bool
}

// Sources is the VIAF source-code table. Only the aggregated sources
// have records of their own; the rest are kept so their pids can be
// carried on VIAF link records.
var Sources = []Source{
	{Name: "idref", ViafCode: "SUDOC", Info: "Sudoc [ABES], France", Aggregated: true},
	{Name: "gnd", ViafCode: "DNB", Info: "German National Library", Aggregated: true},
	{Name: "rero", ViafCode: "RERO", Info: "RERO - Library Network of Western Switzerland", Aggregated: true},
	{Name: "sz", ViafCode: "SZ", Info: "Swiss National Library"},
	{Name: "bne", ViafCode: "BNE", Info: "National Library of Spain"},
	{Name: "bnf", ViafCode: "BNF", Info: "National Library of France"},
	{Name: "iccu", ViafCode: "ICCU", Info: "Central Institute for the Union Catalogue of the Italian libraries"},
	{Name: "isni", ViafCode: "ISNI", Info: "ISNI"},
	{Name: "wiki", ViafCode: "WKP", Info: "Wikidata"},
}

// SourceByViafCode resolves a viaf.org source code, e.g. "DNB".
func SourceByViafCode(code string) (Source, bool) {
	for _, s := range Sources {
		if s.ViafCode == code {
			return s, true
		}
	}
	return Source{}, false
}

// SourceByName resolves a local source name, e.g. "gnd".
func SourceByName(name string) (Source, bool) {
	for _, s := range Sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}

// ViafCodeFor returns the viaf.org source code for an aggregated entity.
func ViafCodeFor(e Entity) string {
	if s, ok := SourceByName(string(e)); ok {
		return s.ViafCode
	}
	return ""
}
