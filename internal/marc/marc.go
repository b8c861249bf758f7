// Package marc parses MARCXML and transforms source authority records
// into their JSON form.
package marc

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Record is a single MARCXML record.
type Record struct {
	Leader        string         `xml:"leader"`
	Controlfields []Controlfield `xml:"controlfield"`
	Datafields    []Datafield    `xml:"datafield"`
}

// Controlfield is a MARC control field (tags 00X).
type Controlfield struct {
	Tag   string `xml:"tag,attr"`
	Value string `xml:",chardata"`
}

// Datafield is a MARC data field with subfields.
type Datafield struct {
	Tag       string     `xml:"tag,attr"`
	Ind1      string     `xml:"ind1,attr"`
	Ind2      string     `xml:"ind2,attr"`
	Subfields []Subfield `xml:"subfield"`
}

// Subfield is a coded value inside a data field.
type Subfield struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

// ControlValue returns the value of the first control field with the
// given tag, or "".
func (r *Record) ControlValue(tag string) string {
	for _, f := range r.Controlfields {
		if f.Tag == tag {
			return strings.TrimSpace(f.Value)
		}
	}
	return ""
}

// Fields returns all data fields with the given tag.
func (r *Record) Fields(tag string) []Datafield {
	var out []Datafield
	for _, f := range r.Datafields {
		if f.Tag == tag {
			out = append(out, f)
		}
	}
	return out
}

// Field returns the first data field with the given tag, or nil.
func (r *Record) Field(tag string) *Datafield {
	for i := range r.Datafields {
		if r.Datafields[i].Tag == tag {
			return &r.Datafields[i]
		}
	}
	return nil
}

// LeaderStatus returns the record status character (leader position 5),
// or 0 when the leader is too short.
func (r *Record) LeaderStatus() byte {
	if len(r.Leader) < 6 {
		return 0
	}
	return r.Leader[5]
}

// Sub returns the value of the first subfield with the given code, or "".
func (f *Datafield) Sub(code string) string {
	for _, s := range f.Subfields {
		if s.Code == code {
			return strings.TrimSpace(s.Value)
		}
	}
	return ""
}

// SubAll returns all values for a subfield code.
func (f *Datafield) SubAll(code string) []string {
	var out []string
	for _, s := range f.Subfields {
		if s.Code == code {
			if v := strings.TrimSpace(s.Value); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// Reader streams records out of a MARCXML document. Files such as the
// GND authority dump run to millions of records, so the document is
// never held in memory as a whole.
type Reader struct {
	dec *xml.Decoder
}

const oaiNamespace = "http://www.openarchives.org/OAI/2.0/"

// NewReader returns a Reader over a MARCXML stream. The stream may be
// a bare <record>, a <collection> or an OAI-PMH response; any element
// named "record" that carries a leader or fields is yielded.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: xml.NewDecoder(r)}
}

// recordEnvelope decodes a <record> element that is either a MARC
// record itself or an OAI wrapper holding one under <metadata>.
type recordEnvelope struct {
	Leader        string         `xml:"leader"`
	Controlfields []Controlfield `xml:"controlfield"`
	Datafields    []Datafield    `xml:"datafield"`
	Metadata      struct {
		Raw string `xml:",innerxml"`
	} `xml:"metadata"`
}

// Next returns the next record, or io.EOF when the stream is done.
func (r *Reader) Next() (*Record, error) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read marcxml token: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "record" {
			continue
		}
		// OAI envelopes nest <record><metadata><record>. The outer
		// shell lives in the OAI namespace; descend into it instead of
		// decoding, so the inner MARC record is not swallowed.
		if start.Name.Space == oaiNamespace {
			continue
		}
		var env recordEnvelope
		if err := r.dec.DecodeElement(&env, &start); err != nil {
			return nil, fmt.Errorf("decode marcxml record: %w", err)
		}
		if env.Leader != "" || len(env.Controlfields) > 0 || len(env.Datafields) > 0 {
			return &Record{
				Leader:        env.Leader,
				Controlfields: env.Controlfields,
				Datafields:    env.Datafields,
			}, nil
		}
		// An OAI wrapper re-parsed out of a page loses the namespace
		// that would mark it as a shell. Its payload sits under
		// <metadata>; an empty metadata element is a deleted or
		// non-MARC record and is skipped.
		if env.Metadata.Raw != "" {
			rec, err := NewReader(strings.NewReader(env.Metadata.Raw)).Next()
			if err == nil {
				return rec, nil
			}
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
		}
	}
}

// Parse decodes a single MARCXML record from a byte slice.
func Parse(raw []byte) (*Record, error) {
	rec, err := NewReader(strings.NewReader(string(raw))).Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no marc record in input")
		}
		return nil, err
	}
	return rec, nil
}
