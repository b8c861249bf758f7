// Package oai implements an OAI-PMH harvesting client. The Open
// Archives Initiative Protocol for Metadata Harvesting is the
// mechanism through which the GND, IDREF and RERO authority files
// publish their changes.
package oai

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ErrInvalidDateRange is returned when a window ends before it starts.
var ErrInvalidDateRange = errors.New("invalid date range")

// Error wraps an OAI-PMH protocol error code and message.
type Error struct {
	Code    string
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("oai: %s %s", e.Code, e.Message)
}

// IsNoRecords reports whether err is the noRecordsMatch condition,
// which signals an empty result set rather than a failure.
func IsNoRecords(err error) bool {
	var oaiErr Error
	return errors.As(err, &oaiErr) && oaiErr.Code == "noRecordsMatch"
}

// Values is a thin wrapper around url.Values.
type Values struct {
	url.Values
}

// NewValues returns a new empty struct.
func NewValues() Values {
	return Values{url.Values{}}
}

// AddIfExists adds a key value pair only if value is nonempty.
func (v Values) AddIfExists(key, value string) {
	if value != "" {
		v.Add(key, value)
	}
}

// Request represents an OAI request, which might take multiple HTTP
// requests to fulfill.
type Request struct {
	Endpoint        string
	Verb            string
	From            time.Time
	Until           time.Time
	Set             string
	Prefix          string
	Identifier      string
	ResumptionToken string
}

// URL returns the full URL for this request. A resumptionToken
// suppresses the other selective parameters.
func (r Request) URL() string {
	vals := NewValues()
	vals.AddIfExists("verb", r.Verb)
	if r.ResumptionToken == "" {
		switch r.Verb {
		case "Identify":
		case "GetRecord":
			vals.AddIfExists("identifier", r.Identifier)
			vals.AddIfExists("metadataPrefix", r.Prefix)
		default:
			if !r.From.IsZero() {
				vals.Add("from", r.From.Format("2006-01-02"))
			}
			if !r.Until.IsZero() {
				vals.Add("until", r.Until.Format("2006-01-02"))
			}
			vals.AddIfExists("metadataPrefix", r.Prefix)
			vals.AddIfExists("set", r.Set)
		}
	} else {
		vals.Add("resumptionToken", r.ResumptionToken)
	}
	return fmt.Sprintf("%s?%s", r.Endpoint, vals.Encode())
}

// Response is a minimal response object covering ListRecords,
// GetRecord, Identify and protocol errors.
type Response struct {
	Date        string `xml:"responseDate"`
	ListRecords struct {
		Raw   string `xml:",innerxml"`
		Token struct {
			Value  string `xml:",chardata"`
			Cursor string `xml:"cursor,attr"`
			Size   string `xml:"completeListSize,attr"`
		} `xml:"resumptionToken"`
	} `xml:"ListRecords"`
	GetRecord struct {
		Raw string `xml:",innerxml"`
	} `xml:"GetRecord"`
	Identify struct {
		Name              string `xml:"repositoryName" json:"name"`
		URL               string `xml:"baseURL" json:"url"`
		Version           string `xml:"protocolVersion" json:"version"`
		AdminEmail        string `xml:"adminEmail" json:"email"`
		EarliestDatestamp string `xml:"earliestDatestamp" json:"earliest"`
		DeletePolicy      string `xml:"deletedRecord" json:"delete"`
		Granularity       string `xml:"granularity" json:"granularity"`
	} `xml:"Identify"`
	Error struct {
		Code    string `xml:"code,attr"`
		Message string `xml:",chardata"`
	} `xml:"error"`
}
