package model

import "time"

// OAISource is the persisted harvest configuration of one OAI-PMH
// repository. LastRun tracks the upper bound of the last successful
// harvest and becomes the "from" of the next one.
type OAISource struct {
	Name           string    `json:"name" yaml:"name"`
	BaseURL        string    `json:"baseurl" yaml:"baseurl"`
	MetadataPrefix string    `json:"metadataprefix" yaml:"metadataprefix"`
	SetSpecs       string    `json:"setspecs" yaml:"setspecs"`
	Comment        string    `json:"comment" yaml:"comment"`
	LastRun        time.Time `json:"lastrun" yaml:"lastrun"`
}
