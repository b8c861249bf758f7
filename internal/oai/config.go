package oai

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// sourcesFile mirrors the YAML layout of the harvest configuration:
// a mapping of source name to its endpoint settings.
type sourcesFile map[string]struct {
	BaseURL        string `yaml:"baseurl"`
	MetadataPrefix string `yaml:"metadataprefix"`
	SetSpecs       string `yaml:"setspecs"`
	Comment        string `yaml:"comment"`
}

// ParseSources reads harvest source configurations from YAML.
func ParseSources(r io.Reader) ([]model.OAISource, error) {
	var file sourcesFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode oai sources: %w", err)
	}
	var sources []model.OAISource
	for name, cfg := range file {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("oai source %q: missing baseurl", name)
		}
		sources = append(sources, model.OAISource{
			Name:           name,
			BaseURL:        cfg.BaseURL,
			MetadataPrefix: cfg.MetadataPrefix,
			SetSpecs:       cfg.SetSpecs,
			Comment:        cfg.Comment,
		})
	}
	return sources, nil
}

// LoadSourcesFile reads harvest source configurations from a YAML file.
func LoadSourcesFile(path string) ([]model.OAISource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open oai sources file: %w", err)
	}
	defer f.Close()
	return ParseSources(f)
}
