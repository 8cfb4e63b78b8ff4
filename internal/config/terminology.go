package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Modules lists the feature modules a department template enables
type Modules struct {
	CountTimes bool `yaml:"countTimes" json:"countTimes"`
	Lanyards   bool `yaml:"lanyards" json:"lanyards"`
	Positions  bool `yaml:"positions" json:"positions"`
}

// TemplateConfig is the department template configuration. It only drives labels.
type TemplateConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Terminology map[string]string `yaml:"terminology" json:"terminology"`
	Modules     Modules           `yaml:"modules" json:"modules"`
}

var defaultTerms = map[string]string{
	"volunteer":  "Attendant",
	"position":   "Post",
	"shift":      "Rotation",
	"assignment": "Assignment",
	"department": "Attendants",
}

// DefaultTemplateConfig returns the attendants department configuration
func DefaultTemplateConfig() *TemplateConfig {
	terms := make(map[string]string, len(defaultTerms))
	for k, v := range defaultTerms {
		terms[k] = v
	}
	return &TemplateConfig{
		Name:        "Attendants",
		Terminology: terms,
		Modules:     Modules{CountTimes: true, Lanyards: true, Positions: true},
	}
}

// LoadTemplateConfig reads a template configuration file. Terms missing from the
// file keep their default labels. An empty path returns the defaults.
func LoadTemplateConfig(path string) (*TemplateConfig, error) {
	tc := DefaultTemplateConfig()
	if path == "" {
		return tc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template config: %w", err)
	}

	var fromFile TemplateConfig
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("failed to parse template config: %w", err)
	}

	if fromFile.Name != "" {
		tc.Name = fromFile.Name
	}
	for k, v := range fromFile.Terminology {
		if v != "" {
			tc.Terminology[k] = v
		}
	}
	tc.Modules = fromFile.Modules

	return tc, nil
}

// Term returns the configured label for key, or key itself when unset
func (t *TemplateConfig) Term(key string) string {
	if v, ok := t.Terminology[key]; ok {
		return v
	}
	return key
}
