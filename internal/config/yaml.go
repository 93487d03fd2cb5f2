// Package config renders a project into the YAML documents the external
// run service consumes: one evaluation config for the functional suite and
// one red-team config for the security suite.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/promptdeck/engine/internal/dataset"
	"github.com/promptdeck/engine/internal/keys"
	"github.com/promptdeck/engine/pkg/types"
)

// Builder renders evaluation and security-suite YAML.
type Builder struct{}

// NewBuilder returns a Builder.
func NewBuilder() *Builder { return &Builder{} }

type evalConfig struct {
	Description     string           `yaml:"description"`
	Prompts         []string         `yaml:"prompts"`
	Providers       []providerEntry  `yaml:"providers"`
	DefaultTest     *defaultTest     `yaml:"defaultTest,omitempty"`
	Tests           []testCase       `yaml:"tests,omitempty"`
	EvaluateOptions *evaluateOptions `yaml:"evaluateOptions,omitempty"`
	OutputPath      string           `yaml:"outputPath,omitempty"`
	Sharing         bool             `yaml:"sharing,omitempty"`
}

type providerEntry struct {
	ID     string         `yaml:"id"`
	Config map[string]any `yaml:"config,omitempty"`
}

type defaultTest struct {
	Assert []assertEntry `yaml:"assert,omitempty"`
}

type testCase struct {
	Description string            `yaml:"description,omitempty"`
	Vars        map[string]string `yaml:"vars,omitempty"`
	Assert      []assertEntry     `yaml:"assert,omitempty"`
}

type assertEntry struct {
	Type      string   `yaml:"type"`
	Value     any      `yaml:"value,omitempty"`
	Threshold *float64 `yaml:"threshold,omitempty"`
	Provider  string   `yaml:"provider,omitempty"`
	Weight    *float64 `yaml:"weight,omitempty"`
}

// BuildEvaluationConfig renders the functional-suite YAML. Security
// assertions are excluded; they run in their own suite. With
// includeAPIKeys=false the provider configs carry ${ENV_VAR} references
// and never the key values themselves.
func (b *Builder) BuildEvaluationConfig(p *types.Project, includeAPIKeys bool) (string, error) {
	cfg := evalConfig{
		Description: p.Name,
		Providers:   providerEntries(p.Providers, includeAPIKeys),
		OutputPath:  p.Options.OutputPath,
		Sharing:     p.Options.ShareResults,
	}
	for _, prompt := range p.Prompts {
		cfg.Prompts = append(cfg.Prompts, prompt.Text)
	}

	var asserts []assertEntry
	for _, a := range p.Assertions {
		if types.IsSecurityType(a.Type) {
			continue
		}
		asserts = append(asserts, assertFor(a))
	}
	if len(asserts) > 0 {
		cfg.DefaultTest = &defaultTest{Assert: asserts}
	}

	if p.Dataset != nil {
		cols := dataset.Columns(p.Dataset)
		for _, row := range p.Dataset.Rows {
			vars := make(map[string]string, len(cols))
			for _, col := range cols {
				vars[col] = row[col]
			}
			cfg.Tests = append(cfg.Tests, testCase{Vars: vars})
		}
	}

	if p.Options.MaxConcurrency > 0 {
		cfg.EvaluateOptions = &evaluateOptions{MaxConcurrency: p.Options.MaxConcurrency}
	}

	return marshal(&cfg)
}

type evaluateOptions struct {
	MaxConcurrency int `yaml:"maxConcurrency,omitempty"`
}

// BuildSecurityTestConfig renders the red-team YAML: one test per security
// assertion, each grading the target's responses against the attack rubric.
func (b *Builder) BuildSecurityTestConfig(p *types.Project, includeAPIKeys bool) (string, error) {
	cfg := evalConfig{
		Description: p.Name + " security suite",
		Providers:   providerEntries(p.Providers, includeAPIKeys),
	}
	for _, prompt := range p.Prompts {
		cfg.Prompts = append(cfg.Prompts, prompt.Text)
	}

	// Security tests reuse the first dataset row so prompt templates render
	// with realistic values.
	var vars map[string]string
	if p.Dataset != nil && len(p.Dataset.Rows) > 0 {
		cols := dataset.Columns(p.Dataset)
		vars = make(map[string]string, len(cols))
		for _, col := range cols {
			vars[col] = p.Dataset.Rows[0][col]
		}
	}

	for _, a := range p.Assertions {
		if !types.IsSecurityType(a.Type) {
			continue
		}
		cfg.Tests = append(cfg.Tests, testCase{
			Description: a.Type,
			Vars:        vars,
			Assert:      []assertEntry{assertFor(a)},
		})
	}
	if len(cfg.Tests) == 0 {
		return "", fmt.Errorf("no security assertions configured")
	}

	return marshal(&cfg)
}

func marshal(cfg *evalConfig) (string, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(out), nil
}

// providerEntries copies each provider's config and injects the apiKey
// entry. The project's own config maps are never mutated.
func providerEntries(providers []types.Provider, includeAPIKeys bool) []providerEntry {
	entries := make([]providerEntry, 0, len(providers))
	for _, p := range providers {
		entry := providerEntry{ID: p.ID}
		if len(p.Config) > 0 {
			entry.Config = make(map[string]any, len(p.Config)+1)
			for k, v := range p.Config {
				entry.Config[k] = v
			}
		}
		if apiKey := apiKeyValue(p.ID, includeAPIKeys); apiKey != "" {
			if entry.Config == nil {
				entry.Config = make(map[string]any, 1)
			}
			entry.Config["apiKey"] = apiKey
		}
		entries = append(entries, entry)
	}
	return entries
}

func apiKeyValue(providerID string, includeAPIKeys bool) string {
	if !includeAPIKeys {
		return keys.Placeholder(providerID)
	}
	if key, ok := keys.Lookup(providerID); ok {
		return key
	}
	return keys.Placeholder(providerID)
}

// assertFor maps one assertion onto its wire entry. Rubric-graded types put
// the rubric in value, the grading model in provider.
func assertFor(a types.Assertion) assertEntry {
	entry := assertEntry{
		Type:      wireType(a.Type),
		Threshold: a.Threshold,
		Provider:  a.Provider,
		Weight:    a.Weight,
	}
	switch {
	case a.Value != nil && a.Value.Text != nil:
		entry.Value = *a.Value.Text
	case a.Value != nil && a.Value.Number != nil:
		entry.Value = *a.Value.Number
	case a.Value != nil && a.Value.Object != nil:
		entry.Value = a.Value.Object
	case a.Rubric != "":
		entry.Value = a.Rubric
	}
	return entry
}

// wireType is the assertion type as the run service spells it. Security
// types all grade with an LLM rubric on the service side.
func wireType(assertionType string) string {
	if types.IsSecurityType(assertionType) {
		return types.TypeLLMRubric
	}
	return assertionType
}
