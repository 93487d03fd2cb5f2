package types

// Provider identifies one LLM endpoint under test: a `vendor:model` id plus
// per-endpoint configuration (temperature, max tokens, and the like).
type Provider struct {
	ID     string         `json:"id"`
	Config map[string]any `json:"config,omitempty"`
}

// Prompt is one prompt template; template variables use {{name}} syntax.
type Prompt struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Dataset holds the test-case rows shared by every prompt × provider pair.
// A column is present when it appears in Headers or, when Headers is empty,
// in the key set of the first row.
type Dataset struct {
	Name    string              `json:"name"`
	Headers []string            `json:"headers"`
	Rows    []map[string]string `json:"rows"`
}

// ProjectOptions are cosmetic run options. None of these participate in the
// project fingerprint; changing them never invalidates a displayed result.
type ProjectOptions struct {
	MaxConcurrency  int    `json:"maxConcurrency,omitempty"`
	SecurityEnabled bool   `json:"securityEnabled,omitempty"`
	OutputPath      string `json:"outputPath,omitempty"`
	ShareResults    bool   `json:"shareResults,omitempty"`
}

// Project is the aggregate root for one evaluation project.
type Project struct {
	Name       string         `json:"name"`
	Providers  []Provider     `json:"providers"`
	Prompts    []Prompt       `json:"prompts"`
	Dataset    *Dataset       `json:"dataset,omitempty"`
	Assertions []Assertion    `json:"assertions"`
	Options    ProjectOptions `json:"options"`
}

// FindAssertion returns the index of the assertion with the given id, or -1.
func (p *Project) FindAssertion(id string) int {
	for i := range p.Assertions {
		if p.Assertions[i].ID == id {
			return i
		}
	}
	return -1
}
