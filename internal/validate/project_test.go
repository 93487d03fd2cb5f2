package validate_test

import (
	"strings"
	"testing"

	"github.com/promptdeck/engine/internal/validate"
	"github.com/promptdeck/engine/pkg/types"
)

func validProject() *types.Project {
	return &types.Project{
		Name:      "demo",
		Providers: []types.Provider{{ID: "openai:gpt-4o"}},
		Prompts:   []types.Prompt{{ID: "p1", Text: "Answer: {{question}}"}},
		Dataset: &types.Dataset{
			Headers: []string{"question"},
			Rows: []map[string]string{
				{"question": "What is 2+2?"},
				{"question": "What is the capital of France?"},
			},
		},
	}
}

func TestProject_ValidWithoutAssertions(t *testing.T) {
	// Assertions are optional: a provider/prompt/dataset-complete project
	// passes with zero assertions configured.
	res := validate.Project(validProject())
	if !res.Valid {
		t.Fatalf("Project = invalid (%q), want valid", res.Error)
	}
}

func TestProject_FailureKeywords(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(p *types.Project)
		keyword string
	}{
		{"empty name", func(p *types.Project) { p.Name = "" }, "name"},
		{"long name", func(p *types.Project) { p.Name = strings.Repeat("x", 101) }, "name"},
		{"no providers", func(p *types.Project) { p.Providers = nil }, "provider"},
		{"malformed provider id", func(p *types.Project) { p.Providers[0].ID = "gpt-4o" }, "provider"},
		{"no prompts", func(p *types.Project) { p.Prompts = nil }, "prompt"},
		{"empty prompt", func(p *types.Project) { p.Prompts[0].Text = "" }, "prompt"},
		{"no template variable", func(p *types.Project) { p.Prompts[0].Text = "static text" }, "variable"},
		{"missing dataset", func(p *types.Project) { p.Dataset = nil }, "dataset"},
		{"empty dataset", func(p *types.Project) { p.Dataset.Rows = nil }, "dataset"},
		{
			"context-relevance missing context column",
			func(p *types.Project) {
				p.Assertions = []types.Assertion{{
					ID: "a1", Type: types.TypeContextRelevance, Provider: "openai:gpt-4o",
				}}
				p.Dataset.Headers = []string{"question", "query"}
				p.Dataset.Rows = []map[string]string{{"question": "q", "query": "q"}}
			},
			"assertion",
		},
		{
			"semantic assertion without provider",
			func(p *types.Project) {
				p.Assertions = []types.Assertion{{ID: "a1", Type: types.TypeLLMRubric, Rubric: "helpful"}}
			},
			"assertion",
		},
		{
			"security assertion without provider",
			func(p *types.Project) {
				p.Assertions = []types.Assertion{{ID: "a1", Type: types.TypeSecurityXSS, Rubric: "r"}}
			},
			"assertion",
		},
	}

	for _, tc := range cases {
		p := validProject()
		tc.mutate(p)
		res := validate.Project(p)
		if res.Valid {
			t.Errorf("%s: Project = valid, want invalid", tc.name)
			continue
		}
		if !strings.Contains(res.Error, tc.keyword) {
			t.Errorf("%s: error %q does not contain keyword %q", tc.name, res.Error, tc.keyword)
		}
	}
}

func TestProject_ContextRelevanceConfiguredColumns(t *testing.T) {
	p := validProject()
	p.Dataset.Headers = []string{"question", "user_query", "retrieved"}
	p.Dataset.Rows = []map[string]string{{"question": "q", "user_query": "q", "retrieved": "ctx"}}
	p.Assertions = []types.Assertion{{
		ID: "a1", Type: types.TypeContextRelevance, Provider: "openai:gpt-4o",
		QueryColumn: "user_query", ContextColumn: "retrieved",
	}}

	res := validate.Project(p)
	if !res.Valid {
		t.Errorf("Project with configured columns = invalid (%q), want valid", res.Error)
	}
}

func TestProject_ColumnFallbackToFirstRow(t *testing.T) {
	// Column presence must honor the first-row fallback when headers are
	// empty.
	p := validProject()
	p.Dataset.Headers = nil
	p.Dataset.Rows = []map[string]string{{"question": "q", "query": "q", "context": "ctx"}}
	p.Assertions = []types.Assertion{{
		ID: "a1", Type: types.TypeContextRelevance, Provider: "openai:gpt-4o",
	}}

	res := validate.Project(p)
	if !res.Valid {
		t.Errorf("Project with first-row columns = invalid (%q), want valid", res.Error)
	}
}

func TestSection(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"project name is required", "name"},
		{"at least one provider is required", "provider"},
		{"only one prompt is supported per project", "prompt"},
		{"prompt must reference at least one {{variable}}", "variable"},
		{"dataset needs at least one row to fill prompt variables", "dataset"},
		{"context-relevance assertion needs dataset column \"query\"", "dataset"},
		{"assertion llm-rubric needs a grading model", "assertion"},
		{"something unrelated", ""},
	}
	for _, tt := range tests {
		if got := validate.Section(tt.message); got != tt.want {
			t.Errorf("Section(%q) = %q, want %q", tt.message, got, tt.want)
		}
	}
}
