package defaults_test

import (
	"strings"
	"testing"

	"github.com/promptdeck/engine/internal/defaults"
	"github.com/promptdeck/engine/pkg/types"
)

func TestGenerate_TextTypesHavePlaceholders(t *testing.T) {
	for _, id := range []string{
		types.TypeEquals, types.TypeContains, types.TypeIContains,
		types.TypeStartsWith, types.TypeRegex,
	} {
		a, ok := defaults.Generate(id, defaults.ProjectContext{})
		if !ok {
			t.Errorf("Generate(%q) not ok", id)
			continue
		}
		if a.Value == nil || a.Value.Text == nil || *a.Value.Text == "" {
			t.Errorf("Generate(%q) has no placeholder value", id)
		}
	}
}

func TestGenerate_LLMRubric(t *testing.T) {
	a, ok := defaults.Generate(types.TypeLLMRubric, defaults.ProjectContext{})
	if !ok {
		t.Fatal("Generate(llm-rubric) not ok")
	}
	if a.Rubric == "" {
		t.Error("llm-rubric default has no rubric")
	}
	if a.Threshold == nil || *a.Threshold != 0.7 {
		t.Errorf("llm-rubric threshold = %v, want 0.7", a.Threshold)
	}
	if a.Provider != defaults.GeneralPurposeModel {
		t.Errorf("llm-rubric provider = %q, want %q", a.Provider, defaults.GeneralPurposeModel)
	}
}

func TestGenerate_ContextRelevance(t *testing.T) {
	a, ok := defaults.Generate(types.TypeContextRelevance, defaults.ProjectContext{})
	if !ok {
		t.Fatal("Generate(context-relevance) not ok")
	}
	if a.Threshold == nil || *a.Threshold != 0.5 {
		t.Errorf("threshold = %v, want 0.5", a.Threshold)
	}
	// Columns stay unset for the resolver or the user to fill.
	if a.QueryColumn != "" || a.ContextColumn != "" {
		t.Errorf("columns = (%q, %q), want empty", a.QueryColumn, a.ContextColumn)
	}
}

func TestGenerate_FactualityUsesExpectedColumn(t *testing.T) {
	pc := defaults.ProjectContext{
		Dataset: &types.Dataset{
			Headers: []string{"question", "expected_answer"},
			Rows:    []map[string]string{{"question": "q", "expected_answer": "a"}},
		},
	}
	a, _ := defaults.Generate(types.TypeFactuality, pc)
	if a.Value == nil || a.Value.Text == nil || *a.Value.Text != "{{expected_answer}}" {
		t.Errorf("factuality value = %v, want {{expected_answer}}", a.Value)
	}
}

func TestGenerate_FactualityFallsBackToExpectedOutput(t *testing.T) {
	pc := defaults.ProjectContext{
		Dataset: &types.Dataset{
			Headers: []string{"question"},
			Rows:    []map[string]string{{"question": "q"}},
		},
	}
	a, _ := defaults.Generate(types.TypeFactuality, pc)
	if a.Value == nil || a.Value.Text == nil || *a.Value.Text != "{{expected_output}}" {
		t.Errorf("factuality value = %v, want {{expected_output}}", a.Value)
	}
}

func TestGenerate_PerformanceThresholds(t *testing.T) {
	cost, _ := defaults.Generate(types.TypeCost, defaults.ProjectContext{})
	if cost.Threshold == nil || *cost.Threshold != 0.01 {
		t.Errorf("cost threshold = %v, want 0.01", cost.Threshold)
	}
	latency, _ := defaults.Generate(types.TypeLatency, defaults.ProjectContext{})
	if latency.Threshold == nil || *latency.Threshold != 5000 {
		t.Errorf("latency threshold = %v, want 5000", latency.Threshold)
	}
}

func TestGenerate_ContainsJSONEmpty(t *testing.T) {
	a, ok := defaults.Generate(types.TypeContainsJSON, defaults.ProjectContext{})
	if !ok {
		t.Fatal("Generate(contains-json) not ok")
	}
	if a.Value != nil || a.Rubric != "" || a.Threshold != nil {
		t.Errorf("contains-json default not empty: %+v", a)
	}
}

func TestGenerate_SecurityTypes(t *testing.T) {
	pc := defaults.ProjectContext{
		Prompts: []types.Prompt{
			{Text: "Answer {{question}} using {{context}}"},
		},
		Providers: []types.Provider{{ID: "anthropic:claude-sonnet-4"}, {ID: "openai:gpt-4o"}},
	}

	for _, id := range []string{
		types.TypeSecurityPromptInjection, types.TypeSecurityXSS,
		types.TypeSecuritySQLInjection, types.TypeSecurityPathTraversal,
		types.TypeSecurityUnicodeEncoding, types.TypeSecurityPromptDisclosure,
		types.TypeSecurityPIILeakage, types.TypeSecurityDoS,
	} {
		a, ok := defaults.Generate(id, pc)
		if !ok {
			t.Errorf("Generate(%q) not ok", id)
			continue
		}
		if !strings.Contains(a.Rubric, "{{question}}") || !strings.Contains(a.Rubric, "{{context}}") {
			t.Errorf("%s rubric does not enumerate template variables: %q", id, a.Rubric)
		}
		if a.Threshold == nil || (*a.Threshold != 0.8 && *a.Threshold != 0.9) {
			t.Errorf("%s threshold = %v, want 0.8 or 0.9", id, a.Threshold)
		}
		if a.Provider != "anthropic:claude-sonnet-4" {
			t.Errorf("%s provider = %q, want first configured provider", id, a.Provider)
		}
	}
}

func TestGenerate_SecurityWithoutProviders(t *testing.T) {
	a, _ := defaults.Generate(types.TypeSecurityDoS, defaults.ProjectContext{})
	if a.Provider != "" {
		t.Errorf("provider = %q, want empty with no providers configured", a.Provider)
	}
}

func TestGenerate_UnknownType(t *testing.T) {
	if _, ok := defaults.Generate("no-such-type", defaults.ProjectContext{}); ok {
		t.Error("Generate(no-such-type) ok, want not ok")
	}
}

func TestTemplateVars(t *testing.T) {
	prompts := []types.Prompt{
		{Text: "Answer {{question}} with {{ context }} and {{question}} again"},
		{Text: "Also {{user.name}}"},
	}
	got := defaults.TemplateVars(prompts)
	want := []string{"question", "context", "user.name"}
	if len(got) != len(want) {
		t.Fatalf("TemplateVars = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TemplateVars[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
