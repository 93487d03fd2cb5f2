// Package registry holds the static catalog of assertion types: their
// categories and the configuration fields each type accepts. It is a pure
// lookup layer; everything that adds, edits, or validates assertions reads
// from it.
package registry

import "github.com/promptdeck/engine/pkg/types"

func f(v float64) *float64 { return &v }

// Common field descriptors shared by many types.
var (
	thresholdField = types.FieldDescriptor{
		Name: "threshold", Kind: types.FieldSlider, Required: false,
		Min: f(0), Max: f(1),
		Help: "Minimum score for the assertion to pass.",
	}
	providerField = types.FieldDescriptor{
		Name: "provider", Kind: types.FieldSelect, Required: true,
		Placeholder: "openai:gpt-4o",
		Help:        "Grading model used to score this assertion.",
	}
	rubricField = types.FieldDescriptor{
		Name: "rubric", Kind: types.FieldTextarea, Required: true,
		Placeholder: "Describe what a passing response looks like…",
	}
	weightField = types.FieldDescriptor{
		Name: "weight", Kind: types.FieldNumber, Required: false,
		Min: f(0), Max: f(10),
		Help: "Relative importance when combining assertion scores.",
	}
)

func textDescriptor(id, label, placeholder string) types.AssertionTypeDescriptor {
	return types.AssertionTypeDescriptor{
		ID: id, Label: label, Category: types.CategoryText,
		Fields: []types.FieldDescriptor{
			{Name: "value", Kind: types.FieldText, Required: true, Placeholder: placeholder},
			weightField,
		},
	}
}

func securityDescriptor(id, label string) types.AssertionTypeDescriptor {
	return types.AssertionTypeDescriptor{
		ID: id, Label: label, Category: types.CategorySecurity,
		Fields: []types.FieldDescriptor{rubricField, thresholdField, providerField, weightField},
	}
}

var catalog = []types.AssertionTypeDescriptor{
	textDescriptor(types.TypeEquals, "Equals", "Expected output"),
	textDescriptor(types.TypeContains, "Contains", "expected text"),
	textDescriptor(types.TypeIContains, "Contains (case-insensitive)", "expected text"),
	textDescriptor(types.TypeStartsWith, "Starts With", "Expected prefix"),
	textDescriptor(types.TypeRegex, "Regex Match", `\bpattern\b`),

	{
		ID: types.TypeLLMRubric, Label: "LLM Rubric", Category: types.CategorySemantic,
		Fields: []types.FieldDescriptor{rubricField, thresholdField, providerField, weightField},
	},
	{
		ID: types.TypeFactuality, Label: "Factuality", Category: types.CategorySemantic,
		Fields: []types.FieldDescriptor{
			{Name: "value", Kind: types.FieldText, Required: true, Placeholder: "{{expected_output}}",
				Help: "Reference answer, usually a dataset column template."},
			thresholdField, providerField, weightField,
		},
	},
	{
		ID: types.TypeAnswerRelevance, Label: "Answer Relevance", Category: types.CategorySemantic,
		Fields: []types.FieldDescriptor{thresholdField, providerField, weightField},
	},
	{
		ID: types.TypeContextRelevance, Label: "Context Relevance", Category: types.CategorySemantic,
		Fields: []types.FieldDescriptor{
			{Name: "queryColumn", Kind: types.FieldSelect, Required: true,
				Help: "Dataset column holding the user query."},
			{Name: "contextColumn", Kind: types.FieldSelect, Required: true,
				Help: "Dataset column holding the retrieved context."},
			thresholdField, providerField, weightField,
		},
	},
	{
		ID: types.TypeSimilar, Label: "Semantic Similarity", Category: types.CategorySemantic,
		Fields: []types.FieldDescriptor{
			{Name: "value", Kind: types.FieldText, Required: true, Placeholder: "Expected answer"},
			thresholdField, weightField,
		},
	},

	{
		ID: types.TypeIsJSON, Label: "Is JSON", Category: types.CategoryStructured,
		Fields: []types.FieldDescriptor{
			{Name: "value", Kind: types.FieldCode, Required: false,
				Help: "Optional JSON schema the output must satisfy."},
			weightField,
		},
	},
	{
		ID: types.TypeContainsJSON, Label: "Contains JSON", Category: types.CategoryStructured,
		Fields: []types.FieldDescriptor{weightField},
	},

	{
		ID: types.TypeCost, Label: "Max Cost", Category: types.CategoryPerformance,
		Fields: []types.FieldDescriptor{
			{Name: "threshold", Kind: types.FieldNumber, Required: true, Min: f(0),
				Placeholder: "0.01", Help: "Maximum cost in USD per test."},
			weightField,
		},
	},
	{
		ID: types.TypeLatency, Label: "Max Latency", Category: types.CategoryPerformance,
		Fields: []types.FieldDescriptor{
			{Name: "threshold", Kind: types.FieldNumber, Required: true, Min: f(0),
				Placeholder: "5000", Help: "Maximum latency in milliseconds per test."},
			weightField,
		},
	},

	{
		ID: types.TypeJavascript, Label: "JavaScript", Category: types.CategoryCustom,
		Fields: []types.FieldDescriptor{
			{Name: "value", Kind: types.FieldCode, Required: true,
				Placeholder: "output.length > 0"},
			weightField,
		},
	},
	{
		ID: types.TypePython, Label: "Python", Category: types.CategoryCustom,
		Fields: []types.FieldDescriptor{
			{Name: "value", Kind: types.FieldCode, Required: true,
				Placeholder: "len(output) > 0"},
			weightField,
		},
	},

	securityDescriptor(types.TypeSecurityPromptInjection, "Prompt Injection"),
	securityDescriptor(types.TypeSecurityXSS, "Cross-Site Scripting"),
	securityDescriptor(types.TypeSecuritySQLInjection, "SQL Injection"),
	securityDescriptor(types.TypeSecurityPathTraversal, "Path Traversal"),
	securityDescriptor(types.TypeSecurityUnicodeEncoding, "Unicode/Encoding Attack"),
	securityDescriptor(types.TypeSecurityPromptDisclosure, "Prompt Disclosure"),
	securityDescriptor(types.TypeSecurityPIILeakage, "PII Leakage"),
	securityDescriptor(types.TypeSecurityDoS, "Denial of Service"),
}

var byID = func() map[string]*types.AssertionTypeDescriptor {
	m := make(map[string]*types.AssertionTypeDescriptor, len(catalog))
	for i := range catalog {
		m[catalog[i].ID] = &catalog[i]
	}
	return m
}()

// Describe returns the descriptor for an assertion type. Unknown types
// return ok=false; callers must treat that as absent functionality, not a
// crash.
func Describe(assertionType string) (*types.AssertionTypeDescriptor, bool) {
	d, ok := byID[assertionType]
	return d, ok
}

// Categories returns the valid category keys in display order.
func Categories() []string {
	out := make([]string, len(types.AssertionCategories))
	copy(out, types.AssertionCategories)
	return out
}

// All returns every descriptor in catalog order.
func All() []types.AssertionTypeDescriptor {
	out := make([]types.AssertionTypeDescriptor, len(catalog))
	copy(out, catalog)
	return out
}

// ByCategory returns the descriptors in the given category, in catalog order.
func ByCategory(category string) []types.AssertionTypeDescriptor {
	var out []types.AssertionTypeDescriptor
	for _, d := range catalog {
		if d.Category == category {
			out = append(out, d)
		}
	}
	return out
}
