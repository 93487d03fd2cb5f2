// Package defaults produces sensible starting configurations for newly added
// assertions. Generation is a pure function of the assertion type and the
// current project context; callers persist the result as a new assertion.
package defaults

import (
	"fmt"
	"strings"

	"github.com/promptdeck/engine/internal/dataset"
	"github.com/promptdeck/engine/pkg/types"
)

// GeneralPurposeModel is the grading provider used when the project has no
// better candidate.
const GeneralPurposeModel = "openai:gpt-4o"

// Default thresholds per assertion family.
const (
	DefaultRubricThreshold           = 0.7
	DefaultFactualityThreshold       = 0.7
	DefaultRelevanceThreshold        = 0.7
	DefaultContextRelevanceThreshold = 0.5
	DefaultSimilarThreshold          = 0.75
	DefaultCostThreshold             = 0.01
	DefaultLatencyThresholdMS        = 5000
)

// ProjectContext is the snapshot of project state generation may consult.
type ProjectContext struct {
	Prompts   []types.Prompt
	Dataset   *types.Dataset
	Providers []types.Provider
}

func f(v float64) *float64 { return &v }

// Generate builds the default configuration for one assertion type. The
// returned assertion has no ID; the caller assigns one on insertion. ok is
// false when the type is not in the registry's vocabulary.
func Generate(assertionType string, pc ProjectContext) (types.Assertion, bool) {
	a := types.Assertion{Type: assertionType}

	switch assertionType {
	case types.TypeEquals:
		a.Value = types.TextValue("Expected output")
	case types.TypeContains, types.TypeIContains:
		a.Value = types.TextValue("expected text")
	case types.TypeStartsWith:
		a.Value = types.TextValue("Expected prefix")
	case types.TypeRegex:
		a.Value = types.TextValue(`\bexpected\b`)

	case types.TypeLLMRubric:
		a.Rubric = "The response is helpful, accurate, and directly addresses the user's request."
		a.Threshold = f(DefaultRubricThreshold)
		a.Provider = GeneralPurposeModel

	case types.TypeFactuality:
		// Prefer an existing expected-prefixed dataset column; otherwise
		// reference the column the resolver will generate.
		col, ok := dataset.ExpectedColumn(pc.Dataset)
		if !ok {
			col = dataset.DefaultExpectedColumn
		}
		a.Value = types.TextValue(fmt.Sprintf("{{%s}}", col))
		a.Threshold = f(DefaultFactualityThreshold)
		a.Provider = GeneralPurposeModel

	case types.TypeAnswerRelevance:
		a.Threshold = f(DefaultRelevanceThreshold)
		a.Provider = GeneralPurposeModel

	case types.TypeContextRelevance:
		// Columns stay empty: the dataset resolver or the user fills them.
		a.Threshold = f(DefaultContextRelevanceThreshold)
		a.Provider = GeneralPurposeModel

	case types.TypeSimilar:
		a.Value = types.TextValue("Expected answer")
		a.Threshold = f(DefaultSimilarThreshold)

	case types.TypeIsJSON:
		if schema, ok := MineSchema(pc.Prompts); ok {
			a.Value = types.ObjectValue(schema)
		}

	case types.TypeContainsJSON:
		// No configuration: presence of any JSON object in the output.

	case types.TypeCost:
		a.Threshold = f(DefaultCostThreshold)
	case types.TypeLatency:
		a.Threshold = f(DefaultLatencyThresholdMS)

	case types.TypeJavascript:
		a.Value = types.TextValue("output.length > 0")
	case types.TypePython:
		a.Value = types.TextValue("len(output) > 0")

	default:
		if !types.IsSecurityType(assertionType) {
			return types.Assertion{}, false
		}
		cls, ok := attackClasses[assertionType]
		if !ok {
			return types.Assertion{}, false
		}
		a.Rubric = securityRubric(cls, TemplateVars(pc.Prompts))
		a.Threshold = f(cls.threshold)
		if len(pc.Providers) > 0 {
			a.Provider = pc.Providers[0].ID
		}
	}

	return a, true
}

// joinVars renders a variable list for inclusion in rubric text.
func joinVars(vars []string) string {
	quoted := make([]string, len(vars))
	for i, v := range vars {
		quoted[i] = "{{" + v + "}}"
	}
	return strings.Join(quoted, ", ")
}
