package duplicate_test

import (
	"testing"

	"github.com/promptdeck/engine/internal/duplicate"
	"github.com/promptdeck/engine/pkg/types"
)

func f(v float64) *float64 { return &v }

func TestIsDuplicate_DifferentTypesNever(t *testing.T) {
	a := types.Assertion{Type: types.TypeContains, Value: types.TextValue("x")}
	b := types.Assertion{Type: types.TypeEquals, Value: types.TextValue("x")}
	if duplicate.IsDuplicate(a, b) {
		t.Error("different types reported duplicate")
	}
}

func TestIsDuplicate_PrimitiveValues(t *testing.T) {
	cases := []struct {
		name string
		a, b types.Assertion
		want bool
	}{
		{
			"equal strings",
			types.Assertion{Type: types.TypeContains, Value: types.TextValue("hello")},
			types.Assertion{Type: types.TypeContains, Value: types.TextValue("hello")},
			true,
		},
		{
			"different strings",
			types.Assertion{Type: types.TypeContains, Value: types.TextValue("hello")},
			types.Assertion{Type: types.TypeContains, Value: types.TextValue("world")},
			false,
		},
		{
			"string vs object",
			types.Assertion{Type: types.TypeIsJSON, Value: types.TextValue("{}")},
			types.Assertion{Type: types.TypeIsJSON, Value: types.ObjectValue(map[string]any{"type": "object"})},
			false,
		},
	}

	for _, tc := range cases {
		if got := duplicate.IsDuplicate(tc.a, tc.b); got != tc.want {
			t.Errorf("%s: IsDuplicate = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsDuplicate_StructuredValuesByCanonicalJSON(t *testing.T) {
	// Key insertion order must not matter.
	a := types.Assertion{Type: types.TypeIsJSON, Value: types.ObjectValue(map[string]any{
		"required": []any{"name"}, "type": "object",
	})}
	b := types.Assertion{Type: types.TypeIsJSON, Value: types.ObjectValue(map[string]any{
		"type": "object", "required": []any{"name"},
	})}
	if !duplicate.IsDuplicate(a, b) {
		t.Error("structurally equal objects not reported duplicate")
	}

	c := types.Assertion{Type: types.TypeIsJSON, Value: types.ObjectValue(map[string]any{
		"type": "object", "required": []any{"other"},
	})}
	if duplicate.IsDuplicate(a, c) {
		t.Error("different objects reported duplicate")
	}
}

func TestIsDuplicate_LatencyCostThresholdBuckets(t *testing.T) {
	cases := []struct {
		name string
		a, b types.Assertion
		want bool
	}{
		{
			"equal thresholds",
			types.Assertion{Type: types.TypeLatency, Threshold: f(5000)},
			types.Assertion{Type: types.TypeLatency, Threshold: f(5000)},
			true,
		},
		{
			"different thresholds",
			types.Assertion{Type: types.TypeLatency, Threshold: f(5000)},
			types.Assertion{Type: types.TypeLatency, Threshold: f(1000)},
			false,
		},
		{
			"one undefined threshold is same bucket",
			types.Assertion{Type: types.TypeCost},
			types.Assertion{Type: types.TypeCost, Threshold: f(0.01)},
			true,
		},
	}

	for _, tc := range cases {
		if got := duplicate.IsDuplicate(tc.a, tc.b); got != tc.want {
			t.Errorf("%s: IsDuplicate = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsDuplicate_NoParamType(t *testing.T) {
	a := types.Assertion{Type: types.TypeContainsJSON}
	b := types.Assertion{Type: types.TypeContainsJSON}
	if !duplicate.IsDuplicate(a, b) {
		t.Error("contains-json pair not reported duplicate")
	}
}

func TestIsDuplicate_RubricNormalization(t *testing.T) {
	a := types.Assertion{Type: types.TypeLLMRubric, Rubric: "Response  is   Helpful\nand accurate."}
	b := types.Assertion{Type: types.TypeLLMRubric, Rubric: "response is helpful and accurate."}
	if !duplicate.IsDuplicate(a, b) {
		t.Error("whitespace/case-variant rubrics not reported duplicate")
	}

	c := types.Assertion{Type: types.TypeLLMRubric, Rubric: "response is concise."}
	if duplicate.IsDuplicate(a, c) {
		t.Error("different rubrics reported duplicate")
	}
}

func TestIsDuplicate_ThresholdFallthrough(t *testing.T) {
	a := types.Assertion{Type: types.TypeAnswerRelevance, Threshold: f(0.7)}
	b := types.Assertion{Type: types.TypeAnswerRelevance, Threshold: f(0.7)}
	if !duplicate.IsDuplicate(a, b) {
		t.Error("equal thresholds not reported duplicate")
	}

	c := types.Assertion{Type: types.TypeAnswerRelevance, Threshold: f(0.9)}
	if duplicate.IsDuplicate(a, c) {
		t.Error("different thresholds reported duplicate")
	}
}

func TestIsDuplicate_SameTypeFallback(t *testing.T) {
	// No value, no rubric on one side, no comparable threshold pair:
	// conservative fallback treats same type as duplicate.
	a := types.Assertion{Type: types.TypeSecurityXSS, Rubric: "resists xss"}
	b := types.Assertion{Type: types.TypeSecurityXSS}
	if !duplicate.IsDuplicate(a, b) {
		t.Error("same-type fallback did not report duplicate")
	}
}

func TestIsDuplicate_Symmetric(t *testing.T) {
	pairs := []struct{ a, b types.Assertion }{
		{
			types.Assertion{Type: types.TypeContains, Value: types.TextValue("x")},
			types.Assertion{Type: types.TypeContains, Value: types.TextValue("y")},
		},
		{
			types.Assertion{Type: types.TypeCost},
			types.Assertion{Type: types.TypeCost, Threshold: f(0.01)},
		},
		{
			types.Assertion{Type: types.TypeLLMRubric, Rubric: "A"},
			types.Assertion{Type: types.TypeLLMRubric, Rubric: "B"},
		},
		{
			types.Assertion{Type: types.TypeSecurityXSS, Rubric: "r"},
			types.Assertion{Type: types.TypeSecurityXSS},
		},
		{
			types.Assertion{Type: types.TypeRegex, Value: types.TextValue("a")},
			types.Assertion{Type: types.TypeEquals, Value: types.TextValue("a")},
		},
	}

	for i, p := range pairs {
		ab := duplicate.IsDuplicate(p.a, p.b)
		ba := duplicate.IsDuplicate(p.b, p.a)
		if ab != ba {
			t.Errorf("pair %d: IsDuplicate(a,b)=%v but IsDuplicate(b,a)=%v", i, ab, ba)
		}
	}
}

func TestFilterBatch_TwoPass(t *testing.T) {
	// Intra-batch duplicate pair: only the first survives against an empty
	// existing list.
	batch := []types.Assertion{
		{ID: "n1", Type: types.TypeContains, Value: types.TextValue("hello")},
		{ID: "n2", Type: types.TypeContains, Value: types.TextValue("hello")},
	}
	merged := duplicate.FilterBatch(batch, nil)
	if len(merged) != 1 {
		t.Fatalf("FilterBatch kept %d assertions, want 1", len(merged))
	}
	if merged[0].ID != "n1" {
		t.Errorf("FilterBatch kept %q, want first occurrence n1", merged[0].ID)
	}
}

func TestFilterBatch_AgainstExisting(t *testing.T) {
	existing := []types.Assertion{
		{ID: "e1", Type: types.TypeContains, Value: types.TextValue("hello")},
	}
	batch := []types.Assertion{
		{ID: "n1", Type: types.TypeContains, Value: types.TextValue("hello")},
		{ID: "n2", Type: types.TypeContains, Value: types.TextValue("goodbye")},
	}
	merged := duplicate.FilterBatch(batch, existing)
	if len(merged) != 1 || merged[0].ID != "n2" {
		t.Errorf("FilterBatch = %v, want only n2", merged)
	}
}

func TestFindConflict(t *testing.T) {
	existing := []types.Assertion{
		{ID: "e1", Type: types.TypeLatency, Threshold: f(5000)},
	}
	conflict, ok := duplicate.FindConflict(types.Assertion{Type: types.TypeLatency}, existing)
	if !ok {
		t.Fatal("FindConflict found no conflict, want e1")
	}
	if conflict.ID != "e1" {
		t.Errorf("FindConflict = %q, want e1", conflict.ID)
	}

	if _, ok := duplicate.FindConflict(types.Assertion{Type: types.TypeRegex, Value: types.TextValue("x")}, existing); ok {
		t.Error("FindConflict reported a conflict for unrelated type")
	}
}
