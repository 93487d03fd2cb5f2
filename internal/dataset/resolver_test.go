package dataset_test

import (
	"context"
	"testing"

	"github.com/promptdeck/engine/internal/dataset"
	"github.com/promptdeck/engine/internal/genai"
	"github.com/promptdeck/engine/pkg/types"
)

func TestColumns_HeadersPrecedence(t *testing.T) {
	ds := &types.Dataset{
		Headers: []string{"a", "b"},
		Rows:    []map[string]string{{"c": "1"}},
	}
	got := dataset.Columns(ds)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Columns = %v, want headers [a b]", got)
	}
}

func TestColumns_FirstRowFallback(t *testing.T) {
	ds := &types.Dataset{
		Rows: []map[string]string{{"question": "q", "context": "c"}},
	}
	got := dataset.Columns(ds)
	if len(got) != 2 {
		t.Fatalf("Columns = %v, want 2 columns from first row", got)
	}
	if !dataset.ColumnExists(ds, "question") || !dataset.ColumnExists(ds, "context") {
		t.Error("ColumnExists missed first-row columns")
	}
}

func TestColumns_NilDataset(t *testing.T) {
	if got := dataset.Columns(nil); got != nil {
		t.Errorf("Columns(nil) = %v, want nil", got)
	}
	if dataset.ColumnExists(nil, "x") {
		t.Error("ColumnExists(nil) = true")
	}
}

func TestExpectedColumn_CaseInsensitivePrefix(t *testing.T) {
	ds := &types.Dataset{Headers: []string{"question", "Expected_Answer"}}
	col, ok := dataset.ExpectedColumn(ds)
	if !ok || col != "Expected_Answer" {
		t.Errorf("ExpectedColumn = (%q, %v), want (Expected_Answer, true)", col, ok)
	}

	none := &types.Dataset{Headers: []string{"question"}}
	if _, ok := dataset.ExpectedColumn(none); ok {
		t.Error("ExpectedColumn found a column in a dataset without one")
	}
}

func TestEnsure_FactualityBlockedWithoutRows(t *testing.T) {
	for _, ds := range []*types.Dataset{nil, {Headers: []string{"expected_output"}}} {
		req := dataset.Ensure(types.TypeFactuality, ds)
		if !req.Blocked {
			t.Errorf("Ensure(factuality, %v) not blocked, want blocked", ds)
		}
	}
}

func TestEnsure_FactualitySatisfiedByExpectedColumn(t *testing.T) {
	ds := &types.Dataset{
		Headers: []string{"question", "expected_answer"},
		Rows:    []map[string]string{{"question": "q", "expected_answer": "a"}},
	}
	req := dataset.Ensure(types.TypeFactuality, ds)
	if req.NeedsGeneration || req.Blocked {
		t.Errorf("Ensure = %+v, want no requirement", req)
	}
}

func TestEnsure_FactualityMissingColumn(t *testing.T) {
	ds := &types.Dataset{
		Headers: []string{"question"},
		Rows:    []map[string]string{{"question": "q"}},
	}
	req := dataset.Ensure(types.TypeFactuality, ds)
	if !req.NeedsGeneration {
		t.Fatal("Ensure did not request generation")
	}
	if len(req.MissingColumns) != 1 || req.MissingColumns[0] != dataset.DefaultExpectedColumn {
		t.Errorf("MissingColumns = %v, want [expected_output]", req.MissingColumns)
	}
}

func TestEnsure_ContextRelevance(t *testing.T) {
	cases := []struct {
		name    string
		ds      *types.Dataset
		missing int
	}{
		{"absent dataset", nil, 2},
		{"empty dataset", &types.Dataset{Headers: []string{"query", "context"}}, 2},
		{
			"rows missing one column",
			&types.Dataset{
				Headers: []string{"query"},
				Rows:    []map[string]string{{"query": "q"}},
			},
			1,
		},
		{
			"satisfied",
			&types.Dataset{
				Headers: []string{"query", "context"},
				Rows:    []map[string]string{{"query": "q", "context": "c"}},
			},
			0,
		},
	}

	for _, tc := range cases {
		req := dataset.Ensure(types.TypeContextRelevance, tc.ds)
		if tc.missing == 0 {
			if req.NeedsGeneration {
				t.Errorf("%s: unexpected generation request %+v", tc.name, req)
			}
			continue
		}
		if !req.NeedsGeneration || len(req.MissingColumns) != tc.missing {
			t.Errorf("%s: req = %+v, want %d missing columns", tc.name, req, tc.missing)
		}
	}
}

func TestEnsure_OtherTypesNoRequirement(t *testing.T) {
	req := dataset.Ensure(types.TypeContains, nil)
	if req.NeedsGeneration || req.Blocked {
		t.Errorf("Ensure(contains) = %+v, want zero requirement", req)
	}
}

func TestGenerateMissing_FactualityBackfill(t *testing.T) {
	gen := &genai.Mock{ColumnValues: map[string][]string{
		"expected_output": {"four", "Paris"},
	}}
	r := dataset.NewResolver(gen, nil)

	project := &types.Project{
		Dataset: &types.Dataset{
			Headers: []string{"question"},
			Rows: []map[string]string{
				{"question": "What is 2+2?"},
				{"question": "Capital of France?"},
			},
		},
		Assertions: []types.Assertion{{ID: "a1", Type: types.TypeFactuality}},
	}

	if err := r.GenerateMissing(context.Background(), project, types.TypeFactuality, "a1"); err != nil {
		t.Fatalf("GenerateMissing: %v", err)
	}

	if !dataset.ColumnExists(project.Dataset, "expected_output") {
		t.Error("expected_output column not appended")
	}
	if project.Dataset.Rows[0]["expected_output"] != "four" {
		t.Errorf("row 0 expected_output = %q, want four", project.Dataset.Rows[0]["expected_output"])
	}

	a := project.Assertions[0]
	if a.Value == nil || a.Value.Text == nil || *a.Value.Text != "{{expected_output}}" {
		t.Errorf("assertion value = %v, want {{expected_output}}", a.Value)
	}
}

func TestGenerateMissing_BackfillsNilRow(t *testing.T) {
	// A JSON null row decodes to a nil map; back-filling must allocate it
	// instead of panicking.
	gen := &genai.Mock{ColumnValues: map[string][]string{
		"expected_output": {"four", "Paris"},
	}}
	r := dataset.NewResolver(gen, nil)

	project := &types.Project{
		Dataset: &types.Dataset{
			Headers: []string{"question"},
			Rows: []map[string]string{
				{"question": "What is 2+2?"},
				nil,
			},
		},
		Assertions: []types.Assertion{{ID: "a1", Type: types.TypeFactuality}},
	}

	if err := r.GenerateMissing(context.Background(), project, types.TypeFactuality, "a1"); err != nil {
		t.Fatalf("GenerateMissing: %v", err)
	}
	if project.Dataset.Rows[1] == nil || project.Dataset.Rows[1]["expected_output"] != "Paris" {
		t.Errorf("nil row back-fill = %v, want expected_output=Paris", project.Dataset.Rows[1])
	}
}

func TestGenerateMissing_BackfillSkipsRemovedAssertion(t *testing.T) {
	gen := &genai.Mock{}
	r := dataset.NewResolver(gen, nil)

	project := &types.Project{
		Dataset: &types.Dataset{
			Headers: []string{"question"},
			Rows:    []map[string]string{{"question": "q"}},
		},
		// Assertion was removed between the trigger and generation finishing.
		Assertions: nil,
	}

	if err := r.GenerateMissing(context.Background(), project, types.TypeFactuality, "gone"); err != nil {
		t.Fatalf("GenerateMissing: %v", err)
	}
	if !dataset.ColumnExists(project.Dataset, "expected_output") {
		t.Error("column generation should still happen when the assertion is gone")
	}
}

func TestGenerateMissing_ContextRelevanceSeedsEmptyDataset(t *testing.T) {
	r := dataset.NewResolver(&genai.Mock{}, nil)
	project := &types.Project{}

	if err := r.GenerateMissing(context.Background(), project, types.TypeContextRelevance, ""); err != nil {
		t.Fatalf("GenerateMissing: %v", err)
	}

	ds := project.Dataset
	if ds == nil {
		t.Fatal("dataset not seeded")
	}
	if len(ds.Headers) != 2 || ds.Headers[0] != "query" || ds.Headers[1] != "context" {
		t.Errorf("seeded headers = %v, want [query context]", ds.Headers)
	}
	if len(ds.Rows) != 1 {
		t.Errorf("seeded rows = %d, want 1 illustrative row", len(ds.Rows))
	}
}

func TestGenerateMissing_ContextRelevancePerColumnIsolation(t *testing.T) {
	// First generated column succeeds, second fails: the success must stick.
	gen := &genai.Mock{
		ColumnValues: map[string][]string{"query": {"q1"}},
		Errs:         []error{nil, context.DeadlineExceeded},
	}
	r := dataset.NewResolver(gen, nil)

	project := &types.Project{
		Dataset: &types.Dataset{
			Headers: []string{"topic"},
			Rows:    []map[string]string{{"topic": "geography"}},
		},
	}

	err := r.GenerateMissing(context.Background(), project, types.TypeContextRelevance, "")
	if err == nil {
		t.Fatal("expected error from failed context column")
	}
	if !dataset.ColumnExists(project.Dataset, "query") {
		t.Error("successful query column was rolled back")
	}
	if dataset.ColumnExists(project.Dataset, "context") {
		t.Error("failed context column appeared anyway")
	}
}

func TestGenerateMissing_NoGeneratorConfigured(t *testing.T) {
	r := dataset.NewResolver(nil, nil)
	project := &types.Project{
		Dataset: &types.Dataset{
			Headers: []string{"question"},
			Rows:    []map[string]string{{"question": "q"}},
		},
	}
	if err := r.GenerateMissing(context.Background(), project, types.TypeFactuality, "a1"); err == nil {
		t.Error("expected error when generation is unconfigured")
	}
}
