package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/promptdeck/engine/internal/genai"
	"github.com/promptdeck/engine/pkg/types"
)

// Requirement is the outcome of checking a dataset against an assertion
// type's needs.
type Requirement struct {
	NeedsGeneration bool
	MissingColumns  []string
	Blocked         bool
	Reason          string
}

// Ensure determines what the dataset is missing for the given assertion
// type. It never mutates the dataset.
func Ensure(assertionType string, ds *types.Dataset) Requirement {
	switch assertionType {
	case types.TypeFactuality:
		if ds == nil || len(ds.Rows) == 0 {
			return Requirement{
				Blocked: true,
				Reason:  "factuality needs dataset rows — add test cases before configuring it",
			}
		}
		if _, ok := ExpectedColumn(ds); ok {
			return Requirement{}
		}
		return Requirement{
			NeedsGeneration: true,
			MissingColumns:  []string{DefaultExpectedColumn},
		}

	case types.TypeContextRelevance:
		var missing []string
		for _, col := range []string{QueryColumn, ContextColumn} {
			if !ColumnExists(ds, col) {
				missing = append(missing, col)
			}
		}
		if ds != nil && len(ds.Rows) > 0 && len(missing) == 0 {
			return Requirement{}
		}
		// Absent or empty datasets are seeded rather than AI-generated.
		if ds == nil || len(ds.Rows) == 0 {
			missing = []string{QueryColumn, ContextColumn}
		}
		return Requirement{NeedsGeneration: true, MissingColumns: missing}
	}

	return Requirement{}
}

// Resolver drives column generation for assertion types whose requirements
// are not met.
type Resolver struct {
	gen    genai.Generator
	logger *slog.Logger
}

// NewResolver creates a Resolver. gen may be nil when generation is
// unavailable; GenerateMissing then fails with a descriptive error.
func NewResolver(gen genai.Generator, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{gen: gen, logger: logger}
}

// seedContextRelevanceDataset builds the two-column dataset used when a
// context-relevance assertion is added to a project with no rows at all.
func seedContextRelevanceDataset(name string) *types.Dataset {
	if name == "" {
		name = "dataset"
	}
	return &types.Dataset{
		Name:    name,
		Headers: []string{QueryColumn, ContextColumn},
		Rows: []map[string]string{{
			QueryColumn:   "What is the capital of France?",
			ContextColumn: "France is a country in Western Europe. Its capital and largest city is Paris.",
		}},
	}
}

// GenerateMissing satisfies the requirement Ensure reported for the given
// assertion type, mutating project.Dataset in place. For factuality it also
// back-fills the triggering assertion's value once the column exists; the
// assertion may have been removed or retyped in the interim, in which case
// the back-fill is skipped and logged.
//
// Per-column generation failures are isolated: a failure on one column does
// not roll back a sibling column that already succeeded.
func (r *Resolver) GenerateMissing(ctx context.Context, project *types.Project, assertionType, assertionID string) error {
	req := Ensure(assertionType, project.Dataset)
	if req.Blocked {
		return fmt.Errorf("dataset requirement for %s: %s", assertionType, req.Reason)
	}
	if !req.NeedsGeneration {
		return nil
	}

	switch assertionType {
	case types.TypeFactuality:
		if err := r.generateColumn(ctx, project, DefaultExpectedColumn); err != nil {
			return err
		}
		r.backfillFactuality(project, assertionID)
		return nil

	case types.TypeContextRelevance:
		if project.Dataset == nil || len(project.Dataset.Rows) == 0 {
			name := ""
			if project.Dataset != nil {
				name = project.Dataset.Name
			}
			project.Dataset = seedContextRelevanceDataset(name)
			return nil
		}

		var errs []error
		for _, col := range req.MissingColumns {
			if err := r.generateColumn(ctx, project, col); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	return nil
}

// generateColumn asks the AI service for one value per row, then appends the
// header and back-fills every row.
func (r *Resolver) generateColumn(ctx context.Context, project *types.Project, column string) error {
	if r.gen == nil {
		return fmt.Errorf("generate column %q: AI generation is not configured", column)
	}

	values, err := r.gen.GenerateColumn(ctx, column, project)
	if err != nil {
		return fmt.Errorf("generate column %q: %w", column, err)
	}

	ds := project.Dataset
	if !ColumnExists(ds, column) {
		ds.Headers = append(Columns(ds), column)
	}
	for i := range ds.Rows {
		if i < len(values) {
			if ds.Rows[i] == nil {
				// JSON null entries decode to nil maps.
				ds.Rows[i] = make(map[string]string)
			}
			ds.Rows[i][column] = values[i]
		}
	}

	r.logger.Info("generated dataset column", "column", column, "rows", len(ds.Rows))
	return nil
}

// backfillFactuality points the triggering assertion's value at the freshly
// generated column. The assertion is re-located by id: if it is gone or no
// longer a factuality assertion, the back-fill is skipped silently.
func (r *Resolver) backfillFactuality(project *types.Project, assertionID string) {
	idx := project.FindAssertion(assertionID)
	if idx < 0 || project.Assertions[idx].Type != types.TypeFactuality {
		r.logger.Info("skipping factuality back-fill, assertion changed or removed", "id", assertionID)
		return
	}
	project.Assertions[idx].Value = types.TextValue(fmt.Sprintf("{{%s}}", DefaultExpectedColumn))
}
