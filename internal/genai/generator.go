// Package genai is the client for the AI generation service: dataset
// column/row synthesis, assertion suggestion, and results analysis. Every
// call is fallible and possibly slow; callers treat failures as recoverable.
package genai

import (
	"context"

	"github.com/promptdeck/engine/pkg/types"
)

// Generator is the AI generation contract consumed by the rest of the engine.
type Generator interface {
	// GenerateColumn synthesizes one value of the named column for every
	// existing dataset row, in row order.
	GenerateColumn(ctx context.Context, column string, project *types.Project) ([]string, error)

	// GenerateRows synthesizes count new dataset rows covering the
	// project's template variables.
	GenerateRows(ctx context.Context, project *types.Project, count int) ([]map[string]string, error)

	// GenerateAssertions suggests a batch of assertions for the project.
	// Callers deduplicate the batch before inserting it.
	GenerateAssertions(ctx context.Context, project *types.Project) ([]types.Assertion, error)

	// AnalyzeResults produces a prose analysis of a merged result payload.
	AnalyzeResults(ctx context.Context, results []byte) (string, error)
}
