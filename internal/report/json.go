// Package report renders a completed run into shareable artifacts: a
// structured JSON document and a Markdown summary.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/encoding/json"

	"github.com/promptdeck/engine/pkg/types"
)

// JSONReport is the on-disk JSON shape of one completed run.
type JSONReport struct {
	Version     string           `json:"version"`
	Timestamp   string           `json:"timestamp"`
	Project     string           `json:"project"`
	RunID       string           `json:"run_id"`
	Fingerprint string           `json:"fingerprint"`
	TotalTests  int              `json:"total_tests"`
	Summary     JSONSummary      `json:"summary"`
	Functional  *types.ResultSet `json:"functional,omitempty"`
	Security    *types.ResultSet `json:"security,omitempty"`
}

// JSONSummary aggregates pass/fail counts across both suites.
type JSONSummary struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// GenerateJSONReport renders the outcome of one run as indented JSON.
func GenerateJSONReport(projectName string, outcome *types.RunOutcome) ([]byte, error) {
	report := JSONReport{
		Version:     "1.0",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Project:     projectName,
		RunID:       outcome.RunID,
		Fingerprint: outcome.Fingerprint,
		TotalTests:  outcome.TotalTests,
		Summary:     summarize(outcome),
		Functional:  outcome.Functional,
		Security:    outcome.Security,
	}

	output, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return output, nil
}

func summarize(outcome *types.RunOutcome) JSONSummary {
	var s JSONSummary
	for _, rs := range []*types.ResultSet{outcome.Functional, outcome.Security} {
		if rs == nil {
			continue
		}
		s.Passed += rs.PassCount
		s.Failed += rs.FailCount
	}
	return s
}

// Write renders both report formats into dir, named by run id. Returns the
// paths of the JSON and Markdown files.
func Write(dir, projectName string, outcome *types.RunOutcome) (jsonPath, mdPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create report dir: %w", err)
	}

	jsonBytes, err := GenerateJSONReport(projectName, outcome)
	if err != nil {
		return "", "", err
	}
	jsonPath = filepath.Join(dir, "report-"+outcome.RunID+".json")
	if err := os.WriteFile(jsonPath, jsonBytes, 0o644); err != nil {
		return "", "", fmt.Errorf("write JSON report: %w", err)
	}

	mdPath = filepath.Join(dir, "report-"+outcome.RunID+".md")
	f, err := os.Create(mdPath)
	if err != nil {
		return "", "", fmt.Errorf("write Markdown report: %w", err)
	}
	defer f.Close()
	if err := GenerateMarkdown(f, &MarkdownReport{
		Title:   projectName + " Evaluation Report",
		RunAt:   time.Now().UTC(),
		Outcome: outcome,
	}); err != nil {
		return "", "", fmt.Errorf("render Markdown report: %w", err)
	}

	return jsonPath, mdPath, nil
}
