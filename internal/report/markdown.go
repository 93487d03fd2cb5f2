package report

import (
	"fmt"
	"io"
	"time"

	"github.com/promptdeck/engine/pkg/types"
)

// MarkdownReport holds data for a Markdown run summary.
type MarkdownReport struct {
	Title   string
	RunAt   time.Time
	Outcome *types.RunOutcome
}

// GenerateMarkdown writes a Markdown-formatted run summary to w.
func GenerateMarkdown(w io.Writer, r *MarkdownReport) error {
	title := r.Title
	if title == "" {
		title = "Evaluation Report"
	}

	if _, err := fmt.Fprintf(w, "## %s\n\n", title); err != nil {
		return err
	}

	if !r.RunAt.IsZero() {
		if _, err := fmt.Fprintf(w, "**Run at:** %s\n\n", r.RunAt.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "**Run id:** `%s`\n\n", r.Outcome.RunID); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "**Total tests:** %d\n\n", r.Outcome.TotalTests); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w, "| Suite | Status | Passed | Failed |"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "|-------|--------|--------|--------|"); err != nil {
		return err
	}

	wroteSuite := false
	for _, row := range []struct {
		name string
		rs   *types.ResultSet
	}{
		{"functional", r.Outcome.Functional},
		{"security", r.Outcome.Security},
	} {
		if row.rs == nil {
			continue
		}
		wroteSuite = true
		if _, err := fmt.Fprintf(w, "| %s | %s | %d | %d |\n",
			row.name, suiteStatus(row.rs), row.rs.PassCount, row.rs.FailCount); err != nil {
			return err
		}
	}
	if !wroteSuite {
		_, err := fmt.Fprintln(w, "\n_No suites produced results._")
		return err
	}

	return nil
}

func suiteStatus(rs *types.ResultSet) string {
	switch {
	case rs.Aborted:
		return ":grey_question: aborted"
	case rs.Success:
		return ":white_check_mark: passed"
	default:
		return ":x: failed"
	}
}
