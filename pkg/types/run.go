package types

import "encoding/json"

// Suite names for the two independently-run evaluation categories.
const (
	SuiteFunctional = "functional"
	SuiteSecurity   = "security"
)

// ResultSet is the outcome of one suite as reported by the run service.
// Results is kept opaque: the engine merges and persists it but never
// interprets individual test outcomes.
type ResultSet struct {
	Success        bool            `json:"success"`
	Results        json.RawMessage `json:"results,omitempty"`
	Error          string          `json:"error,omitempty"`
	HTMLReportPath string          `json:"htmlReportPath,omitempty"`
	Aborted        bool            `json:"aborted,omitempty"`
	PassCount      int             `json:"passCount"`
	FailCount      int             `json:"failCount"`
}

// RunOutcome is the merged result of a completed evaluation run.
type RunOutcome struct {
	RunID       string     `json:"runId"`
	TotalTests  int        `json:"totalTests"`
	Functional  *ResultSet `json:"functional,omitempty"`
	Security    *ResultSet `json:"security,omitempty"`
	Fingerprint string     `json:"fingerprint"`
}

// RunRecord is one persisted history entry for a completed run.
type RunRecord struct {
	ID          int64           `json:"id"`
	ProjectName string          `json:"projectName"`
	Fingerprint string          `json:"fingerprint"`
	PassCount   int             `json:"passCount"`
	FailCount   int             `json:"failCount"`
	Results     json.RawMessage `json:"results,omitempty"`
	CreatedAt   int64           `json:"createdAt"`
}
