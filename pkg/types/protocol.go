package types

import "encoding/json"

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Notification is a JSON-RPC 2.0 notification (no id, no response expected).
// The engine pushes run logs, progress, and terminal run events this way.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// RPCError represents a JSON-RPC error object.
type RPCError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData holds structured error detail. Section carries the routing
// keyword (provider, prompt, dataset, variable, assertion) for validation
// failures so the shell can open the offending tab.
type ErrorData struct {
	ErrorType string `json:"error_type"`
	Retryable bool   `json:"retryable"`
	Detail    string `json:"detail"`
	Section   string `json:"section,omitempty"`
}

// InitializeParams holds parameters for the initialize method.
type InitializeParams struct {
	ShellName       string `json:"shell_name"`
	ShellVersion    string `json:"shell_version"`
	ProtocolVersion int    `json:"protocol_version"`
}

// InitializeResult holds the result of the initialize method.
type InitializeResult struct {
	EngineVersion   string   `json:"engine_version"`
	ProtocolVersion int      `json:"protocol_version"`
	Capabilities    []string `json:"capabilities"`
}

// ShutdownResult holds the result of the shutdown method.
type ShutdownResult struct {
	RunsCompleted int `json:"runs_completed"`
}

// SetProjectParams replaces the engine's view of the current project.
type SetProjectParams struct {
	Project Project `json:"project"`
}

// SetProjectResult reports whether the edit invalidated a displayed result.
type SetProjectResult struct {
	StaleCleared bool `json:"stale_cleared"`
}

// DescribeAssertionParams names the assertion type to look up.
type DescribeAssertionParams struct {
	Type string `json:"type"`
}

// ListAssertionTypesResult returns the full catalog grouped by category.
type ListAssertionTypesResult struct {
	Categories  []string                  `json:"categories"`
	Descriptors []AssertionTypeDescriptor `json:"descriptors"`
}

// GenerateDefaultsParams names the assertion type to build defaults for.
type GenerateDefaultsParams struct {
	Type string `json:"type"`
}

// GenerateDefaultsResult carries the generated default assertion fields.
type GenerateDefaultsResult struct {
	Assertion Assertion `json:"assertion"`
}

// AddAssertionParams holds a fully configured assertion to insert.
type AddAssertionParams struct {
	Assertion Assertion `json:"assertion"`
}

// AddAssertionResult reports insertion plus any dataset requirement raised.
type AddAssertionResult struct {
	Added          bool     `json:"added"`
	MissingColumns []string `json:"missing_columns,omitempty"`
	Blocked        bool     `json:"blocked,omitempty"`
	Reason         string   `json:"reason,omitempty"`
}

// MergeAssertionsParams holds an AI-suggested batch to merge.
type MergeAssertionsParams struct {
	Assertions []Assertion `json:"assertions"`
}

// MergeAssertionsResult lists the assertions that survived deduplication.
type MergeAssertionsResult struct {
	Merged  []Assertion `json:"merged"`
	Dropped int         `json:"dropped"`
}

// EnsureDatasetParams names the assertion type whose dataset needs checking.
type EnsureDatasetParams struct {
	Type        string `json:"type"`
	AssertionID string `json:"assertion_id,omitempty"`
}

// EnsureDatasetResult reports what the dataset is missing for the type.
type EnsureDatasetResult struct {
	NeedsGeneration bool     `json:"needs_generation"`
	MissingColumns  []string `json:"missing_columns,omitempty"`
	Blocked         bool     `json:"blocked,omitempty"`
	Reason          string   `json:"reason,omitempty"`
	Dataset         *Dataset `json:"dataset,omitempty"`
}

// ValidateProjectResult is the validator verdict.
type ValidateProjectResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// StartRunResult acknowledges a started run.
type StartRunResult struct {
	RunID      string `json:"run_id"`
	TotalTests int    `json:"total_tests"`
}

// AbortRunParams names the run to abort.
type AbortRunParams struct {
	RunID string `json:"run_id"`
}

// AbortRunResult reports whether the abort request matched the active run.
type AbortRunResult struct {
	Requested bool `json:"requested"`
}

// HistoryListParams bounds a history query.
type HistoryListParams struct {
	Limit int `json:"limit,omitempty"`
}

// HistoryListResult returns persisted run records, most recent first.
type HistoryListResult struct {
	Runs []RunRecord `json:"runs"`
}

// GenerateAssertionsResult carries AI-suggested assertions. The batch is
// pre-filtered against the current suite; callers still merge explicitly.
type GenerateAssertionsResult struct {
	Assertions []Assertion `json:"assertions"`
	Dropped    int         `json:"dropped"`
}

// AnalyzeResultsParams carries the merged result payload to summarize.
type AnalyzeResultsParams struct {
	Results json.RawMessage `json:"results"`
}

// AnalyzeResultsResult holds the prose analysis of a result payload.
type AnalyzeResultsResult struct {
	Analysis string `json:"analysis"`
}

// RunLogParams is the payload of a run_log notification.
type RunLogParams struct {
	RunID string `json:"run_id"`
	Suite string `json:"suite"`
	Line  string `json:"line"`
}

// RunProgressParams is the payload of a run_progress notification.
type RunProgressParams struct {
	RunID   string `json:"run_id"`
	Suite   string `json:"suite"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// RunCompleteParams is the payload of a run_complete notification.
type RunCompleteParams struct {
	RunID   string     `json:"run_id"`
	Outcome RunOutcome `json:"outcome"`
}

// RunErrorParams is the payload of run_aborted and run_error notifications.
type RunErrorParams struct {
	RunID   string `json:"run_id"`
	Message string `json:"message,omitempty"`
}
