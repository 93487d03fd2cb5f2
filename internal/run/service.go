package run

import (
	"context"

	"github.com/promptdeck/engine/pkg/types"
)

// LogFunc receives one log line or progress update from a suite. Lines must
// be relayed in emission order within a suite.
type LogFunc func(line string, current, total int)

// Service is the external run-service contract. The engine never interprets
// how the service parallelizes provider calls; it only consumes the
// serialized log stream and the final result set per suite.
type Service interface {
	// Run executes one suite from its YAML config and streams logs to onLog.
	// The returned error means the invocation itself failed; a test failure
	// is reported inside the ResultSet.
	Run(ctx context.Context, suite, configYAML, runID string, onLog LogFunc) (*types.ResultSet, error)

	// Abort asks the service to terminate the run. Cooperative and
	// best-effort: log lines may keep arriving until the service confirms.
	Abort(ctx context.Context, runID string) error
}
