// Package run owns the lifecycle of one evaluation run: validation gate,
// total-test accounting, concurrent functional/security suite execution,
// log relay, abort, result merging, and stale-result invalidation.
package run

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/promptdeck/engine/internal/validate"
	"github.com/promptdeck/engine/pkg/types"
)

// State is the orchestrator's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateRunning
)

// ConfigBuilder renders a project into the run service's YAML configs.
type ConfigBuilder interface {
	BuildEvaluationConfig(p *types.Project, includeAPIKeys bool) (string, error)
	BuildSecurityTestConfig(p *types.Project, includeAPIKeys bool) (string, error)
}

// HistorySink persists completed runs. Failures are logged and swallowed;
// they never fail the surrounding run.
type HistorySink interface {
	Save(record types.RunRecord) (int64, error)
}

// Callbacks receive run events. All callbacks are invoked from run
// goroutines, serialized per orchestrator.
type Callbacks struct {
	OnLog      func(suite, line string)
	OnProgress func(suite string, current, total int)
	OnComplete func(outcome *types.RunOutcome)
	OnAborted  func()
	OnError    func(message string)
}

// Orchestrator drives a single evaluation run at a time. It does not
// multiplex: starting a run while one is active is an error the caller must
// gate in the UI.
type Orchestrator struct {
	svc     Service
	builder ConfigBuilder
	history HistorySink
	inv     *Invalidator
	logger  *slog.Logger

	mu     sync.Mutex
	state  State
	runID  string
	cancel context.CancelFunc

	runsCompleted int

	// sink serializes callback invocations so per-suite log order survives
	// the two concurrent suite goroutines.
	sink sync.Mutex
}

// New creates an Orchestrator. history may be nil when persistence is
// disabled.
func New(svc Service, builder ConfigBuilder, history HistorySink, inv *Invalidator, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if inv == nil {
		inv = &Invalidator{}
	}
	return &Orchestrator{
		svc:     svc,
		builder: builder,
		history: history,
		inv:     inv,
		logger:  logger,
	}
}

// Invalidator returns the stale-result invalidator tied to this orchestrator.
func (o *Orchestrator) Invalidator() *Invalidator { return o.inv }

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// RunsCompleted returns how many runs reached a terminal state.
func (o *Orchestrator) RunsCompleted() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runsCompleted
}

// TotalTests is the progress denominator: every prompt × provider ×
// dataset-row combination.
func TotalTests(p *types.Project) int {
	rows := 0
	if p.Dataset != nil {
		rows = len(p.Dataset.Rows)
	}
	return len(p.Prompts) * len(p.Providers) * rows
}

// Start validates the project and, on success, launches the run
// asynchronously. The returned runID identifies the run for Abort. The
// project is snapshotted by the caller; edits after Start are not observed
// by this run.
func (o *Orchestrator) Start(ctx context.Context, project *types.Project, cb Callbacks) (string, int, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return "", 0, fmt.Errorf("a run is already in progress")
	}
	o.state = StateValidating
	o.mu.Unlock()

	if res := validate.Project(project); !res.Valid {
		o.mu.Lock()
		o.state = StateIdle
		o.mu.Unlock()
		return "", 0, fmt.Errorf("project validation failed: %s", res.Error)
	}

	total := TotalTests(project)
	runID := uuid.NewString()

	runCtx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	o.state = StateRunning
	o.runID = runID
	o.cancel = cancel
	o.mu.Unlock()

	// A new run clears previous results and any armed fingerprint.
	o.inv.Reset()

	go o.execute(runCtx, project, runID, total, cb)
	return runID, total, nil
}

// Abort requests termination of the named run. Only the active runID is
// honored; stale or unknown IDs are a no-op.
func (o *Orchestrator) Abort(runID string) bool {
	o.mu.Lock()
	if o.state != StateRunning || o.runID != runID {
		o.mu.Unlock()
		return false
	}
	o.mu.Unlock()

	if err := o.svc.Abort(context.Background(), runID); err != nil {
		o.logger.Warn("abort request failed", "run_id", runID, "err", err)
	}
	return true
}

// suiteOutcome is one suite's terminal report.
type suiteOutcome struct {
	suite  string
	result *types.ResultSet
	err    error
}

// execute runs the suites, merges their outcomes, and fires the terminal
// callback. It always returns the orchestrator to Idle.
func (o *Orchestrator) execute(ctx context.Context, project *types.Project, runID string, total int, cb Callbacks) {
	suites := []string{types.SuiteFunctional}
	if project.Options.SecurityEnabled {
		suites = append(suites, types.SuiteSecurity)
	}

	outcomes := make(chan suiteOutcome, len(suites))
	var wg sync.WaitGroup
	for _, suite := range suites {
		wg.Add(1)
		go func(suite string) {
			defer wg.Done()
			outcomes <- o.runSuite(ctx, project, suite, runID, total, cb)
		}(suite)
	}
	wg.Wait()
	close(outcomes)

	outcome := &types.RunOutcome{RunID: runID, TotalTests: total}
	aborted := false
	var firstErr error
	for so := range outcomes {
		if so.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s suite: %w", so.suite, so.err)
		}
		if so.result == nil {
			continue
		}
		if so.result.Aborted {
			aborted = true
		}
		switch so.suite {
		case types.SuiteFunctional:
			outcome.Functional = so.result
		case types.SuiteSecurity:
			outcome.Security = so.result
		}
	}

	// Terminal bookkeeping happens before the callback fires so a client
	// reacting to the event can immediately start another run.
	o.mu.Lock()
	o.state = StateIdle
	o.runID = ""
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.runsCompleted++
	o.mu.Unlock()

	switch {
	case aborted:
		o.logger.Info("run aborted", "run_id", runID)
		if cb.OnAborted != nil {
			o.sink.Lock()
			cb.OnAborted()
			o.sink.Unlock()
		}

	case outcome.Functional != nil || outcome.Security != nil:
		if firstErr != nil {
			// One suite failed to launch but the other produced results;
			// the partial failure is reported, the run still completes.
			o.logger.Warn("suite invocation failed", "run_id", runID, "err", firstErr)
		}
		outcome.Fingerprint = Fingerprint(project)
		o.persist(project, outcome)
		o.inv.Arm(outcome.Fingerprint)
		if cb.OnComplete != nil {
			o.sink.Lock()
			cb.OnComplete(outcome)
			o.sink.Unlock()
		}

	default:
		msg := "run failed"
		if firstErr != nil {
			msg = firstErr.Error()
		}
		o.logger.Error("run failed", "run_id", runID, "err", firstErr)
		if cb.OnError != nil {
			o.sink.Lock()
			cb.OnError(msg)
			o.sink.Unlock()
		}
	}
}

// runSuite builds the suite config and invokes the run service, relaying
// logs and progress in emission order.
func (o *Orchestrator) runSuite(ctx context.Context, project *types.Project, suite, runID string, total int, cb Callbacks) suiteOutcome {
	var config string
	var err error
	switch suite {
	case types.SuiteSecurity:
		config, err = o.builder.BuildSecurityTestConfig(project, true)
	default:
		config, err = o.builder.BuildEvaluationConfig(project, true)
	}
	if err != nil {
		return suiteOutcome{suite: suite, err: fmt.Errorf("build config: %w", err)}
	}

	onLog := func(line string, current, totalFromSvc int) {
		o.sink.Lock()
		defer o.sink.Unlock()
		if line != "" && cb.OnLog != nil {
			cb.OnLog(suite, line)
		}
		if current > 0 && cb.OnProgress != nil {
			t := totalFromSvc
			if t == 0 {
				t = total
			}
			cb.OnProgress(suite, current, t)
		}
	}

	result, err := o.svc.Run(ctx, suite, config, runID, onLog)
	if err != nil {
		return suiteOutcome{suite: suite, err: err}
	}
	return suiteOutcome{suite: suite, result: result}
}

// persist writes the functional result to history. Failure is logged and
// swallowed: history must never fail a run.
func (o *Orchestrator) persist(project *types.Project, outcome *types.RunOutcome) {
	if o.history == nil || outcome.Functional == nil {
		return
	}
	rec := types.RunRecord{
		ProjectName: project.Name,
		Fingerprint: outcome.Fingerprint,
		PassCount:   outcome.Functional.PassCount,
		FailCount:   outcome.Functional.FailCount,
		Results:     outcome.Functional.Results,
	}
	if _, err := o.history.Save(rec); err != nil {
		o.logger.Warn("history save failed", "project", project.Name, "err", err)
	}
}
