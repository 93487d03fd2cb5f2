package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/promptdeck/engine/internal/dataset"
	"github.com/promptdeck/engine/internal/defaults"
	"github.com/promptdeck/engine/internal/duplicate"
	"github.com/promptdeck/engine/internal/genai"
	"github.com/promptdeck/engine/internal/registry"
	"github.com/promptdeck/engine/internal/report"
	"github.com/promptdeck/engine/internal/run"
	"github.com/promptdeck/engine/internal/validate"
	"github.com/promptdeck/engine/pkg/types"
)

const (
	engineVersion   = "0.1.0"
	protocolVersion = 1
)

// Deps are the collaborators behind the RPC surface. Generator and History
// may be nil; their methods are then unregistered or degrade to empty
// results.
type Deps struct {
	Orchestrator *run.Orchestrator
	Resolver     *dataset.Resolver
	History      HistoryReader
	Generator    genai.Generator
	Logger       *slog.Logger
}

// HistoryReader is the read side of the run-history store.
type HistoryReader interface {
	List(projectName string, limit int) ([]types.RunRecord, error)
}

// RegisterBuiltinHandlers installs every RPC method on s.
func RegisterBuiltinHandlers(s *Server, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	caps := []string{
		"assertions", "defaults", "duplicate_detection",
		"dataset_resolution", "validation", "runs", "security_suite",
	}
	if deps.History != nil {
		caps = append(caps, "history")
	}
	if deps.Generator != nil {
		caps = append(caps, "generation")
	}

	s.RegisterHandler("initialize", handleInitialize(caps))
	s.RegisterHandler("shutdown", handleShutdown(deps.Orchestrator))
	s.RegisterHandler("set_project", handleSetProject(deps.Orchestrator))
	s.RegisterHandler("list_assertion_types", handleListAssertionTypes)
	s.RegisterHandler("describe_assertion", handleDescribeAssertion)
	s.RegisterHandler("generate_defaults", handleGenerateDefaults)
	s.RegisterHandler("add_assertion", handleAddAssertion(deps.Orchestrator))
	s.RegisterHandler("merge_suggested_assertions", handleMergeAssertions(deps.Orchestrator))
	s.RegisterHandler("ensure_dataset", handleEnsureDataset(deps.Resolver))
	s.RegisterHandler("validate_project", handleValidateProject)
	s.RegisterHandler("start_run", handleStartRun(s, deps))
	s.RegisterHandler("abort_run", handleAbortRun(deps.Orchestrator))
	s.RegisterHandler("history_list", handleHistoryList(deps.History))
	if deps.Generator != nil {
		s.RegisterHandler("generate_assertions", handleGenerateAssertions(deps.Generator))
		s.RegisterHandler("analyze_results", handleAnalyzeResults(deps.Generator))
	}
}

// requireInitialized gates every post-handshake method.
func requireInitialized(session *Session, method string) *types.RPCError {
	if session.State() != StateInitialized {
		return types.NewRPCError(
			types.ErrSessionError,
			method+" called before initialize",
			types.ErrTypeSessionError,
			false,
			"call initialize first to establish a session",
		)
	}
	return nil
}

// requireProject gates methods that operate on the loaded project.
func requireProject(session *Session, method string) (*types.Project, *types.RPCError) {
	if rpcErr := requireInitialized(session, method); rpcErr != nil {
		return nil, rpcErr
	}
	p := session.Project()
	if p == nil {
		return nil, types.NewRPCError(
			types.ErrSessionError,
			method+" called before set_project",
			types.ErrTypeSessionError,
			false,
			"send set_project with the current project first",
		)
	}
	return p, nil
}

func invalidParams(method string, err error) *types.RPCError {
	return types.NewRPCError(
		types.ErrSessionError,
		fmt.Sprintf("invalid %s params", method),
		types.ErrTypeSessionError,
		false,
		err.Error(),
	)
}

func handleInitialize(caps []string) Handler {
	return func(session *Session, params json.RawMessage) (any, *types.RPCError) {
		if session.State() != StateUninitialized {
			return nil, types.NewRPCError(
				types.ErrSessionError,
				"initialize called on already-initialized session",
				types.ErrTypeSessionError,
				false,
				"initialize may only be called once per session",
			)
		}

		var p types.InitializeParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, invalidParams("initialize", err)
		}

		if p.ProtocolVersion != protocolVersion {
			return nil, types.NewRPCError(
				types.ErrSessionError,
				fmt.Sprintf("protocol version %d not supported; engine supports version %d", p.ProtocolVersion, protocolVersion),
				types.ErrTypeSessionError,
				false,
				"upgrade the engine binary or downgrade the shell protocol_version",
			)
		}

		session.SetState(StateInitialized)

		return &types.InitializeResult{
			EngineVersion:   engineVersion,
			ProtocolVersion: protocolVersion,
			Capabilities:    caps,
		}, nil
	}
}

func handleShutdown(orch *run.Orchestrator) Handler {
	return func(session *Session, _ json.RawMessage) (any, *types.RPCError) {
		if session.State() != StateInitialized {
			return nil, types.NewRPCError(
				types.ErrSessionError,
				"shutdown called on uninitialized or already-shutting-down session",
				types.ErrTypeSessionError,
				false,
				"call initialize before shutdown",
			)
		}

		session.SetState(StateShuttingDown)
		return &types.ShutdownResult{RunsCompleted: orch.RunsCompleted()}, nil
	}
}

func handleSetProject(orch *run.Orchestrator) Handler {
	return func(session *Session, params json.RawMessage) (any, *types.RPCError) {
		if rpcErr := requireInitialized(session, "set_project"); rpcErr != nil {
			return nil, rpcErr
		}

		var p types.SetProjectParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, invalidParams("set_project", err)
		}

		session.SetProject(&p.Project)
		stale := orch.Invalidator().OnEdit(&p.Project)
		return &types.SetProjectResult{StaleCleared: stale}, nil
	}
}

func handleListAssertionTypes(session *Session, _ json.RawMessage) (any, *types.RPCError) {
	if rpcErr := requireInitialized(session, "list_assertion_types"); rpcErr != nil {
		return nil, rpcErr
	}
	return &types.ListAssertionTypesResult{
		Categories:  registry.Categories(),
		Descriptors: registry.All(),
	}, nil
}

func handleDescribeAssertion(session *Session, params json.RawMessage) (any, *types.RPCError) {
	if rpcErr := requireInitialized(session, "describe_assertion"); rpcErr != nil {
		return nil, rpcErr
	}

	var p types.DescribeAssertionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams("describe_assertion", err)
	}

	desc, ok := registry.Describe(p.Type)
	if !ok {
		return nil, unknownAssertionType(p.Type)
	}
	return desc, nil
}

func unknownAssertionType(assertionType string) *types.RPCError {
	return types.NewRPCError(
		types.ErrUnknownAssertion,
		fmt.Sprintf("unknown assertion type %q", assertionType),
		types.ErrTypeUnknownAssertion,
		false,
		"list_assertion_types returns the supported catalog",
	)
}

func handleGenerateDefaults(session *Session, params json.RawMessage) (any, *types.RPCError) {
	if rpcErr := requireInitialized(session, "generate_defaults"); rpcErr != nil {
		return nil, rpcErr
	}

	var p types.GenerateDefaultsParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams("generate_defaults", err)
	}

	pc := defaults.ProjectContext{}
	if project := session.Project(); project != nil {
		pc.Prompts = project.Prompts
		pc.Dataset = project.Dataset
		pc.Providers = project.Providers
	}

	assertion, ok := defaults.Generate(p.Type, pc)
	if !ok {
		return nil, unknownAssertionType(p.Type)
	}
	return &types.GenerateDefaultsResult{Assertion: assertion}, nil
}

func handleAddAssertion(orch *run.Orchestrator) Handler {
	return func(session *Session, params json.RawMessage) (any, *types.RPCError) {
		project, rpcErr := requireProject(session, "add_assertion")
		if rpcErr != nil {
			return nil, rpcErr
		}

		var p types.AddAssertionParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, invalidParams("add_assertion", err)
		}
		a := p.Assertion

		desc, ok := registry.Describe(a.Type)
		if !ok {
			return nil, unknownAssertionType(a.Type)
		}
		if rpcErr := checkFieldBounds(a, desc); rpcErr != nil {
			return nil, rpcErr
		}

		if conflict, found := duplicate.FindConflict(a, project.Assertions); found {
			return nil, &types.RPCError{
				Code:    types.ErrDuplicateAssertion,
				Message: fmt.Sprintf("assertion duplicates existing %s assertion", conflict.Type),
				Data: &types.ErrorData{
					ErrorType: types.ErrTypeDuplicateAssertion,
					Retryable: false,
					Detail:    fmt.Sprintf("conflicts with assertion %q", conflict.ID),
					Section:   "assertion",
				},
			}
		}

		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		session.UpdateProject(func(p *types.Project) {
			p.Assertions = append(p.Assertions, a)
		})
		orch.Invalidator().OnEdit(project)

		req := dataset.Ensure(a.Type, project.Dataset)
		return &types.AddAssertionResult{
			Added:          true,
			MissingColumns: req.MissingColumns,
			Blocked:        req.Blocked,
			Reason:         req.Reason,
		}, nil
	}
}

// checkFieldBounds enforces the catalog's numeric field ranges at edit time
// so a run never starts with an out-of-range threshold or weight.
func checkFieldBounds(a types.Assertion, desc *types.AssertionTypeDescriptor) *types.RPCError {
	values := map[string]*float64{
		"threshold": a.Threshold,
		"weight":    a.Weight,
	}
	for _, field := range desc.Fields {
		v, tracked := values[field.Name]
		if !tracked || v == nil {
			continue
		}
		if (field.Min != nil && *v < *field.Min) || (field.Max != nil && *v > *field.Max) {
			detail := field.Name + " is out of range"
			if field.Min != nil && field.Max != nil {
				detail = fmt.Sprintf("%s must be between %v and %v", field.Name, *field.Min, *field.Max)
			}
			return &types.RPCError{
				Code:    types.ErrInvalidProject,
				Message: fmt.Sprintf("%s %v is out of range for %s", field.Name, *v, a.Type),
				Data: &types.ErrorData{
					ErrorType: types.ErrTypeInvalidProject,
					Retryable: false,
					Detail:    detail,
					Section:   "assertion",
				},
			}
		}
	}
	return nil
}

func handleMergeAssertions(orch *run.Orchestrator) Handler {
	return func(session *Session, params json.RawMessage) (any, *types.RPCError) {
		project, rpcErr := requireProject(session, "merge_suggested_assertions")
		if rpcErr != nil {
			return nil, rpcErr
		}

		var p types.MergeAssertionsParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, invalidParams("merge_suggested_assertions", err)
		}

		merged := duplicate.FilterBatch(p.Assertions, project.Assertions)
		for i := range merged {
			if merged[i].ID == "" {
				merged[i].ID = uuid.NewString()
			}
		}
		if len(merged) > 0 {
			session.UpdateProject(func(p *types.Project) {
				p.Assertions = append(p.Assertions, merged...)
			})
			orch.Invalidator().OnEdit(project)
		}

		return &types.MergeAssertionsResult{
			Merged:  merged,
			Dropped: len(p.Assertions) - len(merged),
		}, nil
	}
}

func handleEnsureDataset(resolver *dataset.Resolver) Handler {
	return func(session *Session, params json.RawMessage) (any, *types.RPCError) {
		project, rpcErr := requireProject(session, "ensure_dataset")
		if rpcErr != nil {
			return nil, rpcErr
		}

		var p types.EnsureDatasetParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, invalidParams("ensure_dataset", err)
		}
		if _, ok := registry.Describe(p.Type); !ok {
			return nil, unknownAssertionType(p.Type)
		}

		req := dataset.Ensure(p.Type, project.Dataset)
		result := &types.EnsureDatasetResult{
			NeedsGeneration: req.NeedsGeneration,
			MissingColumns:  req.MissingColumns,
			Blocked:         req.Blocked,
			Reason:          req.Reason,
		}

		if req.Blocked || (!req.NeedsGeneration && len(req.MissingColumns) == 0) {
			return result, nil
		}
		if resolver == nil {
			return result, nil
		}

		if err := resolver.GenerateMissing(context.Background(), project, p.Type, p.AssertionID); err != nil {
			return nil, types.NewRPCError(
				types.ErrGenerationError,
				fmt.Sprintf("dataset generation failed: %v", err),
				types.ErrTypeGenerationError,
				true,
				"check the generation service and retry",
			)
		}

		after := dataset.Ensure(p.Type, project.Dataset)
		result.NeedsGeneration = after.NeedsGeneration
		result.MissingColumns = after.MissingColumns
		result.Dataset = project.Dataset
		return result, nil
	}
}

func handleValidateProject(session *Session, _ json.RawMessage) (any, *types.RPCError) {
	project, rpcErr := requireProject(session, "validate_project")
	if rpcErr != nil {
		return nil, rpcErr
	}

	res := validate.Project(project)
	return &types.ValidateProjectResult{Valid: res.Valid, Error: res.Error}, nil
}

func handleStartRun(s *Server, deps Deps) Handler {
	return func(session *Session, _ json.RawMessage) (any, *types.RPCError) {
		project, rpcErr := requireProject(session, "start_run")
		if rpcErr != nil {
			return nil, rpcErr
		}

		if res := validate.Project(project); !res.Valid {
			return nil, &types.RPCError{
				Code:    types.ErrInvalidProject,
				Message: "project validation failed",
				Data: &types.ErrorData{
					ErrorType: types.ErrTypeInvalidProject,
					Retryable: false,
					Detail:    res.Error,
					Section:   validate.Section(res.Error),
				},
			}
		}

		// Callbacks may fire before Start returns the run id; they block on
		// ready until it is known.
		var runID string
		ready := make(chan struct{})
		await := func() string {
			<-ready
			return runID
		}

		cb := run.Callbacks{
			OnLog: func(suite, line string) {
				s.Notify("run_log", &types.RunLogParams{RunID: await(), Suite: suite, Line: line})
			},
			OnProgress: func(suite string, current, total int) {
				s.Notify("run_progress", &types.RunProgressParams{
					RunID: await(), Suite: suite, Current: current, Total: total,
				})
			},
			OnComplete: func(outcome *types.RunOutcome) {
				writeReports(deps.Logger, project, outcome)
				s.Notify("run_complete", &types.RunCompleteParams{RunID: await(), Outcome: *outcome})
			},
			OnAborted: func() {
				s.Notify("run_aborted", &types.RunErrorParams{RunID: await()})
			},
			OnError: func(message string) {
				s.Notify("run_error", &types.RunErrorParams{RunID: await(), Message: message})
			},
		}

		id, total, err := deps.Orchestrator.Start(context.Background(), project, cb)
		if err != nil {
			close(ready)
			return nil, types.NewRPCError(
				types.ErrRunError,
				err.Error(),
				types.ErrTypeRunError,
				true,
				"wait for the active run to finish or abort it",
			)
		}
		runID = id
		close(ready)

		return &types.StartRunResult{RunID: id, TotalTests: total}, nil
	}
}

// writeReports renders the shareable report files when the project asks for
// them. Failures are logged; they never fail the run.
func writeReports(logger *slog.Logger, project *types.Project, outcome *types.RunOutcome) {
	if project.Options.OutputPath == "" {
		return
	}
	jsonPath, mdPath, err := report.Write(project.Options.OutputPath, project.Name, outcome)
	if err != nil {
		logger.Warn("report write failed", "dir", project.Options.OutputPath, "err", err)
		return
	}
	logger.Info("reports written", "json", jsonPath, "markdown", mdPath)
}

func handleAbortRun(orch *run.Orchestrator) Handler {
	return func(session *Session, params json.RawMessage) (any, *types.RPCError) {
		if rpcErr := requireInitialized(session, "abort_run"); rpcErr != nil {
			return nil, rpcErr
		}

		var p types.AbortRunParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, invalidParams("abort_run", err)
		}

		return &types.AbortRunResult{Requested: orch.Abort(p.RunID)}, nil
	}
}

func handleHistoryList(history HistoryReader) Handler {
	return func(session *Session, params json.RawMessage) (any, *types.RPCError) {
		if rpcErr := requireInitialized(session, "history_list"); rpcErr != nil {
			return nil, rpcErr
		}

		var p types.HistoryListParams
		if len(params) > 0 {
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams("history_list", err)
			}
		}

		result := &types.HistoryListResult{Runs: []types.RunRecord{}}
		if history == nil {
			return result, nil
		}

		projectName := ""
		if project := session.Project(); project != nil {
			projectName = project.Name
		}

		runs, err := history.List(projectName, p.Limit)
		if err != nil {
			return nil, types.NewRPCError(
				types.ErrEngineError,
				fmt.Sprintf("history query failed: %v", err),
				types.ErrTypeEngineError,
				true,
				"the history database may be locked or corrupt",
			)
		}
		if runs != nil {
			result.Runs = runs
		}
		return result, nil
	}
}

func handleGenerateAssertions(gen genai.Generator) Handler {
	return func(session *Session, params json.RawMessage) (any, *types.RPCError) {
		project, rpcErr := requireProject(session, "generate_assertions")
		if rpcErr != nil {
			return nil, rpcErr
		}

		suggested, err := gen.GenerateAssertions(context.Background(), project)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, types.NewRPCError(
					types.ErrTimeout,
					"assertion generation timed out",
					types.ErrTypeTimeout,
					true,
					err.Error(),
				)
			}
			return nil, types.NewRPCError(
				types.ErrGenerationError,
				fmt.Sprintf("assertion generation failed: %v", err),
				types.ErrTypeGenerationError,
				true,
				"check the generation service and retry",
			)
		}

		filtered := duplicate.FilterBatch(suggested, project.Assertions)
		return &types.GenerateAssertionsResult{
			Assertions: filtered,
			Dropped:    len(suggested) - len(filtered),
		}, nil
	}
}

func handleAnalyzeResults(gen genai.Generator) Handler {
	return func(session *Session, params json.RawMessage) (any, *types.RPCError) {
		if rpcErr := requireInitialized(session, "analyze_results"); rpcErr != nil {
			return nil, rpcErr
		}

		var p types.AnalyzeResultsParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, invalidParams("analyze_results", err)
		}

		analysis, err := gen.AnalyzeResults(context.Background(), p.Results)
		if err != nil {
			return nil, types.NewRPCError(
				types.ErrGenerationError,
				fmt.Sprintf("results analysis failed: %v", err),
				types.ErrTypeGenerationError,
				true,
				"check the generation service and retry",
			)
		}
		return &types.AnalyzeResultsResult{Analysis: analysis}, nil
	}
}
