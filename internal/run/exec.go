package run

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"github.com/segmentio/encoding/json"

	"github.com/promptdeck/engine/pkg/types"
)

// progressRegex matches the runner's "[current/total]" progress markers.
var progressRegex = regexp.MustCompile(`\[(\d+)/(\d+)\]`)

// ArgsFunc builds the runner's argv for one suite invocation.
type ArgsFunc func(suite, configPath, resultPath string) []string

// DefaultArgs is the argv layout of the promptfoo-compatible runner CLI.
func DefaultArgs(suite, configPath, resultPath string) []string {
	if suite == types.SuiteSecurity {
		return []string{"redteam", "run", "--config", configPath, "--output", resultPath}
	}
	return []string{"eval", "--config", configPath, "--output", resultPath, "--no-progress-bar"}
}

// ExecConfig configures an ExecService.
type ExecConfig struct {
	// Binary is the runner executable, e.g. "promptfoo".
	Binary string
	// WorkDir receives config and result files; empty means the system
	// temp dir.
	WorkDir string
	// Args overrides the argv layout; nil means DefaultArgs.
	Args ArgsFunc
}

// ExecService runs suites by invoking the external runner CLI. Config YAML
// goes in through a temp file; log lines stream back from the runner's
// stdout, and the final result set is read from the runner's output file.
type ExecService struct {
	cfg    ExecConfig
	logger *slog.Logger

	mu      sync.Mutex
	procs   map[string][]*os.Process // runID → live suite processes
	aborted map[string]bool
}

// NewExecService creates an ExecService for the given runner binary.
func NewExecService(cfg ExecConfig, logger *slog.Logger) *ExecService {
	if cfg.Args == nil {
		cfg.Args = DefaultArgs
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecService{
		cfg:     cfg,
		logger:  logger,
		procs:   make(map[string][]*os.Process),
		aborted: make(map[string]bool),
	}
}

// Run executes one suite invocation of the runner and blocks until it
// exits. Implements Service.
func (s *ExecService) Run(ctx context.Context, suite, configYAML, runID string, onLog LogFunc) (*types.ResultSet, error) {
	workDir := s.cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}

	configPath, err := writeTemp(workDir, "run-*.yaml", configYAML)
	if err != nil {
		return nil, fmt.Errorf("write runner config: %w", err)
	}
	defer os.Remove(configPath)
	resultPath := filepath.Join(workDir, filepath.Base(configPath)+".json")
	defer os.Remove(resultPath)

	cmd := exec.CommandContext(ctx, s.cfg.Binary, s.cfg.Args(suite, configPath, resultPath)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe runner stdout: %w", err)
	}
	// Merge stderr into the same stream so runner diagnostics reach the log.
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start runner: %w", err)
	}
	s.register(runID, cmd.Process)
	defer s.unregister(runID, cmd.Process)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		current, total := parseProgress(line)
		onLog(line, current, total)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		// An unreadable line (typically one past the buffer limit) stops the
		// scanner with stdout still open. The rest of the stream must be
		// drained or the runner blocks on a full pipe and Wait never returns.
		onLog(fmt.Sprintf("log stream truncated: %v", scanErr), 0, 0)
		s.logger.Warn("runner log stream truncated", "run_id", runID, "suite", suite, "error", scanErr)
		io.Copy(io.Discard, stdout)
	}

	waitErr := cmd.Wait()

	if s.wasAborted(runID) {
		return &types.ResultSet{Aborted: true}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result, readErr := readResultSet(resultPath)
	if readErr == nil {
		return result, nil
	}
	if waitErr != nil {
		return nil, fmt.Errorf("runner %s suite failed: %w", suite, waitErr)
	}
	return nil, fmt.Errorf("runner produced no result file: %w", readErr)
}

// Abort kills the live processes of the named run. Implements Service.
func (s *ExecService) Abort(ctx context.Context, runID string) error {
	s.mu.Lock()
	procs := append([]*os.Process(nil), s.procs[runID]...)
	if len(procs) > 0 {
		s.aborted[runID] = true
	}
	s.mu.Unlock()

	if len(procs) == 0 {
		return fmt.Errorf("no live processes for run %s", runID)
	}

	var errs []error
	for _, p := range procs {
		if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *ExecService) register(runID string, p *os.Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs[runID] = append(s.procs[runID], p)
}

func (s *ExecService) unregister(runID string, p *os.Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.procs[runID][:0]
	for _, proc := range s.procs[runID] {
		if proc != p {
			live = append(live, proc)
		}
	}
	if len(live) == 0 {
		delete(s.procs, runID)
		// Last suite process gone; the abort flag must not outlive the run
		// or a later run reusing the ID would report itself aborted.
		delete(s.aborted, runID)
	} else {
		s.procs[runID] = live
	}
}

func (s *ExecService) wasAborted(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted[runID]
}

func writeTemp(dir, pattern, content string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func parseProgress(line string) (current, total int) {
	m := progressRegex.FindStringSubmatch(line)
	if m == nil {
		return 0, 0
	}
	current, _ = strconv.Atoi(m[1])
	total, _ = strconv.Atoi(m[2])
	return current, total
}

func readResultSet(path string) (*types.ResultSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rs types.ResultSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decode result file: %w", err)
	}
	return &rs, nil
}
