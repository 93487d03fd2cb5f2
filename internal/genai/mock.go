package genai

import (
	"context"
	"sync"

	"github.com/promptdeck/engine/pkg/types"
)

// Mock implements Generator with scripted responses for testing.
type Mock struct {
	mu sync.Mutex

	ColumnValues map[string][]string // per column name
	Rows         []map[string]string
	Assertions   []types.Assertion
	Analysis     string
	Errs         []error // error returned at call index, nil entries succeed

	CallCount int
	Calls     []string // method names in call order
}

func (m *Mock) record(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.CallCount
	m.CallCount++
	m.Calls = append(m.Calls, method)
	if idx < len(m.Errs) {
		return m.Errs[idx]
	}
	return nil
}

func (m *Mock) GenerateColumn(ctx context.Context, column string, project *types.Project) ([]string, error) {
	if err := m.record("GenerateColumn:" + column); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if vals, ok := m.ColumnValues[column]; ok {
		return vals, nil
	}
	// Default: one placeholder per row.
	n := 0
	if project.Dataset != nil {
		n = len(project.Dataset.Rows)
	}
	vals := make([]string, n)
	for i := range vals {
		vals[i] = "generated " + column
	}
	return vals, nil
}

func (m *Mock) GenerateRows(ctx context.Context, project *types.Project, count int) ([]map[string]string, error) {
	if err := m.record("GenerateRows"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Rows, nil
}

func (m *Mock) GenerateAssertions(ctx context.Context, project *types.Project) ([]types.Assertion, error) {
	if err := m.record("GenerateAssertions"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Assertions, nil
}

func (m *Mock) AnalyzeResults(ctx context.Context, results []byte) (string, error) {
	if err := m.record("AnalyzeResults"); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Analysis, nil
}

// GetCalls returns a copy of the method call log.
func (m *Mock) GetCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}
