// Package dataset resolves the dataset requirements assertion types impose:
// which columns must exist, when rows must be seeded, and how missing
// columns are generated.
package dataset

import (
	"strings"

	"github.com/promptdeck/engine/pkg/types"
)

const (
	// DefaultExpectedColumn is generated for factuality assertions when no
	// expected-prefixed column exists.
	DefaultExpectedColumn = "expected_output"

	// QueryColumn and ContextColumn are required by context-relevance.
	QueryColumn   = "query"
	ContextColumn = "context"

	expectedPrefix = "expected"
)

// Columns returns the dataset's column names: the explicit Headers when
// non-empty, otherwise the key set of the first row. This precedence is the
// single column-presence rule used everywhere column existence is tested.
func Columns(ds *types.Dataset) []string {
	if ds == nil {
		return nil
	}
	if len(ds.Headers) > 0 {
		return ds.Headers
	}
	if len(ds.Rows) == 0 {
		return nil
	}
	cols := make([]string, 0, len(ds.Rows[0]))
	for k := range ds.Rows[0] {
		cols = append(cols, k)
	}
	return cols
}

// ColumnExists reports whether the named column is present in the dataset.
func ColumnExists(ds *types.Dataset, name string) bool {
	for _, c := range Columns(ds) {
		if c == name {
			return true
		}
	}
	return false
}

// ExpectedColumn returns the first column whose name case-insensitively
// starts with "expected", for factuality-family assertions.
func ExpectedColumn(ds *types.Dataset) (string, bool) {
	for _, c := range Columns(ds) {
		if strings.HasPrefix(strings.ToLower(c), expectedPrefix) {
			return c, true
		}
	}
	return "", false
}
