// Package duplicate decides whether two assertions are semantically
// redundant, and filters AI-suggested batches against existing assertions.
package duplicate

import (
	"strings"

	"github.com/segmentio/encoding/json"

	"github.com/promptdeck/engine/pkg/types"
)

// noParamTypes are types whose instances carry no distinguishing
// configuration: same type alone means duplicate.
var noParamTypes = map[string]bool{
	types.TypeContainsJSON: true,
}

var whitespaceCollapser = strings.Fields

// IsDuplicate reports whether a and b are semantically redundant. Rules are
// applied in precedence order; the first matching rule decides. The final
// same-type fallback is deliberately conservative — false positives are
// preferred over assertion bloat.
func IsDuplicate(a, b types.Assertion) bool {
	if a.Type != b.Type {
		return false
	}

	if a.Value != nil && b.Value != nil {
		if a.Value.IsObject() && b.Value.IsObject() {
			return canonicalJSON(a.Value.Object) == canonicalJSON(b.Value.Object)
		}
		return a.Value.Equal(b.Value)
	}

	// Latency and cost carry no meaningful value; an undefined threshold on
	// either side lands in the same bucket as any other.
	if a.Type == types.TypeLatency || a.Type == types.TypeCost {
		if a.Threshold == nil || b.Threshold == nil {
			return true
		}
		return *a.Threshold == *b.Threshold
	}

	if noParamTypes[a.Type] {
		return true
	}

	if a.Rubric != "" && b.Rubric != "" {
		return normalizeRubric(a.Rubric) == normalizeRubric(b.Rubric)
	}

	if a.Threshold != nil && b.Threshold != nil {
		return *a.Threshold == *b.Threshold
	}

	return true
}

// FindConflict returns the first existing assertion a candidate duplicates,
// for user-facing rejection messages.
func FindConflict(candidate types.Assertion, existing []types.Assertion) (types.Assertion, bool) {
	for _, e := range existing {
		if IsDuplicate(candidate, e) {
			return e, true
		}
	}
	return types.Assertion{}, false
}

// FilterBatch merges an AI-generated batch in two passes: first deduplicate
// within the batch keeping the first occurrence, then drop anything that
// duplicates an existing assertion. Returns the survivors in input order.
func FilterBatch(batch, existing []types.Assertion) []types.Assertion {
	deduped := make([]types.Assertion, 0, len(batch))
	for _, candidate := range batch {
		dup := false
		for _, kept := range deduped {
			if IsDuplicate(candidate, kept) {
				dup = true
				break
			}
		}
		if !dup {
			deduped = append(deduped, candidate)
		}
	}

	merged := make([]types.Assertion, 0, len(deduped))
	for _, candidate := range deduped {
		if _, conflict := FindConflict(candidate, existing); !conflict {
			merged = append(merged, candidate)
		}
	}
	return merged
}

// normalizeRubric collapses whitespace runs to single spaces, trims, and
// lowercases, so cosmetic edits don't defeat duplicate detection.
func normalizeRubric(r string) string {
	return strings.ToLower(strings.Join(whitespaceCollapser(r), " "))
}

// canonicalJSON serializes an object with sorted keys for deep equality.
func canonicalJSON(obj map[string]any) string {
	raw, err := json.Marshal(obj)
	if err != nil {
		return ""
	}
	return string(raw)
}
