package run

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/segmentio/encoding/json"

	"github.com/promptdeck/engine/pkg/types"
)

// semanticProject is the fingerprint input: every field that changes what a
// run would compute. ProjectOptions are cosmetic and deliberately excluded.
type semanticProject struct {
	Name       string              `json:"name"`
	Providers  []types.Provider    `json:"providers"`
	Prompts    []types.Prompt      `json:"prompts"`
	Dataset    *types.Dataset      `json:"dataset"`
	Assertions []semanticAssertion `json:"assertions"`
}

type semanticAssertion struct {
	Type  string                `json:"type"`
	Value *types.AssertionValue `json:"value"`
}

// Fingerprint derives a stable digest of the project's semantic
// configuration. Two projects with the same fingerprint would produce
// equivalent runs.
func Fingerprint(p *types.Project) string {
	sp := semanticProject{
		Name:      p.Name,
		Providers: p.Providers,
		Prompts:   p.Prompts,
		Dataset:   p.Dataset,
	}
	for _, a := range p.Assertions {
		sp.Assertions = append(sp.Assertions, semanticAssertion{Type: a.Type, Value: a.Value})
	}

	raw, err := json.Marshal(sp)
	if err != nil {
		// Marshal of these shapes cannot fail in practice; an empty
		// fingerprint just means "always stale", the safe direction.
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Invalidator clears displayed results when the semantic configuration
// drifts from the fingerprint recorded at the last successful run.
type Invalidator struct {
	mu          sync.Mutex
	fingerprint string
	displaying  bool
}

// Arm records the fingerprint of a freshly completed run and marks its
// result as displayed.
func (inv *Invalidator) Arm(fingerprint string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.fingerprint = fingerprint
	inv.displaying = true
}

// Reset forgets any armed fingerprint, e.g. when a new run starts.
func (inv *Invalidator) Reset() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.fingerprint = ""
	inv.displaying = false
}

// Displaying reports whether a result is currently shown.
func (inv *Invalidator) Displaying() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.displaying
}

// OnEdit re-evaluates the live project against the armed fingerprint.
// Returns true when a displayed result was cleared by this edit.
func (inv *Invalidator) OnEdit(p *types.Project) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if !inv.displaying {
		return false
	}
	if Fingerprint(p) == inv.fingerprint {
		return false
	}
	inv.displaying = false
	inv.fingerprint = ""
	return true
}
