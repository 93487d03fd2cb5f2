// Package validate gates evaluation runs: a single ordered pass over the
// project that stops at the first failure. Error strings carry a section
// keyword (provider, prompt, dataset, variable, assertion) the shell uses
// to route the user to the offending tab — keep those keywords stable.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/promptdeck/engine/internal/dataset"
	"github.com/promptdeck/engine/internal/defaults"
	"github.com/promptdeck/engine/pkg/types"
)

// MaxProjectNameLength bounds project names.
const MaxProjectNameLength = 100

var providerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+:\S+$`)

// Result is the validator verdict. Error is empty when Valid.
type Result struct {
	Valid bool
	Error string
}

func fail(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Project validates the whole project before a run. Checks run in order and
// the first failure is returned.
func Project(p *types.Project) Result {
	if p.Name == "" {
		return fail("project name is required")
	}
	if len(p.Name) > MaxProjectNameLength {
		return fail("project name exceeds %d characters", MaxProjectNameLength)
	}

	if len(p.Providers) == 0 {
		return fail("at least one provider is required")
	}
	for _, prov := range p.Providers {
		if !providerIDRegex.MatchString(prov.ID) {
			return fail("provider %q is not a valid provider:model identifier", prov.ID)
		}
	}

	if len(p.Prompts) == 0 {
		return fail("at least one prompt is required")
	}
	if len(p.Prompts) > 1 {
		return fail("only one prompt is supported per project")
	}
	usesVariables := false
	for _, pr := range p.Prompts {
		if pr.Text == "" {
			return fail("prompt text is empty")
		}
		vars := defaults.TemplateVars([]types.Prompt{pr})
		if len(vars) == 0 {
			return fail("prompt must reference at least one {{variable}}")
		}
		usesVariables = true
	}

	if usesVariables {
		if p.Dataset == nil || len(p.Dataset.Rows) == 0 {
			return fail("dataset needs at least one row to fill prompt variables")
		}
	}

	for _, a := range p.Assertions {
		switch {
		case a.Type == types.TypeContextRelevance:
			queryCol := a.QueryColumn
			if queryCol == "" {
				queryCol = dataset.QueryColumn
			}
			contextCol := a.ContextColumn
			if contextCol == "" {
				contextCol = dataset.ContextColumn
			}
			for _, col := range []string{queryCol, contextCol} {
				if !dataset.ColumnExists(p.Dataset, col) {
					return fail("context-relevance assertion needs dataset column %q", col)
				}
			}
			if a.Provider == "" {
				return fail("assertion %s needs a grading model", a.Type)
			}

		case requiresProvider(a.Type):
			if a.Provider == "" {
				return fail("assertion %s needs a grading model", a.Type)
			}
		}
	}

	return Result{Valid: true}
}

// sectionOrder is the keyword scan order for Section. dataset precedes
// variable so messages naming both route to the dataset tab.
var sectionOrder = []string{"provider", "dataset", "variable", "prompt", "assertion", "name"}

// Section extracts the routing keyword from a validation error message.
// Empty when no keyword matches.
func Section(message string) string {
	for _, keyword := range sectionOrder {
		if strings.Contains(message, keyword) {
			return keyword
		}
	}
	return ""
}

// requiresProvider reports whether the assertion type is graded by an LLM
// and therefore needs a provider id.
func requiresProvider(assertionType string) bool {
	if types.IsSecurityType(assertionType) {
		return true
	}
	switch assertionType {
	case types.TypeLLMRubric, types.TypeFactuality, types.TypeAnswerRelevance:
		return true
	}
	return false
}
