package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Assertion categories. Every descriptor in the registry belongs to exactly
// one of these; AssertionCategories is the authoritative enumeration.
const (
	CategoryText        = "text"
	CategorySemantic    = "semantic"
	CategoryStructured  = "structured"
	CategoryPerformance = "performance"
	CategoryCustom      = "custom"
	CategorySecurity    = "security"
)

// AssertionCategories enumerates the valid category keys in display order.
var AssertionCategories = []string{
	CategoryText,
	CategorySemantic,
	CategoryStructured,
	CategoryPerformance,
	CategoryCustom,
	CategorySecurity,
}

// Assertion type identifiers.
const (
	TypeEquals     = "equals"
	TypeContains   = "contains"
	TypeIContains  = "icontains"
	TypeStartsWith = "starts-with"
	TypeRegex      = "regex"

	TypeLLMRubric        = "llm-rubric"
	TypeFactuality       = "factuality"
	TypeAnswerRelevance  = "answer-relevance"
	TypeContextRelevance = "context-relevance"
	TypeSimilar          = "similar"

	TypeIsJSON       = "is-json"
	TypeContainsJSON = "contains-json"

	TypeCost    = "cost"
	TypeLatency = "latency"

	TypeJavascript = "javascript"
	TypePython     = "python"

	TypeSecurityPromptInjection  = "security-prompt-injection"
	TypeSecurityXSS              = "security-xss"
	TypeSecuritySQLInjection     = "security-sql-injection"
	TypeSecurityPathTraversal    = "security-path-traversal"
	TypeSecurityUnicodeEncoding  = "security-unicode-encoding"
	TypeSecurityPromptDisclosure = "security-prompt-disclosure"
	TypeSecurityPIILeakage       = "security-pii-leakage"
	TypeSecurityDoS              = "security-dos"
)

// Field kinds for FieldDescriptor.
const (
	FieldText     = "text"
	FieldNumber   = "number"
	FieldTextarea = "textarea"
	FieldCode     = "code"
	FieldSelect   = "select"
	FieldSlider   = "slider"
)

// FieldDescriptor declares one configurable field of an assertion type.
type FieldDescriptor struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Required    bool     `json:"required"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Help        string   `json:"help,omitempty"`
}

// AssertionTypeDescriptor is the static catalog entry for one assertion kind.
type AssertionTypeDescriptor struct {
	ID       string            `json:"id"`
	Label    string            `json:"label"`
	Category string            `json:"category"`
	Fields   []FieldDescriptor `json:"fields"`
}

// AssertionValue is the tagged value of an assertion: a string literal, a
// number, or a structured object (e.g. a JSON schema). Exactly one arm is
// set on a well-formed value.
type AssertionValue struct {
	Text   *string
	Number *float64
	Object map[string]any
}

// TextValue wraps a string literal as an AssertionValue.
func TextValue(s string) *AssertionValue { return &AssertionValue{Text: &s} }

// NumberValue wraps a number as an AssertionValue.
func NumberValue(n float64) *AssertionValue { return &AssertionValue{Number: &n} }

// ObjectValue wraps a structured object as an AssertionValue.
func ObjectValue(obj map[string]any) *AssertionValue { return &AssertionValue{Object: obj} }

// IsObject reports whether the value holds a structured object.
func (v *AssertionValue) IsObject() bool { return v != nil && v.Object != nil }

// Equal reports primitive equality between two values. Structured objects
// always compare unequal here; callers needing deep equality compare
// canonical serializations instead.
func (v *AssertionValue) Equal(o *AssertionValue) bool {
	if v == nil || o == nil {
		return v == o
	}
	switch {
	case v.Text != nil && o.Text != nil:
		return *v.Text == *o.Text
	case v.Number != nil && o.Number != nil:
		return *v.Number == *o.Number
	}
	return false
}

// MarshalJSON encodes whichever arm is set.
func (v AssertionValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.Text != nil:
		return json.Marshal(*v.Text)
	case v.Number != nil:
		return json.Marshal(*v.Number)
	case v.Object != nil:
		return json.Marshal(v.Object)
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes a string, number, or object into the matching arm.
// Any other JSON shape is a configuration error.
func (v *AssertionValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		v.Text = &s
		return nil
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return err
		}
		v.Object = obj
		return nil
	}
	var n float64
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("assertion value must be a string, number, or object: %w", err)
	}
	v.Number = &n
	return nil
}

// Assertion is one configured pass/fail validator in a project.
type Assertion struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Value         *AssertionValue `json:"value,omitempty"`
	Rubric        string          `json:"rubric,omitempty"`
	Threshold     *float64        `json:"threshold,omitempty"`
	Provider      string          `json:"provider,omitempty"`
	QueryColumn   string          `json:"queryColumn,omitempty"`
	ContextColumn string          `json:"contextColumn,omitempty"`
	Weight        *float64        `json:"weight,omitempty"`
}

// IsSecurityType reports whether the type identifier names a security assertion.
func IsSecurityType(assertionType string) bool {
	return len(assertionType) > 9 && assertionType[:9] == "security-"
}
