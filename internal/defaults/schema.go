package defaults

import (
	"bytes"
	"regexp"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/segmentio/encoding/json"

	"github.com/promptdeck/engine/pkg/types"
)

// fieldListRegex matches natural-language field enumerations such as
// "return JSON with fields: name, age, email" or "keys: a, b and c".
var fieldListRegex = regexp.MustCompile(`(?i)(?:fields?|keys?|properties)\s*[:\-]\s*([a-zA-Z0-9_]+(?:\s*(?:,|and)\s*[a-zA-Z0-9_]+)*)`)

var fieldSplitRegex = regexp.MustCompile(`\s*(?:,|\band\b)\s*`)

// MineSchema derives a JSON schema from the project's prompt texts. It first
// scans for brace-delimited JSON object literals and builds a schema from the
// first one that parses; failing that, it falls back to a natural-language
// field enumeration. Returns ok=false when neither heuristic produces a
// schema — the assertion is then simply unconstrained.
func MineSchema(prompts []types.Prompt) (map[string]any, bool) {
	var joined strings.Builder
	for _, p := range prompts {
		joined.WriteString(p.Text)
		joined.WriteByte('\n')
	}
	text := joined.String()

	for _, candidate := range braceCandidates(text) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
			continue
		}
		if len(obj) == 0 {
			continue
		}
		schema := schemaFromObject(obj)
		if !compiles(schema) {
			continue
		}
		return schema, true
	}

	if schema, ok := schemaFromFieldList(text); ok && compiles(schema) {
		return schema, true
	}
	return nil, false
}

// braceCandidates returns balanced brace-delimited substrings of text in
// order of appearance. Template braces ({{var}}) never parse as JSON, so no
// special casing is needed beyond the balance scan.
func braceCandidates(text string) []string {
	var out []string
	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(text); i++ {
			c := text[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					out = append(out, text[start:i+1])
					i = len(text)
				}
			}
		}
	}
	return out
}

// schemaFromObject derives `{required, properties}` from a parsed object
// literal. Nested objects are recursed; arrays require at least one item;
// string properties record whether the example was non-empty.
func schemaFromObject(obj map[string]any) map[string]any {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	props := make(map[string]any, len(obj))
	for _, k := range keys {
		props[k] = schemaForValue(obj[k])
	}
	return map[string]any{
		"type":       "object",
		"required":   keys,
		"properties": props,
	}
}

func schemaForValue(v any) map[string]any {
	switch val := v.(type) {
	case []any:
		return map[string]any{"type": "array", "minItems": 1}
	case map[string]any:
		nested := schemaFromObject(val)
		return nested
	case string:
		minLen := 0
		if val != "" {
			minLen = 1
		}
		return map[string]any{"type": "string", "minLength": minLen}
	case float64:
		return map[string]any{"type": "number"}
	case bool:
		return map[string]any{"type": "boolean"}
	default:
		return map[string]any{"type": "string", "minLength": 0}
	}
}

// schemaFromFieldList builds a flat all-string schema from a prose field
// enumeration.
func schemaFromFieldList(text string) (map[string]any, bool) {
	m := fieldListRegex.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	fields := fieldSplitRegex.Split(m[1], -1)

	var required []string
	props := make(map[string]any)
	for _, name := range fields {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		required = append(required, name)
		props[name] = map[string]any{"type": "string"}
	}
	if len(required) == 0 {
		return nil, false
	}
	return map[string]any{
		"type":       "object",
		"required":   required,
		"properties": props,
	}, true
}

// compiles checks that a mined schema is itself a valid JSON Schema. A
// schema the compiler rejects is discarded rather than attached to the
// assertion.
func compiles(schema map[string]any) bool {
	raw, err := json.Marshal(schema)
	if err != nil {
		return false
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return false
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("mined.json", doc); err != nil {
		return false
	}
	_, err = c.Compile("mined.json")
	return err == nil
}
