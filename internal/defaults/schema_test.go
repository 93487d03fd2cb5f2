package defaults_test

import (
	"testing"

	"github.com/promptdeck/engine/internal/defaults"
	"github.com/promptdeck/engine/pkg/types"
)

func mine(t *testing.T, text string) map[string]any {
	t.Helper()
	schema, ok := defaults.MineSchema([]types.Prompt{{Text: text}})
	if !ok {
		t.Fatalf("MineSchema(%q) produced no schema", text)
	}
	return schema
}

func props(t *testing.T, schema map[string]any) map[string]any {
	t.Helper()
	p, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %v", schema)
	}
	return p
}

func TestMineSchema_ObjectLiteral(t *testing.T) {
	schema := mine(t, `Respond with JSON like {"category": "x", "tags": ["a","b"]}.`)

	required, _ := schema["required"].([]string)
	if len(required) != 2 || required[0] != "category" || required[1] != "tags" {
		t.Errorf("required = %v, want [category tags]", schema["required"])
	}

	p := props(t, schema)
	cat, _ := p["category"].(map[string]any)
	if cat["type"] != "string" {
		t.Errorf("category type = %v, want string", cat["type"])
	}
	if cat["minLength"] != 1 {
		t.Errorf("category minLength = %v, want 1 for non-empty example", cat["minLength"])
	}
	tags, _ := p["tags"].(map[string]any)
	if tags["type"] != "array" || tags["minItems"] != 1 {
		t.Errorf("tags schema = %v, want array with minItems 1", tags)
	}
}

func TestMineSchema_NestedObject(t *testing.T) {
	schema := mine(t, `Return {"user": {"name": "alice", "age": 30}, "ok": true}`)

	p := props(t, schema)
	user, _ := p["user"].(map[string]any)
	if user["type"] != "object" {
		t.Fatalf("user type = %v, want object", user["type"])
	}
	nestedReq, _ := user["required"].([]string)
	if len(nestedReq) != 2 || nestedReq[0] != "age" || nestedReq[1] != "name" {
		t.Errorf("nested required = %v, want [age name]", user["required"])
	}
	nested := props(t, user)
	if age, _ := nested["age"].(map[string]any); age["type"] != "number" {
		t.Errorf("age type = %v, want number", age["type"])
	}
	if ok, _ := p["ok"].(map[string]any); ok["type"] != "boolean" {
		t.Errorf("ok type = %v, want boolean", ok["type"])
	}
}

func TestMineSchema_SkipsTemplateBraces(t *testing.T) {
	// {{var}} tokens never parse as JSON; mining must step past them to
	// find the real literal.
	schema := mine(t, `Given {{question}}, answer with {"answer": "text"}`)
	p := props(t, schema)
	if _, ok := p["answer"]; !ok {
		t.Errorf("schema missed the literal after template braces: %v", schema)
	}
}

func TestMineSchema_FieldListFallback(t *testing.T) {
	schema := mine(t, "Return a JSON object with fields: name, age and email.")

	required, _ := schema["required"].([]string)
	if len(required) != 3 {
		t.Fatalf("required = %v, want 3 fields", schema["required"])
	}
	p := props(t, schema)
	for _, field := range []string{"name", "age", "email"} {
		fs, _ := p[field].(map[string]any)
		if fs["type"] != "string" {
			t.Errorf("fallback field %q type = %v, want string", field, fs["type"])
		}
	}
}

func TestMineSchema_NoJSONNosFields(t *testing.T) {
	if _, ok := defaults.MineSchema([]types.Prompt{{Text: "Just answer the question."}}); ok {
		t.Error("MineSchema produced a schema from plain prose")
	}
}

func TestMineSchema_MalformedJSONIgnored(t *testing.T) {
	// Broken literal first, valid one later.
	schema := mine(t, `bad {"oops": } then good {"status": "ok"}`)
	p := props(t, schema)
	if _, ok := p["status"]; !ok {
		t.Errorf("schema did not come from the valid literal: %v", schema)
	}
}

func TestGenerate_IsJSONAttachesMinedSchema(t *testing.T) {
	pc := defaults.ProjectContext{
		Prompts: []types.Prompt{{Text: `Output {"category": "x", "tags": ["a"]}`}},
	}
	a, ok := defaults.Generate(types.TypeIsJSON, pc)
	if !ok {
		t.Fatal("Generate(is-json) not ok")
	}
	if !a.Value.IsObject() {
		t.Fatalf("is-json value = %v, want mined schema object", a.Value)
	}
}

func TestGenerate_IsJSONWithoutSchemaStillValid(t *testing.T) {
	a, ok := defaults.Generate(types.TypeIsJSON, defaults.ProjectContext{
		Prompts: []types.Prompt{{Text: "no json here"}},
	})
	if !ok {
		t.Fatal("Generate(is-json) not ok")
	}
	if a.Value != nil {
		t.Errorf("is-json value = %v, want unconstrained (nil)", a.Value)
	}
}
