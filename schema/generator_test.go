package schema

import (
	"reflect"
	"testing"
	"time"

	rdata "github.com/goliatone/go-rendererdata"
)

func TestForTypeDerivesFromDefaults(t *testing.T) {
	info := rdata.TypeInfo{
		Name:        "ScreenSpaceAmbientOcclusion",
		Category:    rdata.CategoryExperimental,
		Description: "SSAO pass",
		Defaults: map[string]any{
			"intensity":  3.0,
			"samples":    4,
			"downsample": true,
			"source":     "DepthNormals",
			"layers":     []any{"Default"},
			"blur":       map[string]any{"radius": 1.5},
		},
	}

	doc, err := ForType(info)
	if err != nil {
		t.Fatalf("for type: %v", err)
	}
	if doc["$schema"] != Draft {
		t.Fatalf("expected draft %q, got %v", Draft, doc["$schema"])
	}
	if doc["title"] != "Screen Space Ambient Occlusion (Experimental)" {
		t.Fatalf("unexpected title %v", doc["title"])
	}
	if doc["description"] != "SSAO pass" {
		t.Fatalf("unexpected description %v", doc["description"])
	}

	properties := doc["properties"].(map[string]any)
	want := map[string]string{
		"intensity":  "number",
		"samples":    "integer",
		"downsample": "boolean",
		"source":     "string",
		"layers":     "array",
		"blur":       "object",
	}
	for name, typ := range want {
		property, ok := properties[name].(map[string]any)
		if !ok {
			t.Fatalf("missing property %s", name)
		}
		if property["type"] != typ {
			t.Fatalf("%s: expected type %s, got %v", name, typ, property["type"])
		}
	}
	if got := properties["samples"].(map[string]any)["default"]; got != 4 {
		t.Fatalf("expected samples default 4, got %v", got)
	}
	items := properties["layers"].(map[string]any)["items"].(map[string]any)
	if items["type"] != "string" {
		t.Fatalf("expected string items, got %v", items)
	}
}

func TestForTypeKeepsDeclaredSchema(t *testing.T) {
	declared := map[string]any{
		"type":     "object",
		"required": []any{"pass"},
	}
	doc, err := ForType(rdata.TypeInfo{Name: "Blit", Schema: declared})
	if err != nil {
		t.Fatalf("for type: %v", err)
	}
	if !reflect.DeepEqual(doc, declared) {
		t.Fatalf("expected declared schema, got %#v", doc)
	}
	doc["type"] = "array"
	if declared["type"] != "object" {
		t.Fatalf("expected returned schema to be detached")
	}
}

func TestForTypeWithoutDefaults(t *testing.T) {
	doc, err := ForType(rdata.TypeInfo{Name: "Blit"})
	if err != nil {
		t.Fatalf("for type: %v", err)
	}
	if doc["type"] != "object" {
		t.Fatalf("expected object schema, got %v", doc["type"])
	}
	if props, ok := doc["properties"].(map[string]any); !ok || len(props) != 0 {
		t.Fatalf("expected empty properties, got %v", doc["properties"])
	}
}

func TestGenerateStructsAndUnsupported(t *testing.T) {
	type pass struct {
		Event   string    `json:"event"`
		Skipped string    `json:"-"`
		Since   time.Time `json:"since"`
		Weight  *float32
		hidden  int
	}
	doc, err := Generate(pass{Event: "AfterRendering"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	properties := doc["properties"].(map[string]any)
	if _, ok := properties["Skipped"]; ok {
		t.Fatalf("expected json:\"-\" field to be skipped")
	}
	if _, ok := properties["hidden"]; ok {
		t.Fatalf("expected unexported field to be skipped")
	}
	if properties["since"].(map[string]any)["format"] != "date-time" {
		t.Fatalf("expected date-time format, got %v", properties["since"])
	}
	if properties["Weight"].(map[string]any)["type"] != "null" {
		t.Fatalf("expected nil pointer to be null, got %v", properties["Weight"])
	}

	if _, err := Generate(map[string]any{"fn": func() {}}); err == nil {
		t.Fatalf("expected func values to be rejected")
	}
	if _, err := Generate(map[int]string{1: "a"}); err == nil {
		t.Fatalf("expected non-string map keys to be rejected")
	}
}

func TestGenerateNamedScalarsAndTypedLists(t *testing.T) {
	type quality string
	doc, err := Generate(map[string]any{
		"quality": quality("high"),
		"weights": []float32{0.5, 0.25},
		"empty":   []any{},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	properties := doc["properties"].(map[string]any)
	if properties["quality"].(map[string]any)["type"] != "string" {
		t.Fatalf("expected named string to map to string, got %v", properties["quality"])
	}
	weights := properties["weights"].(map[string]any)
	if weights["type"] != "array" || weights["items"].(map[string]any)["type"] != "number" {
		t.Fatalf("unexpected typed list schema %v", weights)
	}
	if items := properties["empty"].(map[string]any)["items"].(map[string]any); len(items) != 0 {
		t.Fatalf("expected unconstrained items for empty list, got %v", items)
	}
}
