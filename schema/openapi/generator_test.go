package openapi

import (
	"testing"

	cascade "github.com/goliatone/go-cascade"
)

func testDescriptor() cascade.Descriptor {
	return cascade.Descriptor{
		Levels: []cascade.LevelDescriptor{
			{Name: "country", Label: "Country", Mode: "single", Position: 0},
			{Name: "facility", Label: "Facility", Mode: "single", Param: "facility", Position: 1},
		},
	}
}

func TestGenerateDocumentShape(t *testing.T) {
	doc, err := Generate(testDescriptor())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if doc["openapi"] != "3.0.3" {
		t.Fatalf("expected default openapi version, got %v", doc["openapi"])
	}

	paths, ok := doc["paths"].(map[string]any)
	if !ok {
		t.Fatalf("expected paths map, got %T", doc["paths"])
	}
	if _, exists := paths["/options/country"]; !exists {
		t.Fatalf("expected country path, got %v", paths)
	}
	facility, exists := paths["/options/facility"].(map[string]any)
	if !exists {
		t.Fatalf("expected facility path, got %v", paths)
	}

	operation := facility["get"].(map[string]any)
	parameters, ok := operation["parameters"].([]any)
	if !ok || len(parameters) != 2 {
		t.Fatalf("expected parent and deep-link parameters, got %v", operation["parameters"])
	}
	parent := parameters[0].(map[string]any)
	if parent["name"] != "parent" || parent["required"] != true {
		t.Fatalf("expected required parent parameter, got %v", parent)
	}
	deeplink := parameters[1].(map[string]any)
	if deeplink["name"] != "facility" {
		t.Fatalf("expected deep-link parameter, got %v", deeplink)
	}
}

func TestGenerateRootLevelHasNoParentParameter(t *testing.T) {
	doc, err := Generate(testDescriptor())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	paths := doc["paths"].(map[string]any)
	country := paths["/options/country"].(map[string]any)
	operation := country["get"].(map[string]any)
	if _, exists := operation["parameters"]; exists {
		t.Fatalf("expected no parameters on root level, got %v", operation["parameters"])
	}
}

func TestGenerateOptions(t *testing.T) {
	doc, err := Generate(testDescriptor(),
		WithOpenAPIVersion("3.1.0"),
		WithInfo("Storage Quote API", "2.0.0", "Dependent selection endpoints"),
		WithBasePath("api/selects"),
	)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if doc["openapi"] != "3.1.0" {
		t.Fatalf("expected overridden version, got %v", doc["openapi"])
	}
	info := doc["info"].(map[string]any)
	if info["title"] != "Storage Quote API" || info["description"] != "Dependent selection endpoints" {
		t.Fatalf("unexpected info block: %v", info)
	}
	paths := doc["paths"].(map[string]any)
	if _, exists := paths["/api/selects/country"]; !exists {
		t.Fatalf("expected rebased path, got %v", paths)
	}
}

func TestGenerateRejectsEmptyDescriptor(t *testing.T) {
	if _, err := Generate(cascade.Descriptor{}); err == nil {
		t.Fatalf("expected error for empty descriptor")
	}
}
