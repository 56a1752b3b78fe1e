// Package openapi renders a chain descriptor into an OpenAPI 3 document
// describing the option endpoints a frontend would call: one GET per level,
// parameterised by the parent selection, responding with the standard
// {success,data,message} envelope.
package openapi

import (
	"fmt"

	cascade "github.com/goliatone/go-cascade"
)

// Generate builds an OpenAPI document for the chain described by desc.
func Generate(desc cascade.Descriptor, opts ...GeneratorOption) (map[string]any, error) {
	if len(desc.Levels) == 0 {
		return nil, fmt.Errorf("openapi: descriptor has no levels")
	}
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	paths := map[string]any{}
	for i, level := range desc.Levels {
		path := fmt.Sprintf("%s/%s", cfg.basePath, level.Name)
		paths[path] = map[string]any{
			"get": levelOperation(cfg, level, i > 0),
		}
	}

	return map[string]any{
		"openapi": cfg.openAPIVersion,
		"info":    infoBlock(cfg),
		"paths":   paths,
		"components": map[string]any{
			"schemas": map[string]any{
				"Option":   optionSchema(),
				"Envelope": envelopeSchema(),
			},
		},
	}, nil
}

func infoBlock(cfg generatorConfig) map[string]any {
	info := map[string]any{
		"title":   cfg.info.Title,
		"version": cfg.info.Version,
	}
	if cfg.info.Description != "" {
		info["description"] = cfg.info.Description
	}
	return info
}

func levelOperation(cfg generatorConfig, level cascade.LevelDescriptor, hasParent bool) map[string]any {
	summary := fmt.Sprintf("List %s options", level.Name)
	if level.Label != "" {
		summary = fmt.Sprintf("List %s options", level.Label)
	}

	operation := map[string]any{
		"operationId": fmt.Sprintf("list-%s-options", level.Name),
		"summary":     summary,
		"responses": map[string]any{
			"200": map[string]any{
				"description": "Option envelope",
				"content": map[string]any{
					cfg.contentType: map[string]any{
						"schema": map[string]any{
							"$ref": "#/components/schemas/Envelope",
						},
					},
				},
			},
		},
	}

	var parameters []any
	if hasParent {
		parameters = append(parameters, map[string]any{
			"name":        "parent",
			"in":          "query",
			"required":    true,
			"description": "Selected parent id; repeat for multi-parent unions.",
			"schema":      map[string]any{"type": "string"},
		})
	}
	if level.Param != "" {
		parameters = append(parameters, map[string]any{
			"name":        level.Param,
			"in":          "query",
			"required":    false,
			"description": "Deep-link pre-selection for this level.",
			"schema":      map[string]any{"type": "string"},
		})
	}
	if len(parameters) > 0 {
		operation["parameters"] = parameters
	}
	return operation
}

func optionSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"id"},
		"properties": map[string]any{
			"id":         map[string]any{"type": "string"},
			"label":      map[string]any{"type": "string"},
			"parent_key": map[string]any{"type": "string"},
			"metadata":   map[string]any{"type": "object", "additionalProperties": true},
		},
	}
}

func envelopeSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"success"},
		"properties": map[string]any{
			"success": map[string]any{"type": "boolean"},
			"message": map[string]any{"type": "string"},
			"data": map[string]any{
				"type":  "array",
				"items": map[string]any{"$ref": "#/components/schemas/Option"},
			},
		},
	}
}
