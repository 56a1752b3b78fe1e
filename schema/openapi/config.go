package openapi

import "strings"

type generatorConfig struct {
	openAPIVersion string
	info           openapiInfo
	basePath       string
	contentType    string
}

type openapiInfo struct {
	Title       string
	Version     string
	Description string
}

func defaultGeneratorConfig() generatorConfig {
	return generatorConfig{
		openAPIVersion: "3.0.3",
		info: openapiInfo{
			Title:   "Chain Options API",
			Version: "1.0.0",
		},
		basePath:    "/options",
		contentType: "application/json",
	}
}

// GeneratorOption configures the OpenAPI generator behaviour.
type GeneratorOption func(*generatorConfig)

// WithOpenAPIVersion overrides the OpenAPI version string (default: 3.0.3).
func WithOpenAPIVersion(version string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if version == "" {
			return
		}
		cfg.openAPIVersion = version
	}
}

// WithInfo overrides the document info block.
func WithInfo(title, version, description string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if title != "" {
			cfg.info.Title = title
		}
		if version != "" {
			cfg.info.Version = version
		}
		cfg.info.Description = description
	}
}

// WithBasePath overrides the path prefix for level endpoints (default:
// /options).
func WithBasePath(path string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if path == "" {
			return
		}
		cfg.basePath = "/" + strings.Trim(path, "/")
	}
}

// WithContentType overrides the response media type (default:
// application/json).
func WithContentType(contentType string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if contentType == "" {
			return
		}
		cfg.contentType = contentType
	}
}
