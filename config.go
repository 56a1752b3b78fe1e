package cascade

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config declares a chain in YAML: an ordered list of levels plus the REST
// endpoints their options are fetched from.
//
//	base_url: https://api.example.com/api
//	levels:
//	  - name: country
//	    label: Country
//	    endpoint: countries
//	  - name: facility
//	    label: Facility
//	    mode: multi
//	    param: facility
//	    endpoint: countries/{parent}/facilities
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Levels  []LevelConfig `yaml:"levels"`
}

// LevelConfig declares one level of a configured chain.
type LevelConfig struct {
	Name     string         `yaml:"name"`
	Label    string         `yaml:"label"`
	Mode     string         `yaml:"mode"`
	Param    string         `yaml:"param"`
	Endpoint string         `yaml:"endpoint"`
	Filter   string         `yaml:"filter"`
	Metadata map[string]any `yaml:"metadata"`
}

// ParseConfig decodes a YAML chain declaration.
func ParseConfig(payload []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(payload, &cfg); err != nil {
		return Config{}, fmt.Errorf("cascade: parse config: %w", err)
	}
	if len(cfg.Levels) == 0 {
		return Config{}, fmt.Errorf("cascade: parse config: %w", ErrNoLevels)
	}
	return cfg, nil
}

// LevelDefs converts the configured levels into level definitions.
func (cfg Config) LevelDefs() []Level {
	levels := make([]Level, 0, len(cfg.Levels))
	for _, lc := range cfg.Levels {
		opts := []LevelOption{
			WithLevelLabel(lc.Label),
			WithLevelParam(lc.Param),
		}
		if lc.Filter != "" {
			opts = append(opts, WithFilterRule(lc.Filter))
		}
		if len(lc.Metadata) > 0 {
			opts = append(opts, WithLevelMetadata(lc.Metadata))
		}
		levels = append(levels, NewLevel(lc.Name, ParseSelectMode(lc.Mode), opts...))
	}
	return levels
}

// Endpoints returns the per-level endpoint templates keyed by level name.
func (cfg Config) Endpoints() map[string]string {
	endpoints := map[string]string{}
	for _, lc := range cfg.Levels {
		if lc.Endpoint != "" {
			endpoints[lc.Name] = lc.Endpoint
		}
	}
	return endpoints
}

// NewFromConfig builds a chain from a YAML declaration. When the options do
// not supply a loader, an HTTPLoader is assembled from the configured base
// URL and endpoints, honouring WithHTTPClient.
func NewFromConfig(payload []byte, opts ...ChainOption) (*Chain, error) {
	cfg, err := ParseConfig(payload)
	if err != nil {
		return nil, err
	}

	resolved := applyChainOptions(opts)
	if resolved.loader == nil {
		var loaderOpts []HTTPLoaderOption
		if resolved.httpClient != nil {
			loaderOpts = append(loaderOpts, HTTPWithClient(resolved.httpClient))
		}
		loader := NewHTTPLoader(cfg.BaseURL, cfg.Endpoints(), loaderOpts...)
		opts = append(opts, WithLoader(loader))
	}

	return New(cfg.LevelDefs(), opts...)
}
