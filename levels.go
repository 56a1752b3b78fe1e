package cascade

import (
	"errors"
	"fmt"
)

// Level describes one stage in a dependency chain (country, facility, unit
// type, unit size). Order of declaration fixes the dependency order: a level's
// options depend on the selection at the level immediately above it.
type Level struct {
	Name       string
	Label      string
	Mode       SelectMode
	Param      string
	FilterRule string
	Metadata   map[string]any
}

// LevelOption configures metadata on Level creation.
type LevelOption func(*levelConfig)

type levelConfig struct {
	label    string
	param    string
	filter   string
	metadata map[string]any
}

// WithLevelLabel sets a human-friendly label on the level.
func WithLevelLabel(label string) LevelOption {
	return func(cfg *levelConfig) {
		cfg.label = label
	}
}

// WithLevelParam sets the deep-link query parameter used to pre-select the
// level (e.g. "facility", "unitType", "size").
func WithLevelParam(param string) LevelOption {
	return func(cfg *levelConfig) {
		cfg.param = param
	}
}

// WithFilterRule attaches an expression evaluated against every fetched option
// for the level; options whose rule returns false are dropped before caching.
func WithFilterRule(expr string) LevelOption {
	return func(cfg *levelConfig) {
		cfg.filter = expr
	}
}

// WithLevelMetadata attaches arbitrary metadata to the level. The map is
// copied so the resulting Level remains immutable even if the caller mutates
// their reference.
func WithLevelMetadata(metadata map[string]any) LevelOption {
	return func(cfg *levelConfig) {
		if len(metadata) == 0 {
			return
		}
		cfg.metadata = copyMetadata(metadata)
	}
}

// NewLevel builds a Level with the supplied configuration. Validation is
// deferred to chain construction so callers can assemble levels before
// deciding order.
func NewLevel(name string, mode SelectMode, opts ...LevelOption) Level {
	cfg := levelConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return Level{
		Name:       name,
		Label:      cfg.label,
		Mode:       mode,
		Param:      cfg.param,
		FilterRule: cfg.filter,
		Metadata:   copyMetadata(cfg.metadata),
	}
}

// clone returns a copy of l, ensuring Metadata is detached from the original.
func (l Level) clone() Level {
	out := l
	out.Metadata = copyMetadata(l.Metadata)
	return out
}

func (l Level) isZero() bool {
	return l.Name == "" && l.Label == "" && l.Mode == SingleSelect &&
		l.Param == "" && l.FilterRule == "" && len(l.Metadata) == 0
}

var (
	// ErrLevelNameRequired indicates a missing level name.
	ErrLevelNameRequired = errors.New("cascade: level name must be provided")
	// ErrDuplicateLevelName indicates chain construction received multiple
	// levels with the same name.
	ErrDuplicateLevelName = errors.New("cascade: level names must be unique")
	// ErrNoLevels indicates chain construction received an empty level list.
	ErrNoLevels = errors.New("cascade: at least one level is required")
)

func validateLevels(levels []Level) ([]Level, error) {
	if len(levels) == 0 {
		return nil, ErrNoLevels
	}
	seen := make(map[string]struct{}, len(levels))
	copied := make([]Level, len(levels))
	for i, level := range levels {
		if level.Name == "" {
			return nil, ErrLevelNameRequired
		}
		if _, ok := seen[level.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLevelName, level.Name)
		}
		seen[level.Name] = struct{}{}
		copied[i] = level.clone()
	}
	return copied, nil
}
