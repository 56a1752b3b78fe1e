package cascade

import (
	"context"
	"fmt"
)

// LoadRequest identifies one option fetch: the level whose options are wanted
// and the parent selection key the request was issued for. ParentIDs carries
// the individual parent ids so loaders can fan out per parent; ParentKey is
// the canonical serialisation used by the stale-response guard.
type LoadRequest struct {
	Level     int
	LevelName string
	ParentKey string
	ParentIDs []string
}

// Loader fetches the child options for a level given its parent selection.
// Implementations must be safe for concurrent use: the chain may have several
// requests in flight for different parent keys at once. A nil error with an
// empty slice is the valid "no options" outcome, distinct from a failure.
type Loader interface {
	LoadOptions(ctx context.Context, req LoadRequest) ([]Option, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, req LoadRequest) ([]Option, error)

// LoadOptions implements Loader.
func (f LoaderFunc) LoadOptions(ctx context.Context, req LoadRequest) ([]Option, error) {
	if f == nil {
		return nil, fmt.Errorf("cascade: loader func is nil")
	}
	return f(ctx, req)
}

// StaticLoader serves options from a preloaded list, filtered by parent
// membership. This mirrors forms that fetch the full child catalogue once and
// narrow it client-side as parents are toggled.
type StaticLoader struct {
	options map[string][]Option
}

// NewStaticLoader constructs a loader from per-level option catalogues keyed
// by level name. Each option's ParentKey identifies the parent it belongs to;
// options with an empty ParentKey are valid for any parent (used by root
// levels).
func NewStaticLoader(catalogues map[string][]Option) *StaticLoader {
	copied := make(map[string][]Option, len(catalogues))
	for name, options := range catalogues {
		list := make([]Option, len(options))
		for i, opt := range options {
			list[i] = opt.clone()
		}
		copied[name] = list
	}
	return &StaticLoader{options: copied}
}

// LoadOptions returns the catalogue entries whose ParentKey matches one of the
// requested parents, preserving catalogue order.
func (l *StaticLoader) LoadOptions(ctx context.Context, req LoadRequest) ([]Option, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	catalogue, ok := l.options[req.LevelName]
	if !ok {
		return nil, nil
	}
	if len(req.ParentIDs) == 0 {
		out := make([]Option, len(catalogue))
		copy(out, catalogue)
		return out, nil
	}
	wanted := make(map[string]struct{}, len(req.ParentIDs))
	for _, id := range req.ParentIDs {
		wanted[id] = struct{}{}
	}
	var out []Option
	for _, opt := range catalogue {
		if opt.ParentKey == "" {
			out = append(out, opt)
			continue
		}
		if _, ok := wanted[opt.ParentKey]; ok {
			out = append(out, opt)
		}
	}
	return out, nil
}
