package cascade

import (
	"net/http"
	"time"

	"github.com/goliatone/go-cascade/pkg/activity"
)

// Option is a single selectable item at one level of a chain. IDs are always
// strings; loaders normalise numeric identifiers before options reach the
// engine.
type Option struct {
	ID        string         `json:"id"`
	Label     string         `json:"label"`
	ParentKey string         `json:"parent_key,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (o Option) clone() Option {
	out := o
	out.Metadata = copyMetadata(o.Metadata)
	return out
}

// OptionSet is the current valid option list for a level, tagged with the
// parent key it was fetched for. Sets are replaced wholesale, never merged.
type OptionSet struct {
	Level     int      `json:"level"`
	ParentKey string   `json:"parent_key"`
	Options   []Option `json:"options"`
}

// IDs returns the option identifiers in display order.
func (s OptionSet) IDs() []string {
	if len(s.Options) == 0 {
		return nil
	}
	ids := make([]string, len(s.Options))
	for i, opt := range s.Options {
		ids[i] = opt.ID
	}
	return ids
}

// Contains reports whether id is a member of the set.
func (s OptionSet) Contains(id string) bool {
	for _, opt := range s.Options {
		if opt.ID == id {
			return true
		}
	}
	return false
}

// Len returns the number of options in the set.
func (s OptionSet) Len() int { return len(s.Options) }

func (s OptionSet) clone() OptionSet {
	out := OptionSet{Level: s.Level, ParentKey: s.ParentKey}
	if len(s.Options) == 0 {
		return out
	}
	out.Options = make([]Option, len(s.Options))
	for i, opt := range s.Options {
		out.Options[i] = opt.clone()
	}
	return out
}

// SelectMode controls whether a level holds one selected id or a set of them.
type SelectMode int

const (
	// SingleSelect levels keep at most one selected id (quote form dropdowns).
	SingleSelect SelectMode = iota
	// MultiSelect levels keep an id set plus a derived select-all flag
	// (staff country/facility assignment).
	MultiSelect
)

func (m SelectMode) String() string {
	switch m {
	case SingleSelect:
		return "single"
	case MultiSelect:
		return "multi"
	default:
		return "unknown"
	}
}

// ParseSelectMode converts a string representation into the corresponding
// SelectMode. Unrecognised values default to SingleSelect.
func ParseSelectMode(value string) SelectMode {
	switch value {
	case "multi", "MULTI", "multiple":
		return MultiSelect
	default:
		return SingleSelect
	}
}

// LevelState is the reconciler state machine position for one level.
type LevelState int

const (
	// StateIdle means no parent is selected; the level is disabled and empty.
	StateIdle LevelState = iota
	// StateLoading means a fetch is in flight for the level.
	StateLoading
	// StateReady means options are populated (possibly an empty, valid set).
	StateReady
	// StateError means the last fetch failed and the level is empty.
	StateError
)

func (s LevelState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot captures the selection state of a chain so it can be persisted and
// restored later. Keys are level names.
type Snapshot struct {
	Selections map[string][]string `json:"selections"`
	SelectAll  map[string]bool     `json:"select_all,omitempty"`
}

// RuleContext carries the inputs available to a filter rule evaluation. For
// option filters Snapshot holds the option binding (id, label, parent_key plus
// option metadata keys).
type RuleContext struct {
	Snapshot  any
	Now       *time.Time
	Args      map[string]any
	Metadata  map[string]any
	Level     Level
	LevelName string
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) withDefaultLevel(level Level) RuleContext {
	if ctx.Level.isZero() && !level.isZero() {
		ctx.Level = level.clone()
	}
	if ctx.LevelName == "" && ctx.Level.Name != "" {
		ctx.LevelName = ctx.Level.Name
	}
	return ctx
}

func (ctx RuleContext) levelLabel() string {
	if ctx.Level.Name != "" {
		return ctx.Level.Name
	}
	if ctx.LevelName != "" {
		return ctx.LevelName
	}
	return "unknown"
}

func (ctx RuleContext) levelBinding() map[string]any {
	if binding := levelToBinding(ctx.Level); binding != nil {
		return binding
	}
	if ctx.LevelName == "" {
		return nil
	}
	return map[string]any{"name": ctx.LevelName}
}

func levelToBinding(level Level) map[string]any {
	if level.isZero() {
		return nil
	}
	binding := map[string]any{
		"name":  level.Name,
		"label": level.Label,
		"mode":  level.Mode.String(),
	}
	if len(level.Metadata) > 0 {
		binding["metadata"] = copyMetadata(level.Metadata)
	}
	return binding
}

// Evaluator executes filter rule expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// ChainOption configures a chain at construction time.
type ChainOption func(*chainConfig)

type chainConfig struct {
	loader        Loader
	evaluator     Evaluator
	programCache  ProgramCache
	functions     *FunctionRegistry
	logger        EventLogger
	activityHooks activity.Hooks
	traceSink     func(Trace)
	httpClient    *http.Client
	now           func() time.Time
}

func applyChainOptions(opts []ChainOption) chainConfig {
	cfg := chainConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithLoader configures the async option loader used by the chain.
func WithLoader(loader Loader) ChainOption {
	return func(cfg *chainConfig) {
		cfg.loader = loader
	}
}

// WithEvaluator configures the evaluator used for level filter rules.
func WithEvaluator(e Evaluator) ChainOption {
	return func(cfg *chainConfig) {
		cfg.evaluator = e
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) ChainOption {
	return func(cfg *chainConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithTraceSink registers fn to receive a Trace for every reconcile pass.
func WithTraceSink(fn func(Trace)) ChainOption {
	return func(cfg *chainConfig) {
		cfg.traceSink = fn
	}
}

func copyMetadata(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
