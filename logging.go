package cascade

import "time"

// ChainOp identifies the reconciler action an event describes.
type ChainOp string

const (
	// OpSelect records a selection change at a level.
	OpSelect ChainOp = "select"
	// OpClear records the cascading clear of a downstream level.
	OpClear ChainOp = "clear"
	// OpFetch records a fetch being issued for a level.
	OpFetch ChainOp = "fetch"
	// OpApply records a fetched option set being applied to a level.
	OpApply ChainOp = "apply"
	// OpStale records a late response discarded by the parent-key guard.
	OpStale ChainOp = "stale"
	// OpPrune records selected ids removed because they left the option set.
	OpPrune ChainOp = "prune"
	// OpFilter records a filter rule evaluation over a fetched option.
	OpFilter ChainOp = "filter"
	// OpSelectAll records a select-all toggle or synthetic select-all event.
	OpSelectAll ChainOp = "select-all"
	// OpError records a failed fetch.
	OpError ChainOp = "error"
)

// ChainLogEvent describes one reconciler action for logging.
type ChainLogEvent struct {
	Op        ChainOp
	Level     int
	LevelName string
	ParentKey string
	Engine    string
	Expr      string
	IDs       []string
	Duration  time.Duration
	Err       error
}

// EventLogger records chain reconciliation events.
type EventLogger interface {
	LogChainEvent(ChainLogEvent)
}

// EventLoggerFunc adapts a function to EventLogger.
type EventLoggerFunc func(ChainLogEvent)

// LogChainEvent implements EventLogger.
func (f EventLoggerFunc) LogChainEvent(event ChainLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEventLogger struct{}

func (noopEventLogger) LogChainEvent(ChainLogEvent) {}

// WithEventLogger attaches a reconciliation event logger to the chain.
func WithEventLogger(logger EventLogger) ChainOption {
	return func(cfg *chainConfig) {
		if logger == nil {
			cfg.logger = noopEventLogger{}
			return
		}
		cfg.logger = logger
	}
}
