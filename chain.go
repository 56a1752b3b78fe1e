package cascade

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/goliatone/go-cascade/parents"
	"github.com/goliatone/go-cascade/pkg/activity"
)

// Chain keeps a sequence of dependent selection levels consistent as
// selections change and asynchronous option data arrives. All mutation flows
// through the reconciler: downstream selections are cleared or pruned on
// parent changes, option sets are replaced never merged, and late fetch
// results whose parent key no longer matches the live selection are discarded.
type Chain struct {
	mu  sync.Mutex
	cfg chainConfig

	levels []Level
	states []LevelState
	cache  *optionCache

	selections [][]string
	selectAll  []bool
	allPending []bool

	fetchSeq []uint64
	seq      uint64

	deeplink map[int]string

	inflight int
	waiters  []chan struct{}
	started  bool
}

// New constructs a chain over the supplied levels. A loader is required; the
// evaluator defaults to expr when any level declares a filter rule.
func New(levels []Level, opts ...ChainOption) (*Chain, error) {
	validated, err := validateLevels(levels)
	if err != nil {
		return nil, err
	}
	cfg := applyChainOptions(opts)
	if cfg.loader == nil {
		return nil, ErrLoaderRequired
	}
	if cfg.logger == nil {
		cfg.logger = noopEventLogger{}
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}

	n := len(validated)
	return &Chain{
		cfg:        cfg,
		levels:     validated,
		states:     make([]LevelState, n),
		cache:      newOptionCache(n),
		selections: make([][]string, n),
		selectAll:  make([]bool, n),
		allPending: make([]bool, n),
		fetchSeq:   make([]uint64, n),
		deeplink:   map[int]string{},
	}, nil
}

// Len returns the number of levels in the chain.
func (c *Chain) Len() int { return len(c.levels) }

// Levels returns a defensive copy of the level definitions.
func (c *Chain) Levels() []Level {
	out := make([]Level, len(c.levels))
	for i, level := range c.levels {
		out[i] = level.clone()
	}
	return out
}

// ApplyDeepLink records one-shot pre-selections read from query parameters.
// Each value is applied exactly once, after the target level's option set
// first turns ready and only when it contains the id; later organic updates
// never re-apply. Call before Start.
func (c *Chain) ApplyDeepLink(values url.Values) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, level := range c.levels {
		if level.Param == "" {
			continue
		}
		value := values.Get(level.Param)
		if value == "" {
			continue
		}
		c.deeplink[i] = value
	}
}

// Start loads the root level's options. It is safe to call once per chain;
// repeated calls are no-ops.
func (c *Chain) Start(ctx context.Context) error {
	fx := &effects{}
	c.mu.Lock()
	if !c.started {
		c.started = true
		tr := c.beginTrace("start", 0, "")
		c.issueFetch(ctx, 0, nil, tr, fx)
		c.endTrace(tr, fx)
	}
	c.mu.Unlock()
	c.flush(fx)
	return nil
}

// State returns the reconciler state for level.
func (c *Chain) State(level int) LevelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if level < 0 || level >= len(c.levels) {
		return StateIdle
	}
	return c.states[level]
}

// Selection returns the selected ids at level in insertion order.
func (c *Chain) Selection(level int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if level < 0 || level >= len(c.levels) {
		return nil
	}
	return append([]string(nil), c.selections[level]...)
}

// SelectAllFlag reports whether the selection at a multi-select level equals
// its full current option set (and the set is non-empty).
func (c *Chain) SelectAllFlag(level int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if level < 0 || level >= len(c.levels) {
		return false
	}
	return c.selectAll[level]
}

// OptionsAt returns a defensive copy of the current option set for level.
func (c *Chain) OptionsAt(level int) []Option {
	return c.OptionSetAt(level).Options
}

// OptionSetAt returns a defensive copy of the current OptionSet for level,
// including the parent key it was fetched for.
func (c *Chain) OptionSetAt(level int) OptionSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	if level < 0 || level >= len(c.levels) {
		return OptionSet{Level: level}
	}
	return c.cache.get(level).clone()
}

// Select replaces the selection at level and reconciles every level below it.
// Ids must belong to the level's current option set; re-selecting the current
// value is a no-op and issues no fetch.
func (c *Chain) Select(ctx context.Context, level int, ids ...string) error {
	fx := &effects{}
	c.mu.Lock()
	err := c.checkLevel(level)
	if err == nil {
		for m := level + 1; m < len(c.levels); m++ {
			c.allPending[m] = false
		}
		tr := c.beginTrace("select", level, "")
		err = c.selectLocked(ctx, level, normalizeIDs(ids), tr, fx)
		c.endTrace(tr, fx)
	}
	c.mu.Unlock()
	c.flush(fx)
	return err
}

// Toggle adds or removes a single id at a multi-select level.
func (c *Chain) Toggle(ctx context.Context, level int, id string, on bool) error {
	c.mu.Lock()
	if err := c.checkLevel(level); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.levels[level].Mode != MultiSelect {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSingleSelect, c.levels[level].Name)
	}
	current := append([]string(nil), c.selections[level]...)
	c.mu.Unlock()

	next := make([]string, 0, len(current)+1)
	for _, member := range current {
		if member != id {
			next = append(next, member)
		}
	}
	if on {
		next = append(next, id)
	}
	return c.Select(ctx, level, next...)
}

// SetSelectAll toggles the select-all convenience flag for a multi-select
// level: on selects exactly the current option set's ids, off clears the
// selection entirely.
func (c *Chain) SetSelectAll(ctx context.Context, level int, on bool) error {
	fx := &effects{}
	c.mu.Lock()
	err := c.checkLevel(level)
	if err == nil && c.levels[level].Mode != MultiSelect {
		err = fmt.Errorf("%w: %s", ErrMultiSelectOnly, c.levels[level].Name)
	}
	if err == nil && on && c.states[level] != StateReady {
		err = fmt.Errorf("%w: %s", ErrNotReady, c.levels[level].Name)
	}
	if err == nil {
		var ids []string
		if on {
			ids = c.cache.get(level).IDs()
		}
		tr := c.beginTrace("select-all", level, "")
		fx.log(ChainLogEvent{Op: OpSelectAll, Level: level, LevelName: c.levels[level].Name, IDs: ids})
		err = c.selectLocked(ctx, level, ids, tr, fx)
		c.endTrace(tr, fx)
	}
	c.mu.Unlock()
	c.flush(fx)
	return err
}

// SelectAll selects the full option set at a multi-select level and marks
// every directly downstream multi-select level to auto-select its options as
// they load. This is the synthetic event behind role changes that grant full
// access; any capability check belongs to the caller.
func (c *Chain) SelectAll(ctx context.Context, level int) error {
	fx := &effects{}
	c.mu.Lock()
	err := c.checkLevel(level)
	if err == nil && c.levels[level].Mode != MultiSelect {
		err = fmt.Errorf("%w: %s", ErrMultiSelectOnly, c.levels[level].Name)
	}
	if err == nil && c.states[level] != StateReady {
		err = fmt.Errorf("%w: %s", ErrNotReady, c.levels[level].Name)
	}
	if err == nil {
		for m := level + 1; m < len(c.levels) && c.levels[m].Mode == MultiSelect; m++ {
			c.allPending[m] = true
		}
		ids := c.cache.get(level).IDs()
		tr := c.beginTrace("select-all", level, "")
		fx.log(ChainLogEvent{Op: OpSelectAll, Level: level, LevelName: c.levels[level].Name, IDs: ids})
		err = c.selectLocked(ctx, level, ids, tr, fx)
		c.endTrace(tr, fx)
	}
	c.mu.Unlock()
	c.flush(fx)
	return err
}

// WaitIdle blocks until no fetch is in flight or ctx is done.
func (c *Chain) WaitIdle(ctx context.Context) error {
	c.mu.Lock()
	if c.inflight == 0 {
		c.mu.Unlock()
		return nil
	}
	done := make(chan struct{})
	c.waiters = append(c.waiters, done)
	c.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot captures the current selections and select-all flags keyed by
// level name.
func (c *Chain) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{Selections: map[string][]string{}}
	for i, level := range c.levels {
		if len(c.selections[i]) > 0 {
			snap.Selections[level.Name] = append([]string(nil), c.selections[i]...)
		}
		if c.selectAll[i] {
			if snap.SelectAll == nil {
				snap.SelectAll = map[string]bool{}
			}
			snap.SelectAll[level.Name] = true
		}
	}
	return snap
}

// Restore replays a snapshot through the reconciler, level by level, waiting
// for each fetch to settle before applying the next selection. The chain must
// be started first.
func (c *Chain) Restore(ctx context.Context, snap Snapshot) error {
	for i, level := range c.levels {
		if err := c.WaitIdle(ctx); err != nil {
			return err
		}
		ids := snap.Selections[level.Name]
		if len(ids) == 0 {
			continue
		}
		if err := c.Select(ctx, i, ids...); err != nil {
			return fmt.Errorf("cascade: restore level %q: %w", level.Name, err)
		}
	}
	return c.WaitIdle(ctx)
}

// --- reconciler internals -------------------------------------------------

func (c *Chain) checkLevel(level int) error {
	if level < 0 || level >= len(c.levels) {
		return fmt.Errorf("%w: %d", ErrLevelOutOfRange, level)
	}
	return nil
}

// selectLocked is the reconciler entry point. Callers hold the mutex.
func (c *Chain) selectLocked(ctx context.Context, level int, ids []string, tr *Trace, fx *effects) error {
	levelDef := c.levels[level]
	if levelDef.Mode == SingleSelect && len(ids) > 1 {
		return fmt.Errorf("%w: %s", ErrSingleSelect, levelDef.Name)
	}
	if len(ids) > 0 {
		if c.states[level] != StateReady {
			return fmt.Errorf("%w: %s", ErrNotReady, levelDef.Name)
		}
		set := c.cache.get(level)
		for _, id := range ids {
			if !set.Contains(id) {
				return fmt.Errorf("%w: %q at level %s", ErrUnknownOption, id, levelDef.Name)
			}
		}
	}

	if sameSelection(c.selections[level], ids, levelDef.Mode) {
		return nil
	}

	c.selections[level] = append([]string(nil), ids...)
	c.recomputeSelectAllLocked(level)

	fx.log(ChainLogEvent{Op: OpSelect, Level: level, LevelName: levelDef.Name, IDs: ids})
	fx.emit(activity.BuildSelectionChangedEvent(c.eventInput(level, ids, nil, "")))
	tr.append(TraceStep{Op: OpSelect, Level: level, LevelName: levelDef.Name, IDs: ids})

	c.cascadeLocked(ctx, level, tr, fx)
	return nil
}

// cascadeLocked resets every level below the changed one and issues the next
// fetch. Single-select parents clear downstream selections immediately;
// multi-select parents keep the direct child's selection provisionally so it
// can be pruned against the recomputed union when it arrives.
func (c *Chain) cascadeLocked(ctx context.Context, level int, tr *Trace, fx *effects) {
	preserveChild := c.levels[level].Mode == MultiSelect && len(c.selections[level]) > 0

	for m := level + 1; m < len(c.levels); m++ {
		keepSelection := preserveChild && m == level+1
		if !keepSelection && len(c.selections[m]) > 0 {
			removed := c.selections[m]
			c.selections[m] = nil
			fx.log(ChainLogEvent{Op: OpClear, Level: m, LevelName: c.levels[m].Name, IDs: removed})
			tr.append(TraceStep{Op: OpClear, Level: m, LevelName: c.levels[m].Name, Removed: removed})
		}
		c.selectAll[m] = false
		c.states[m] = StateIdle
		// Invalidate any in-flight fetch for this level: its sequence can no
		// longer match, so a late response is discarded as stale.
		c.seq++
		c.fetchSeq[m] = c.seq
	}
	c.cache.invalidate(level + 1)

	if len(c.selections[level]) > 0 && level+1 < len(c.levels) {
		c.issueFetch(ctx, level+1, c.selections[level], tr, fx)
	}
}

// issueFetch transitions level to Loading and dispatches the load on its own
// goroutine. Callers hold the mutex.
func (c *Chain) issueFetch(ctx context.Context, level int, parentIDs []string, tr *Trace, fx *effects) {
	set := parents.NewSet(parentIDs...)
	key := set.Key()

	c.seq++
	seq := c.seq
	c.fetchSeq[level] = seq
	c.states[level] = StateLoading
	c.inflight++

	levelName := c.levels[level].Name
	fx.log(ChainLogEvent{Op: OpFetch, Level: level, LevelName: levelName, ParentKey: key})
	tr.append(TraceStep{Op: OpFetch, Level: level, LevelName: levelName, ParentKey: key})

	req := LoadRequest{
		Level:     level,
		LevelName: levelName,
		ParentKey: key,
		ParentIDs: set.IDs(),
	}
	go c.runFetch(ctx, req, seq)
}

func (c *Chain) runFetch(ctx context.Context, req LoadRequest, seq uint64) {
	start := time.Now()
	options, err := c.cfg.loader.LoadOptions(ctx, req)
	duration := time.Since(start)
	c.applyOutcome(ctx, req, seq, options, err, duration)
}

// applyOutcome applies a completed fetch under the stale-response guard:
// last-issued-wins by sequence comparison, not by arrival order.
func (c *Chain) applyOutcome(ctx context.Context, req LoadRequest, seq uint64, options []Option, loadErr error, duration time.Duration) {
	fx := &effects{}
	c.mu.Lock()

	level := req.Level
	levelDef := c.levels[level]

	if c.fetchSeq[level] != seq {
		fx.log(ChainLogEvent{Op: OpStale, Level: level, LevelName: levelDef.Name, ParentKey: req.ParentKey, Duration: duration, Err: loadErr})
		fx.emit(activity.BuildOptionsStaleEvent(c.eventInput(level, nil, nil, req.ParentKey)))
		c.mu.Unlock()
		c.flush(fx)
		c.mu.Lock()
		c.settleFetch()
		c.mu.Unlock()
		return
	}
	tr := c.beginTrace("apply", level, req.ParentKey)

	if loadErr != nil {
		wrapped := wrapLoadError(level, levelDef.Name, req.ParentKey, loadErr)
		c.cache.invalidate(level)
		c.states[level] = StateError
		fx.log(ChainLogEvent{Op: OpError, Level: level, LevelName: levelDef.Name, ParentKey: req.ParentKey, Duration: duration, Err: wrapped})
		input := c.eventInput(level, nil, nil, req.ParentKey)
		input.Reason = wrapped.Error()
		fx.emit(activity.BuildOptionsFailedEvent(input))
		tr.append(TraceStep{Op: OpError, Level: level, LevelName: levelDef.Name, ParentKey: req.ParentKey})
		c.pruneAfterApplyLocked(ctx, level, tr, fx)
	} else {
		filtered, _ := c.filterOptions(levelDef, level, cloneOptions(options), fx)
		set := OptionSet{Level: level, ParentKey: req.ParentKey, Options: filtered}
		c.cache.replace(level, set)
		c.states[level] = StateReady
		fx.log(ChainLogEvent{Op: OpApply, Level: level, LevelName: levelDef.Name, ParentKey: req.ParentKey, IDs: set.IDs(), Duration: duration})
		input := c.eventInput(level, set.IDs(), nil, req.ParentKey)
		fx.emit(activity.BuildOptionsLoadedEvent(input))
		tr.append(TraceStep{Op: OpApply, Level: level, LevelName: levelDef.Name, ParentKey: req.ParentKey, IDs: set.IDs()})

		c.pruneAfterApplyLocked(ctx, level, tr, fx)
		c.consumePendingLocked(ctx, level, set, tr, fx)
	}

	c.endTrace(tr, fx)
	c.mu.Unlock()
	c.flush(fx)

	// The in-flight count settles only after effects are delivered so that
	// WaitIdle returning means every log, event, and trace has landed. Any
	// chained fetch was counted before this decrement, so the count never
	// touches zero mid-cascade.
	c.mu.Lock()
	c.settleFetch()
	c.mu.Unlock()
}

// pruneAfterApplyLocked enforces the referential-integrity invariant after an
// option set changes: selected ids absent from the new set are removed and the
// change cascades like any other selection change.
func (c *Chain) pruneAfterApplyLocked(ctx context.Context, level int, tr *Trace, fx *effects) {
	set := c.cache.get(level)
	kept := make([]string, 0, len(c.selections[level]))
	var removed []string
	for _, id := range c.selections[level] {
		if set.Contains(id) {
			kept = append(kept, id)
		} else {
			removed = append(removed, id)
		}
	}
	c.recomputeSelectAllLocked(level)
	if len(removed) == 0 {
		return
	}

	c.selections[level] = kept
	c.recomputeSelectAllLocked(level)
	levelName := c.levels[level].Name
	fx.log(ChainLogEvent{Op: OpPrune, Level: level, LevelName: levelName, IDs: removed})
	fx.emit(activity.BuildSelectionPrunedEvent(c.eventInput(level, kept, removed, set.ParentKey)))
	tr.append(TraceStep{Op: OpPrune, Level: level, LevelName: levelName, Removed: removed})

	c.cascadeLocked(ctx, level, tr, fx)
}

// consumePendingLocked applies pending select-all propagation and one-shot
// deep-link pre-selection after a level turns ready.
func (c *Chain) consumePendingLocked(ctx context.Context, level int, set OptionSet, tr *Trace, fx *effects) {
	if c.allPending[level] && c.levels[level].Mode == MultiSelect {
		c.allPending[level] = false
		fx.log(ChainLogEvent{Op: OpSelectAll, Level: level, LevelName: c.levels[level].Name, IDs: set.IDs()})
		_ = c.selectLocked(ctx, level, set.IDs(), tr, fx)
		return
	}

	if id, ok := c.deeplink[level]; ok {
		delete(c.deeplink, level)
		if set.Contains(id) && len(c.selections[level]) == 0 {
			_ = c.selectLocked(ctx, level, []string{id}, tr, fx)
		}
	}
}

func (c *Chain) recomputeSelectAllLocked(level int) {
	if c.levels[level].Mode != MultiSelect {
		c.selectAll[level] = false
		return
	}
	set := c.cache.get(level)
	c.selectAll[level] = set.Len() > 0 && sameSelection(c.selections[level], set.IDs(), MultiSelect)
}

// settleFetch decrements the in-flight counter and releases waiters when it
// reaches zero. Called with the mutex held, after any chained fetches have
// been issued so WaitIdle cannot wake early.
func (c *Chain) settleFetch() {
	c.inflight--
	if c.inflight > 0 {
		return
	}
	for _, done := range c.waiters {
		close(done)
	}
	c.waiters = nil
}

func (c *Chain) eventInput(level int, ids, removed []string, parentKey string) activity.ChainEventInput {
	levelDef := c.levels[level]
	return activity.ChainEventInput{
		Level: activity.LevelContext{
			Name:     levelDef.Name,
			Label:    levelDef.Label,
			Position: level,
			Mode:     levelDef.Mode.String(),
		},
		ParentKey:  parentKey,
		OptionIDs:  append([]string(nil), ids...),
		Removed:    append([]string(nil), removed...),
		OccurredAt: c.cfg.now(),
	}
}

func (c *Chain) beginTrace(trigger string, level int, parentKey string) *Trace {
	if c.cfg.traceSink == nil {
		return nil
	}
	return &Trace{
		Trigger:   trigger,
		Level:     level,
		LevelName: c.levels[level].Name,
		ParentKey: parentKey,
	}
}

func (c *Chain) endTrace(tr *Trace, fx *effects) {
	if tr == nil || len(tr.Steps) == 0 {
		return
	}
	fx.traces = append(fx.traces, *tr)
}

// effects batches log records, activity events and traces produced under the
// chain mutex so they can be delivered after it is released.
type effects struct {
	logs   []ChainLogEvent
	events []activity.Event
	traces []Trace
}

func (fx *effects) log(event ChainLogEvent) {
	fx.logs = append(fx.logs, event)
}

func (fx *effects) emit(event activity.Event) {
	fx.events = append(fx.events, event)
}

func (c *Chain) flush(fx *effects) {
	for _, event := range fx.logs {
		c.cfg.logger.LogChainEvent(event)
	}
	if c.cfg.activityHooks.Enabled() {
		for _, event := range fx.events {
			_ = c.cfg.activityHooks.Notify(context.Background(), event)
		}
	}
	if c.cfg.traceSink != nil {
		for _, trace := range fx.traces {
			c.cfg.traceSink(trace)
		}
	}
}

func normalizeIDs(ids []string) []string {
	return parents.NewSet(ids...).IDs()
}

func sameSelection(current, next []string, mode SelectMode) bool {
	if len(current) != len(next) {
		return false
	}
	if mode == SingleSelect {
		for i := range current {
			if current[i] != next[i] {
				return false
			}
		}
		return true
	}
	members := make(map[string]struct{}, len(current))
	for _, id := range current {
		members[id] = struct{}{}
	}
	for _, id := range next {
		if _, ok := members[id]; !ok {
			return false
		}
	}
	return true
}

func cloneOptions(options []Option) []Option {
	if len(options) == 0 {
		return nil
	}
	out := make([]Option, len(options))
	for i, opt := range options {
		out[i] = opt.clone()
	}
	return out
}
