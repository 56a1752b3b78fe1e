package cascade

import "github.com/goliatone/go-cascade/pkg/activity"

// WithActivityHooks registers hooks that receive selection and option
// lifecycle events. Nil hooks are dropped.
func WithActivityHooks(hooks ...activity.ActivityHook) ChainOption {
	return func(cfg *chainConfig) {
		for _, hook := range hooks {
			if hook == nil {
				continue
			}
			cfg.activityHooks = append(cfg.activityHooks, hook)
		}
	}
}

// ActivityHooks exposes the configured hooks, primarily for wiring emitters.
func (c *Chain) ActivityHooks() activity.Hooks {
	if len(c.cfg.activityHooks) == 0 {
		return nil
	}
	out := make(activity.Hooks, len(c.cfg.activityHooks))
	copy(out, c.cfg.activityHooks)
	return out
}
