package cascade

import (
	"errors"
	"fmt"
	"time"
)

var ErrNoEvaluator = errors.New("cascade: evaluator not configured")

// filterOptions applies the level's filter rule to every fetched option,
// returning the surviving options and the ids that were dropped. A rule that
// errors fails open: the option is kept and the failure logged.
func (c *Chain) filterOptions(level Level, levelIdx int, options []Option, fx *effects) ([]Option, []string) {
	if level.FilterRule == "" || len(options) == 0 {
		return options, nil
	}
	evaluator, err := c.resolveEvaluator()
	if err != nil {
		fx.log(ChainLogEvent{
			Op:        OpFilter,
			Level:     levelIdx,
			LevelName: level.Name,
			Expr:      level.FilterRule,
			Err:       err,
		})
		return options, nil
	}

	engine := evaluatorEngineName(evaluator)
	kept := make([]Option, 0, len(options))
	var removed []string
	for _, opt := range options {
		ctx := RuleContext{Snapshot: optionBinding(opt)}.withDefaultLevel(level).withDefaults()
		start := time.Now()
		value, evalErr := evaluator.Evaluate(ctx, level.FilterRule)
		duration := time.Since(start)
		evalErr = wrapEvaluationError(engine, level.FilterRule, ctx.levelLabel(), evalErr)
		fx.log(ChainLogEvent{
			Op:        OpFilter,
			Level:     levelIdx,
			LevelName: level.Name,
			Engine:    engine,
			Expr:      level.FilterRule,
			IDs:       []string{opt.ID},
			Duration:  duration,
			Err:       evalErr,
		})
		if evalErr != nil {
			kept = append(kept, opt)
			continue
		}
		if keep, ok := value.(bool); ok && !keep {
			removed = append(removed, opt.ID)
			continue
		}
		kept = append(kept, opt)
	}
	return kept, removed
}

func (c *Chain) resolveEvaluator() (Evaluator, error) {
	if c.cfg.evaluator != nil {
		return c.cfg.evaluator, nil
	}
	var exprOpts []ExprEvaluatorOption
	if cache := c.cfg.programCache; cache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cache))
	}
	if registry := c.cfg.functions; registry != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(registry))
	}
	defaultEvaluator := NewExprEvaluator(exprOpts...)
	if defaultEvaluator == nil {
		return nil, ErrNoEvaluator
	}
	c.cfg.evaluator = defaultEvaluator
	return defaultEvaluator, nil
}

// optionBinding flattens an option into the rule environment: id, label and
// parent_key plus the option's metadata keys.
func optionBinding(opt Option) map[string]any {
	binding := map[string]any{
		"id":         opt.ID,
		"label":      opt.Label,
		"parent_key": opt.ParentKey,
	}
	for key, value := range opt.Metadata {
		binding[key] = value
	}
	return binding
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*cascade.exprEvaluator":
		return "expr"
	case "*cascade.celEvaluator":
		return "cel"
	case "*cascade.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}
