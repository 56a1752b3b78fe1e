package cascade

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExprEvaluatorEvaluatesOptionBinding(t *testing.T) {
	evaluator := NewExprEvaluator()
	ctx := RuleContext{
		Snapshot: map[string]any{
			"id":     "f1",
			"label":  "Toronto",
			"active": true,
			"floors": 3,
		},
	}

	tests := []struct {
		expr string
		want any
	}{
		{expr: "active", want: true},
		{expr: "floors > 2", want: true},
		{expr: `id == "f2"`, want: false},
		{expr: `label + "!"`, want: "Toronto!"},
	}
	for _, tt := range tests {
		got, err := evaluator.Evaluate(ctx, tt.expr)
		if err != nil {
			t.Fatalf("evaluate %q: %v", tt.expr, err)
		}
		if got != tt.want {
			t.Fatalf("expr %q: expected %v got %v", tt.expr, tt.want, got)
		}
	}
}

func TestExprEvaluatorRejectsEmptyExpression(t *testing.T) {
	if _, err := NewExprEvaluator().Evaluate(RuleContext{}, ""); err == nil {
		t.Fatalf("expected error for empty expression")
	}
}

func TestExprEvaluatorUsesProgramCache(t *testing.T) {
	cache := NewMemoryProgramCache()
	evaluator := NewExprEvaluator(ExprWithProgramCache(cache))
	ctx := RuleContext{Snapshot: map[string]any{"active": true}}

	if _, err := evaluator.Evaluate(ctx, "active"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if _, ok := cache.Get("active"); !ok {
		t.Fatalf("expected compiled program cached")
	}
	if _, err := evaluator.Evaluate(ctx, "active"); err != nil {
		t.Fatalf("evaluate cached: %v", err)
	}
}

func TestExprEvaluatorCustomFunctions(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("inRegion", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, errors.New("inRegion expects one argument")
		}
		region, _ := args[0].(string)
		return region == "east", nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	evaluator := NewExprEvaluator(ExprWithFunctionRegistry(registry))
	ctx := RuleContext{Snapshot: map[string]any{"region": "east"}}

	got, err := evaluator.Evaluate(ctx, `call("inRegion", region)`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != true {
		t.Fatalf("expected custom function result true, got %v", got)
	}
}

func TestExprCompiledRule(t *testing.T) {
	rule, err := NewExprEvaluator().Compile("floors >= 2")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got, err := rule.Evaluate(RuleContext{Snapshot: map[string]any{"floors": 2}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != true {
		t.Fatalf("expected true, got %v", got)
	}
}

func TestCELEvaluatorEvaluates(t *testing.T) {
	evaluator := NewCELEvaluator()
	ctx := RuleContext{Snapshot: map[string]any{"active": true, "floors": int64(3)}}

	got, err := evaluator.Evaluate(ctx, "active && floors > 2")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != true {
		t.Fatalf("expected true, got %v", got)
	}
}

func TestEvaluationErrorWrapping(t *testing.T) {
	base := errors.New("boom")
	err := wrapEvaluationError("expr", "active", "facility", base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if evalErr.Engine != "expr" || evalErr.Expr != "active" || evalErr.Level != "facility" {
		t.Fatalf("unexpected fields: %+v", evalErr)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error preserved")
	}
	if !strings.HasPrefix(err.Error(), "cascade:") {
		t.Fatalf("expected cascade prefix, got %q", err.Error())
	}

	// Re-wrapping must not stack another layer.
	if again := wrapEvaluationError("cel", "other", "country", err); again != err {
		var rewrapped *EvaluationError
		if !errors.As(again, &rewrapped) || rewrapped.Engine != "expr" {
			t.Fatalf("expected original metadata preserved, got %v", again)
		}
	}
}

func TestFunctionRegistry(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("upper", func(args ...any) (any, error) {
		s, _ := args[0].(string)
		return strings.ToUpper(s), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("upper", func(...any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if err := registry.Register("", func(...any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected empty name rejected")
	}
	if err := registry.Register("nilfn", nil); err == nil {
		t.Fatalf("expected nil function rejected")
	}

	got, err := registry.Call("UPPER", "ok")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got != "OK" {
		t.Fatalf("expected case-insensitive lookup, got %v", got)
	}
	if _, err := registry.Call("missing"); err == nil {
		t.Fatalf("expected unknown function error")
	}

	clone := registry.Clone()
	if err := clone.Register("extra", func(...any) (any, error) { return nil, nil }); err != nil {
		t.Fatalf("register on clone: %v", err)
	}
	if _, err := registry.Call("extra"); err == nil {
		t.Fatalf("expected clone isolation")
	}
}

func TestRuleContextDefaults(t *testing.T) {
	ctx := RuleContext{}.withDefaults()
	if ctx.Now == nil || ctx.Args == nil || ctx.Metadata == nil {
		t.Fatalf("expected defaults applied: %+v", ctx)
	}
	if time.Since(*ctx.Now) > time.Minute {
		t.Fatalf("expected recent default timestamp")
	}

	level := NewLevel("facility", MultiSelect, WithLevelLabel("Facility"))
	withLevel := RuleContext{}.withDefaultLevel(level)
	if withLevel.LevelName != "facility" {
		t.Fatalf("expected level name propagated, got %q", withLevel.LevelName)
	}
	binding := withLevel.levelBinding()
	if binding["name"] != "facility" || binding["mode"] != "multi" {
		t.Fatalf("unexpected level binding: %v", binding)
	}
}
