package cascade

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLoaderRequired indicates the chain was constructed without a loader.
	ErrLoaderRequired = errors.New("cascade: loader is required")
	// ErrLevelOutOfRange indicates a level index outside the configured chain.
	ErrLevelOutOfRange = errors.New("cascade: level out of range")
	// ErrSingleSelect indicates a multi-id operation on a single-select level.
	ErrSingleSelect = errors.New("cascade: level is single-select")
	// ErrMultiSelectOnly indicates a select-all operation on a single-select
	// level.
	ErrMultiSelectOnly = errors.New("cascade: select-all requires a multi-select level")
	// ErrUnknownOption indicates a selection id absent from the level's
	// current option set.
	ErrUnknownOption = errors.New("cascade: option not in current set")
	// ErrNotReady indicates a selection attempt against a level whose options
	// have not loaded.
	ErrNotReady = errors.New("cascade: level options not loaded")
)

// LoadError captures loader metadata alongside the originating error.
type LoadError struct {
	Level     int
	LevelName string
	ParentKey string
	Err       error
}

func (e *LoadError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("cascade: load level %q parent=%q: %v", e.LevelName, e.ParentKey, e.Err)
}

func (e *LoadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapLoadError(level int, levelName, parentKey string, err error) error {
	if err == nil {
		return nil
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return err
	}
	return &LoadError{
		Level:     level,
		LevelName: levelName,
		ParentKey: parentKey,
		Err:       err,
	}
}

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Level  string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("cascade: %s evaluator %s level=%s: %v", e.Engine, describeExpression(e.Expr), e.Level, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "cascade:") {
		return err
	}
	return fmt.Errorf("cascade: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, level string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Level == "" {
			evalErr.Level = level
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Level:  level,
		Err:    err,
	}
}
