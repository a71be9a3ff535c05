package policy

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// conditionEvaluator compiles and caches rule `when` expressions. Conditions
// see a single variable, `agent`, with fields name, version and categories.
type conditionEvaluator struct {
	once    sync.Once
	env     *cel.Env
	envErr  error
	mu      sync.Mutex
	program map[string]cel.Program
}

func newConditionEvaluator() *conditionEvaluator {
	return &conditionEvaluator{program: make(map[string]cel.Program)}
}

func (c *conditionEvaluator) environment() (*cel.Env, error) {
	c.once.Do(func() {
		c.env, c.envErr = cel.NewEnv(
			cel.Variable("agent", cel.MapType(cel.StringType, cel.DynType)),
		)
	})
	return c.env, c.envErr
}

func (c *conditionEvaluator) compile(expr string) (cel.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prg, ok := c.program[expr]; ok {
		return prg, nil
	}

	env, err := c.environment()
	if err != nil {
		return nil, fmt.Errorf("condition env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("condition compile error: %w", issues.Err())
	}
	if ot := ast.OutputType(); !ot.IsExactType(cel.BoolType) && !ot.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("condition must be boolean, got %s", ot)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("condition program error: %w", err)
	}
	c.program[expr] = prg
	return prg, nil
}

// Eval reports whether expr holds for s.
func (c *conditionEvaluator) Eval(expr string, s Subject) (bool, error) {
	prg, err := c.compile(expr)
	if err != nil {
		return false, err
	}

	categories := make([]any, len(s.Categories))
	for i, cat := range s.Categories {
		categories[i] = cat
	}
	out, _, err := prg.Eval(map[string]any{
		"agent": map[string]any{
			"name":       s.Name,
			"version":    s.Version,
			"categories": categories,
		},
	})
	if err != nil {
		return false, fmt.Errorf("condition eval error: %w", err)
	}

	v, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition result not boolean")
	}
	return v, nil
}

// CompileCondition checks that expr is a valid boolean rule condition.
func CompileCondition(expr string) error {
	_, err := newConditionEvaluator().compile(expr)
	return err
}
