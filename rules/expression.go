package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// factsVariable is the single CEL variable an expression condition sees
const factsVariable = "facts"

var (
	celEnvOnce sync.Once
	celEnv     *cel.Env
	celEnvErr  error
)

func expressionEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable(factsVariable, cel.MapType(cel.StringType, cel.DynType)),
		)
	})
	return celEnv, celEnvErr
}

// Expression is a leaf condition written as a CEL expression over `facts`,
// e.g. `facts.sentiment.score < -0.5 && facts.customer.tier == "enterprise"`
type Expression struct {
	Source  string
	program cel.Program
}

func (*Expression) isCondition() {}

// CompileExpression type-checks and compiles a CEL source string.
// Evaluation cost is capped at 1,000,000.
func CompileExpression(source string) (*Expression, error) {
	env, err := expressionEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	prog, err := env.Program(ast, cel.CostLimit(1000000))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}

	return &Expression{Source: source, program: prog}, nil
}

// Evaluate runs the program. Non-boolean results are treated as false;
// runtime errors (such as a missing key) are returned.
func (e *Expression) Evaluate(facts map[string]any) (bool, error) {
	if facts == nil {
		facts = map[string]any{}
	}
	out, _, err := e.program.Eval(map[string]any{factsVariable: facts})
	if err != nil {
		return false, fmt.Errorf("expression %q: %w", e.Source, err)
	}
	matched, ok := out.Value().(bool)
	return ok && matched, nil
}
