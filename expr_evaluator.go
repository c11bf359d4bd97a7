package rdata

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// exprEvaluator compiles rules with expr-lang/expr. Programs are type
// checked against the rule variables and must produce a bool.
type exprEvaluator struct {
	cfg engineConfig
}

// NewExprEvaluator returns the expr-lang/expr engine.
func NewExprEvaluator(opts ...EngineOption) Evaluator {
	return &exprEvaluator{cfg: applyEngineOptions(opts)}
}

func (e *exprEvaluator) Engine() string { return EngineExpr }

func (e *exprEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}
	if program, ok := cached[*exprvm.Program](e.cfg.cache, expression); ok {
		return exprRule{program: program}, nil
	}

	options := []exprlang.Option{
		exprlang.Env(RuleFacts{}.variables()),
		exprlang.AsBool(),
	}
	for _, name := range e.cfg.functions.Names() {
		fn, _ := e.cfg.functions.Lookup(name)
		options = append(options, exprlang.Function(name, fn))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, err
	}
	if e.cfg.cache != nil {
		e.cfg.cache.Set(expression, program)
	}
	return exprRule{program: program}, nil
}

type exprRule struct {
	program *exprvm.Program
}

func (r exprRule) Evaluate(facts RuleFacts) (bool, error) {
	out, err := exprlang.Run(r.program, facts.variables())
	if err != nil {
		return false, err
	}
	return resultBool(out)
}
