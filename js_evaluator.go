//go:build js_eval

package rdata

import (
	"fmt"

	"github.com/dop251/goja"
)

// jsEvaluator runs rules as JavaScript expressions in goja. Each evaluation
// gets a fresh runtime.
type jsEvaluator struct {
	cfg engineConfig
}

// NewJSEvaluator returns the goja engine.
func NewJSEvaluator(opts ...EngineOption) Evaluator {
	return &jsEvaluator{cfg: applyEngineOptions(opts)}
}

func jsEvaluatorAvailable() bool { return true }

func (e *jsEvaluator) Engine() string { return EngineJS }

func (e *jsEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}
	if program, ok := cached[*goja.Program](e.cfg.cache, expression); ok {
		return jsRule{program: program, functions: e.cfg.functions}, nil
	}
	program, err := goja.Compile("rule", "(function(){ return ("+expression+"); })()", true)
	if err != nil {
		return nil, err
	}
	if e.cfg.cache != nil {
		e.cfg.cache.Set(expression, program)
	}
	return jsRule{program: program, functions: e.cfg.functions}, nil
}

type jsRule struct {
	program   *goja.Program
	functions *FunctionRegistry
}

func (r jsRule) Evaluate(facts RuleFacts) (bool, error) {
	vm := goja.New()
	for name, value := range facts.variables() {
		if err := vm.Set(name, value); err != nil {
			return false, err
		}
	}
	for _, name := range r.functions.Names() {
		fn, _ := r.functions.Lookup(name)
		if err := vm.Set(name, func(args ...any) (any, error) { return fn(args...) }); err != nil {
			return false, err
		}
	}
	value, err := vm.RunProgram(r.program)
	if err != nil {
		return false, err
	}
	return resultBool(value.Export())
}
