package rdata

import (
	"fmt"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// celMaxArity bounds the overloads declared for registered functions. CEL has
// no variadic functions, so each arity is declared separately.
const celMaxArity = 4

// celEvaluator compiles rules with cel-go against typed rule variables.
type celEvaluator struct {
	cfg engineConfig
}

// NewCELEvaluator returns the CEL engine.
func NewCELEvaluator(opts ...EngineOption) Evaluator {
	return &celEvaluator{cfg: applyEngineOptions(opts)}
}

func (e *celEvaluator) Engine() string { return EngineCEL }

func (e *celEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}
	if program, ok := cached[celgo.Program](e.cfg.cache, expression); ok {
		return celRule{program: program}, nil
	}

	env, err := e.environment()
	if err != nil {
		return nil, err
	}
	checked, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	switch checked.OutputType().Kind() {
	case types.BoolKind, types.DynKind:
	default:
		return nil, fmt.Errorf("rule must return bool, got %s", checked.OutputType())
	}
	program, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	if e.cfg.cache != nil {
		e.cfg.cache.Set(expression, program)
	}
	return celRule{program: program}, nil
}

func (e *celEvaluator) environment() (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("feature", celgo.StringType),
		celgo.Variable("category", celgo.StringType),
		celgo.Variable("disallowMultiple", celgo.BoolType),
		celgo.Variable("present", celgo.ListType(celgo.StringType)),
		celgo.Variable("count", celgo.IntType),
		celgo.Variable("asset", celgo.StringType),
		celgo.Variable("args", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("now", celgo.TimestampType),
	}
	for _, name := range e.cfg.functions.Names() {
		fn, _ := e.cfg.functions.Lookup(name)
		opts = append(opts, celFunction(name, fn))
	}
	return celgo.NewEnv(opts...)
}

// celFunction declares fn with dyn arguments for every arity up to
// celMaxArity.
func celFunction(name string, fn Function) celgo.EnvOption {
	binding := celgo.FunctionBinding(func(values ...ref.Val) ref.Val {
		args := make([]any, len(values))
		for i, value := range values {
			args[i] = value.Value()
		}
		out, err := fn(args...)
		if err != nil {
			return types.NewErr("%s: %v", name, err)
		}
		if out == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(out)
	})
	overloads := make([]celgo.FunctionOpt, 0, celMaxArity+1)
	for arity := 0; arity <= celMaxArity; arity++ {
		params := make([]*celgo.Type, arity)
		for i := range params {
			params[i] = celgo.DynType
		}
		overloads = append(overloads, celgo.Overload(fmt.Sprintf("%s_dyn_%d", name, arity), params, celgo.DynType, binding))
	}
	return celgo.Function(name, overloads...)
}

type celRule struct {
	program celgo.Program
}

func (r celRule) Evaluate(facts RuleFacts) (bool, error) {
	vars := facts.variables()
	vars["count"] = int64(facts.Count)
	out, _, err := r.program.Eval(vars)
	if err != nil {
		return false, err
	}
	return resultBool(out.Value())
}
