package rdata

import (
	"fmt"
	"time"
)

// RuleFacts are the values a duplicate rule is evaluated against: the
// candidate type and what the asset already holds.
type RuleFacts struct {
	Feature          string
	Category         string
	DisallowMultiple bool
	// Present lists the types of the resolved features, in list order.
	Present []string
	// Count is the number of Present entries equal to Feature.
	Count int
	Asset string
	Args  map[string]any
	Now   time.Time
}

// factsFor collects the facts for adding info to asset.
func factsFor(asset *Asset, info TypeInfo, args map[string]any) RuleFacts {
	facts := RuleFacts{
		Feature:          info.Name,
		Category:         info.Category,
		DisallowMultiple: info.DisallowMultiple,
		Asset:            assetName(asset),
		Args:             cloneAnyMap(args),
		Now:              time.Now(),
	}
	if asset != nil {
		for _, obj := range asset.Features {
			if obj == nil {
				continue
			}
			facts.Present = append(facts.Present, obj.Type)
			if obj.Type == info.Name {
				facts.Count++
			}
		}
	}
	return facts
}

// variables returns the names an expression can reference. Every engine
// binds exactly this set, plus the registered functions.
func (f RuleFacts) variables() map[string]any {
	present := make([]any, len(f.Present))
	for i, name := range f.Present {
		present[i] = name
	}
	args := f.Args
	if args == nil {
		args = map[string]any{}
	}
	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}
	return map[string]any{
		"feature":          f.Feature,
		"category":         f.Category,
		"disallowMultiple": f.DisallowMultiple,
		"present":          present,
		"count":            f.Count,
		"asset":            f.Asset,
		"args":             args,
		"now":              now,
	}
}

// assetLabel names the asset in errors and logs.
func (f RuleFacts) assetLabel() string {
	if f.Asset != "" {
		return f.Asset
	}
	return "unknown"
}

// Evaluator compiles rule expressions for one engine.
type Evaluator interface {
	// Engine names the expression language, e.g. "expr".
	Engine() string
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule is a reusable rule program. Evaluate reports whether the
// facts match the rule.
type CompiledRule interface {
	Evaluate(facts RuleFacts) (bool, error)
}

// ProgramCache stores compiled programs keyed by expression.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// EngineOption configures a built-in evaluator.
type EngineOption func(*engineConfig)

type engineConfig struct {
	cache     ProgramCache
	functions *FunctionRegistry
}

// EngineWithCache reuses programs compiled for the same expression.
func EngineWithCache(cache ProgramCache) EngineOption {
	return func(cfg *engineConfig) {
		cfg.cache = cache
	}
}

// EngineWithFunctions binds every function of registry by name.
func EngineWithFunctions(registry *FunctionRegistry) EngineOption {
	return func(cfg *engineConfig) {
		cfg.functions = registry.Clone()
	}
}

func applyEngineOptions(opts []EngineOption) engineConfig {
	var cfg engineConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// cached returns the program stored under key when it has type T.
func cached[T any](cache ProgramCache, key string) (T, bool) {
	var zero T
	if cache == nil {
		return zero, false
	}
	value, ok := cache.Get(key)
	if !ok {
		return zero, false
	}
	program, ok := value.(T)
	return program, ok
}

// resultBool converts an engine result into a rule outcome.
func resultBool(value any) (bool, error) {
	matched, ok := value.(bool)
	if !ok {
		return false, &resultTypeError{got: value}
	}
	return matched, nil
}

type resultTypeError struct {
	got any
}

func (e *resultTypeError) Error() string {
	return fmt.Sprintf("rule must return bool, got %T", e.got)
}
