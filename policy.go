package rdata

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultDuplicateRule rejects a type that disallows multiple instances once
// one instance is present.
const DefaultDuplicateRule = "disallowMultiple && count > 0"

// Rule engine names accepted by WithRuleEngine.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// ErrNoJSEngine reports a js rule policy in a build without the js_eval tag.
var ErrNoJSEngine = errors.New("rdata: js evaluator not compiled in (build with -tags js_eval)")

// DuplicatePolicy decides whether a type may be added to an asset.
type DuplicatePolicy interface {
	// Rejects reports whether adding info to asset would create a forbidden
	// duplicate.
	Rejects(asset *Asset, info TypeInfo) (bool, error)
}

// DisallowMultiplePolicy rejects a type flagged DisallowMultiple once an
// instance of it is present.
type DisallowMultiplePolicy struct{}

// Rejects implements DuplicatePolicy.
func (DisallowMultiplePolicy) Rejects(asset *Asset, info TypeInfo) (bool, error) {
	return info.DisallowMultiple && countType(asset, info.Name) > 0, nil
}

// RulePolicy evaluates a boolean expression against the candidate type and
// the asset's current features. A true result rejects the add.
//
// The expression sees feature (type name), category, disallowMultiple,
// present (type names already on the asset, in order), count (instances of
// feature already present), asset (asset name), args and now, plus every
// registered function.
type RulePolicy struct {
	expr   string
	engine string
	rule   CompiledRule
	args   map[string]any
	logger Logger
}

// RuleOption configures a RulePolicy.
type RuleOption func(*ruleConfig)

type ruleConfig struct {
	engine    string
	evaluator Evaluator
	functions *FunctionRegistry
	cache     ProgramCache
	args      map[string]any
	logger    Logger
	errs      []error
}

// WithRuleEngine selects the expression engine by name. Defaults to expr.
func WithRuleEngine(engine string) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.engine = strings.ToLower(strings.TrimSpace(engine))
	}
}

// WithRuleEvaluator uses evaluator instead of a built-in engine.
func WithRuleEvaluator(evaluator Evaluator) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.evaluator = evaluator
	}
}

// WithProgramCache shares compiled programs between policies.
func WithProgramCache(cache ProgramCache) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.cache = cache
	}
}

// WithRuleArgs exposes args to the expression as "args".
func WithRuleArgs(args map[string]any) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.args = cloneAnyMap(args)
	}
}

// WithRuleLogger records every evaluation.
func WithRuleLogger(logger Logger) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.logger = logger
	}
}

// NewRulePolicy compiles expr with the configured engine. Expressions that
// cannot produce a bool are rejected here when the engine can tell.
func NewRulePolicy(expr string, opts ...RuleOption) (*RulePolicy, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("rdata: rule expression must not be empty")
	}
	cfg := ruleConfig{engine: EngineExpr}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := errors.Join(cfg.errs...); err != nil {
		return nil, err
	}

	evaluator := cfg.evaluator
	if evaluator == nil {
		var err error
		if evaluator, err = builtinEvaluator(cfg); err != nil {
			return nil, err
		}
	}
	engine := evaluator.Engine()
	rule, err := evaluator.Compile(expr)
	if err != nil {
		return nil, &EvaluationError{Engine: engine, Expr: expr, Phase: PhaseCompile, Err: err}
	}

	logger := cfg.logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &RulePolicy{
		expr:   expr,
		engine: engine,
		rule:   rule,
		args:   cfg.args,
		logger: logger,
	}, nil
}

func builtinEvaluator(cfg ruleConfig) (Evaluator, error) {
	var opts []EngineOption
	if cfg.cache != nil {
		opts = append(opts, EngineWithCache(cfg.cache))
	}
	if cfg.functions != nil {
		opts = append(opts, EngineWithFunctions(cfg.functions))
	}
	switch cfg.engine {
	case "", EngineExpr:
		return NewExprEvaluator(opts...), nil
	case EngineCEL:
		return NewCELEvaluator(opts...), nil
	case EngineJS:
		if !jsEvaluatorAvailable() {
			return nil, ErrNoJSEngine
		}
		return NewJSEvaluator(opts...), nil
	default:
		return nil, fmt.Errorf("rdata: unknown rule engine %q", cfg.engine)
	}
}

// Expression returns the rule source.
func (p *RulePolicy) Expression() string {
	if p == nil {
		return ""
	}
	return p.expr
}

// Engine returns the name of the engine the rule was compiled with.
func (p *RulePolicy) Engine() string {
	if p == nil {
		return ""
	}
	return p.engine
}

// Rejects implements DuplicatePolicy.
func (p *RulePolicy) Rejects(asset *Asset, info TypeInfo) (bool, error) {
	facts := factsFor(asset, info, p.args)

	start := time.Now()
	rejected, err := p.rule.Evaluate(facts)
	if err != nil {
		err = &EvaluationError{
			Engine:  p.engine,
			Expr:    p.expr,
			Phase:   PhaseEvaluate,
			Asset:   facts.assetLabel(),
			Feature: info.Name,
			Err:     err,
		}
	}
	p.logger.Log(LogEvent{
		Operation: "policy",
		Asset:     facts.assetLabel(),
		Index:     -1,
		Type:      info.Name,
		Engine:    p.engine,
		Expr:      p.expr,
		Duration:  time.Since(start),
		Err:       err,
	})
	if err != nil {
		return false, err
	}
	return rejected, nil
}

func countType(asset *Asset, typeName string) int {
	if asset == nil {
		return 0
	}
	n := 0
	for _, obj := range asset.Features {
		if obj != nil && obj.Type == typeName {
			n++
		}
	}
	return n
}

func assetName(asset *Asset) string {
	if asset == nil {
		return ""
	}
	if asset.Name != "" {
		return asset.Name
	}
	return asset.GUID.String()
}

func cloneAnyMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}

// MemoryProgramCache is a concurrency-safe ProgramCache.
type MemoryProgramCache struct {
	mu       sync.RWMutex
	programs map[string]any
}

// NewMemoryProgramCache constructs an empty cache.
func NewMemoryProgramCache() *MemoryProgramCache {
	return &MemoryProgramCache{programs: map[string]any{}}
}

// Get implements ProgramCache.
func (c *MemoryProgramCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.programs[key]
	return value, ok
}

// Set implements ProgramCache.
func (c *MemoryProgramCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.programs == nil {
		c.programs = map[string]any{}
	}
	c.programs[key] = value
}
