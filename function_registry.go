package rdata

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// Function is a helper callable from rule expressions.
type Function func(args ...any) (any, error)

var functionNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedNames are bound by every engine and cannot be shadowed.
var reservedNames = map[string]bool{
	"feature": true, "category": true, "disallowMultiple": true, "present": true,
	"count": true, "asset": true, "args": true, "now": true,
}

// FunctionRegistry holds the helpers bound into rule expressions. Names are
// identifiers and are matched exactly.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: map[string]Function{}}
}

// Register binds fn to name.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	switch {
	case fn == nil:
		return fmt.Errorf("rdata: function %q is nil", name)
	case !functionNamePattern.MatchString(name):
		return fmt.Errorf("rdata: function name %q is not an identifier", name)
	case reservedNames[name]:
		return fmt.Errorf("rdata: function name %q shadows a rule variable", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = map[string]Function{}
	}
	if _, exists := r.functions[name]; exists {
		return fmt.Errorf("rdata: function %q already registered", name)
	}
	r.functions[name] = fn
	return nil
}

// Clone copies the registry; nil clones to nil.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{functions: make(map[string]Function, len(r.functions))}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Lookup returns the function bound to name.
func (r *FunctionRegistry) Lookup(name string) (Function, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.functions[name]
	return fn, ok
}

// Call runs the function bound to name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("rdata: function %q not registered", name)
	}
	return fn(args...)
}

// Names lists the registered names in order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithFunctionRegistry binds the functions of registry into the rule.
func WithFunctionRegistry(registry *FunctionRegistry) RuleOption {
	return func(cfg *ruleConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction binds fn under name. Invalid or duplicate names make
// NewRulePolicy fail.
func WithCustomFunction(name string, fn Function) RuleOption {
	return func(cfg *ruleConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		if err := cfg.functions.Register(name, fn); err != nil {
			cfg.errs = append(cfg.errs, err)
		}
	}
}
