package rdata

import (
	"github.com/goliatone/go-rendererdata/pkg/activity"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Model.
type Option func(*modelConfig)

type modelConfig struct {
	persistence    Persistence
	history        History
	registry       *TypeRegistry
	policy         DuplicatePolicy
	logger         Logger
	metrics        Metrics
	tracer         trace.Tracer
	activityHooks  activity.Hooks
	activityConfig activity.Config
	actorID        string
	tenantID       string
}

func applyOptions(opts []Option) modelConfig {
	cfg := modelConfig{
		activityConfig: activity.Config{Enabled: true},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.policy == nil {
		cfg.policy = DisallowMultiplePolicy{}
	}
	if cfg.logger == nil {
		cfg.logger = noopLogger{}
	}
	if cfg.metrics == nil {
		cfg.metrics = noopMetrics{}
	}
	if cfg.tracer == nil {
		cfg.tracer = defaultTracer()
	}
	if cfg.history == nil && cfg.persistence != nil {
		cfg.history = directHistory{persistence: cfg.persistence}
	}
	return cfg
}

// WithPersistence sets the storage collaborator. Required.
func WithPersistence(p Persistence) Option {
	return func(cfg *modelConfig) {
		cfg.persistence = p
	}
}

// WithHistory records every mutation as an undoable group. Without it,
// destroyed children are deleted directly through persistence.
func WithHistory(h History) Option {
	return func(cfg *modelConfig) {
		cfg.history = h
	}
}

// WithRegistry sets the feature type registry. Required.
func WithRegistry(r *TypeRegistry) Option {
	return func(cfg *modelConfig) {
		cfg.registry = r
	}
}

// WithDuplicatePolicy replaces DisallowMultiplePolicy.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(cfg *modelConfig) {
		cfg.policy = p
	}
}

// WithLogger records every completed operation.
func WithLogger(l Logger) Option {
	return func(cfg *modelConfig) {
		cfg.logger = l
	}
}

// WithMetrics observes operation durations and feature counts.
func WithMetrics(m Metrics) Option {
	return func(cfg *modelConfig) {
		cfg.metrics = m
	}
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(cfg *modelConfig) {
		cfg.tracer = t
	}
}

// WithActivityHooks attaches activity hooks. Hooks are cloned and nil
// entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *modelConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityConfig overrides the emitter defaults.
func WithActivityConfig(c activity.Config) Option {
	return func(cfg *modelConfig) {
		cfg.activityConfig = c
	}
}

// WithActor stamps activity events with the editing user and tenant.
func WithActor(actorID, tenantID string) Option {
	return func(cfg *modelConfig) {
		cfg.actorID = actorID
		cfg.tenantID = tenantID
	}
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
