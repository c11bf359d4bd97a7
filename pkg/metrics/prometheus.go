// Package metrics records feature model operations in Prometheus.
package metrics

import (
	"errors"
	"time"

	rdata "github.com/goliatone/go-rendererdata"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the Prometheus recorder.
type Config struct {
	// Namespace is the metrics namespace (default: "rdata").
	Namespace   string
	Subsystem   string
	ConstLabels prometheus.Labels
	// Buckets are the histogram buckets for operation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64
	// Registry defaults to prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// Option configures the recorder.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "rdata",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Recorder implements rdata.Metrics.
type Recorder struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	errors     *prometheus.CounterVec
	features   *prometheus.GaugeVec
}

// New registers the recorder's collectors.
func New(opts ...Option) *Recorder {
	config := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&config)
		}
	}
	factory := promauto.With(config.Registry)

	return &Recorder{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "operations_total",
			Help:        "Total number of feature list operations",
			ConstLabels: config.ConstLabels,
		}, []string{"operation", "status"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "operation_duration_seconds",
			Help:        "Feature list operation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"operation"}),

		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "operation_errors_total",
			Help:        "Total number of failed feature list operations",
			ConstLabels: config.ConstLabels,
		}, []string{"operation", "error_type"}),

		features: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "features",
			Help:        "Number of feature slots per asset",
			ConstLabels: config.ConstLabels,
		}, []string{"asset"}),
	}
}

// ObserveOperation implements rdata.Metrics.
func (r *Recorder) ObserveOperation(op string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		r.errors.WithLabelValues(op, ErrorType(err)).Inc()
	}
	r.operations.WithLabelValues(op, status).Inc()
	r.duration.WithLabelValues(op).Observe(duration.Seconds())
}

// SetFeatureCount implements rdata.Metrics.
func (r *Recorder) SetFeatureCount(asset string, count int) {
	r.features.WithLabelValues(asset).Set(float64(count))
}

var errorTypes = []struct {
	err  error
	name string
}{
	{rdata.ErrInvalidIndex, "invalid_index"},
	{rdata.ErrDuplicateType, "duplicate_type"},
	{rdata.ErrUnresolvedReference, "unresolved_reference"},
	{rdata.ErrPersistence, "persistence"},
	{rdata.ErrUnknownType, "unknown_type"},
	{rdata.ErrOperationPending, "pending"},
	{rdata.ErrMisaligned, "misaligned"},
}

// ErrorType returns the metric label for err.
func ErrorType(err error) string {
	for _, candidate := range errorTypes {
		if errors.Is(err, candidate.err) {
			return candidate.name
		}
	}
	return "other"
}
