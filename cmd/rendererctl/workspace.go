package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/aquasecurity/table"
	rdata "github.com/goliatone/go-rendererdata"
	"github.com/goliatone/go-rendererdata/pkg/activity"
	"github.com/goliatone/go-rendererdata/pkg/metrics"
	"github.com/goliatone/go-rendererdata/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
)

// workspace holds what every command needs: the asset directory store, the
// feature catalog and the ambient stack built from Config.
type workspace struct {
	cfg      Config
	registry *rdata.TypeRegistry
	store    *store.FileStore
	logger   *slog.Logger
	metrics  *prometheus.Registry
	recorder *metrics.Recorder
}

func openWorkspace(cfg Config, logs io.Writer) (*workspace, error) {
	registry, err := catalog()
	if err != nil {
		return nil, err
	}
	fs, err := store.NewFileStore(cfg.Dir, registry)
	if err != nil {
		return nil, err
	}
	ws := &workspace{
		cfg:      cfg,
		registry: registry,
		store:    fs,
		logger:   newLogger(cfg, logs),
	}
	if cfg.Metrics {
		ws.metrics = prometheus.NewRegistry()
		ws.recorder = metrics.New(metrics.WithRegistry(ws.metrics), metrics.WithNamespace("rendererctl"))
	}
	return ws, nil
}

// options returns the model options built from the workspace configuration.
func (ws *workspace) options() ([]rdata.Option, error) {
	logger := rdata.SlogLogger(ws.logger)
	opts := []rdata.Option{
		rdata.WithPersistence(ws.store),
		rdata.WithRegistry(ws.registry),
		rdata.WithLogger(logger),
		rdata.WithActivityHooks(activity.Hooks{activity.HookFunc(ws.logActivity)}),
		rdata.WithActivityConfig(activity.Config{Enabled: true, Verbs: ws.cfg.ActivityVerbs}),
	}
	if ws.cfg.ActorID != "" {
		opts = append(opts, rdata.WithActor(ws.cfg.ActorID, ""))
	}
	if ws.recorder != nil {
		opts = append(opts, rdata.WithMetrics(ws.recorder))
	}
	if ws.cfg.Rule != "" {
		policy, err := rdata.NewRulePolicy(ws.cfg.Rule,
			rdata.WithRuleEngine(ws.cfg.RuleEngine),
			rdata.WithRuleLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, rdata.WithDuplicatePolicy(policy))
	}
	return opts, nil
}

func (ws *workspace) logActivity(ctx context.Context, event activity.Event) error {
	ws.logger.InfoContext(ctx, "activity",
		slog.String("verb", event.Verb),
		slog.String("object_type", event.ObjectType),
		slog.String("object_id", event.ObjectID),
		slog.Any("metadata", event.Metadata),
	)
	return nil
}

// open loads the named asset and builds a model over it.
func (ws *workspace) open(ctx context.Context, name string) (*rdata.Model, error) {
	asset, err := ws.store.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	opts, err := ws.options()
	if err != nil {
		return nil, err
	}
	return rdata.Open(asset, opts...)
}

// writeMetrics prints a summary of the collected metric families. It is a
// no-op unless metrics are enabled.
func (ws *workspace) writeMetrics(w io.Writer) error {
	if ws.metrics == nil {
		return nil
	}
	families, err := ws.metrics.Gather()
	if err != nil {
		return fmt.Errorf("rendererctl: gather metrics: %w", err)
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })

	tbl := table.New(w)
	tbl.SetBorders(false)
	tbl.SetHeaders("Metric", "Series")
	for _, family := range families {
		tbl.AddRow(family.GetName(), fmt.Sprint(len(family.GetMetric())))
	}
	tbl.Render()
	return nil
}
