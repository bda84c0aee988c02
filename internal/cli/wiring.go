package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/rentdesk/internal/agent"
	"github.com/soyeahso/rentdesk/internal/catalog"
	"github.com/soyeahso/rentdesk/internal/config"
	"github.com/soyeahso/rentdesk/internal/hooks"
	"github.com/soyeahso/rentdesk/internal/llm"
	"github.com/soyeahso/rentdesk/internal/logging"
	"github.com/soyeahso/rentdesk/internal/metrics"
	"github.com/soyeahso/rentdesk/internal/session"
	"github.com/soyeahso/rentdesk/internal/store"
	"github.com/soyeahso/rentdesk/internal/tools"
)

// app holds every wired component for one process.
type app struct {
	cfg          config.Config
	log          *logging.Logger
	metrics      *metrics.Metrics
	hooks        *hooks.Manager
	sessions     session.Store
	janitor      *session.Janitor
	backend      tools.Backend
	catalog      *tools.CatalogCache
	invoker      *tools.Gateway
	filter       *catalog.Filter
	history      agent.HistoryStore
	orchestrator *agent.Orchestrator

	closers []func() error
}

// appOptions trims the wiring for short-lived commands.
type appOptions struct {
	// memoryOnly forces in-memory session and history stores.
	memoryOnly bool
	// skipModel leaves the orchestrator unbuilt.
	skipModel bool
}

// newApp wires the components described by cfg. Close releases them.
func newApp(ctx context.Context, cfg config.Config, log *logging.Logger, opts appOptions) (_ *app, err error) {
	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
		hooks:   hooks.NewManager(log),
		filter:  catalog.NewFilter(cfg.Agent.CatalogCap, log),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	a.hooks.OnAll("log", hooks.LogHandler(log))

	if err := a.wireSessions(ctx, opts.memoryOnly); err != nil {
		return nil, err
	}
	if err := a.wireTools(); err != nil {
		return nil, err
	}
	if err := a.wireHistory(ctx, opts.memoryOnly); err != nil {
		return nil, err
	}
	if opts.skipModel {
		return a, nil
	}

	registry, err := llm.NewRegistryFromConfig(ctx, cfg.Model, log)
	if err != nil {
		return nil, fmt.Errorf("model backend: %w", err)
	}
	a.orchestrator = agent.New(agent.ConfigFrom(&cfg), agent.Deps{
		Registry: registry,
		Catalog:  a.catalog,
		Filter:   a.filter,
		Invoker:  a.invoker,
		Sessions: a.sessions,
		History:  a.history,
		Hooks:    a.hooks,
		Metrics:  a.metrics,
	}, log)
	log.Info().
		Str("provider", cfg.Model.Provider).
		Str("model", cfg.Model.Model).
		Str("tools", a.backend.Name()).
		Msg("orchestrator ready")
	return a, nil
}

func (a *app) wireSessions(ctx context.Context, memoryOnly bool) error {
	scfg := a.cfg.Session
	if memoryOnly {
		scfg.Store = "memory"
	}
	st, err := session.NewFromConfig(ctx, scfg, a.log)
	if err != nil {
		return err
	}
	a.sessions = st
	if c, ok := st.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	sweeper, ok := st.(session.Sweeper)
	if !ok || memoryOnly {
		return nil
	}
	j, err := session.NewJanitor(scfg.SweepSchedule, sweeper, a.log)
	if err != nil {
		return fmt.Errorf("session.sweepSchedule: %w", err)
	}
	if j == nil {
		return nil
	}
	j.OnSweep = func(removed int) {
		a.metrics.AddSwept(removed)
		a.metrics.SetActiveSessions(st.Len(context.Background()))
	}
	a.janitor = j
	return nil
}

func (a *app) wireTools() error {
	backend, err := tools.NewBackendFromConfig(a.cfg.Tools, a.log)
	if err != nil {
		return err
	}
	a.backend = backend
	if c, ok := backend.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	ttl := time.Duration(a.cfg.Tools.CatalogTTLSeconds) * time.Second
	a.catalog = tools.NewCatalogCache(backend, ttl, a.log)
	a.invoker = tools.NewGateway(backend, a.catalog, tools.GatewayOptions{
		Timeout:      time.Duration(a.cfg.Tools.TimeoutSeconds) * time.Second,
		ValidateArgs: a.cfg.Tools.ArgValidation(),
		Metrics:      a.metrics,
	}, a.log)
	return nil
}

func (a *app) wireHistory(ctx context.Context, memoryOnly bool) error {
	switch {
	case memoryOnly, a.cfg.History.Store == "", a.cfg.History.Store == "memory":
		a.history = agent.NewMemoryHistory()
		return nil
	case a.cfg.History.Store == "sqlite":
		if err := paths.EnsureDirs(); err != nil {
			return fmt.Errorf("creating data directories: %w", err)
		}
		db, err := store.Open(ctx, paths.HistoryDB(a.cfg.History.Path), a.log)
		if err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.history = store.NewSQLiteHistory(db)
		return nil
	default:
		return fmt.Errorf("unknown history store %q", a.cfg.History.Store)
	}
}

// Start begins background work.
func (a *app) Start() {
	if a.janitor != nil {
		a.janitor.Start()
	}
}

// Close stops background work and releases resources in reverse order.
func (a *app) Close() error {
	if a.janitor != nil {
		a.janitor.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
