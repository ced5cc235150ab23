package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backdesk/internal/config"
	"backdesk/internal/gateway/remote"
	"backdesk/internal/indicator"
	"backdesk/internal/request"
	"backdesk/internal/session"
	workflowhttp "backdesk/internal/transport/http/workflow"
	"backdesk/internal/workflow"
)

// AppBuilder assembles the App. The constructor hooks can be replaced by
// options so tests avoid real files and sockets.
type AppBuilder struct {
	cfg *config.Config

	catalogFn func(config.CatalogConfig) (*indicator.Catalog, error)
	remoteFn  func(config.RemoteConfig) (workflow.Remote, error)
	storeFn   func(config.SessionConfig) (*session.SQLStore, error)
}

type AppBuilderOption func(*AppBuilder)

// WithRemote replaces the service client.
func WithRemote(r workflow.Remote) AppBuilderOption {
	return func(b *AppBuilder) {
		b.remoteFn = func(config.RemoteConfig) (workflow.Remote, error) { return r, nil }
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:       cfg,
		catalogFn: BuildCatalog,
		remoteFn:  buildRemote,
		storeFn:   buildSessionStore,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg

	catalog, err := b.catalogFn(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	client, err := b.remoteFn(cfg.Remote)
	if err != nil {
		return nil, err
	}
	store, err := b.storeFn(cfg.Session)
	if err != nil {
		return nil, err
	}

	mgr := workflow.NewManager(client, store, WorkflowOptions(cfg, catalog))
	srv, err := workflowhttp.NewServer(workflowhttp.Config{
		Addr:       cfg.App.HTTPAddr,
		CookieName: cfg.Session.CookieName,
		CookieTTL:  time.Duration(cfg.Session.TTLHours) * time.Hour,
		Manager:    mgr,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &App{
		cfg:     cfg,
		store:   store,
		manager: mgr,
		http:    srv,
		Summary: newStartupSummary(cfg, catalog),
	}, nil
}

// BuildCatalog returns the catalog named by cfg, or the built-in one.
func BuildCatalog(cfg config.CatalogConfig) (*indicator.Catalog, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return indicator.DefaultCatalog(), nil
	}
	catalog, err := indicator.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("load indicator catalog: %w", err)
	}
	return catalog, nil
}

// WorkflowOptions maps the backtest section onto the workflow defaults.
func WorkflowOptions(cfg *config.Config, catalog *indicator.Catalog) workflow.Options {
	bt := cfg.Backtest
	return workflow.Options{
		Catalog: catalog,
		Defaults: request.Defaults{
			Logic:          bt.Logic,
			InitialCapital: bt.InitialCapital,
			MaxTradeAmount: bt.MaxTradeAmount,
			StopLossPct:    bt.StopLossPct,
			TakeProfitPct:  bt.TakeProfitPct,
		},
		DefaultInterval: bt.Interval,
	}
}

func buildRemote(cfg config.RemoteConfig) (workflow.Remote, error) {
	client, err := remote.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("remote client: %w", err)
	}
	return client, nil
}

func buildSessionStore(cfg config.SessionConfig) (*session.SQLStore, error) {
	return session.OpenStore(cfg.DBPath)
}
