package app

import (
	"context"
	"fmt"
	"time"

	"backdesk/internal/config"
	"backdesk/internal/logger"
	"backdesk/internal/session"
	workflowhttp "backdesk/internal/transport/http/workflow"
	"backdesk/internal/workflow"

	"golang.org/x/sync/errgroup"
)

var log = logger.Named("app")

// App wires config, the session store, the workflow manager and the HTTP
// server, and runs them until the context ends.
type App struct {
	cfg     *config.Config
	store   *session.SQLStore
	manager *workflow.Manager
	http    *workflowhttp.Server
	Summary *StartupSummary
}

// NewApp builds the application without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return NewAppBuilder(cfg).Build(context.Background())
}

// Run serves HTTP and purges stale sessions until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	defer a.Close()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		a.purgeLoop(ctx)
		return nil
	})
	return group.Wait()
}

func (a *App) purgeLoop(ctx context.Context) {
	interval := time.Duration(a.cfg.Session.PurgeIntervalMinutes) * time.Minute
	ttl := time.Duration(a.cfg.Session.TTLHours) * time.Hour
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.purgeOnce(ctx, ttl)
		}
	}
}

func (a *App) purgeOnce(ctx context.Context, ttl time.Duration) {
	rows, evicted, err := a.manager.Purge(ctx, ttl)
	if err != nil {
		log.Warnf("%v", err)
		return
	}
	if rows > 0 || evicted > 0 {
		log.Infof("purged %d stored entries and %d idle sessions", rows, evicted)
	}
}

// Manager exposes the workflow manager (for tests and the CLI).
func (a *App) Manager() *workflow.Manager {
	if a == nil {
		return nil
	}
	return a.manager
}

func (a *App) Close() {
	if a == nil || a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		log.Warnf("close session store: %v", err)
	}
	a.store = nil
}
