package app

import (
	"context"
	"fmt"

	"prism/internal/config"
	"prism/internal/logger"
	"prism/internal/store/sqlite"
	"prism/internal/subscription"
	apihttp "prism/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App owns the long-lived components: the store, the HTTP server and the
// background notification queue.
type App struct {
	cfg      *config.Config
	store    *sqlite.SqliteStore
	server   *apihttp.Server
	payments *subscription.Service
	Summary  *StartupSummary
}

// NewApp builds the application without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run serves until ctx is cancelled, then drains notifications and closes the store.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil || a.server == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	defer a.Close()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("api http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Close releases resources. It is safe to call more than once.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.payments != nil {
		a.payments.Wait()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("close store: %v", err)
		}
		a.store = nil
	}
}

// Server exposes the HTTP server (for tests).
func (a *App) Server() *apihttp.Server {
	if a == nil {
		return nil
	}
	return a.server
}
