package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"mealmcp/internal/config"
	"mealmcp/pkg/logging"
)

// purgeInterval is how often expired codes and tokens are swept from
// the token store.
const purgeInterval = time.Hour

// Application bootstraps and runs one configured server instance.
type Application struct {
	config   *config.Config
	services *Services
}

// NewApplication loads services for the given configuration. Logging
// goes to stderr so stdio transports keep stdout clean for the protocol.
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	logLevel := logging.LevelInfo
	if cfg.Debug {
		logLevel = logging.LevelDebug
	}
	var logOutput io.Writer = os.Stderr
	logging.Init(logLevel, logOutput)

	if issues := cfg.Validate(); len(issues) > 0 {
		for _, issue := range issues {
			logging.Error("Bootstrap", nil, "Configuration error: %s", issue)
		}
		return nil, fmt.Errorf("invalid configuration: %s", issues[0])
	}

	services, err := InitializeServices(ctx, cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, err
	}

	return &Application{config: cfg, services: services}, nil
}

// Services exposes the initialized components, for commands that work
// on them directly.
func (a *Application) Services() *Services {
	return a.services
}

// Run starts the transport and blocks until the context is cancelled or
// an interrupt arrives, then shuts everything down.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.services.Server.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	logging.Info("App", "Server started. Press Ctrl+C to stop.")

	g, gctx := errgroup.WithContext(ctx)

	if a.services.OAuthStore != nil {
		g.Go(func() error {
			a.purgeLoop(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	_ = g.Wait()

	logging.Info("App", "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.services.Server.Stop(shutdownCtx); err != nil {
		logging.Error("App", err, "Error stopping server")
	}
	return a.services.Close()
}

// purgeLoop sweeps expired authorization codes and tokens until the
// context is cancelled.
func (a *Application) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.services.OAuthStore.PurgeExpired(ctx); err != nil {
				logging.Error("App", err, "Token purge failed")
			}
		}
	}
}
