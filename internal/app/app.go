package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/loopmarked/dashboard/internal/auth"
	"github.com/loopmarked/dashboard/internal/config"
	"github.com/loopmarked/dashboard/internal/realtime"
	"github.com/loopmarked/dashboard/internal/store/sqlite"
	transporthttp "github.com/loopmarked/dashboard/internal/transport/http"
)

// App wires storage, the realtime feed and the HTTP transport.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	feed            *realtime.FeedStore
	log             *zerolog.Logger
}

// OpenFeed opens the SQLite store at cfg.DatabasePath and attaches a hub.
// The chat command uses it directly for in-process sessions.
func OpenFeed(cfg *config.Config, logger *zerolog.Logger) (*realtime.FeedStore, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")
	return realtime.WithFeed(st, realtime.NewHub(cfg.SubscriberBuffer, logger)), nil
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	feed, err := OpenFeed(cfg, logger)
	if err != nil {
		return nil, err
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	}
	authService := auth.NewService(feed, jwtConfig, cfg.DevTokens)
	if cfg.DevTokens {
		logger.Warn().Msg("dev tokens enabled: anyone can mint a token for any user id")
	}

	server := transporthttp.NewServer(feed, authService, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		feed:            feed,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if err := a.feed.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close store")
	} else {
		a.log.Info().Msg("store closed")
	}
}
