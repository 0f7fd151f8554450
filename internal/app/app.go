package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/loopchat/loopchat-server/internal/attach"
	"github.com/loopchat/loopchat-server/internal/auth"
	"github.com/loopchat/loopchat-server/internal/chat"
	"github.com/loopchat/loopchat-server/internal/config"
	"github.com/loopchat/loopchat-server/internal/friends"
	"github.com/loopchat/loopchat-server/internal/presence"
	"github.com/loopchat/loopchat-server/internal/store"
	"github.com/loopchat/loopchat-server/internal/store/sqlite"
	transporthttp "github.com/loopchat/loopchat-server/internal/transport/http"
)

// App wires together the storage, domain, and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	registry := presence.NewRegistry()
	dispatcher := chat.NewDispatcher(registry, chat.EveryoneMembership{Presence: registry}, logger)

	friendsService := friends.New(st)
	var authz chat.Authorizer = chat.AllowAll{}
	if cfg.RequireFriendship {
		authz = friendsService
	}

	chatService := chat.NewService(st, dispatcher, authz, logger)

	attachStore, err := attach.NewDiskStore(cfg.UploadDir, cfg.UploadBaseURL)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init attachment store: %w", err)
	}

	server := transporthttp.NewServer(transporthttp.Deps{
		Auth:     authService,
		Chat:     chatService,
		Friends:  friendsService,
		Attach:   attachStore,
		Registry: registry,
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
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
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
