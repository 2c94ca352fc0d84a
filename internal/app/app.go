package app

import (
	"context"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/netchat-server/internal/auth"
	"github.com/vovakirdan/netchat-server/internal/cluster"
	"github.com/vovakirdan/netchat-server/internal/config"
	"github.com/vovakirdan/netchat-server/internal/core"
	"github.com/vovakirdan/netchat-server/internal/store"
	"github.com/vovakirdan/netchat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/netchat-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	cluster         *cluster.RedisRouter
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	loc, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("display timezone %q: %w", cfg.DisplayTimezone, err)
	}

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if cfg.AutoMigrate {
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             core.NewHub(logger),
		store:           st,
		log:             logger,
	}

	var router core.Router = a.hub
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.cluster = cluster.NewRedisRouter(client, cfg.RedisChannelPrefix, a.hub, logger)
		router = a.cluster
		logger.Info().Str("redis_addr", cfg.RedisAddr).Msg("cluster fan-out enabled")
	}

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}, cfg.BcryptCost)

	deps := transporthttp.Deps{
		Hub: a.hub,
		Dispatcher: core.NewDispatcher(st, router, core.DispatcherConfig{
			StoreTimeout: cfg.StoreTimeout,
			VerifyUserID: cfg.VerifyUserID,
		}, logger),
		Presenter: core.NewPresenter(st, core.PresenterConfig{
			StoreTimeout:  cfg.StoreTimeout,
			DefaultAvatar: cfg.DefaultAvatar,
			Location:      loc,
		}),
		Store: st,
		Auth:  authService,
	}
	a.server = transporthttp.NewServer(deps, cfg, logger)

	return a, nil
}

// Migrate applies the schema to the configured database and exits.
func Migrate(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("schema applied")
	return nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	if a.cluster != nil {
		if err := a.cluster.Ping(ctx); err != nil {
			return fmt.Errorf("reach redis: %w", err)
		}
		if err := a.cluster.Start(ctx); err != nil {
			return fmt.Errorf("start cluster router: %w", err)
		}
	}

	// Sessions derive from ctx, so cancelling it closes every live connection.
	a.server.BaseContext = func(net.Listener) context.Context { return ctx }

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
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Int("rooms", a.hub.Rooms()).Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}

		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.cluster != nil {
		if err := a.cluster.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
