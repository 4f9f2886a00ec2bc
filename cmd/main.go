package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/profboard/profboard/internal/adapters/http/api"
	"github.com/profboard/profboard/internal/adapters/http/site"
	"github.com/profboard/profboard/internal/adapters/http/swagger"
	"github.com/profboard/profboard/internal/adapters/identity"
	"github.com/profboard/profboard/internal/adapters/repository"
	app "github.com/profboard/profboard/internal/app"
	"github.com/profboard/profboard/internal/config"
	"github.com/profboard/profboard/internal/domain/search"
	"github.com/profboard/profboard/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 15 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, closeStore, err := buildStore(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to connect to storage", logger.Error(err))
		return
	}
	defer closeStore()

	svc := app.New(
		app.WithLogger(log),
		app.WithStore(store),
		app.WithRanker(search.NewRanker(search.WithMaxResults(cfg.MaxSearchResults))),
		app.WithSnapshotRefreshInterval(time.Duration(cfg.SnapshotRefreshSec)*time.Second),
	)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	var providerOpts []identity.ProviderOption
	if cfg.SSOBaseURL != "" {
		providerOpts = append(providerOpts, identity.WithBaseURL(cfg.SSOBaseURL))
	}
	if cfg.SSOClientID != "" {
		providerOpts = append(providerOpts, identity.WithClientID(cfg.SSOClientID))
	}
	sso := identity.NewProvider(providerOpts...)

	// HTTP mux and routes. The landing page owns "/", so it goes last.
	mux := http.NewServeMux()
	api.NewServer(svc, sso).Register(mux)
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// buildStore selects Postgres when a DSN is configured and the in-memory
// store otherwise. The in-memory store starts empty and loses everything
// on restart; it exists for local runs.
func buildStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn(ctx, "no database_url configured; using volatile in-memory store")
		return repository.NewMemStore(), func() {}, nil
	}

	pg, err := repository.NewPostgres(ctx, cfg.DatabaseURL,
		repository.WithMinConns(int32(cfg.DBMinConns)),
		repository.WithMaxConns(int32(cfg.DBMaxConns)),
	)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Ping(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	log.Info(ctx, "connected to postgres")
	return pg, pg.Close, nil
}
