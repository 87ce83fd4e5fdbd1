package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-todos-backend/internal/config"
	httpapi "github.com/tbourn/go-todos-backend/internal/http"
	"github.com/tbourn/go-todos-backend/internal/identity"
	"github.com/tbourn/go-todos-backend/internal/observability"
	"github.com/tbourn/go-todos-backend/internal/repo"
	"github.com/tbourn/go-todos-backend/internal/sysutil"
)

func newServeCmd(a *app) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			cfg.Port = sysutil.FirstNonEmpty(port, cfg.Port)
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return cmd
}

// serve wires the store, verifier and router, then blocks until ctx is
// cancelled and the server has drained.
func serve(ctx context.Context, cfg config.Config) error {
	if err := cfg.RequireAuth(); err != nil {
		return err
	}
	gin.SetMode(cfg.GinMode)

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	db, err := repo.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.DBDriver, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			return fmt.Errorf("gorm tracing: %w", err)
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	verifier, cache, err := buildVerifier(ctx, cfg)
	if err != nil {
		return err
	}
	var checks []httpapi.HealthCheck
	if cache != nil {
		defer func() {
			if err := cache.Close(); err != nil {
				log.Warn().Err(err).Msg("token cache close")
			}
		}()
		checks = append(checks, httpapi.HealthCheck{Name: "token_cache", Ping: cache.Ping})
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, verifier, cfg, checks...)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeIdempotency(ctx, db, cfg.IdempotencyPurgeInterval)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("base_path", cfg.APIBasePath).
			Str("db_driver", cfg.DBDriver).
			Str("version", version).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	srv.SetKeepAlivesEnabled(false)
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info().Msg("http server stopped")
	return nil
}

// buildVerifier assembles the token verifier: provider certificates, an
// optional development HS256 secret, and the Redis cache when REDIS_URL is set.
// The cache is returned so the caller can ping and close it; it is nil when
// caching is off.
func buildVerifier(ctx context.Context, cfg config.Config) (identity.Verifier, *identity.RedisTokenCache, error) {
	jv := identity.NewJWTVerifier(cfg.Auth.ProjectID, identity.NewX509KeySource(cfg.Auth.CertsURL))
	if cfg.Auth.HS256Secret != "" {
		jv.HS256Secret = []byte(cfg.Auth.HS256Secret)
		log.Warn().Msg("HS256 development tokens are accepted")
	}

	if cfg.Auth.RedisURL == "" || cfg.Auth.CacheTTL == 0 {
		return jv, nil, nil
	}

	cache, err := identity.NewRedisTokenCache(ctx, cfg.Auth.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("token cache: %w", err)
	}
	log.Info().Dur("ttl", cfg.Auth.CacheTTL).Msg("token cache enabled")
	return identity.NewCachingVerifier(jv, cache, cfg.Auth.CacheTTL), cache, nil
}

// purgeIdempotency deletes expired idempotency records every interval until
// ctx is done. A non-positive interval disables the sweep.
func purgeIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("idempotency records purged")
			}
		}
	}
}
