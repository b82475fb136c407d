// Command apiserver runs the ordering API: phone verification,
// invite-gated registration, orders and referral rewards.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	"github.com/omnilaze/universal/internal/app"
	"github.com/omnilaze/universal/internal/app/httpapi"
	"github.com/omnilaze/universal/internal/app/metrics"
	"github.com/omnilaze/universal/internal/app/storage/postgres"
	redisstore "github.com/omnilaze/universal/internal/app/storage/redis"
	"github.com/omnilaze/universal/internal/config"
	"github.com/omnilaze/universal/internal/middleware"
	"github.com/omnilaze/universal/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg.Logging).WithComponent("apiserver")

	stores, db, err := buildStores(cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	application, err := app.New(cfg, stores, log)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := application.Stop(stopCtx); err != nil {
			log.WithError(err).Warn("stopping services")
		}
	}()

	handler := buildHandler(cfg, application, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// buildHandler assembles the middleware chain around the API routes and
// mounts the metrics endpoint.
func buildHandler(cfg config.Config, application *app.Application, log *logger.Logger) http.Handler {
	api := httpapi.NewHandler(application)

	var handler http.Handler = api
	if cfg.App.RateLimitPerSecond > 0 {
		limiter := middleware.NewRateLimiter(cfg.App.RateLimitPerSecond, cfg.App.RateLimitBurst, log)
		limiter.StartCleanup(10*time.Minute, make(chan struct{}))
		handler = limiter.Handler(handler)
	}
	handler = middleware.NewCORSMiddleware(cfg.App.CORSOrigins).Handler(handler)

	root := http.NewServeMux()
	root.Handle("/metrics", metrics.Handler())
	root.Handle("/", handler)
	return metrics.InstrumentHandler(root)
}

// buildStores selects storage backends from configuration: PostgreSQL
// when a DSN is present, Redis for verification codes when an address
// is present, in-memory otherwise.
func buildStores(cfg config.Config, log *logger.Logger) (app.Stores, *sql.DB, error) {
	var stores app.Stores
	var db *sql.DB

	if cfg.Database.DSN != "" {
		var err error
		db, err = openDatabase(cfg.Database)
		if err != nil {
			return stores, nil, fmt.Errorf("open database: %w", err)
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return stores, nil, fmt.Errorf("run migrations: %w", err)
		}

		pg := postgres.New(db)
		stores.Verification = pg
		stores.Users = pg
		stores.Invites = pg
		stores.Orders = pg
		stores.Rewards = pg
		stores.Preferences = pg
		log.Info("using postgres storage")
	} else {
		log.Warn("no database configured; using in-memory storage")
	}

	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			if db != nil {
				db.Close()
			}
			return stores, nil, fmt.Errorf("ping redis: %w", err)
		}
		stores.Verification = redisstore.NewCodeStore(client)
		log.Info("using redis for verification codes")
	}

	return stores, db, nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeSec) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
