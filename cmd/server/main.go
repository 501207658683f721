package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/slimmermetai/auth-core/internal/config"
	"github.com/slimmermetai/auth-core/internal/database"
	"github.com/slimmermetai/auth-core/internal/handler"
	"github.com/slimmermetai/auth-core/internal/logging"
	"github.com/slimmermetai/auth-core/internal/mailer"
	"github.com/slimmermetai/auth-core/internal/metrics"
	"github.com/slimmermetai/auth-core/internal/middleware"
	"github.com/slimmermetai/auth-core/internal/queue"
	"github.com/slimmermetai/auth-core/internal/repository"
	"github.com/slimmermetai/auth-core/internal/router"
	"github.com/slimmermetai/auth-core/internal/service"
	"github.com/slimmermetai/auth-core/internal/utils"
)

func main() {
	cfg := config.Load()
	sec := config.LoadSecurityConfig(cfg)
	rlCfg := config.LoadRateLimitConfig()
	qCfg := config.LoadQueueConfig()
	mailCfg := config.LoadMailConfig()
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	applied, err := database.Migrate(ctx, db, cfg.DBDriver)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	logger.Info("migrations applied", "count", applied, "driver", cfg.DBDriver)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("auth", reg)

	jwtSvc, err := utils.NewJWTService(cfg.JWTSecret, "auth-core")
	if err != nil {
		log.Fatalf("jwt: %v", err)
	}

	deliverer := &mailer.Deliverer{
		Sender:  mailer.NewSender(mailCfg, logger),
		BaseURL: cfg.BaseURL,
		Log:     logger,
	}
	var notifier service.Notifier = service.DirectNotifier{Handler: deliverer.Handle, Metrics: m}
	if qCfg.Enabled {
		notifier = &service.AMQPPublisher{URL: qCfg.URL, Queue: qCfg.EmailQueue, Log: logger, Metrics: m}
		consumer := &queue.Consumer{URL: qCfg.URL, Queue: qCfg.EmailQueue, Handler: deliverer.Handle, Log: logger}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("email consumer stopped", "err", err)
			}
		}()
	}

	auth := service.NewAuthService(service.Deps{
		DB:       db,
		Users:    repository.NewAuthRepo(db),
		Tokens:   repository.NewTokenRepo(db),
		Hasher:   utils.NewPasswordHasher(cfg.BcryptCost),
		JWT:      jwtSvc,
		Notifier: notifier,
		Log:      logger,
		Metrics:  m,
		Options: service.Options{
			AccessTTL:     cfg.AccessTTL(),
			RefreshTTL:    cfg.RefreshTTL(),
			MaxFailed:     sec.LoginMaxFailed,
			LockoutWindow: sec.LoginLockoutWindow,
		},
	})
	if cfg.CleanupEvery > 0 {
		go auth.RunCleanup(ctx, cfg.CleanupEvery)
	}

	rdb := redisFor(rlCfg, logger)
	if rdb != nil {
		defer rdb.Close()
	}
	var limiter *middleware.RateLimiter
	if rlCfg.Enabled {
		var store middleware.RateLimitStore = middleware.NewMemoryStore()
		if rdb != nil {
			store = middleware.NewRedisStore(rdb)
		}
		limiter = middleware.NewRateLimiter(rlCfg, store, logger, m)
	}

	pipeline := middleware.Pipeline{Log: logger, Security: sec, Verifier: auth, Limiter: limiter}.Build()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	router.Use(e, m, pipeline)
	router.RegisterRoutes(e, &handler.HealthHandler{DB: db, Redis: rdb}, m)
	router.RegisterAuth(e, handler.NewAuthHandler(auth))
	router.RegisterAdmin(e, &handler.AdminHandler{Auth: auth})

	e.Server.ReadTimeout = 15 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}

func openDB(cfg config.Config) (*sql.DB, error) {
	if cfg.DBDriver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBName), 0o755); err != nil {
			return nil, err
		}
		return database.OpenSQLite(cfg.DBName)
	}
	return database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

// redisFor connects to Redis when the limiter is configured for it. A nil
// client means the in-process store is used.
func redisFor(cfg config.RateLimitConfig, logger *slog.Logger) *redis.Client {
	if !cfg.Enabled || cfg.Backend != "redis" {
		return nil
	}
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unreachable, rate limiting uses the in-process store")
	}
	return rdb
}
