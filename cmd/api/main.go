// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carterperez-dev/bizdesk/internal/admin"
	"github.com/carterperez-dev/bizdesk/internal/audit"
	"github.com/carterperez-dev/bizdesk/internal/auth"
	"github.com/carterperez-dev/bizdesk/internal/config"
	"github.com/carterperez-dev/bizdesk/internal/core"
	"github.com/carterperez-dev/bizdesk/internal/health"
	"github.com/carterperez-dev/bizdesk/internal/mail"
	"github.com/carterperez-dev/bizdesk/internal/metrics"
	"github.com/carterperez-dev/bizdesk/internal/middleware"
	"github.com/carterperez-dev/bizdesk/internal/notification"
	"github.com/carterperez-dev/bizdesk/internal/server"
	"github.com/carterperez-dev/bizdesk/internal/shop"
	"github.com/carterperez-dev/bizdesk/internal/user"
)

const (
	drainDelay          = 5 * time.Second
	revocationSweep     = time.Minute
	expiredCodePurge    = 15 * time.Minute
	notificationTimeout = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	genKeys := flag.Bool("gen-keys", false, "generate an ES256 key pair at the configured paths and exit")
	flag.Parse()

	if *genKeys {
		if err := generateKeys(*configPath); err != nil {
			slog.Error("key generation failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func generateKeys(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := auth.GenerateKeyPair(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath); err != nil {
		return err
	}
	slog.Info("key pair written",
		"private", cfg.JWT.PrivateKeyPath,
		"public", cfg.JWT.PublicKeyPath,
	)
	return nil
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	registry := newRegistry(ctx, cfg.Auth, redis, logger)

	mailer, queueSender := newMailer(cfg, logger)

	auditLog := audit.NewLogger(logger)

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	authRepo := auth.NewRepository(db.DB)
	authSvc := auth.NewService(auth.ServiceConfig{
		Repo:        authRepo,
		JWT:         jwtManager,
		Users:       userSvc,
		Registry:    registry,
		Mailer:      mailer,
		Audit:       auditLog,
		Logger:      logger,
		OTPTTL:      cfg.OTP.TTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
	})
	authHandler := auth.NewHandler(authSvc)

	notificationRepo := notification.NewRepository(db.DB)
	dispatcher := notification.NewDispatcher(notificationRepo, logger, notificationTimeout)
	notificationHandler := notification.NewHandler(notificationRepo)

	shopSvc := shop.NewService(shop.NewStore(db.DB), dispatcher, auditLog, logger)
	shopHandler := shop.NewHandler(shopSvc)

	deps := []health.Dependency{
		{Name: "database", Checker: db},
		{Name: "redis", Checker: redis},
	}
	if queueSender != nil {
		deps = append(deps, health.Dependency{
			Name:     "amqp",
			Checker:  queueSender,
			Optional: true,
		})
	}
	healthHandler := health.NewHandler(deps...)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		Users:      userSvc,
		Shop:       shopSvc,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
		ServiceName:   cfg.Otel.ServiceName,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	if cfg.Metrics.Enabled {
		router.Use(metrics.HTTPMetricsMiddleware)
	}
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(authSvc)
	adminOnly := middleware.RequireAdmin
	staffOnly := middleware.RequireStaff

	authLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit: middleware.PerMinute(
			cfg.RateLimit.AuthRequests,
			cfg.RateLimit.AuthBurst,
		),
		KeyFunc:  middleware.KeyByIPAndEndpoint,
		FailOpen: true,
	}).Handler

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator, adminOnly, authLimiter)

		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)

		shopHandler.RegisterRoutes(r, authenticator, staffOnly)
		notificationHandler.RegisterRoutes(r, authenticator)
	})

	go purgeExpiredCodes(ctx, authSvc, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	dispatcher.Wait()

	if queueSender != nil {
		if err := queueSender.Close(); err != nil {
			logger.Error("amqp close error", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func newRegistry(
	ctx context.Context,
	cfg config.AuthConfig,
	redis *core.Redis,
	logger *slog.Logger,
) auth.Registry {
	if cfg.RevocationBackend == config.RevocationMemory {
		logger.Warn("using in-memory token revocation; revocations are not shared between replicas")
		registry := auth.NewMemoryRegistry()
		go registry.RunSweeper(ctx, revocationSweep)
		return registry
	}
	return auth.NewRedisRegistry(redis.Client)
}

// newMailer returns the configured sender. The queue sender is also
// returned so it can be health checked and closed.
func newMailer(cfg *config.Config, logger *slog.Logger) (mail.Sender, *mail.QueueSender) {
	switch cfg.Mail.Transport {
	case config.MailTransportSMTP:
		return mail.NewSMTPSender(mail.SMTPConfig{
			Address:  cfg.Mail.SMTPAddress(),
			Host:     cfg.Mail.SMTPHost,
			Username: cfg.Mail.SMTPUsername,
			Password: cfg.Mail.SMTPPassword,
			From:     cfg.Mail.From,
		}), nil
	case config.MailTransportLog:
		return mail.NewLogSender(logger), nil
	default:
		q := mail.NewQueueSender(cfg.AMQP.URL, cfg.AMQP.MailQueue, logger)
		return q, q
	}
}

func purgeExpiredCodes(ctx context.Context, svc *auth.Service, logger *slog.Logger) {
	ticker := time.NewTicker(expiredCodePurge)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeExpiredCodes(ctx)
			if err != nil {
				logger.Warn("purge expired codes failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged expired codes", "count", n)
			}
		}
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
