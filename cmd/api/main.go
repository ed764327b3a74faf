package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"

	"github.com/konghome/boardgate/internal/auth"
	"github.com/konghome/boardgate/internal/background"
	"github.com/konghome/boardgate/internal/config"
	"github.com/konghome/boardgate/internal/database"
	"github.com/konghome/boardgate/internal/guard"
	"github.com/konghome/boardgate/internal/handlers"
	"github.com/konghome/boardgate/internal/middleware"
	"github.com/konghome/boardgate/internal/models"
	"github.com/konghome/boardgate/internal/repositories"
	"github.com/konghome/boardgate/internal/routes"
	"github.com/konghome/boardgate/internal/services"
	pkghttp "github.com/konghome/boardgate/pkg/http"
	pkglogger "github.com/konghome/boardgate/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if cfg.Server.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Server.SentryDSN,
			Environment:      cfg.Server.Env,
			AttachStacktrace: true,
		}); err != nil {
			logger.Error("failed to initialize sentry", slog.Any("error", err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := db.Migrate(migrateCtx)
		cancel()
		if err != nil {
			logger.Error("failed to migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Guard state lives in Redis when configured so every instance sees the
	// same lockouts and presence; otherwise it is per process.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Error("invalid REDIS_URL", slog.Any("error", err))
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("redis connection established")
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	blockedIPRepo := repositories.NewBlockedIPRepository(db)
	contentRepo := repositories.NewContentRepository(db)

	// Initialize guards
	policy := guard.LockoutPolicy{
		MaxFailedAttempts: cfg.Guard.MaxFailedAttempts,
		LockoutDuration:   cfg.Guard.LockoutDuration,
	}

	var (
		loginAttempts guard.LoginAttemptGuard
		presence      guard.PresenceTracker
		sweepers      = map[string]guard.Sweeper{}
	)
	if redisClient != nil {
		redisPresence := guard.NewRedisPresence(redisClient, cfg.Redis.KeyPrefix, cfg.Guard.PresenceTimeout)
		loginAttempts = guard.NewRedisLoginAttempts(redisClient, cfg.Redis.KeyPrefix, policy)
		presence = redisPresence
		sweepers["presence"] = redisPresence
	} else {
		memAttempts := guard.NewMemoryLoginAttempts(policy)
		memPresence := guard.NewMemoryPresence(cfg.Guard.PresenceTimeout)
		loginAttempts = memAttempts
		presence = memPresence
		sweepers["login_attempts"] = memAttempts
		sweepers["presence"] = memPresence
	}

	cooldown := guard.NewCooldownGuard(contentRepo, map[models.ActionType]time.Duration{
		models.ActionBoardPost: cfg.Guard.BoardPostCooldown,
		models.ActionMessage:   cfg.Guard.MessageCooldown,
	}, cfg.Guard.CooldownStrict)
	sweepers["cooldown"] = cooldown

	cleanupManager := background.NewCleanupManager(sweepers, logger, cfg.Guard.SweepInterval)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)
	ipConfig := &pkghttp.IPConfig{
		TrustForwardedFor: cfg.Gate.TrustForwardedFor,
		TrustedProxies:    cfg.Gate.TrustedProxies,
	}

	// Initialize services
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   cfg.Auth.FailureDelayBase,
		RandomDelay: cfg.Auth.FailureDelayJitter,
	})
	authService := services.NewAuthService(userRepo, tokenManager, loginAttempts, logger, auditLogger,
		services.WithTimingDelay(timingDelay))
	ipRegistry := services.NewIPBlockRegistry(blockedIPRepo, logger)
	contentService := services.NewContentService(contentRepo, cooldown, logger)
	adminService := services.NewAdminService(userRepo, presence, logger)

	// Bootstrap first admin user if configured
	bootstrapCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := adminService.BootstrapAdmin(bootstrapCtx, os.Getenv("ADMIN_USER_ID"), os.Getenv("ADMIN_PASSWORD")); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	gate := auth.NewGate(tokenManager, ipRegistry, userRepo, presence, auth.GateConfig{
		Bypass:                auth.DefaultBypassRules(),
		IP:                    ipConfig,
		BanLookupTimeout:      cfg.Gate.BanLookupTimeout,
		IPBlockExemptPrefixes: cfg.Gate.IPBlockExemptPrefixes,
	}, logger, auditLogger)

	healthDeps := map[string]handlers.Pinger{"database": db}
	if redisClient != nil {
		healthDeps["redis"] = handlers.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	router := routes.NewRouter(routes.Dependencies{
		Gate: gate,
		Auth: handlers.NewAuthHandler(authService, ipConfig, auth.CookieConfig{
			Secure:   cfg.Auth.CookieSecure,
			SameSite: cfg.Auth.CookieSameSite,
		}, cfg.Auth.RefreshTokenExpiry),
		Content:        handlers.NewContentHandler(contentService),
		Admin:          handlers.NewAdminHandler(adminService, ipRegistry, ipConfig, auditLogger),
		Health:         handlers.NewHealthHandler(healthDeps),
		IPConfig:       ipConfig,
		CORS:           middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins),
		Env:            cfg.Server.Env,
		LoginRateLimit: middleware.RateLimitConfig{RequestsPerMinute: cfg.Auth.LoginRatePerMinute},
		RequestTimeout: 60 * time.Second,
	}, logger)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		return
	}

	logger.Info("server stopped gracefully")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
