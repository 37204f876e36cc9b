package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/formhub/backend/internal/application/files"
	appidentity "github.com/formhub/backend/internal/application/identity"
	"github.com/formhub/backend/internal/application/notification"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/infrastructure/auth"
	"github.com/formhub/backend/internal/infrastructure/cache"
	"github.com/formhub/backend/internal/infrastructure/config"
	"github.com/formhub/backend/internal/infrastructure/event"
	"github.com/formhub/backend/internal/infrastructure/logger"
	"github.com/formhub/backend/internal/infrastructure/persistence"
	"github.com/formhub/backend/internal/infrastructure/storage"
	"github.com/formhub/backend/internal/infrastructure/telegram"
	"github.com/formhub/backend/internal/infrastructure/telemetry"
	"github.com/formhub/backend/internal/interfaces/http/middleware"
	"github.com/formhub/backend/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: time.RFC3339,
		Service:    cfg.App.Name,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting application",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Env),
	)

	// Background workers stop when ctx is cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel),
		logger.WithSlowThreshold(cfg.Database.SlowThreshold))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database connection", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("driver", db.Driver()))

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.DefaultDBTracingConfig()
		dbTracing.Enabled = true
		dbTracing.LogFullSQL = !cfg.App.IsProduction()
		if db.Driver() == "sqlite" {
			dbTracing.DBSystem = "sqlite"
		}
		if err := telemetry.NewDBTracingPlugin(dbTracing, log).RegisterOtelGorm(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	// Postgres schemas are owned by cmd/migrate
	if db.Driver() == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to create sqlite schema", zap.Error(err))
		}
	}

	// Redis backs token revocation and notification dedup when enabled
	var (
		revocations auth.RevocationStore
		processed   shared.IdempotencyStore
	)
	if cfg.Redis.Enabled {
		client, err := auth.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func(client *redis.Client) {
			_ = client.Close()
		}(client)
		revocations = auth.NewRedisRevocationStore(client)
		processed = cache.NewRedisIdempotencyStore(client, "")
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	} else {
		log.Warn("Redis disabled; token revocations are kept in process memory")
		revocations = auth.NewMemoryRevocationStore()
		processed = cache.NewMemoryIdempotencyStore(0)
	}
	defer func() {
		_ = processed.Close()
	}()

	// Blob storage
	var store files.Store
	if cfg.Storage.Bucket != "" {
		s3Store, err := storage.NewS3FileStore(&cfg.Storage,
			storage.WithLogger(log),
			storage.WithURLExpiry(cfg.Storage.URLExpiry),
		)
		if err != nil {
			log.Fatal("Failed to initialize object storage", zap.Error(err))
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare storage bucket", zap.Error(err))
		}
		store = s3Store
		log.Info("Object storage ready", zap.String("bucket", s3Store.GetBucket()))
	} else {
		log.Warn("storage.bucket not set; uploads are kept in process memory")
		store = storage.NewMemoryFileStore()
	}

	// Telegram
	botClient := telegram.NewClient(cfg.Telegram.BotToken,
		telegram.WithBaseURL(cfg.Telegram.APIBaseURL),
		telegram.WithRequestTimeout(cfg.Telegram.RequestTimeout),
	)
	notifier := telegram.NewService(botClient, log)

	// Event bus and post-commit subscribers
	bus := event.NewEventBus(log)
	sessions := persistence.NewGormSessionFactory(db.DB)
	bus.Subscribe(event.NewIdempotentHandler(
		notification.NewSubmissionNotificationHandler(sessions, notifier, log),
		processed,
		log,
		event.WithIdempotencyKey("submission_notification"),
	))
	bus.Subscribe(files.NewCleanupHandler(store, log))
	bus.Subscribe(appidentity.NewRespondentAuditHandler(log))
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	var workers sync.WaitGroup

	if notifier.Enabled() && cfg.Telegram.PollingEnabled {
		bot := telegram.NewBot(botClient, cfg.Telegram.PollTimeout, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := bot.Run(ctx); err != nil {
				log.Error("Telegram bot stopped", zap.Error(err))
			}
		}()
	} else if !notifier.Enabled() {
		log.Warn("telegram.bot_token not set; submission notifications are disabled")
	}

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		workers.Add(1)
		go func() {
			defer workers.Done()
			limiter.Run(ctx)
		}()
	}

	engine, err := router.NewEngine(router.Dependencies{
		Config:      cfg,
		DB:          db,
		Sessions:    sessions,
		Bus:         bus,
		Tokens:      auth.NewJWTService(cfg.JWT),
		Revocations: revocations,
		Store:       store,
		Limiter:     limiter,
		Logger:      log,
	})
	if err != nil {
		log.Fatal("Failed to build HTTP router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// In-flight requests are done; flushes they started finish before the database closes
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not drain", zap.Error(err))
	}
	cancel()
	workers.Wait()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}

	log.Info("Server exited")
}
