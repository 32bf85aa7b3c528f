package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sabanago/ride-sharing/internal/auth"
	"github.com/sabanago/ride-sharing/internal/notifications"
	"github.com/sabanago/ride-sharing/internal/ratings"
	"github.com/sabanago/ride-sharing/internal/routes"
	"github.com/sabanago/ride-sharing/internal/tariff"
	"github.com/sabanago/ride-sharing/internal/transit"
	"github.com/sabanago/ride-sharing/internal/trips"
	"github.com/sabanago/ride-sharing/internal/vehicles"
	"github.com/sabanago/ride-sharing/pkg/common"
	"github.com/sabanago/ride-sharing/pkg/config"
	"github.com/sabanago/ride-sharing/pkg/database"
	"github.com/sabanago/ride-sharing/pkg/errors"
	"github.com/sabanago/ride-sharing/pkg/eventbus"
	"github.com/sabanago/ride-sharing/pkg/health"
	"github.com/sabanago/ride-sharing/pkg/logger"
	"github.com/sabanago/ride-sharing/pkg/middleware"
	"github.com/sabanago/ride-sharing/pkg/ratelimit"
	redisclient "github.com/sabanago/ride-sharing/pkg/redis"
	"github.com/sabanago/ride-sharing/pkg/resilience"
	"github.com/sabanago/ride-sharing/pkg/session"
	"github.com/sabanago/ride-sharing/pkg/storage"
	"github.com/sabanago/ride-sharing/pkg/swagger"
	"github.com/sabanago/ride-sharing/pkg/tracing"
)

const (
	serviceName = "ride-sharing-api"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting API",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	// Initialize Sentry for error tracking
	sentryConfig := errors.DefaultSentryConfig()
	sentryConfig.ServerName = serviceName
	sentryConfig.Release = version
	if err := errors.InitSentry(sentryConfig); err != nil {
		logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
	} else {
		defer errors.Flush(2 * time.Second)
		logger.Info("Sentry error tracking initialized successfully")
	}

	// Initialize OpenTelemetry tracer
	tracerEnabled := os.Getenv("OTEL_ENABLED") == "true"
	if tracerEnabled {
		tracerCfg := tracing.Config{
			ServiceName:    os.Getenv("OTEL_SERVICE_NAME"),
			ServiceVersion: os.Getenv("OTEL_SERVICE_VERSION"),
			Environment:    cfg.Server.Environment,
			OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Enabled:        true,
		}

		tp, err := tracing.InitTracer(tracerCfg, logger.Get())
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Failed to shutdown tracer", zap.Error(err))
				}
			}()
			logger.Info("OpenTelemetry tracing initialized successfully")
		}
	}

	// The API can boot without a database: only health, version, metrics and
	// docs are served then. Every business route needs the pool.
	var db *pgxpool.Pool
	if cfg.Database.Configured() {
		if cfg.Database.AutoMigrate {
			sourceURL := "file://" + cfg.Database.MigrationsPath
			if err := database.Migrate(sourceURL, cfg.Database.MigrateURL()); err != nil {
				logger.Fatal("Failed to apply migrations", zap.Error(err))
			}
			logger.Info("Database migrations applied", zap.String("source", sourceURL))
		}

		db, err = database.NewPostgresPool(&cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer database.Close(db)
		logger.Info("Connected to database")
	} else {
		logger.Warn("No database configured, serving operational endpoints only")
	}

	var redisClient *redisclient.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisclient.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("Failed to close redis client", zap.Error(err))
			}
		}()
		logger.Info("Connected to redis", zap.String("addr", cfg.Redis.RedisAddr()))
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		if redisClient == nil {
			logger.Warn("Rate limiting requires redis, continuing without it")
		} else {
			limiter = ratelimit.NewLimiter(redisClient.Raw(), cfg.RateLimit)
			logger.Info("Rate limiting enabled",
				zap.Int("default_limit", cfg.RateLimit.DefaultLimit),
				zap.Int("anonymous_limit", cfg.RateLimit.AnonymousLimit),
				zap.Duration("window", cfg.RateLimit.Window()),
			)
		}
	}

	var bus *eventbus.Bus
	if cfg.Events.Enabled {
		bus, err = eventbus.New(eventbus.Config{
			URL:        cfg.Events.URL,
			Name:       serviceName,
			StreamName: cfg.Events.StreamName,
		})
		if err != nil {
			logger.Warn("Failed to connect to event bus, continuing without events", zap.Error(err))
			bus = nil
		} else {
			defer bus.Close()
			logger.Info("Connected to event bus", zap.String("stream", cfg.Events.StreamName))
		}
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryWithSentry())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestTimeout(15 * time.Second))
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.SanitizeRequest())
	router.Use(middleware.Metrics(serviceName))

	if tracerEnabled {
		router.Use(middleware.TracingMiddleware(serviceName))
	}
	if limiter != nil {
		router.Use(middleware.RateLimit(limiter, cfg.RateLimit))
	}

	router.Use(middleware.ErrorHandler())

	// Health check endpoints
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.GET("/healthz", common.HealthCheck(serviceName, version))
	router.GET("/health/live", common.LivenessProbe(serviceName, version))

	healthChecks := make(map[string]func() error)
	if db != nil {
		healthChecks["database"] = health.PoolChecker(db)
	}
	if redisClient != nil {
		healthChecks["redis"] = health.RedisChecker(redisClient.Raw())
	}
	router.GET("/health/ready", common.ReadinessProbe(serviceName, version, healthChecks))

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": serviceName,
			"version": version,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	swagger.RegisterRoutes(router)

	if db != nil {
		registerAPI(router, cfg, db, redisClient, bus)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// registerAPI wires the business services and mounts /api/v1. Everything here
// needs the database; the operational endpoints are registered by main either
// way.
func registerAPI(router *gin.Engine, cfg *config.Config, db *pgxpool.Pool, redisClient *redisclient.Client, bus *eventbus.Bus) {
	var sessions session.RevocationStore
	if redisClient != nil {
		sessions = session.NewRedisStore(redisClient.Raw())
	} else {
		sessions = session.NewMemoryStore()
		logger.Info("Using in-memory token revocation store")
	}

	var store storage.Store
	var err error
	if cfg.Storage.Provider == "s3" {
		store, err = storage.NewS3Store(context.Background(), storage.S3Options{
			Bucket:    cfg.Storage.S3Bucket,
			Region:    cfg.Storage.S3Region,
			Endpoint:  cfg.Storage.S3Endpoint,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
			BaseURL:   cfg.Storage.S3BaseURL,
		})
		if err != nil {
			logger.Fatal("Failed to initialize S3 storage", zap.Error(err))
		}
		logger.Info("S3 document storage initialized", zap.String("bucket", cfg.Storage.S3Bucket))
	} else {
		store, err = storage.NewLocalStore(cfg.Storage.UploadsDir, "/uploads")
		if err != nil {
			logger.Fatal("Failed to initialize local storage", zap.Error(err))
		}
		router.Static("/uploads", cfg.Storage.UploadsDir)
		logger.Info("Local document storage initialized", zap.String("dir", cfg.Storage.UploadsDir))
	}

	var sender notifications.Sender
	if cfg.Mail.Enabled {
		sender = notifications.NewSMTPSender(cfg.Mail)
	} else {
		sender = notifications.NewLogSender()
		logger.Info("SMTP disabled, outbound email is logged")
	}
	mailer := notifications.NewMailer(notifications.NewResilientSender(
		sender,
		resilience.NewBreakerFromConfig("smtp-email", cfg.Resilience.CircuitBreaker, nil),
	))

	vehiclesSvc := vehicles.NewService(vehicles.NewRepository(db), cfg.Vehicles)
	authSvc := auth.NewService(auth.NewRepository(db), vehiclesSvc, mailer, sessions, cfg.JWT, cfg.Auth)
	tariffSvc := tariff.NewService(cfg.Tariff)
	transitSvc := transit.NewService(transit.NewRepository(db))
	ratingsSvc := ratings.NewService(ratings.NewRepository(db))
	routesSvc := routes.NewService(cfg.Routes, cfg.Resilience,
		routes.NewCache(redisClient, cfg.Routes.CacheTTL()), tariffSvc)
	tripsSvc := trips.NewService(trips.NewRepository(db),
		vehiclesSvc, tariffSvc, transitSvc, ratingsSvc, mailer, bus)

	authHandler := auth.NewHandler(authSvc)
	vehiclesHandler := vehicles.NewHandler(vehiclesSvc, store, cfg.Storage)
	tripsHandler := trips.NewHandler(tripsSvc)
	tariffHandler := tariff.NewHandler(tariffSvc)
	transitHandler := transit.NewHandler(transitSvc)
	routesHandler := routes.NewHandler(routesSvc)

	api := router.Group("/api/v1")

	authHandler.RegisterPublicRoutes(api.Group("/auth"))

	publicMaps := api.Group("/maps")
	transitHandler.RegisterRoutes(publicMaps)
	routesHandler.RegisterPublicRoutes(publicMaps)

	authed := api.Group("")
	authed.Use(middleware.Auth(cfg.JWT.Secret, sessions))

	authHandler.RegisterProtectedRoutes(authed.Group("/auth"))
	vehiclesHandler.RegisterRoutes(authed.Group("/vehicles"))

	tripsGroup := authed.Group("/trips")
	tripsHandler.RegisterRoutes(tripsGroup)
	tariffHandler.RegisterRoutes(tripsGroup)

	routesHandler.RegisterRoutes(authed.Group("/maps"))
}
