package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/schoolerp/backend/internal/bootstrap"
	"github.com/schoolerp/backend/internal/infrastructure/config"
	"github.com/schoolerp/backend/internal/infrastructure/logger"
	"github.com/schoolerp/backend/internal/infrastructure/telemetry"
	"github.com/schoolerp/backend/internal/interfaces/http/handler"
	"github.com/schoolerp/backend/internal/interfaces/http/middleware"
	"github.com/schoolerp/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is stamped at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			School Finance API
//	@version		1.0
//	@description	Receipt references, daily ledgers, closures and treasury for a school
//	@BasePath		/api/v1

func main() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting school finance backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	tracer, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	app, err := bootstrap.New(context.Background(), cfg, log, bootstrap.Options{})
	if err != nil {
		log.Fatal("Failed to wire finance services", zap.Error(err))
	}

	checks := make(map[string]handler.HealthCheck, len(app.Checks))
	for name, check := range app.Checks {
		checks[name] = check
	}

	engine, err := router.NewEngine(router.EngineConfig{
		Logger: log,
		HTTP:   cfg.HTTP,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Metrics:     app.Metrics,
		MetricsPath: cfg.Metrics.Path,
		System:      handler.NewSystemHandler(cfg.App.Name, version, checks, 2*time.Second),
		Finance:     handler.NewFinanceHandler(app.Issuer, app.Transactions, app.Ledger, app.Treasury),
		Closures:    handler.NewClosureHandler(app.Closures),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := app.Close(ctx); err != nil {
		log.Error("Failed to release resources", zap.Error(err))
	}
	if err := tracer.Shutdown(ctx); err != nil {
		log.Error("Failed to flush traces", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
