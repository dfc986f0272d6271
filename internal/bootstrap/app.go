// Package bootstrap assembles the finance service graph shared by the HTTP
// server and the operator CLI.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	financeapp "github.com/schoolerp/backend/internal/application/finance"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/infrastructure/cache"
	"github.com/schoolerp/backend/internal/infrastructure/config"
	"github.com/schoolerp/backend/internal/infrastructure/event"
	"github.com/schoolerp/backend/internal/infrastructure/logger"
	"github.com/schoolerp/backend/internal/infrastructure/messaging"
	"github.com/schoolerp/backend/internal/infrastructure/metrics"
	"github.com/schoolerp/backend/internal/infrastructure/migration"
	"github.com/schoolerp/backend/internal/infrastructure/persistence"
	"github.com/schoolerp/backend/internal/infrastructure/telemetry"
	"github.com/schoolerp/backend/migrations"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/lib/pq"
)

// Options tune what New builds on top of the configuration
type Options struct {
	// SkipMigrations leaves the schema untouched, for read-mostly tools
	SkipMigrations bool
	// Metrics enables the prometheus recorder even when disabled in config
	Metrics bool
}

// App is the wired finance service graph
type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *persistence.Database

	Issuer       *financeapp.ReferenceIssuer
	Transactions *financeapp.TransactionService
	Ledger       *financeapp.LedgerService
	Closures     *financeapp.ClosureService
	Treasury     *financeapp.TreasuryService

	Bus      *event.InMemoryEventBus
	Metrics  *metrics.Recorder
	Registry *prometheus.Registry

	// Checks are the dependency probes reported by /health
	Checks map[string]func(context.Context) error

	closers []func() error
}

// New opens the database, brings the schema up to date and wires every
// finance service. Close releases what New opened, in reverse order.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (app *App, err error) {
	app = &App{
		Config: cfg,
		Logger: log,
		Checks: make(map[string]func(context.Context) error),
	}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
			app = nil
		}
	}()

	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:      logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh),
		PrepareStmt: true,
	})
	if err != nil {
		return app, err
	}
	app.DB = db
	app.closers = append(app.closers, db.Close)
	app.Checks["database"] = func(ctx context.Context) error {
		sqlDB, err := db.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        cfg.Database.Driver,
	}, log); err != nil {
		return app, err
	}

	if !opts.SkipMigrations {
		if err := migrateSchema(cfg, db.DB, log); err != nil {
			return app, err
		}
	}

	var recorder financeapp.Recorder = financeapp.NopRecorder{}
	if cfg.Metrics.Enabled || opts.Metrics {
		rec, reg, err := metrics.NewRecorder(cfg.Metrics.Namespace)
		if err != nil {
			return app, err
		}
		sqlDB, err := db.DB.DB()
		if err != nil {
			return app, err
		}
		if err := metrics.RegisterDatabase(reg, cfg.Metrics.Namespace, cfg.Database.DBName, sqlDB, log); err != nil {
			return app, err
		}
		app.Metrics, app.Registry = rec, reg
		recorder = rec
	}

	revenueRepo := persistence.NewGormRevenueRepository(db.DB)
	expenseRepo := persistence.NewGormExpenseRepository(db.DB)
	closureRepo := persistence.NewGormDailyClosureRepository(db.DB)

	store, err := app.sequenceStore(db.DB, revenueRepo)
	if err != nil {
		return app, err
	}

	app.Issuer = financeapp.NewReferenceIssuer(financeapp.ReferenceIssuerConfig{
		Store:           store,
		ClassCodeLength: cfg.Reference.ClassCodeLength,
		Metrics:         recorder,
		Logger:          log,
	})
	app.Ledger = financeapp.NewLedgerService(financeapp.LedgerServiceConfig{
		RevenueRepo: revenueRepo,
		ExpenseRepo: expenseRepo,
		Retry: financeapp.RetryPolicy{
			MaxAttempts:     cfg.Aggregation.RetryAttempts,
			InitialInterval: cfg.Aggregation.InitialInterval,
			MaxInterval:     cfg.Aggregation.MaxInterval,
		},
		Metrics: recorder,
		Logger:  log,
	})
	app.Transactions = financeapp.NewTransactionService(financeapp.TransactionServiceConfig{
		RevenueRepo:       revenueRepo,
		ExpenseRepo:       expenseRepo,
		ClosureRepo:       closureRepo,
		FeeRepo:           persistence.NewGormFeeAssignmentRepository(db.DB),
		Issuer:            app.Issuer,
		ReferenceAttempts: cfg.Reference.MaxAttempts,
		Metrics:           recorder,
		Logger:            log,
	})

	app.Bus = event.NewInMemoryEventBus(log)
	if err := app.Bus.Start(ctx); err != nil {
		return app, err
	}
	app.closers = append(app.closers, func() error { return app.Bus.Stop(context.Background()) })

	if cfg.AMQP.Enabled {
		publisher, err := messaging.Dial(cfg.AMQP, log)
		if err != nil {
			return app, err
		}
		app.closers = append(app.closers, publisher.Close)
		app.Bus.Subscribe(publisher, publisher.EventTypes()...)
	}

	app.Closures = financeapp.NewClosureService(financeapp.ClosureServiceConfig{
		ClosureRepo:    closureRepo,
		Ledger:         app.Ledger,
		EventPublisher: app.Bus,
		Metrics:        recorder,
		Logger:         log,
	})
	app.Treasury = financeapp.NewTreasuryService(persistence.NewGormTreasuryAccountRepository(db.DB), app.Ledger, log)

	log.Info("Finance services wired",
		zap.String("database", cfg.Database.Driver),
		zap.String("reference_backend", cfg.Reference.Backend),
		zap.Bool("amqp", cfg.AMQP.Enabled),
		zap.Bool("metrics", app.Metrics != nil),
	)
	return app, nil
}

func (a *App) sequenceStore(db *gorm.DB, source cache.ReferenceSource) (finance.SequenceStore, error) {
	switch a.Config.Reference.Backend {
	case config.ReferenceBackendRedis:
		client, err := cache.NewRedisClient(a.Config.Redis)
		if err != nil {
			return nil, err
		}
		store := cache.NewRedisSequenceStore(client, a.Config.Reference.KeyPrefix, source)
		a.closers = append(a.closers, store.Close)
		a.Checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
		return store, nil
	case config.ReferenceBackendMemory:
		return cache.NewInMemorySequenceStore(source), nil
	default:
		return persistence.NewGormSequenceStore(db), nil
	}
}

// migrateSchema applies the embedded SQL migrations on postgres. sqlite is
// a development driver and uses gorm's AutoMigrate.
func migrateSchema(cfg *config.Config, db *gorm.DB, log *zap.Logger) error {
	if cfg.Database.Driver == config.DriverSQLite {
		return persistence.AutoMigrate(db, log)
	}

	// the migrator closes the connection it is handed, so it gets its own
	conn, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	m, err := migration.NewEmbedded(conn, migrations.FS, log)
	if err != nil {
		_ = conn.Close()
		return err
	}
	return errors.Join(m.Up(), m.Close())
}

// Close releases resources in reverse order of acquisition
func (a *App) Close(_ context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
