package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	SlowQueryThresh time.Duration
	DBSystem        string
}

type queryStartKey struct{}

// RegisterDBTracing installs the otelgorm plugin and a callback pair that
// tags slow statements on the active span. Query variables never reach spans:
// they carry amounts and student identifiers.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = "postgresql"
	}

	plugin := otelgorm.NewPlugin(otelgorm.WithDBName(cfg.DBSystem), otelgorm.WithoutQueryVariables())
	if err := db.Use(plugin); err != nil {
		return err
	}

	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) { annotateSpan(tx, cfg.SlowQueryThresh) }

	cb := db.Callback()
	steps := []struct {
		name     string
		register func(name string, before, after func(*gorm.DB)) error
	}{
		{"create", func(n string, b, a func(*gorm.DB)) error {
			if err := cb.Create().Before("gorm:create").Register("schoolfin:before_"+n, b); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register("schoolfin:after_"+n, a)
		}},
		{"query", func(n string, b, a func(*gorm.DB)) error {
			if err := cb.Query().Before("gorm:query").Register("schoolfin:before_"+n, b); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register("schoolfin:after_"+n, a)
		}},
		{"update", func(n string, b, a func(*gorm.DB)) error {
			if err := cb.Update().Before("gorm:update").Register("schoolfin:before_"+n, b); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register("schoolfin:after_"+n, a)
		}},
		{"delete", func(n string, b, a func(*gorm.DB)) error {
			if err := cb.Delete().Before("gorm:delete").Register("schoolfin:before_"+n, b); err != nil {
				return err
			}
			return cb.Delete().After("gorm:delete").Register("schoolfin:after_"+n, a)
		}},
		{"row", func(n string, b, a func(*gorm.DB)) error {
			if err := cb.Row().Before("gorm:row").Register("schoolfin:before_"+n, b); err != nil {
				return err
			}
			return cb.Row().After("gorm:row").Register("schoolfin:after_"+n, a)
		}},
		{"raw", func(n string, b, a func(*gorm.DB)) error {
			if err := cb.Raw().Before("gorm:raw").Register("schoolfin:before_"+n, b); err != nil {
				return err
			}
			return cb.Raw().After("gorm:raw").Register("schoolfin:after_"+n, a)
		}},
	}
	for _, s := range steps {
		if err := s.register(s.name, before, after); err != nil {
			return err
		}
	}

	logger.Info("Database tracing enabled",
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
		zap.String("db_system", cfg.DBSystem),
	)
	return nil
}

func annotateSpan(tx *gorm.DB, slowThreshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, tx.Error.Error())
		span.RecordError(tx.Error)
	}
	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		if elapsed := time.Since(start); elapsed > slowThreshold {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}
}
