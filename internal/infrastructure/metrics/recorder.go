// Package metrics exposes finance counters to Prometheus
package metrics

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	appfinance "github.com/schoolerp/backend/internal/application/finance"
	"go.uber.org/zap"
)

const (
	modeSequential = "sequential"
	modeFallback   = "fallback"
)

// Recorder implements appfinance.Recorder with Prometheus collectors
type Recorder struct {
	gatherer prometheus.Gatherer

	referencesIssued     *prometheus.CounterVec
	referenceConflicts   prometheus.Counter
	referenceFailures    prometheus.Counter
	aggregationRetries   prometheus.Counter
	closuresValidated    prometheus.Counter
	validationRejections *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// NewRecorder registers the finance collectors on a fresh registry that also
// carries the Go runtime and process collectors
func NewRecorder(namespace string) (*Recorder, *prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, nil, err
	}
	r, err := NewRecorderWith(namespace, reg, reg)
	if err != nil {
		return nil, nil, err
	}
	return r, reg, nil
}

// NewRecorderWith registers the finance collectors on reg
func NewRecorderWith(namespace string, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*Recorder, error) {
	r := &Recorder{
		gatherer: gatherer,
		referencesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "references_issued_total",
			Help:      "Receipt references issued, by numbering mode",
		}, []string{"mode"}),
		referenceConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_conflicts_total",
			Help:      "Unique reference collisions that triggered a re-issue",
		}),
		referenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_issuance_failures_total",
			Help:      "Revenues that could not be stored after every re-issue attempt",
		}),
		aggregationRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_retries_total",
			Help:      "Ledger reads retried after a transient failure",
		}),
		closuresValidated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "closures_validated_total",
			Help:      "Daily closures validated and locked",
		}),
		validationRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "closure_validation_rejections_total",
			Help:      "Closure validations refused, by error code",
		}, []string{"reason"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	for _, c := range []prometheus.Collector{
		r.referencesIssued, r.referenceConflicts, r.referenceFailures,
		r.aggregationRetries, r.closuresValidated, r.validationRejections,
		r.httpRequests, r.httpLatency,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return r, nil
}

// ReferenceIssued counts one issued reference
func (r *Recorder) ReferenceIssued(sequential bool) {
	mode := modeFallback
	if sequential {
		mode = modeSequential
	}
	r.referencesIssued.WithLabelValues(mode).Inc()
}

func (r *Recorder) ReferenceConflict()       { r.referenceConflicts.Inc() }
func (r *Recorder) ReferenceIssuanceFailed() { r.referenceFailures.Inc() }
func (r *Recorder) AggregationRetry()        { r.aggregationRetries.Inc() }
func (r *Recorder) ClosureValidated()        { r.closuresValidated.Inc() }

// ValidationRejected counts a refused validation under its error code
func (r *Recorder) ValidationRejected(reason string) {
	r.validationRejections.WithLabelValues(reason).Inc()
}

// Handler serves the gathered metrics in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latency by matched route, so
// path parameters do not explode the label set
func (r *Recorder) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		r.httpLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RegisterDatabase adds connection pool statistics and the number of
// closures still in draft to reg
func RegisterDatabase(reg prometheus.Registerer, namespace, dbName string, db *sql.DB, logger *zap.Logger) error {
	if err := reg.Register(collectors.NewDBStatsCollector(db, dbName)); err != nil {
		return fmt.Errorf("register db stats: %w", err)
	}
	backlog := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "draft_closures",
		Help:      "Daily closures not yet validated",
	}, func() float64 {
		var count int64
		if err := db.QueryRow("SELECT COUNT(*) FROM daily_closures WHERE status = 'draft'").Scan(&count); err != nil {
			logger.Warn("Draft closure gauge query failed", zap.Error(err))
			return 0
		}
		return float64(count)
	})
	if err := reg.Register(backlog); err != nil {
		return fmt.Errorf("register draft backlog: %w", err)
	}
	return nil
}

var _ appfinance.Recorder = (*Recorder)(nil)
