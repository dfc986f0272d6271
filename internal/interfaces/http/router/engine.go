package router

import (
	"github.com/gin-gonic/gin"
	"github.com/schoolerp/backend/internal/infrastructure/config"
	"github.com/schoolerp/backend/internal/infrastructure/logger"
	"github.com/schoolerp/backend/internal/infrastructure/metrics"
	"github.com/schoolerp/backend/internal/interfaces/http/handler"
	"github.com/schoolerp/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// EngineConfig holds everything the HTTP engine is assembled from. Metrics
// may be nil, which leaves /metrics unregistered.
type EngineConfig struct {
	Logger      *zap.Logger
	HTTP        config.HTTPConfig
	Tracing     middleware.TracingConfig
	Metrics     *metrics.Recorder
	MetricsPath string

	System   *handler.SystemHandler
	Finance  *handler.FinanceHandler
	Closures *handler.ClosureHandler
}

// NewEngine builds the gin engine: global middleware, /health, /metrics and
// the versioned finance API
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	if err := middleware.SetupValidator(); err != nil {
		return nil, err
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(cfg.Logger),
		middleware.Tracing(cfg.Tracing),
		middleware.SpanAttributes(),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(cfg.Logger),
		middleware.Secure(),
		middleware.CORSWithConfig(cors),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
	if cfg.Metrics != nil {
		engine.Use(cfg.Metrics.GinMiddleware())
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		engine.GET(path, gin.WrapH(cfg.Metrics.Handler()))
	}

	engine.GET("/health", cfg.System.Health)

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Register(FinanceRoutes(cfg.Finance, cfg.Closures))
	r.Setup()

	return engine, nil
}

// FinanceRoutes declares the /finance API. Every route requires the school
// scope headers.
func FinanceRoutes(fh *handler.FinanceHandler, ch *handler.ClosureHandler) *DomainGroup {
	finance := NewDomainGroup("finance", "/finance").Use(middleware.SchoolScope())

	finance.Group("references", "/references").
		POST("", fh.IssueReference).
		GET("/non-sequential", fh.ListNonSequential)

	finance.
		POST("/revenues", fh.RecordRevenue).
		PUT("/revenues/:id/status", fh.ChangeRevenueStatus).
		POST("/expenses", fh.RecordExpense).
		PUT("/expenses/:id/status", fh.ChangeExpenseStatus).
		GET("/ledger/daily", fh.GetDailyLedger).
		POST("/variance", ch.ComputeVariance).
		GET("/students/:id/balance", fh.GetStudentBalance).
		POST("/treasury/working-capital", fh.ComputeWorkingCapital)

	finance.Group("closures", "/closures").
		GET("", ch.List).
		GET("/preview", ch.Preview).
		POST("", ch.Create).
		POST("/validate-by-date", ch.ValidateByDate).
		GET("/:id", ch.Get).
		PUT("/:id", ch.Update).
		DELETE("/:id", ch.Delete).
		POST("/:id/justification", ch.RecordJustification).
		POST("/:id/validate", ch.Validate)

	return finance
}
