package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	financeapp "github.com/schoolerp/backend/internal/application/finance"
	"github.com/schoolerp/backend/internal/infrastructure/persistence"
	"github.com/schoolerp/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	router   *gin.Engine
	schoolID uuid.UUID
	year     string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, persistence.AutoMigrate(db, zap.NewNop()))
	return db
}

// newTestAPI wires the finance handlers over a throwaway sqlite database
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	require.NoError(t, middleware.SetupValidator())

	db := newTestDB(t)
	revenueRepo := persistence.NewGormRevenueRepository(db)
	expenseRepo := persistence.NewGormExpenseRepository(db)
	closureRepo := persistence.NewGormDailyClosureRepository(db)

	issuer := financeapp.NewReferenceIssuer(financeapp.ReferenceIssuerConfig{
		Store: persistence.NewGormSequenceStore(db),
	})
	ledger := financeapp.NewLedgerService(financeapp.LedgerServiceConfig{
		RevenueRepo: revenueRepo,
		ExpenseRepo: expenseRepo,
	})
	transactions := financeapp.NewTransactionService(financeapp.TransactionServiceConfig{
		RevenueRepo: revenueRepo,
		ExpenseRepo: expenseRepo,
		ClosureRepo: closureRepo,
		FeeRepo:     persistence.NewGormFeeAssignmentRepository(db),
		Issuer:      issuer,
	})
	closures := financeapp.NewClosureService(financeapp.ClosureServiceConfig{
		ClosureRepo: closureRepo,
		Ledger:      ledger,
	})
	treasury := financeapp.NewTreasuryService(persistence.NewGormTreasuryAccountRepository(db), ledger, zap.NewNop())

	fh := NewFinanceHandler(issuer, transactions, ledger, treasury)
	ch := NewClosureHandler(closures)

	router := gin.New()
	router.Use(middleware.RequestID())
	fin := router.Group("/finance", middleware.SchoolScope())
	fin.POST("/references", fh.IssueReference)
	fin.GET("/references/non-sequential", fh.ListNonSequential)
	fin.POST("/revenues", fh.RecordRevenue)
	fin.POST("/expenses", fh.RecordExpense)
	fin.PUT("/revenues/:id/status", fh.ChangeRevenueStatus)
	fin.PUT("/expenses/:id/status", fh.ChangeExpenseStatus)
	fin.GET("/ledger/daily", fh.GetDailyLedger)
	fin.GET("/students/:id/balance", fh.GetStudentBalance)
	fin.POST("/treasury/working-capital", fh.ComputeWorkingCapital)
	fin.POST("/variance", ch.ComputeVariance)
	fin.GET("/closures", ch.List)
	fin.GET("/closures/preview", ch.Preview)
	fin.GET("/closures/:id", ch.Get)
	fin.POST("/closures", ch.Create)
	fin.PUT("/closures/:id", ch.Update)
	fin.DELETE("/closures/:id", ch.Delete)
	fin.POST("/closures/:id/justification", ch.RecordJustification)
	fin.POST("/closures/:id/validate", ch.Validate)
	fin.POST("/closures/validate-by-date", ch.ValidateByDate)

	return &testAPI{router: router, schoolID: uuid.New(), year: "2025-2026"}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *struct {
		Total      int64 `json:"total"`
		Page       int   `json:"page"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

func (a *testAPI) do(t *testing.T, method, path string, body any) (int, apiResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.SchoolIDHeader, a.schoolID.String())
	req.Header.Set(middleware.AcademicYearHeader, a.year)

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Code != http.StatusNoContent {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	return out
}
