package persistence

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory sqlite database with the finance schema.
// The single connection serializes transactions the way row locks would.
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

	require.NoError(t, AutoMigrate(db, zap.NewNop()))
	return db
}

func testScope() shared.SchoolScope {
	return shared.SchoolScope{
		SchoolID:     uuid.New(),
		AcademicYear: "2025-2026",
		UserID:       uuid.New(),
	}
}

func newTestRevenue(t *testing.T, scope shared.SchoolScope, kind finance.RevenueKind, amount int64, date, reference string) *finance.Revenue {
	t.Helper()
	details := finance.RevenueDetails{ClassName: "CM2"}
	if kind.RequiresStudent() {
		studentID := uuid.New()
		details.StudentID = &studentID
	}
	revenue, err := finance.NewRevenue(scope, kind, decimal.NewFromInt(amount), date, details)
	require.NoError(t, err)
	revenue.AssignReference(finance.ReceiptReference{Value: reference, Sequential: true})
	return revenue
}

func TestGormRevenueRepository_CreateRejectsDuplicateReference(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormRevenueRepository(db)
	ctx := context.Background()
	scope := testScope()

	require.NoError(t, repo.Create(ctx, newTestRevenue(t, scope, finance.RevenueKindCanteen, 500, "2025-10-17", "REC-025026-C0001-CM2")))

	err := repo.Create(ctx, newTestRevenue(t, scope, finance.RevenueKindCanteen, 700, "2025-10-17", "REC-025026-C0001-CM2"))
	assert.ErrorIs(t, err, finance.ErrDuplicateReference)

	// another school may hold the same reference
	other := testScope()
	assert.NoError(t, repo.Create(ctx, newTestRevenue(t, other, finance.RevenueKindCanteen, 700, "2025-10-17", "REC-025026-C0001-CM2")))
}

func TestGormRevenueRepository_RestoresSource(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormRevenueRepository(db)
	ctx := context.Background()
	scope := testScope()

	fee := newTestRevenue(t, scope, finance.RevenueKindTuition, 500, "2025-10-17", "REC-025026-T0001-CM2")
	require.NoError(t, repo.Create(ctx, fee))
	donation, err := finance.NewRevenue(scope, finance.RevenueKindDonation, decimal.NewFromInt(900), "2025-10-17", finance.RevenueDetails{Payer: "Parents association"})
	require.NoError(t, err)
	donation.AssignReference(finance.ReceiptReference{Value: "REC-025026-D0001-GEN", Sequential: true})
	require.NoError(t, repo.Create(ctx, donation))

	storedFee, err := repo.FindByID(ctx, scope, fee.ID)
	require.NoError(t, err)
	assert.Equal(t, fee.Source, storedFee.Source)
	assert.IsType(t, finance.StudentFee{}, storedFee.Source)

	storedDonation, err := repo.FindByID(ctx, scope, donation.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.Contribution{Payer: "Parents association"}, storedDonation.Source)
	assert.Nil(t, storedDonation.Student())
}

func TestGormRevenueRepository_FindByDayAndSums(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormRevenueRepository(db)
	ctx := context.Background()
	scope := testScope()

	morning := newTestRevenue(t, scope, finance.RevenueKindCanteen, 1000, "2025-10-17T08:15:00", "REC-025026-C0001-CM2")
	afternoon := newTestRevenue(t, scope, finance.RevenueKindDonation, 3000, "2025-10-17 16:40", "REC-025026-0001-CM2")
	voided := newTestRevenue(t, scope, finance.RevenueKindCanteen, 9999, "2025-10-17", "REC-025026-C0002-CM2")
	require.NoError(t, voided.ChangeStatus(finance.TransactionStatusCancelled))
	nextDay := newTestRevenue(t, scope, finance.RevenueKindCanteen, 400, "2025-10-18", "REC-025026-C0003-CM2")
	for _, r := range []*finance.Revenue{morning, afternoon, voided, nextDay} {
		require.NoError(t, repo.Create(ctx, r))
	}

	day, err := repo.FindByDay(ctx, scope, "2025-10-17")
	require.NoError(t, err)
	assert.Len(t, day, 3, "void revenues are returned; the aggregator drops them")

	total, err := repo.SumBetween(ctx, scope, "2025-10-17", "2025-10-18")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(4400).Equal(total), "got %s", total)

	total, err = repo.SumBetween(ctx, scope, "2025-10-19", "2025-10-31")
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestGormRevenueRepository_SumPaidByStudent(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormRevenueRepository(db)
	ctx := context.Background()
	scope := testScope()
	studentID := uuid.New()

	paid := func(kind finance.RevenueKind, amount int64, ref string, status finance.TransactionStatus) *finance.Revenue {
		r, err := finance.NewRevenue(scope, kind, decimal.NewFromInt(amount), "2025-10-17", finance.RevenueDetails{
			StudentID: &studentID,
			Status:    status,
		})
		require.NoError(t, err)
		r.AssignReference(finance.ReceiptReference{Value: ref, Sequential: true})
		return r
	}
	require.NoError(t, repo.Create(ctx, paid(finance.RevenueKindTuition, 25000, "REC-025026-T0001-GEN", finance.TransactionStatusCompleted)))
	require.NoError(t, repo.Create(ctx, paid(finance.RevenueKindCanteen, 5000, "REC-025026-C0001-GEN", finance.TransactionStatusPending)))
	require.NoError(t, repo.Create(ctx, paid(finance.RevenueKindTuition, 7000, "REC-025026-T0002-GEN", finance.TransactionStatusRejected)))

	total, err := repo.SumPaidByStudent(ctx, scope, studentID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(30000).Equal(total), "got %s", total)

	total, err = repo.SumPaidByStudent(ctx, scope, uuid.New())
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestGormRevenueRepository_FindNonSequential(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormRevenueRepository(db)
	ctx := context.Background()
	scope := testScope()

	for i := 0; i < 3; i++ {
		r := newTestRevenue(t, scope, finance.RevenueKindCanteen, 100, "2025-10-17", "")
		r.AssignReference(finance.ReceiptReference{Value: fmt.Sprintf("REC-025026-TMP2025101709000%d-AB1%d-CM2", i, i)})
		require.NoError(t, repo.Create(ctx, r))
	}
	require.NoError(t, repo.Create(ctx, newTestRevenue(t, scope, finance.RevenueKindCanteen, 100, "2025-10-17", "REC-025026-C0001-CM2")))

	page, total, err := repo.FindNonSequential(ctx, scope, shared.Filter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	for _, r := range page {
		assert.False(t, r.Sequential)
	}
}

func TestGormRevenueRepository_FindReferences(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormRevenueRepository(db)
	ctx := context.Background()
	scope := testScope()

	for _, ref := range []string{"REC-025026-T0007-CM2", "REC-025026-0003-CM2", "REC-025026-T0002-CE1", "REC-024025-T0009-CM2"} {
		require.NoError(t, repo.Create(ctx, newTestRevenue(t, scope, finance.RevenueKindCanteen, 100, "2025-10-17", ref)))
	}

	key := finance.SequenceKey{SchoolID: scope.SchoolID, YearCode: "025026", ClassCode: "CM2", Prefix: "T"}
	refs, err := repo.FindReferences(ctx, key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"REC-025026-T0007-CM2", "REC-025026-0003-CM2"}, refs)
	assert.Equal(t, 7, finance.MaxOrdinal(key, refs))
}

func TestGormExpenseRepository_SumBetweenSkipsVoid(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormExpenseRepository(db)
	ctx := context.Background()
	scope := testScope()

	newExpense := func(amount int64, status finance.TransactionStatus) *finance.Expense {
		e, err := finance.NewExpense(scope, finance.ExpenseCategorySupplies, decimal.NewFromInt(amount), "2025-10-17", finance.PaymentMethodCash, status)
		require.NoError(t, err)
		return e
	}
	require.NoError(t, repo.Create(ctx, newExpense(1500, finance.TransactionStatusCompleted)))
	require.NoError(t, repo.Create(ctx, newExpense(500, finance.TransactionStatusPending)))
	require.NoError(t, repo.Create(ctx, newExpense(800, finance.TransactionStatusCancelled)))

	total, err := repo.SumBetween(ctx, scope, "2025-10-17", "2025-10-17")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2000).Equal(total), "got %s", total)

	day, err := repo.FindByDay(ctx, scope, "2025-10-17")
	require.NoError(t, err)
	assert.Len(t, day, 3)

	_, err = repo.FindByID(ctx, testScope(), day[0].ID)
	assert.ErrorIs(t, err, finance.ErrTransactionNotFound)
}

func newTestClosure(t *testing.T, scope shared.SchoolScope, date string, cashOnHand int64) *finance.DailyClosure {
	t.Helper()
	closure, err := finance.NewDailyClosure(scope, date, finance.ClosureFigures{
		OpeningCash:   decimal.NewFromInt(10000),
		CashOnHand:    decimal.NewFromInt(cashOnHand),
		TotalIncome:   decimal.NewFromInt(8000),
		TotalExpenses: decimal.NewFromInt(2000),
	}, "")
	require.NoError(t, err)
	return closure
}

func TestGormDailyClosureRepository_OneClosurePerDay(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormDailyClosureRepository(db)
	ctx := context.Background()
	scope := testScope()

	require.NoError(t, repo.Create(ctx, newTestClosure(t, scope, "2025-10-17", 16000)))
	err := repo.Create(ctx, newTestClosure(t, scope, "2025-10-17", 15000))
	assert.ErrorIs(t, err, finance.ErrDuplicateClosure)

	// same day, next academic year
	nextYear := scope
	nextYear.AcademicYear = "2026-2027"
	assert.NoError(t, repo.Create(ctx, newTestClosure(t, nextYear, "2025-10-17", 15000)))
}

func TestGormDailyClosureRepository_SaveWithLock(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormDailyClosureRepository(db)
	ctx := context.Background()
	scope := testScope()

	closure := newTestClosure(t, scope, "2025-10-17", 15500)
	require.NoError(t, repo.Create(ctx, closure))

	mine, err := repo.FindByID(ctx, scope, closure.ID)
	require.NoError(t, err)
	theirs, err := repo.FindByID(ctx, scope, closure.ID)
	require.NoError(t, err)

	require.NoError(t, mine.RecordJustification("Coins handed to the canteen", scope.UserID))
	require.NoError(t, repo.SaveWithLock(ctx, mine))
	assert.Equal(t, 2, mine.Version)

	require.NoError(t, theirs.Update(finance.ClosurePatch{}, nil))
	err = repo.SaveWithLock(ctx, theirs)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

	stored, err := repo.FindByDate(ctx, scope, "2025-10-17")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
	require.NotNil(t, stored.Justification)
	assert.Equal(t, "Coins handed to the canteen", stored.Justification.Text)
	assert.True(t, stored.Justification.IsCurrentFor(stored.Figures()))
	assert.True(t, decimal.NewFromInt(-500).Equal(stored.Variance))

	require.NoError(t, stored.Validate(scope.UserID))
	require.NoError(t, repo.SaveWithLock(ctx, stored))

	locked, err := repo.FindByID(ctx, scope, closure.ID)
	require.NoError(t, err)
	assert.True(t, locked.IsLocked())
	assert.NotNil(t, locked.ValidatedAt)
	assert.Equal(t, 3, locked.Version)
}

func TestGormDailyClosureRepository_FindAll(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormDailyClosureRepository(db)
	ctx := context.Background()
	scope := testScope()

	for _, day := range []string{"2025-10-13", "2025-10-14", "2025-10-15", "2025-10-16"} {
		require.NoError(t, repo.Create(ctx, newTestClosure(t, scope, day, 16000)))
	}
	require.NoError(t, repo.Create(ctx, newTestClosure(t, testScope(), "2025-10-14", 16000)))

	filter := finance.ClosureFilter{
		Filter:   shared.Filter{Page: 1, PageSize: 10, OrderBy: "date", OrderDir: "asc"},
		DateFrom: "2025-10-14",
		DateTo:   "2025-10-16",
		Status:   finance.ClosureStatusDraft,
	}
	closures, total, err := repo.FindAll(ctx, scope, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, closures, 3)
	assert.Equal(t, "2025-10-14", closures[0].Date)
	assert.Equal(t, "2025-10-16", closures[2].Date)

	filter.OrderBy = "date; DROP TABLE daily_closures"
	_, _, err = repo.FindAll(ctx, scope, filter)
	assert.NoError(t, err)
}

func TestGormDailyClosureRepository_DeleteDraft(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormDailyClosureRepository(db)
	ctx := context.Background()
	scope := testScope()

	draft := newTestClosure(t, scope, "2025-10-16", 16000)
	validated := newTestClosure(t, scope, "2025-10-17", 16000)
	require.NoError(t, repo.Create(ctx, draft))
	require.NoError(t, repo.Create(ctx, validated))
	require.NoError(t, validated.Validate(scope.UserID))
	require.NoError(t, repo.SaveWithLock(ctx, validated))

	assert.NoError(t, repo.DeleteDraft(ctx, scope, draft.ID))
	_, err := repo.FindByID(ctx, scope, draft.ID)
	assert.ErrorIs(t, err, finance.ErrClosureNotFound)

	assert.ErrorIs(t, repo.DeleteDraft(ctx, scope, validated.ID), finance.ErrClosureLocked)
	assert.ErrorIs(t, repo.DeleteDraft(ctx, scope, uuid.New()), finance.ErrClosureNotFound)
}

func TestGormTreasuryAndFeeRepositories(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	scope := testScope()
	studentID := uuid.New()

	require.NoError(t, db.Exec(
		`INSERT INTO treasury_accounts (id, created_at, updated_at, school_id, name, type, balance) VALUES (?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, ?, ?, ?, ?)`,
		uuid.New(), scope.SchoolID, "Main cash box", finance.TreasuryAccountCash, "1250.50").Error)
	require.NoError(t, db.Exec(
		`INSERT INTO student_fee_assignments (id, created_at, updated_at, school_id, academic_year, student_id, label, amount) VALUES (?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, ?, ?, ?, ?, ?), (?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, ?, ?, ?, ?, ?)`,
		uuid.New(), scope.SchoolID, scope.AcademicYear, studentID, "Tuition", "75000",
		uuid.New(), scope.SchoolID, scope.AcademicYear, studentID, "Canteen", "15000").Error)

	accounts, err := NewGormTreasuryAccountRepository(db).FindAll(ctx, scope.SchoolID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, finance.TreasuryAccountCash, accounts[0].Type)
	assert.True(t, decimal.RequireFromString("1250.5").Equal(accounts[0].Balance))

	expected, err := NewGormFeeAssignmentRepository(db).SumExpectedForStudent(ctx, scope, studentID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(90000).Equal(expected), "got %s", expected)
}
