package persistence

import (
	"context"
	"testing"

	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validateClosure(t *testing.T, repo *GormDailyClosureRepository, scope shared.SchoolScope, day string) {
	t.Helper()
	closure, err := repo.FindByDate(context.Background(), scope, day)
	require.NoError(t, err)
	require.NoError(t, closure.Validate(scope.UserID))
	require.NoError(t, repo.SaveWithLock(context.Background(), closure))
}

func TestTransactionWrites_ValidatedBetweenReadAndWrite(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	scope := testScope()
	closures := NewGormDailyClosureRepository(db)
	revenues := NewGormRevenueRepository(db)
	expenses := NewGormExpenseRepository(db)

	require.NoError(t, closures.Create(ctx, newTestClosure(t, scope, "2025-10-17", 16000)))
	require.NoError(t, revenues.Create(ctx, newTestRevenue(t, scope, finance.RevenueKindCanteen, 8000, "2025-10-17", "REC-025026-C0001-CM2")))
	expense, err := finance.NewExpense(scope, finance.ExpenseCategorySupplies, decimal.NewFromInt(2000), "2025-10-17", "", "")
	require.NoError(t, err)
	require.NoError(t, expenses.Create(ctx, expense))

	// read while the day is still open, then the closure is validated
	loaded, err := expenses.FindByID(ctx, scope, expense.ID)
	require.NoError(t, err)
	validateClosure(t, closures, scope, "2025-10-17")

	require.NoError(t, loaded.ChangeStatus(finance.TransactionStatusRejected))
	err = expenses.Save(ctx, loaded)
	assert.ErrorIs(t, err, finance.ErrClosureLocked)

	stored, err := expenses.FindByID(ctx, scope, expense.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.TransactionStatusCompleted, stored.Status)

	late := newTestRevenue(t, scope, finance.RevenueKindCanteen, 300, "2025-10-17", "REC-025026-C0002-CM2")
	assert.ErrorIs(t, revenues.Create(ctx, late), finance.ErrClosureLocked)
	lateExpense, err := finance.NewExpense(scope, finance.ExpenseCategoryOther, decimal.NewFromInt(50), "2025-10-17 16:30", "", "")
	require.NoError(t, err)
	assert.ErrorIs(t, expenses.Create(ctx, lateExpense), finance.ErrClosureLocked)

	day, err := revenues.FindByDay(ctx, scope, "2025-10-17")
	require.NoError(t, err)
	assert.Len(t, day, 1)

	// other days stay writable
	assert.NoError(t, revenues.Create(ctx, newTestRevenue(t, scope, finance.RevenueKindCanteen, 300, "2025-10-18", "REC-025026-C0003-CM2")))
}

func TestTransactionWrites_InvalidateDraftBeingValidated(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	scope := testScope()
	closures := NewGormDailyClosureRepository(db)
	expenses := NewGormExpenseRepository(db)

	require.NoError(t, closures.Create(ctx, newTestClosure(t, scope, "2025-10-17", 16000)))
	validating, err := closures.FindByDate(ctx, scope, "2025-10-17")
	require.NoError(t, err)

	expense, err := finance.NewExpense(scope, finance.ExpenseCategoryOther, decimal.NewFromInt(700), "2025-10-17", "", "")
	require.NoError(t, err)
	require.NoError(t, expenses.Create(ctx, expense))

	require.NoError(t, validating.Validate(scope.UserID))
	err = closures.SaveWithLock(ctx, validating)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

	stored, err := closures.FindByDate(ctx, scope, "2025-10-17")
	require.NoError(t, err)
	assert.False(t, stored.IsLocked())
	assert.Equal(t, 2, stored.Version)
}

func TestGormExpenseRepository_SaveChecksVersion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	scope := testScope()
	repo := NewGormExpenseRepository(db)

	expense, err := finance.NewExpense(scope, finance.ExpenseCategoryOther, decimal.NewFromInt(700), "2025-10-17", "", "")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, expense))

	mine, err := repo.FindByID(ctx, scope, expense.ID)
	require.NoError(t, err)
	theirs, err := repo.FindByID(ctx, scope, expense.ID)
	require.NoError(t, err)

	require.NoError(t, mine.ChangeStatus(finance.TransactionStatusPending))
	require.NoError(t, repo.Save(ctx, mine))
	assert.Equal(t, 2, mine.Version)

	require.NoError(t, theirs.ChangeStatus(finance.TransactionStatusRejected))
	assert.ErrorIs(t, repo.Save(ctx, theirs), shared.ErrConcurrencyConflict)

	stored, err := repo.FindByID(ctx, scope, expense.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.TransactionStatusPending, stored.Status)
	assert.Equal(t, 2, stored.Version)
}
