package finance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestLedgerService_Aggregate(t *testing.T) {
	revenues := new(MockRevenueRepository)
	expenses := new(MockExpenseRepository)
	svc := NewLedgerService(LedgerServiceConfig{RevenueRepo: revenues, ExpenseRepo: expenses, Retry: fastRetry()})
	scope := testScope()

	r1, err := finance.NewRevenue(scope, finance.RevenueKindCanteen, decimal.NewFromInt(5000), "2025-10-17", finance.RevenueDetails{})
	require.NoError(t, err)
	r2, err := finance.NewRevenue(scope, finance.RevenueKindUniform, decimal.NewFromInt(3000), "2025-10-17", finance.RevenueDetails{})
	require.NoError(t, err)
	e1, err := finance.NewExpense(scope, finance.ExpenseCategorySupplies, decimal.NewFromInt(2000), "2025-10-17", "", "")
	require.NoError(t, err)

	revenues.On("FindByDay", mock.Anything, scope, "2025-10-17").Return([]finance.Revenue{*r1, *r2}, nil)
	expenses.On("FindByDay", mock.Anything, scope, "2025-10-17").Return([]finance.Expense{*e1}, nil)

	ledger, err := svc.Aggregate(context.Background(), scope, "2025-10-17T23:59:59")

	require.NoError(t, err)
	assert.True(t, ledger.NetBalance.Equal(decimal.NewFromInt(6000)))
	assert.True(t, ledger.TotalIncome.Equal(decimal.NewFromInt(8000)))
}

func TestLedgerService_RetriesTransientErrors(t *testing.T) {
	revenues := new(MockRevenueRepository)
	expenses := new(MockExpenseRepository)
	metrics := newRecorderSpy()
	svc := NewLedgerService(LedgerServiceConfig{RevenueRepo: revenues, ExpenseRepo: expenses, Retry: fastRetry(), Metrics: metrics})
	scope := testScope()

	revenues.On("FindByDay", mock.Anything, scope, "2025-10-17").Return(nil, errors.New("connection reset")).Once()
	revenues.On("FindByDay", mock.Anything, scope, "2025-10-17").Return([]finance.Revenue{}, nil)
	expenses.On("FindByDay", mock.Anything, scope, "2025-10-17").Return([]finance.Expense{}, nil)

	ledger, err := svc.Aggregate(context.Background(), scope, "2025-10-17")

	require.NoError(t, err)
	assert.True(t, ledger.NetBalance.IsZero())
	assert.Equal(t, 1, metrics.retries)
}

func TestLedgerService_UnavailableAfterRetries(t *testing.T) {
	revenues := new(MockRevenueRepository)
	expenses := new(MockExpenseRepository)
	svc := NewLedgerService(LedgerServiceConfig{RevenueRepo: revenues, ExpenseRepo: expenses, Retry: fastRetry()})
	scope := testScope()

	revenues.On("FindByDay", mock.Anything, scope, "2025-10-17").Return(nil, errors.New("connection refused"))
	expenses.On("FindByDay", mock.Anything, scope, "2025-10-17").Return([]finance.Expense{}, nil)

	_, err := svc.Aggregate(context.Background(), scope, "2025-10-17")

	assert.ErrorIs(t, err, finance.ErrAggregationUnavailable)
	revenues.AssertNumberOfCalls(t, "FindByDay", 3)
}

func TestLedgerService_DomainErrorsAreNotRetried(t *testing.T) {
	revenues := new(MockRevenueRepository)
	expenses := new(MockExpenseRepository)
	svc := NewLedgerService(LedgerServiceConfig{RevenueRepo: revenues, ExpenseRepo: expenses, Retry: fastRetry()})
	scope := testScope()

	revenues.On("FindByDay", mock.Anything, scope, "2025-10-17").Return(nil, finance.ErrInvalidDate)
	expenses.On("FindByDay", mock.Anything, scope, "2025-10-17").Return([]finance.Expense{}, nil)

	_, err := svc.Aggregate(context.Background(), scope, "2025-10-17")

	assert.ErrorIs(t, err, finance.ErrInvalidDate)
	revenues.AssertNumberOfCalls(t, "FindByDay", 1)
}

func TestLedgerService_RejectsBadDate(t *testing.T) {
	svc := NewLedgerService(LedgerServiceConfig{RevenueRepo: new(MockRevenueRepository), ExpenseRepo: new(MockExpenseRepository)})

	_, err := svc.Aggregate(context.Background(), testScope(), "not-a-date")

	assert.ErrorIs(t, err, finance.ErrInvalidDate)
}

func TestLedgerService_PeriodTotals(t *testing.T) {
	revenues := new(MockRevenueRepository)
	expenses := new(MockExpenseRepository)
	svc := NewLedgerService(LedgerServiceConfig{RevenueRepo: revenues, ExpenseRepo: expenses, Retry: fastRetry()})
	scope := testScope()

	revenues.On("SumBetween", mock.Anything, scope, "2025-10-01", "2025-10-31").Return(decimal.NewFromInt(900), nil)
	expenses.On("SumBetween", mock.Anything, scope, "2025-10-01", "2025-10-31").Return(decimal.NewFromInt(400), nil)

	income, spent, err := svc.PeriodTotals(context.Background(), scope, "2025-10-01", "2025-10-31")

	require.NoError(t, err)
	assert.True(t, income.Equal(decimal.NewFromInt(900)))
	assert.True(t, spent.Equal(decimal.NewFromInt(400)))
}
