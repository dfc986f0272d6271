package finance

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubTotals struct {
	income, expenses decimal.Decimal
	from, to         string
}

func (s *stubTotals) PeriodTotals(_ context.Context, _ shared.SchoolScope, fromDay, toDay string) (decimal.Decimal, decimal.Decimal, error) {
	s.from, s.to = fromDay, toDay
	return s.income, s.expenses, nil
}

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestTreasuryService_BothAlerts(t *testing.T) {
	accounts := new(MockTreasuryAccountRepository)
	svc := NewTreasuryService(accounts, &stubTotals{}, nil)
	scope := testScope()
	accounts.On("FindAll", mock.Anything, scope.SchoolID).Return([]finance.TreasuryAccount{
		{ID: uuid.New(), Name: "Caisse principale", Type: finance.TreasuryAccountCash, Balance: decimal.NewFromInt(250)},
	}, nil)

	snap, err := svc.ComputeWorkingCapital(context.Background(), scope, WorkingCapitalRequest{
		FundOfRollingCapital: decPtr(-100),
		LiquidityNeed:        decPtr(50),
	})

	require.NoError(t, err)
	assert.True(t, snap.NetTreasury.Equal(decimal.NewFromInt(-150)))
	assert.True(t, snap.HasAlert(finance.AlertStructuralImbalance))
	assert.True(t, snap.HasAlert(finance.AlertLiquidityDeficit))
	assert.Equal(t, finance.TreasuryStatusAlert, snap.Status)
	assert.True(t, snap.AccountsBalance.Equal(decimal.NewFromInt(250)))
}

func TestTreasuryService_ComponentsAndPeriodTotals(t *testing.T) {
	accounts := new(MockTreasuryAccountRepository)
	totals := &stubTotals{income: decimal.NewFromInt(12000), expenses: decimal.NewFromInt(7000)}
	svc := NewTreasuryService(accounts, totals, nil)
	scope := testScope()
	accounts.On("FindAll", mock.Anything, scope.SchoolID).Return([]finance.TreasuryAccount{}, nil)

	snap, err := svc.ComputeWorkingCapital(context.Background(), scope, WorkingCapitalRequest{
		StableResources: decPtr(50000),
		FixedAssets:     decPtr(30000),
		Receivables:     decPtr(8000),
		Inventory:       decPtr(2000),
		Payables:        decPtr(4000),
		PeriodFrom:      "2025-10-01",
	})

	require.NoError(t, err)
	assert.Equal(t, "2025-10-01", totals.from)
	assert.Equal(t, "2025-10-01", totals.to)
	assert.True(t, snap.FundOfRollingCapital.Equal(decimal.NewFromInt(20000)))
	assert.True(t, snap.LiquidityNeed.Equal(decimal.NewFromInt(6000)))
	assert.True(t, snap.NetTreasury.Equal(decimal.NewFromInt(14000)))
	assert.True(t, snap.NetBalance.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, finance.TreasuryStatusBalanced, snap.Status)
}
