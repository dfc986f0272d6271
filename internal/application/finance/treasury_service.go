package finance

import (
	"context"

	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PeriodTotalsReader sums revenues and expenses over a range of days
type PeriodTotalsReader interface {
	PeriodTotals(ctx context.Context, scope shared.SchoolScope, fromDay, toDay string) (income, expenses decimal.Decimal, err error)
}

// TreasuryService derives working-capital indicators. Nothing it computes
// is stored.
type TreasuryService struct {
	accountRepo finance.TreasuryAccountRepository
	totals      PeriodTotalsReader
	logger      *zap.Logger
}

// NewTreasuryService creates a new TreasuryService
func NewTreasuryService(accountRepo finance.TreasuryAccountRepository, totals PeriodTotalsReader, logger *zap.Logger) *TreasuryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreasuryService{
		accountRepo: accountRepo,
		totals:      totals,
		logger:      logger,
	}
}

// WorkingCapitalRequest carries the treasury inputs. FR and BFR may be
// given directly or through their components; revenue and expense totals
// may be given directly or read from the ledger for a period.
type WorkingCapitalRequest struct {
	FundOfRollingCapital *decimal.Decimal `json:"fund_of_rolling_capital"`
	StableResources      *decimal.Decimal `json:"stable_resources"`
	FixedAssets          *decimal.Decimal `json:"fixed_assets"`
	LiquidityNeed        *decimal.Decimal `json:"liquidity_need"`
	Receivables          *decimal.Decimal `json:"receivables"`
	Inventory            *decimal.Decimal `json:"inventory"`
	Payables             *decimal.Decimal `json:"payables"`
	TotalRevenues        *decimal.Decimal `json:"total_revenues"`
	TotalExpenses        *decimal.Decimal `json:"total_expenses"`
	PeriodFrom           string           `json:"period_from"`
	PeriodTo             string           `json:"period_to"`
}

// ComputeWorkingCapital returns FR, BFR, TN, the period net balance, the
// summed account balances and any advisory alerts
func (s *TreasuryService) ComputeWorkingCapital(ctx context.Context, scope shared.SchoolScope, req WorkingCapitalRequest) (*finance.WorkingCapitalSnapshot, error) {
	in := finance.WorkingCapitalInputs{
		FundOfRollingCapital: valueOrZero(req.FundOfRollingCapital),
		LiquidityNeed:        valueOrZero(req.LiquidityNeed),
		TotalRevenues:        valueOrZero(req.TotalRevenues),
		TotalExpenses:        valueOrZero(req.TotalExpenses),
	}
	if req.FundOfRollingCapital == nil && (req.StableResources != nil || req.FixedAssets != nil) {
		in.FundOfRollingCapital = finance.FundOfRollingCapitalFrom(valueOrZero(req.StableResources), valueOrZero(req.FixedAssets))
	}
	if req.LiquidityNeed == nil && (req.Receivables != nil || req.Inventory != nil || req.Payables != nil) {
		in.LiquidityNeed = finance.LiquidityNeedFrom(valueOrZero(req.Receivables), valueOrZero(req.Inventory), valueOrZero(req.Payables))
	}

	if req.TotalRevenues == nil && req.TotalExpenses == nil && req.PeriodFrom != "" {
		to := req.PeriodTo
		if to == "" {
			to = req.PeriodFrom
		}
		income, expenses, err := s.totals.PeriodTotals(ctx, scope, req.PeriodFrom, to)
		if err != nil {
			return nil, err
		}
		in.TotalRevenues = income
		in.TotalExpenses = expenses
	}

	accounts, err := s.accountRepo.FindAll(ctx, scope.SchoolID)
	if err != nil {
		return nil, err
	}
	in.Accounts = accounts

	snap := finance.ComputeWorkingCapital(in)
	if len(snap.Alerts) > 0 {
		kinds := make([]string, 0, len(snap.Alerts))
		for _, a := range snap.Alerts {
			kinds = append(kinds, string(a.Kind))
		}
		s.logger.Info("Treasury alerts raised",
			zap.String("school_id", scope.SchoolID.String()),
			zap.Strings("alerts", kinds),
			zap.String("net_treasury", snap.NetTreasury.String()),
		)
	}
	return &snap, nil
}

func valueOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
