package finance

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TreasuryAccountType classifies where a balance is held
type TreasuryAccountType string

const (
	TreasuryAccountCash        TreasuryAccountType = "cash"
	TreasuryAccountBank        TreasuryAccountType = "bank"
	TreasuryAccountMobileMoney TreasuryAccountType = "mobile_money"
)

// IsValid checks if the type is a valid TreasuryAccountType
func (t TreasuryAccountType) IsValid() bool {
	switch t {
	case TreasuryAccountCash, TreasuryAccountBank, TreasuryAccountMobileMoney:
		return true
	}
	return false
}

// TreasuryAccount is a read-only balance holder
type TreasuryAccount struct {
	ID      uuid.UUID           `json:"id"`
	Name    string              `json:"name"`
	Type    TreasuryAccountType `json:"type"`
	Balance decimal.Decimal     `json:"balance"`
}

// TreasuryAlertKind names an advisory treasury alert
type TreasuryAlertKind string

const (
	AlertStructuralImbalance TreasuryAlertKind = "structural_imbalance"
	AlertLiquidityDeficit    TreasuryAlertKind = "liquidity_deficit"
)

// TreasuryStatus summarizes the working-capital position
type TreasuryStatus string

const (
	TreasuryStatusBalanced TreasuryStatus = "balanced"
	TreasuryStatusAlert    TreasuryStatus = "alert"
)

// TreasuryAlert is an advisory signal; no state changes because of it
type TreasuryAlert struct {
	Kind    TreasuryAlertKind `json:"kind"`
	Message string            `json:"message"`
}

// WorkingCapitalInputs feed the treasury analysis. FR and BFR are supplied by
// the accounting side; the helpers below derive them from their components.
type WorkingCapitalInputs struct {
	TotalRevenues        decimal.Decimal
	TotalExpenses        decimal.Decimal
	FundOfRollingCapital decimal.Decimal
	LiquidityNeed        decimal.Decimal
	Accounts             []TreasuryAccount
}

// WorkingCapitalSnapshot is derived on demand and never stored
type WorkingCapitalSnapshot struct {
	NetBalance           decimal.Decimal `json:"net_balance"`
	FundOfRollingCapital decimal.Decimal `json:"fund_of_rolling_capital"`
	LiquidityNeed        decimal.Decimal `json:"liquidity_need"`
	NetTreasury          decimal.Decimal `json:"net_treasury"`
	AccountsBalance      decimal.Decimal `json:"accounts_balance"`
	Status               TreasuryStatus  `json:"status"`
	Alerts               []TreasuryAlert `json:"alerts"`
}

// HasAlert reports whether the snapshot carries an alert of the given kind
func (s WorkingCapitalSnapshot) HasAlert(kind TreasuryAlertKind) bool {
	for _, a := range s.Alerts {
		if a.Kind == kind {
			return true
		}
	}
	return false
}

// FundOfRollingCapitalFrom returns stable resources minus fixed assets
func FundOfRollingCapitalFrom(stableResources, fixedAssets decimal.Decimal) decimal.Decimal {
	return stableResources.Sub(fixedAssets)
}

// LiquidityNeedFrom returns receivables plus inventory minus payables
func LiquidityNeedFrom(receivables, inventory, payables decimal.Decimal) decimal.Decimal {
	return receivables.Add(inventory).Sub(payables)
}

// ComputeWorkingCapital derives net treasury TN = FR - BFR and raises a
// structural alert when FR < 0 and a liquidity alert when TN < 0
func ComputeWorkingCapital(in WorkingCapitalInputs) WorkingCapitalSnapshot {
	snap := WorkingCapitalSnapshot{
		NetBalance:           in.TotalRevenues.Sub(in.TotalExpenses),
		FundOfRollingCapital: in.FundOfRollingCapital,
		LiquidityNeed:        in.LiquidityNeed,
		NetTreasury:          in.FundOfRollingCapital.Sub(in.LiquidityNeed),
		AccountsBalance:      decimal.Zero,
		Status:               TreasuryStatusBalanced,
		Alerts:               make([]TreasuryAlert, 0),
	}
	for _, a := range in.Accounts {
		snap.AccountsBalance = snap.AccountsBalance.Add(a.Balance)
	}

	if snap.FundOfRollingCapital.IsNegative() {
		snap.Alerts = append(snap.Alerts, TreasuryAlert{
			Kind:    AlertStructuralImbalance,
			Message: "Fund of rolling capital is negative: fixed assets exceed stable resources",
		})
	}
	if snap.NetTreasury.IsNegative() {
		snap.Alerts = append(snap.Alerts, TreasuryAlert{
			Kind:    AlertLiquidityDeficit,
			Message: "Net treasury is negative: short-term liquidity deficit",
		})
	}
	if len(snap.Alerts) > 0 {
		snap.Status = TreasuryStatusAlert
	}
	return snap
}
