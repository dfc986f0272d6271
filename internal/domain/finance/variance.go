package finance

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reconciliation compares the cash counted in the drawer with the cash the
// ledger says should be there
type Reconciliation struct {
	OpeningCash  decimal.Decimal `json:"opening_cash"`
	CurrentCash  decimal.Decimal `json:"current_cash"`
	NetBalance   decimal.Decimal `json:"net_balance"`
	ExpectedCash decimal.Decimal `json:"expected_cash"`
	Variance     decimal.Decimal `json:"variance"`
}

// ComputeVariance returns expected = opening + net and variance = current - expected
func ComputeVariance(opening, current, netBalance decimal.Decimal) Reconciliation {
	expected := opening.Add(netBalance)
	return Reconciliation{
		OpeningCash:  opening,
		CurrentCash:  current,
		NetBalance:   netBalance,
		ExpectedCash: expected,
		Variance:     current.Sub(expected),
	}
}

// RequiresJustification reports whether the variance blocks validation until explained
func (r Reconciliation) RequiresJustification() bool {
	return !r.Variance.IsZero()
}

// ClosureFigures are the inputs a justification is tied to
type ClosureFigures struct {
	OpeningCash   decimal.Decimal `json:"opening_cash"`
	CashOnHand    decimal.Decimal `json:"cash_on_hand"`
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
}

// NetBalance returns income minus expenses
func (f ClosureFigures) NetBalance() decimal.Decimal {
	return f.TotalIncome.Sub(f.TotalExpenses)
}

// Reconcile runs the variance computation on the figures
func (f ClosureFigures) Reconcile() Reconciliation {
	return ComputeVariance(f.OpeningCash, f.CashOnHand, f.NetBalance())
}

// Fingerprint identifies the figures and resulting variance. Any change to
// opening cash, cash on hand or the aggregated totals changes the fingerprint.
func (f ClosureFigures) Fingerprint() string {
	parts := []string{
		f.OpeningCash.String(),
		f.CashOnHand.String(),
		f.TotalIncome.String(),
		f.TotalExpenses.String(),
		f.Reconcile().Variance.String(),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// VarianceJustification explains a non-zero variance for one set of figures
type VarianceJustification struct {
	Text        string          `json:"text"`
	Variance    decimal.Decimal `json:"variance"`
	Fingerprint string          `json:"fingerprint"`
	RecordedBy  *uuid.UUID      `json:"recorded_by,omitempty"`
	RecordedAt  time.Time       `json:"recorded_at"`
}

// NewVarianceJustification ties text to the current figures
func NewVarianceJustification(text string, figures ClosureFigures, by uuid.UUID) (*VarianceJustification, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyJustification
	}
	j := &VarianceJustification{
		Text:        text,
		Variance:    figures.Reconcile().Variance,
		Fingerprint: figures.Fingerprint(),
		RecordedAt:  time.Now(),
	}
	if by != uuid.Nil {
		j.RecordedBy = &by
	}
	return j, nil
}

// IsCurrentFor reports whether the justification still covers figures
func (j *VarianceJustification) IsCurrentFor(figures ClosureFigures) bool {
	return j != nil && j.Text != "" && j.Fingerprint == figures.Fingerprint()
}

// CheckJustified returns nil when figures may be validated with j:
// zero variance needs nothing; otherwise j must exist and be current.
func CheckJustified(figures ClosureFigures, j *VarianceJustification) error {
	if !figures.Reconcile().RequiresJustification() {
		return nil
	}
	if j == nil || strings.TrimSpace(j.Text) == "" {
		return ErrVarianceUnjustified
	}
	if !j.IsCurrentFor(figures) {
		return ErrJustificationStale
	}
	return nil
}
