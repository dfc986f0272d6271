package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ClosureStatus represents the lifecycle state of a daily closure
type ClosureStatus string

const (
	ClosureStatusDraft     ClosureStatus = "draft"     // editable
	ClosureStatusCompleted ClosureStatus = "completed" // validated and locked
)

// IsValid checks if the status is a valid ClosureStatus
func (s ClosureStatus) IsValid() bool {
	return s == ClosureStatusDraft || s == ClosureStatusCompleted
}

// String returns the string representation of ClosureStatus
func (s ClosureStatus) String() string {
	return string(s)
}

// IsLocked returns true once the closure is validated
func (s ClosureStatus) IsLocked() bool {
	return s == ClosureStatusCompleted
}

// DailyClosure is the end-of-day snapshot of a school's cash movements.
// A closure is created as a draft and locked for good by Validate.
type DailyClosure struct {
	shared.SchoolAggregateRoot
	Date          string                 `json:"date"`
	TotalIncome   decimal.Decimal        `json:"total_income"`
	TotalExpenses decimal.Decimal        `json:"total_expenses"`
	NetBalance    decimal.Decimal        `json:"net_balance"`
	OpeningCash   decimal.Decimal        `json:"opening_cash"`
	CashOnHand    decimal.Decimal        `json:"cash_on_hand"`
	ExpectedCash  decimal.Decimal        `json:"expected_cash"`
	Variance      decimal.Decimal        `json:"variance"`
	Notes         string                 `json:"notes"`
	Justification *VarianceJustification `json:"justification,omitempty"`
	Status        ClosureStatus          `json:"status"`
	ValidatedBy   *uuid.UUID             `json:"validated_by,omitempty"`
	ValidatedAt   *time.Time             `json:"validated_at,omitempty"`
}

// NewDailyClosure creates a draft closure for date from the given figures
func NewDailyClosure(scope shared.SchoolScope, date string, figures ClosureFigures, notes string) (*DailyClosure, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	if figures.OpeningCash.IsNegative() || figures.CashOnHand.IsNegative() {
		return nil, shared.NewDomainError("INVALID_CASH", "Cash amounts cannot be negative")
	}

	c := &DailyClosure{
		SchoolAggregateRoot: shared.NewSchoolAggregateRoot(scope),
		Date:                DayOf(date),
		Notes:               notes,
		Status:              ClosureStatusDraft,
	}
	c.applyFigures(figures)
	return c, nil
}

// Figures returns the inputs the variance is computed from
func (c *DailyClosure) Figures() ClosureFigures {
	return ClosureFigures{
		OpeningCash:   c.OpeningCash,
		CashOnHand:    c.CashOnHand,
		TotalIncome:   c.TotalIncome,
		TotalExpenses: c.TotalExpenses,
	}
}

// Reconciliation returns the variance computation for the current figures
func (c *DailyClosure) Reconciliation() Reconciliation {
	return c.Figures().Reconcile()
}

// IsLocked returns true once the closure is validated
func (c *DailyClosure) IsLocked() bool {
	return c.Status.IsLocked()
}

// ClosurePatch carries optional changes to a draft closure
type ClosurePatch struct {
	OpeningCash *decimal.Decimal
	CashOnHand  *decimal.Decimal
	Notes       *string
}

// Update applies patch to a draft and refreshes the totals from ledger.
// A recorded justification is kept but goes stale if the figures moved.
func (c *DailyClosure) Update(patch ClosurePatch, ledger *DailyLedger) error {
	if c.IsLocked() {
		return ErrClosureLocked
	}
	figures := c.Figures()
	if patch.OpeningCash != nil {
		figures.OpeningCash = *patch.OpeningCash
	}
	if patch.CashOnHand != nil {
		figures.CashOnHand = *patch.CashOnHand
	}
	if figures.OpeningCash.IsNegative() || figures.CashOnHand.IsNegative() {
		return shared.NewDomainError("INVALID_CASH", "Cash amounts cannot be negative")
	}
	if ledger != nil {
		figures.TotalIncome = ledger.TotalIncome
		figures.TotalExpenses = ledger.TotalExpenses
	}
	if patch.Notes != nil {
		c.Notes = *patch.Notes
	}
	c.applyFigures(figures)
	c.Touch()
	return nil
}

// RecordJustification explains the current variance. Only one justification
// is accepted per set of figures.
func (c *DailyClosure) RecordJustification(text string, by uuid.UUID) error {
	if c.IsLocked() {
		return ErrClosureLocked
	}
	figures := c.Figures()
	if !figures.Reconcile().RequiresJustification() {
		return ErrNoVarianceToJustify
	}
	if c.Justification.IsCurrentFor(figures) {
		return ErrJustificationAlreadyRecorded
	}
	j, err := NewVarianceJustification(text, figures, by)
	if err != nil {
		return err
	}
	c.Justification = j
	c.Notes = j.Text
	c.Touch()
	return nil
}

// JustificationIsStale reports whether a recorded justification no longer
// covers the current figures
func (c *DailyClosure) JustificationIsStale() bool {
	return c.Justification != nil && !c.Justification.IsCurrentFor(c.Figures())
}

// Validate locks the closure. A non-zero variance needs a current justification.
func (c *DailyClosure) Validate(by uuid.UUID) error {
	if c.IsLocked() {
		return ErrClosureLocked
	}
	if err := CheckJustified(c.Figures(), c.Justification); err != nil {
		return err
	}

	now := time.Now()
	c.Status = ClosureStatusCompleted
	c.ValidatedAt = &now
	if by != uuid.Nil {
		c.ValidatedBy = &by
		if c.CreatedBy == nil {
			c.SetCreatedBy(by)
		}
	}
	c.Touch()

	c.AddDomainEvent(NewClosureValidatedEvent(c))
	return nil
}

// EnsureDeletable fails once the closure is locked
func (c *DailyClosure) EnsureDeletable() error {
	if c.IsLocked() {
		return ErrClosureLocked
	}
	return nil
}

func (c *DailyClosure) applyFigures(f ClosureFigures) {
	rec := f.Reconcile()
	c.OpeningCash = f.OpeningCash
	c.CashOnHand = f.CashOnHand
	c.TotalIncome = f.TotalIncome
	c.TotalExpenses = f.TotalExpenses
	c.NetBalance = rec.NetBalance
	c.ExpectedCash = rec.ExpectedCash
	c.Variance = rec.Variance
}
