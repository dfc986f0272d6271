package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// EventTypeClosureValidated is published when a daily closure is locked
const EventTypeClosureValidated = "ClosureValidated"

// ClosureValidatedEvent is raised when a daily closure is validated.
// It is the only closure transition broadcast outside the service.
type ClosureValidatedEvent struct {
	shared.BaseDomainEvent
	ClosureID     uuid.UUID       `json:"closure_id"`
	AcademicYear  string          `json:"academic_year"`
	Date          string          `json:"date"`
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	NetBalance    decimal.Decimal `json:"net_balance"`
	CashOnHand    decimal.Decimal `json:"cash_on_hand"`
	Variance      decimal.Decimal `json:"variance"`
	Justification string          `json:"justification,omitempty"`
	ValidatedBy   *uuid.UUID      `json:"validated_by,omitempty"`
	ValidatedAt   time.Time       `json:"validated_at"`
}

// EventType returns the event type name
func (e *ClosureValidatedEvent) EventType() string {
	return EventTypeClosureValidated
}

// NewClosureValidatedEvent creates a new ClosureValidatedEvent
func NewClosureValidatedEvent(c *DailyClosure) *ClosureValidatedEvent {
	validatedAt := time.Now()
	if c.ValidatedAt != nil {
		validatedAt = *c.ValidatedAt
	}
	e := &ClosureValidatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeClosureValidated, "DailyClosure", c.ID, c.SchoolID),
		ClosureID:       c.ID,
		AcademicYear:    c.AcademicYear,
		Date:            c.Date,
		TotalIncome:     c.TotalIncome,
		TotalExpenses:   c.TotalExpenses,
		NetBalance:      c.NetBalance,
		CashOnHand:      c.CashOnHand,
		Variance:        c.Variance,
		ValidatedBy:     c.ValidatedBy,
		ValidatedAt:     validatedAt,
	}
	if c.Justification != nil {
		e.Justification = c.Justification.Text
	}
	return e
}
