package finance

import (
	"context"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RevenueRepository persists revenues
type RevenueRepository interface {
	// Create inserts a revenue; a reference collision returns ErrDuplicateReference.
	// Create and Save fail with ErrClosureLocked when the revenue's day has a
	// completed closure, checked in the same transaction as the write.
	Create(ctx context.Context, revenue *Revenue) error
	// Save updates a revenue whose stored version still matches, otherwise
	// it returns shared.ErrConcurrencyConflict
	Save(ctx context.Context, revenue *Revenue) error
	FindByID(ctx context.Context, scope shared.SchoolScope, id uuid.UUID) (*Revenue, error)
	FindByDay(ctx context.Context, scope shared.SchoolScope, day string) ([]Revenue, error)
	FindNonSequential(ctx context.Context, scope shared.SchoolScope, filter shared.Filter) ([]Revenue, int64, error)
	// FindReferences lists every stored reference for the key's year and class
	FindReferences(ctx context.Context, key SequenceKey) ([]string, error)
	SumPaidByStudent(ctx context.Context, scope shared.SchoolScope, studentID uuid.UUID) (decimal.Decimal, error)
	SumBetween(ctx context.Context, scope shared.SchoolScope, fromDay, toDay string) (decimal.Decimal, error)
}

// ExpenseRepository persists expenses. Writes follow the same locked-day and
// version rules as RevenueRepository.
type ExpenseRepository interface {
	Create(ctx context.Context, expense *Expense) error
	Save(ctx context.Context, expense *Expense) error
	FindByID(ctx context.Context, scope shared.SchoolScope, id uuid.UUID) (*Expense, error)
	FindByDay(ctx context.Context, scope shared.SchoolScope, day string) ([]Expense, error)
	SumBetween(ctx context.Context, scope shared.SchoolScope, fromDay, toDay string) (decimal.Decimal, error)
}

// ClosureFilter narrows closure listings
type ClosureFilter struct {
	shared.Filter
	Status   ClosureStatus
	DateFrom string
	DateTo   string
}

// DailyClosureRepository persists daily closures
type DailyClosureRepository interface {
	// Create inserts a draft; a second closure for the same day returns ErrDuplicateClosure
	Create(ctx context.Context, closure *DailyClosure) error
	// SaveWithLock updates the closure only if its stored version still
	// matches; otherwise it returns shared.ErrConcurrencyConflict
	SaveWithLock(ctx context.Context, closure *DailyClosure) error
	FindByID(ctx context.Context, scope shared.SchoolScope, id uuid.UUID) (*DailyClosure, error)
	FindByDate(ctx context.Context, scope shared.SchoolScope, day string) (*DailyClosure, error)
	FindAll(ctx context.Context, scope shared.SchoolScope, filter ClosureFilter) ([]DailyClosure, int64, error)
	// DeleteDraft removes the closure and its justification while it is still a draft
	DeleteDraft(ctx context.Context, scope shared.SchoolScope, id uuid.UUID) error
}

// SequenceStore hands out strictly increasing ordinals per key.
// Implementations must be safe for concurrent use and return
// ErrSequenceUnavailable when their backing storage cannot be reached.
type SequenceStore interface {
	Next(ctx context.Context, key SequenceKey) (int, error)
}

// TreasuryAccountRepository reads treasury account balances
type TreasuryAccountRepository interface {
	FindAll(ctx context.Context, schoolID uuid.UUID) ([]TreasuryAccount, error)
}

// FeeAssignmentRepository reads what a student is expected to pay
type FeeAssignmentRepository interface {
	SumExpectedForStudent(ctx context.Context, scope shared.SchoolScope, studentID uuid.UUID) (decimal.Decimal, error)
}
