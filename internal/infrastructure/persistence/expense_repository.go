package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormExpenseRepository implements finance.ExpenseRepository using GORM
type GormExpenseRepository struct {
	db *gorm.DB
}

// NewGormExpenseRepository creates a new GormExpenseRepository
func NewGormExpenseRepository(db *gorm.DB) *GormExpenseRepository {
	return &GormExpenseRepository{db: db}
}

// Create inserts an expense unless its day's closure is completed
func (r *GormExpenseRepository) Create(ctx context.Context, expense *finance.Expense) error {
	model := models.ExpenseModelFromDomain(expense)
	return writeOnOpenDay(ctx, r.db, expense.SchoolID, expense.AcademicYear, expense.Day(), func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
}

// Save updates an expense on an open day, checking its version
func (r *GormExpenseRepository) Save(ctx context.Context, expense *finance.Expense) error {
	model := models.ExpenseModelFromDomain(expense)
	model.Version = expense.Version + 1
	err := writeOnOpenDay(ctx, r.db, expense.SchoolID, expense.AcademicYear, expense.Day(), func(tx *gorm.DB) error {
		return saveVersioned(tx, model, expense.ID, expense.SchoolID, expense.Version)
	})
	if err != nil {
		return err
	}
	expense.Version = model.Version
	return nil
}

// FindByID finds an expense of the scope's school
func (r *GormExpenseRepository) FindByID(ctx context.Context, scope shared.SchoolScope, id uuid.UUID) (*finance.Expense, error) {
	var model models.ExpenseModel
	if err := r.db.WithContext(ctx).
		Where("school_id = ? AND id = ?", scope.SchoolID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, finance.ErrTransactionNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByDay lists every expense dated on day, void ones included
func (r *GormExpenseRepository) FindByDay(ctx context.Context, scope shared.SchoolScope, day string) ([]finance.Expense, error) {
	var expenseModels []models.ExpenseModel
	if err := r.db.WithContext(ctx).
		Where("school_id = ? AND academic_year = ? AND day = ?", scope.SchoolID, scope.AcademicYear, day).
		Order("date ASC, created_at ASC").
		Find(&expenseModels).Error; err != nil {
		return nil, err
	}
	expenses := make([]finance.Expense, len(expenseModels))
	for i := range expenseModels {
		expenses[i] = *expenseModels[i].ToDomain()
	}
	return expenses, nil
}

// SumBetween sums non-void expenses dated between two days, inclusive
func (r *GormExpenseRepository) SumBetween(ctx context.Context, scope shared.SchoolScope, fromDay, toDay string) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).Model(&models.ExpenseModel{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("school_id = ? AND academic_year = ? AND day >= ? AND day <= ?", scope.SchoolID, scope.AcademicYear, fromDay, toDay).
		Where("status NOT IN ?", voidStatuses).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}
