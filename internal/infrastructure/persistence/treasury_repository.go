package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormTreasuryAccountRepository implements finance.TreasuryAccountRepository using GORM
type GormTreasuryAccountRepository struct {
	db *gorm.DB
}

// NewGormTreasuryAccountRepository creates a new GormTreasuryAccountRepository
func NewGormTreasuryAccountRepository(db *gorm.DB) *GormTreasuryAccountRepository {
	return &GormTreasuryAccountRepository{db: db}
}

// FindAll lists the school's treasury accounts by name
func (r *GormTreasuryAccountRepository) FindAll(ctx context.Context, schoolID uuid.UUID) ([]finance.TreasuryAccount, error) {
	var accountModels []models.TreasuryAccountModel
	if err := r.db.WithContext(ctx).
		Where("school_id = ?", schoolID).
		Order("name ASC").
		Find(&accountModels).Error; err != nil {
		return nil, err
	}
	accounts := make([]finance.TreasuryAccount, len(accountModels))
	for i := range accountModels {
		accounts[i] = accountModels[i].ToDomain()
	}
	return accounts, nil
}

// GormFeeAssignmentRepository implements finance.FeeAssignmentRepository using GORM
type GormFeeAssignmentRepository struct {
	db *gorm.DB
}

// NewGormFeeAssignmentRepository creates a new GormFeeAssignmentRepository
func NewGormFeeAssignmentRepository(db *gorm.DB) *GormFeeAssignmentRepository {
	return &GormFeeAssignmentRepository{db: db}
}

// SumExpectedForStudent sums the fees assigned to a student for the scope's year
func (r *GormFeeAssignmentRepository) SumExpectedForStudent(ctx context.Context, scope shared.SchoolScope, studentID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).Model(&models.StudentFeeAssignmentModel{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("school_id = ? AND academic_year = ? AND student_id = ?", scope.SchoolID, scope.AcademicYear, studentID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}
