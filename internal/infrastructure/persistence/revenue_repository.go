package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// voidStatuses are left out of every total
var voidStatuses = []finance.TransactionStatus{
	finance.TransactionStatusCancelled,
	finance.TransactionStatusRejected,
}

// nonFeeKinds carry no type letter and never count as student payments
var nonFeeKinds = []finance.RevenueKind{
	finance.RevenueKindDonation,
	finance.RevenueKindGrant,
	finance.RevenueKindOther,
}

// revenueSort orders revenue listings. Fallback references are reconciled
// oldest first unless the caller asks otherwise.
var revenueSort = SortSpec{Default: "created_at", DefaultDir: "asc", Fields: map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"reference":      true,
	"date":           true,
	"kind":           true,
	"amount":         true,
	"status":         true,
	"payment_method": true,
	"class_name":     true,
}}

// GormRevenueRepository implements finance.RevenueRepository using GORM
type GormRevenueRepository struct {
	db *gorm.DB
}

// NewGormRevenueRepository creates a new GormRevenueRepository
func NewGormRevenueRepository(db *gorm.DB) *GormRevenueRepository {
	return &GormRevenueRepository{db: db}
}

// Create inserts a revenue unless its day's closure is completed
func (r *GormRevenueRepository) Create(ctx context.Context, revenue *finance.Revenue) error {
	model := models.RevenueModelFromDomain(revenue)
	err := writeOnOpenDay(ctx, r.db, revenue.SchoolID, revenue.AcademicYear, revenue.Day(), func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return finance.ErrDuplicateReference
	}
	return err
}

// Save updates a revenue on an open day, checking its version
func (r *GormRevenueRepository) Save(ctx context.Context, revenue *finance.Revenue) error {
	model := models.RevenueModelFromDomain(revenue)
	model.Version = revenue.Version + 1
	err := writeOnOpenDay(ctx, r.db, revenue.SchoolID, revenue.AcademicYear, revenue.Day(), func(tx *gorm.DB) error {
		return saveVersioned(tx, model, revenue.ID, revenue.SchoolID, revenue.Version)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return finance.ErrDuplicateReference
		}
		return err
	}
	revenue.Version = model.Version
	return nil
}

// FindByID finds a revenue of the scope's school
func (r *GormRevenueRepository) FindByID(ctx context.Context, scope shared.SchoolScope, id uuid.UUID) (*finance.Revenue, error) {
	var model models.RevenueModel
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

// FindByDay lists every revenue dated on day, void ones included
func (r *GormRevenueRepository) FindByDay(ctx context.Context, scope shared.SchoolScope, day string) ([]finance.Revenue, error) {
	var revenueModels []models.RevenueModel
	if err := r.db.WithContext(ctx).
		Where("school_id = ? AND academic_year = ? AND day = ?", scope.SchoolID, scope.AcademicYear, day).
		Order("date ASC, created_at ASC").
		Find(&revenueModels).Error; err != nil {
		return nil, err
	}
	return revenuesToDomain(revenueModels), nil
}

// FindNonSequential lists revenues carrying a fallback reference, oldest first
func (r *GormRevenueRepository) FindNonSequential(ctx context.Context, scope shared.SchoolScope, filter shared.Filter) ([]finance.Revenue, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.RevenueModel{}).
		Where("school_id = ? AND academic_year = ? AND sequential = ?", scope.SchoolID, scope.AcademicYear, false).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := query.Order(revenueSort.OrderClause(filter))
	if filter.PageSize > 0 {
		page = page.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var revenueModels []models.RevenueModel
	if err := page.Find(&revenueModels).Error; err != nil {
		return nil, 0, err
	}
	return revenuesToDomain(revenueModels), total, nil
}

// FindReferences lists stored references shaped like the key's year and
// class, across academic years of the key's school. Ordinal parsing is left
// to the caller.
func (r *GormRevenueRepository) FindReferences(ctx context.Context, key finance.SequenceKey) ([]string, error) {
	pattern := fmt.Sprintf("%s-%s-%%-%s", finance.ReferencePrefix, key.YearCode, key.ClassCode)
	var refs []string
	if err := r.db.WithContext(ctx).Model(&models.RevenueModel{}).
		Where("school_id = ? AND sequential = ? AND reference LIKE ?", key.SchoolID, true, pattern).
		Pluck("reference", &refs).Error; err != nil {
		return nil, err
	}
	return refs, nil
}

// SumPaidByStudent sums the student's non-void fee revenues for the scope's year
func (r *GormRevenueRepository) SumPaidByStudent(ctx context.Context, scope shared.SchoolScope, studentID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).Model(&models.RevenueModel{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("school_id = ? AND academic_year = ? AND student_id = ?", scope.SchoolID, scope.AcademicYear, studentID).
		Where("status NOT IN ?", voidStatuses).
		Where("kind NOT IN ?", nonFeeKinds).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// SumBetween sums non-void revenues dated between two days, inclusive
func (r *GormRevenueRepository) SumBetween(ctx context.Context, scope shared.SchoolScope, fromDay, toDay string) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).Model(&models.RevenueModel{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("school_id = ? AND academic_year = ? AND day >= ? AND day <= ?", scope.SchoolID, scope.AcademicYear, fromDay, toDay).
		Where("status NOT IN ?", voidStatuses).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

func revenuesToDomain(rows []models.RevenueModel) []finance.Revenue {
	revenues := make([]finance.Revenue, len(rows))
	for i := range rows {
		revenues[i] = *rows[i].ToDomain()
	}
	return revenues
}
