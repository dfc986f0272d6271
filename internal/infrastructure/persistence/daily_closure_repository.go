package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// closureSort orders closure listings, most recent day first by default
var closureSort = SortSpec{Default: "date", DefaultDir: "desc", Fields: map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"date":           true,
	"status":         true,
	"total_income":   true,
	"total_expenses": true,
	"net_balance":    true,
	"variance":       true,
	"validated_at":   true,
}}

// columns a closure update never touches
var closureImmutableColumns = []string{"id", "created_at", "school_id", "academic_year", "date"}

// GormDailyClosureRepository implements finance.DailyClosureRepository using GORM
type GormDailyClosureRepository struct {
	db *gorm.DB
}

// NewGormDailyClosureRepository creates a new GormDailyClosureRepository
func NewGormDailyClosureRepository(db *gorm.DB) *GormDailyClosureRepository {
	return &GormDailyClosureRepository{db: db}
}

// Create inserts a draft closure
func (r *GormDailyClosureRepository) Create(ctx context.Context, closure *finance.DailyClosure) error {
	model := models.DailyClosureModelFromDomain(closure)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return finance.ErrDuplicateClosure
		}
		return err
	}
	return nil
}

// SaveWithLock writes the closure if the stored version still equals
// closure.Version, then advances closure.Version to the stored value.
func (r *GormDailyClosureRepository) SaveWithLock(ctx context.Context, closure *finance.DailyClosure) error {
	model := models.DailyClosureModelFromDomain(closure)
	model.Version = closure.Version + 1

	result := r.db.WithContext(ctx).Model(&models.DailyClosureModel{}).
		Where("id = ? AND school_id = ? AND version = ?", closure.ID, closure.SchoolID, closure.Version).
		Select("*").
		Omit(closureImmutableColumns...).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	closure.Version = model.Version
	return nil
}

// FindByID finds a closure of the scope's school
func (r *GormDailyClosureRepository) FindByID(ctx context.Context, scope shared.SchoolScope, id uuid.UUID) (*finance.DailyClosure, error) {
	var model models.DailyClosureModel
	if err := r.db.WithContext(ctx).
		Where("school_id = ? AND id = ?", scope.SchoolID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, finance.ErrClosureNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByDate finds the closure of a calendar day in the scope's year
func (r *GormDailyClosureRepository) FindByDate(ctx context.Context, scope shared.SchoolScope, day string) (*finance.DailyClosure, error) {
	var model models.DailyClosureModel
	if err := r.db.WithContext(ctx).
		Where("school_id = ? AND academic_year = ? AND date = ?", scope.SchoolID, scope.AcademicYear, day).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, finance.ErrClosureNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists the scope's closures with filtering and pagination
func (r *GormDailyClosureRepository) FindAll(ctx context.Context, scope shared.SchoolScope, filter finance.ClosureFilter) ([]finance.DailyClosure, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.DailyClosureModel{}).
		Where("school_id = ? AND academic_year = ?", scope.SchoolID, scope.AcademicYear)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.DateFrom != "" {
		query = query.Where("date >= ?", finance.DayOf(filter.DateFrom))
	}
	if filter.DateTo != "" {
		query = query.Where("date <= ?", finance.DayOf(filter.DateTo))
	}
	if filter.Search != "" {
		query = query.Where("notes LIKE ?", "%"+filter.Search+"%")
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := query.Order(closureSort.OrderClause(filter.Filter))
	if filter.PageSize > 0 {
		page = page.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var closureModels []models.DailyClosureModel
	if err := page.Find(&closureModels).Error; err != nil {
		return nil, 0, err
	}
	closures := make([]finance.DailyClosure, len(closureModels))
	for i := range closureModels {
		closures[i] = *closureModels[i].ToDomain()
	}
	return closures, total, nil
}

// DeleteDraft removes a draft closure; its justification is stored inline
// and goes with it. A validated closure is never deleted.
func (r *GormDailyClosureRepository) DeleteDraft(ctx context.Context, scope shared.SchoolScope, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("school_id = ? AND id = ? AND status = ?", scope.SchoolID, id, finance.ClosureStatusDraft).
		Delete(&models.DailyClosureModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.DailyClosureModel{}).
		Where("school_id = ? AND id = ?", scope.SchoolID, id).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return finance.ErrClosureLocked
	}
	return finance.ErrClosureNotFound
}
