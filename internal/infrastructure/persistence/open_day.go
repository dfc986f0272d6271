package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// writeOnOpenDay runs write in one transaction with the day's closure row
// locked. A completed closure fails the write with finance.ErrClosureLocked.
// A draft closure has its version advanced, so a validation computed from
// the previous ledger loses its optimistic lock and has to aggregate again.
func writeOnOpenDay(ctx context.Context, db *gorm.DB, schoolID uuid.UUID, academicYear, day string, write func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var closure models.DailyClosureModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "status").
			Where("school_id = ? AND academic_year = ? AND date = ?", schoolID, academicYear, day).
			Take(&closure).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		case closure.Status == finance.ClosureStatusCompleted:
			return finance.ErrClosureLocked
		default:
			if err := tx.Model(&models.DailyClosureModel{}).
				Where("id = ?", closure.ID).
				UpdateColumn("version", gorm.Expr("version + 1")).Error; err != nil {
				return err
			}
		}
		return write(tx)
	})
}

// saveVersioned updates model where the stored version still equals version.
// It returns shared.ErrConcurrencyConflict when another writer got there first.
func saveVersioned(tx *gorm.DB, model any, id, schoolID uuid.UUID, version int) error {
	result := tx.Model(model).
		Where("id = ? AND school_id = ? AND version = ?", id, schoolID, version).
		Select("*").
		Omit("id", "created_at", "school_id", "academic_year").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}
