package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSequenceStore implements finance.SequenceStore on the receipt_sequences
// table. Each Next runs in its own transaction holding a row lock on the
// key's counter, so concurrent issuers on any instance are serialized.
type GormSequenceStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormSequenceStore creates a new GormSequenceStore
func NewGormSequenceStore(db *gorm.DB) *GormSequenceStore {
	return &GormSequenceStore{db: db, now: time.Now}
}

// Next returns the next ordinal for key. A missing counter is seeded from
// the highest ordinal already stored in revenues, so references issued
// before the counter existed are never reissued.
func (s *GormSequenceStore) Next(ctx context.Context, key finance.SequenceKey) (int, error) {
	var next int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.lockCounter(tx, key)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := s.seedCounter(ctx, tx, key); err != nil {
				return err
			}
			row, err = s.lockCounter(tx, key)
		}
		if err != nil {
			return err
		}

		next = row.LastValue + 1
		return tx.Model(&models.ReceiptSequenceModel{}).
			Where(counterWhere(key)).
			Updates(map[string]any{"last_value": next, "updated_at": s.now()}).Error
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("%w: %v", finance.ErrSequenceUnavailable, err)
	}
	return next, nil
}

func (s *GormSequenceStore) lockCounter(tx *gorm.DB, key finance.SequenceKey) (*models.ReceiptSequenceModel, error) {
	var row models.ReceiptSequenceModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(counterWhere(key)).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// seedCounter inserts the counter at the stored maximum. A concurrent seeder
// may win the insert; the conflict is ignored and both read the same row.
func (s *GormSequenceStore) seedCounter(ctx context.Context, tx *gorm.DB, key finance.SequenceKey) error {
	refs, err := NewGormRevenueRepository(tx).FindReferences(ctx, key)
	if err != nil {
		return err
	}
	seed := models.ReceiptSequenceModel{
		SchoolID:  key.SchoolID,
		YearCode:  key.YearCode,
		ClassCode: key.ClassCode,
		Prefix:    key.Prefix,
		LastValue: finance.MaxOrdinal(key, refs),
		UpdatedAt: s.now(),
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error
}

func counterWhere(key finance.SequenceKey) map[string]any {
	return map[string]any{
		"school_id":  key.SchoolID,
		"year_code":  key.YearCode,
		"class_code": key.ClassCode,
		"prefix":     key.Prefix,
	}
}
