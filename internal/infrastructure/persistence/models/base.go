package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// SchoolAggregateModel holds the persistence fields of a school-scoped
// aggregate root, version included for optimistic locking.
type SchoolAggregateModel struct {
	BaseModel
	Version      int        `gorm:"not null;default:1"`
	SchoolID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	AcademicYear string     `gorm:"type:varchar(9);not null;index"`
	CreatedBy    *uuid.UUID `gorm:"type:uuid"`
}

// FromDomainSchoolAggregateRoot populates the model from a domain root
func (m *SchoolAggregateModel) FromDomainSchoolAggregateRoot(r shared.SchoolAggregateRoot) {
	m.ID = r.ID
	m.CreatedAt = r.CreatedAt
	m.UpdatedAt = r.UpdatedAt
	m.Version = r.Version
	m.SchoolID = r.SchoolID
	m.AcademicYear = r.AcademicYear
	m.CreatedBy = r.CreatedBy
}

// ToSchoolAggregateRoot rebuilds the domain root
func (m *SchoolAggregateModel) ToSchoolAggregateRoot() shared.SchoolAggregateRoot {
	return shared.SchoolAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		SchoolID:     m.SchoolID,
		AcademicYear: m.AcademicYear,
		CreatedBy:    m.CreatedBy,
	}
}
