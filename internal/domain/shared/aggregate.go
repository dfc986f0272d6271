package shared

import (
	"github.com/google/uuid"
)

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot provides versioning and pending events for aggregate roots
type BaseAggregateRoot struct {
	BaseEntity
	Version      int           `gorm:"not null;default:1"`
	domainEvents []DomainEvent `gorm:"-"`
}

// GetVersion returns the aggregate version used for optimistic locking
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion increments the version number
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// AddDomainEvent queues an event for publication after the aggregate is saved
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents clears the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// NewBaseAggregateRoot creates a new base aggregate root at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:   NewBaseEntity(),
		Version:      1,
		domainEvents: make([]DomainEvent, 0),
	}
}

// SchoolAggregateRoot is an aggregate root owned by a single school (tenant)
type SchoolAggregateRoot struct {
	BaseAggregateRoot
	SchoolID     uuid.UUID
	AcademicYear string
	CreatedBy    *uuid.UUID
}

// NewSchoolAggregateRoot creates an aggregate root bound to the given scope
func NewSchoolAggregateRoot(scope SchoolScope) SchoolAggregateRoot {
	root := SchoolAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(),
		SchoolID:          scope.SchoolID,
		AcademicYear:      scope.AcademicYear,
	}
	if scope.UserID != uuid.Nil {
		userID := scope.UserID
		root.CreatedBy = &userID
	}
	return root
}

// SetCreatedBy sets the creator user ID
func (s *SchoolAggregateRoot) SetCreatedBy(userID uuid.UUID) {
	s.CreatedBy = &userID
}

// BelongsTo reports whether the aggregate lives inside the given scope
func (s *SchoolAggregateRoot) BelongsTo(scope SchoolScope) bool {
	return s.SchoolID == scope.SchoolID && s.AcademicYear == scope.AcademicYear
}
