package shared

import (
	"github.com/google/uuid"
)

// SchoolScope is the explicit ambient context threaded through every
// finance operation: which school, which academic year, and who is acting.
type SchoolScope struct {
	SchoolID     uuid.UUID `json:"school_id"`
	AcademicYear string    `json:"academic_year"`
	UserID       uuid.UUID `json:"user_id,omitempty"`
}

// NewSchoolScope builds a scope and rejects missing school or year
func NewSchoolScope(schoolID uuid.UUID, academicYear string, userID uuid.UUID) (SchoolScope, error) {
	scope := SchoolScope{
		SchoolID:     schoolID,
		AcademicYear: academicYear,
		UserID:       userID,
	}
	if err := scope.Validate(); err != nil {
		return SchoolScope{}, err
	}
	return scope, nil
}

// Validate checks that the scope identifies a school and an academic year
func (s SchoolScope) Validate() error {
	if s.SchoolID == uuid.Nil {
		return NewDomainError("INVALID_SCOPE", "School ID is required")
	}
	if s.AcademicYear == "" {
		return NewDomainError("INVALID_SCOPE", "Academic year is required")
	}
	return nil
}

// WithUser returns a copy of the scope acting as the given user
func (s SchoolScope) WithUser(userID uuid.UUID) SchoolScope {
	s.UserID = userID
	return s
}
