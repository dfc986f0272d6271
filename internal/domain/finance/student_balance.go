package finance

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StudentBalance is what a student owes and has paid for an academic year
type StudentBalance struct {
	StudentID      uuid.UUID       `json:"student_id"`
	AcademicYear   string          `json:"academic_year"`
	TotalExpected  decimal.Decimal `json:"total_expected"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	TotalRemaining decimal.Decimal `json:"total_remaining"`
}

// NewStudentBalance computes the remaining amount, floored at zero
func NewStudentBalance(studentID uuid.UUID, academicYear string, expected, paid decimal.Decimal) StudentBalance {
	remaining := expected.Sub(paid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return StudentBalance{
		StudentID:      studentID,
		AcademicYear:   academicYear,
		TotalExpected:  expected,
		TotalPaid:      paid,
		TotalRemaining: remaining,
	}
}
