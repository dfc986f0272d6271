package finance

import "github.com/schoolerp/backend/internal/domain/shared"

// Closure and reconciliation errors. Compare with errors.Is; the code is
// what the HTTP layer maps onto a status.
var (
	ErrDuplicateClosure             = shared.NewDomainError("DUPLICATE_CLOSURE", "A closure already exists for this date")
	ErrClosureLocked                = shared.NewDomainError("CLOSURE_LOCKED", "The closure is validated and can no longer be changed")
	ErrVarianceUnjustified          = shared.NewDomainError("VARIANCE_UNJUSTIFIED", "Cash variance must be justified before validation")
	ErrJustificationStale           = shared.NewDomainError("JUSTIFICATION_STALE", "Closure figures changed since the justification was recorded; justify the new variance")
	ErrJustificationAlreadyRecorded = shared.NewDomainError("JUSTIFICATION_ALREADY_RECORDED", "A justification is already recorded for this variance")
	ErrNoVarianceToJustify          = shared.NewDomainError("NO_VARIANCE", "Variance is zero; there is nothing to justify")
	ErrEmptyJustification           = shared.NewDomainError("INVALID_JUSTIFICATION", "Justification text cannot be empty")
	ErrReferenceIssuanceFailed      = shared.NewDomainError("REFERENCE_ISSUANCE_FAILED", "Could not issue a unique receipt reference; manual intervention required")
	ErrAggregationUnavailable       = shared.NewDomainError("AGGREGATION_UNAVAILABLE", "Ledger data is temporarily unavailable")
	ErrInvalidAcademicYear          = shared.NewDomainError("INVALID_ACADEMIC_YEAR", "Academic year must look like 2025-2026")
	ErrInvalidDate                  = shared.NewDomainError("INVALID_DATE", "Date must be formatted as YYYY-MM-DD")
	ErrInvalidAmount                = shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	ErrInvalidRevenueKind           = shared.NewDomainError("INVALID_REVENUE_KIND", "Revenue kind is not valid")
	ErrInvalidStatus                = shared.NewDomainError("INVALID_STATUS", "Transaction status is not valid")
	ErrStudentRequired              = shared.NewDomainError("STUDENT_REQUIRED", "This revenue kind must reference a student")
	ErrClosureNotFound              = shared.NewDomainError("NOT_FOUND", "Closure not found")
	ErrTransactionNotFound          = shared.NewDomainError("NOT_FOUND", "Transaction not found")

	// ErrDuplicateReference is returned by revenue storage when the unique
	// (school, reference) constraint rejects an insert.
	ErrDuplicateReference = shared.NewDomainError("DUPLICATE_REFERENCE", "Receipt reference already used")
	// ErrSequenceUnavailable is returned by sequence stores that cannot reach
	// their backing storage.
	ErrSequenceUnavailable = shared.NewDomainError("SEQUENCE_UNAVAILABLE", "Receipt sequence storage is unavailable")
)
