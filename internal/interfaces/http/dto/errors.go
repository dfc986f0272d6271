package dto

import "net/http"

// Error codes returned to API clients. Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeInternal           = "ERR_INTERNAL"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"
)

// Input error codes
const (
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeInvalidScope = "ERR_INVALID_SCOPE"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
)

// Closure and reconciliation error codes
const (
	ErrCodeDuplicateClosure      = "ERR_DUPLICATE_CLOSURE"
	ErrCodeClosureLocked         = "ERR_CLOSURE_LOCKED"
	ErrCodeVarianceUnjustified   = "ERR_VARIANCE_UNJUSTIFIED"
	ErrCodeJustificationStale    = "ERR_JUSTIFICATION_STALE"
	ErrCodeJustificationRecorded = "ERR_JUSTIFICATION_ALREADY_RECORDED"
	ErrCodeNoVariance            = "ERR_NO_VARIANCE"
)

// Reference and ledger error codes
const (
	ErrCodeDuplicateReference      = "ERR_DUPLICATE_REFERENCE"
	ErrCodeReferenceIssuanceFailed = "ERR_REFERENCE_ISSUANCE_FAILED"
	ErrCodeSequenceUnavailable     = "ERR_SEQUENCE_UNAVAILABLE"
	ErrCodeAggregationUnavailable  = "ERR_AGGREGATION_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps API error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeInvalidScope: http.StatusBadRequest,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,

	ErrCodeDuplicateClosure:      http.StatusConflict,
	ErrCodeClosureLocked:         http.StatusConflict,
	ErrCodeJustificationRecorded: http.StatusConflict,
	ErrCodeVarianceUnjustified:   http.StatusUnprocessableEntity,
	ErrCodeJustificationStale:    http.StatusUnprocessableEntity,
	ErrCodeNoVariance:            http.StatusUnprocessableEntity,

	ErrCodeDuplicateReference:      http.StatusConflict,
	ErrCodeReferenceIssuanceFailed: http.StatusServiceUnavailable,
	ErrCodeSequenceUnavailable:     http.StatusServiceUnavailable,
	ErrCodeAggregationUnavailable:  http.StatusServiceUnavailable,
}

// domainErrorCodes maps domain error codes onto API error codes. Input
// errors keep their domain code behind the ERR_ prefix so clients can tell
// an unknown revenue kind from a malformed date.
var domainErrorCodes = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"INVALID_SCOPE":        ErrCodeInvalidScope,

	"DUPLICATE_CLOSURE":              ErrCodeDuplicateClosure,
	"CLOSURE_LOCKED":                 ErrCodeClosureLocked,
	"VARIANCE_UNJUSTIFIED":           ErrCodeVarianceUnjustified,
	"JUSTIFICATION_STALE":            ErrCodeJustificationStale,
	"JUSTIFICATION_ALREADY_RECORDED": ErrCodeJustificationRecorded,
	"NO_VARIANCE":                    ErrCodeNoVariance,

	"DUPLICATE_REFERENCE":       ErrCodeDuplicateReference,
	"REFERENCE_ISSUANCE_FAILED": ErrCodeReferenceIssuanceFailed,
	"SEQUENCE_UNAVAILABLE":      ErrCodeSequenceUnavailable,
	"AGGREGATION_UNAVAILABLE":   ErrCodeAggregationUnavailable,
}

// inputErrorCodes are domain codes describing a bad request field
var inputErrorCodes = map[string]bool{
	"INVALID_ACADEMIC_YEAR":  true,
	"INVALID_DATE":           true,
	"INVALID_AMOUNT":         true,
	"INVALID_CASH":           true,
	"INVALID_REVENUE_KIND":   true,
	"INVALID_STATUS":         true,
	"INVALID_CATEGORY":       true,
	"INVALID_PAYMENT_METHOD": true,
	"INVALID_JUSTIFICATION":  true,
	"STUDENT_REQUIRED":       true,
}

// GetHTTPStatus returns the HTTP status for an API error code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// MapDomainErrorCode converts a domain error code into an API error code and
// its HTTP status
func MapDomainErrorCode(domainCode string) (string, int) {
	if code, ok := domainErrorCodes[domainCode]; ok {
		return code, GetHTTPStatus(code)
	}
	if inputErrorCodes[domainCode] {
		return "ERR_" + domainCode, http.StatusBadRequest
	}
	return ErrCodeInternal, http.StatusInternalServerError
}
