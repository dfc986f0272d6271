package finance

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day layout used for ledger dates
const DateLayout = "2006-01-02"

// TransactionStatus represents the lifecycle status of a revenue or expense
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCancelled TransactionStatus = "cancelled"
	TransactionStatusRejected  TransactionStatus = "rejected"
)

// IsValid checks if the status is a valid TransactionStatus
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusPending,
		TransactionStatusCancelled, TransactionStatusRejected:
		return true
	}
	return false
}

// IsVoid reports whether the transaction must be left out of every total
func (s TransactionStatus) IsVoid() bool {
	return s == TransactionStatusCancelled || s == TransactionStatusRejected
}

// String returns the string representation of TransactionStatus
func (s TransactionStatus) String() string {
	return string(s)
}

// PaymentMethod represents how money changed hands
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodMobileMoney  PaymentMethod = "mobile_money"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodUnspecified  PaymentMethod = "unspecified"
)

// IsValid checks if the method is a valid PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodMobileMoney, PaymentMethodBankTransfer,
		PaymentMethodCheque, PaymentMethodCard, PaymentMethodUnspecified:
		return true
	}
	return false
}

// RevenueKind tags a revenue with what it pays for
type RevenueKind string

const (
	RevenueKindInscription   RevenueKind = "inscription"
	RevenueKindReinscription RevenueKind = "reinscription"
	RevenueKindTuition       RevenueKind = "tuition"
	RevenueKindCanteen       RevenueKind = "canteen"
	RevenueKindUniform       RevenueKind = "uniform"
	RevenueKindSupplies      RevenueKind = "supplies"
	RevenueKindDonation      RevenueKind = "donation"
	RevenueKindGrant         RevenueKind = "grant"
	RevenueKindOther         RevenueKind = "other"
)

// revenueKindAliases maps the French labels used by school staff onto kinds
var revenueKindAliases = map[string]RevenueKind{
	"scolarite":   RevenueKindTuition,
	"cantine":     RevenueKindCanteen,
	"uniforme":    RevenueKindUniform,
	"fournitures": RevenueKindSupplies,
	"don":         RevenueKindDonation,
	"subvention":  RevenueKindGrant,
	"autre":       RevenueKindOther,
}

// ParseRevenueKind resolves a kind from its canonical name or a French label.
// The empty string resolves to the empty kind, which is valid and lettered 'A'.
func ParseRevenueKind(s string) (RevenueKind, error) {
	key := strings.ToLower(strings.TrimSpace(foldDiacritics(s)))
	if key == "" {
		return "", nil
	}
	if k := RevenueKind(key); k.IsValid() {
		return k, nil
	}
	if k, ok := revenueKindAliases[key]; ok {
		return k, nil
	}
	return "", ErrInvalidRevenueKind
}

// IsValid checks if the kind is a known RevenueKind
func (k RevenueKind) IsValid() bool {
	switch k {
	case RevenueKindInscription, RevenueKindReinscription, RevenueKindTuition,
		RevenueKindCanteen, RevenueKindUniform, RevenueKindSupplies,
		RevenueKindDonation, RevenueKindGrant, RevenueKindOther:
		return true
	}
	return false
}

// IsFeeAdjacent reports whether the kind is a school fee. Fee references carry
// a type letter; the empty kind counts as a fee.
func (k RevenueKind) IsFeeAdjacent() bool {
	switch k {
	case RevenueKindDonation, RevenueKindGrant, RevenueKindOther:
		return false
	}
	return true
}

// IsTuition reports whether the kind counts towards the tuition share
func (k RevenueKind) IsTuition() bool {
	return k == RevenueKindInscription || k == RevenueKindReinscription || k == RevenueKindTuition
}

// RequiresStudent reports whether a revenue of this kind must name a student
func (k RevenueKind) RequiresStudent() bool {
	return k.IsTuition()
}

// ExpenseCategory represents what an expense was spent on
type ExpenseCategory string

const (
	ExpenseCategorySupplies    ExpenseCategory = "supplies"
	ExpenseCategoryMaintenance ExpenseCategory = "maintenance"
	ExpenseCategoryUtilities   ExpenseCategory = "utilities"
	ExpenseCategoryTransport   ExpenseCategory = "transport"
	ExpenseCategoryCanteen     ExpenseCategory = "canteen"
	ExpenseCategorySalaries    ExpenseCategory = "salaries"
	ExpenseCategoryOther       ExpenseCategory = "other"
)

// IsValid checks if the category is a valid ExpenseCategory
func (c ExpenseCategory) IsValid() bool {
	switch c {
	case ExpenseCategorySupplies, ExpenseCategoryMaintenance, ExpenseCategoryUtilities,
		ExpenseCategoryTransport, ExpenseCategoryCanteen, ExpenseCategorySalaries,
		ExpenseCategoryOther:
		return true
	}
	return false
}

// DayOf truncates a stored date string to its calendar day. Dates are kept
// as entered, without timezone conversion.
func DayOf(date string) string {
	date = strings.TrimSpace(date)
	if len(date) > len(DateLayout) {
		return date[:len(DateLayout)]
	}
	return date
}

// ValidateDate checks that the calendar-day part of date parses as YYYY-MM-DD
func ValidateDate(date string) error {
	if _, err := time.Parse(DateLayout, DayOf(date)); err != nil {
		return ErrInvalidDate
	}
	return nil
}

// Revenue is a cash-generating transaction carrying a receipt reference
type Revenue struct {
	shared.SchoolAggregateRoot
	Reference     string            `json:"reference"`
	Sequential    bool              `json:"sequential"`
	Kind          RevenueKind       `json:"kind"`
	Amount        decimal.Decimal   `json:"amount"`
	Date          string            `json:"date"`
	Status        TransactionStatus `json:"status"`
	PaymentMethod PaymentMethod     `json:"payment_method"`
	ClassName     string            `json:"class_name,omitempty"`
	Source        RevenueSource     `json:"source"`
	Description   string            `json:"description,omitempty"`
}

// RevenueSource is the kind-specific part of a revenue. Each kind family has
// exactly one variant: StudentFee, ClassCharge or Contribution.
type RevenueSource interface {
	revenueSource()
}

// StudentFee is a tuition, inscription or reinscription payment. It always
// names the student.
type StudentFee struct {
	StudentID uuid.UUID `json:"student_id"`
}

// ClassCharge pays for a class service such as the canteen, uniforms or
// supplies. The student is optional.
type ClassCharge struct {
	StudentID *uuid.UUID `json:"student_id,omitempty"`
}

// Contribution is money from an outside payer: donations, grants and other
// revenues. It is never attributed to a student.
type Contribution struct {
	Payer string `json:"payer,omitempty"`
}

func (StudentFee) revenueSource()   {}
func (ClassCharge) revenueSource()  {}
func (Contribution) revenueSource() {}

// NewRevenueSource builds the variant of kind from flat fields, dropping
// those the kind does not carry
func NewRevenueSource(kind RevenueKind, studentID *uuid.UUID, payer string) (RevenueSource, error) {
	if studentID != nil && *studentID == uuid.Nil {
		studentID = nil
	}
	switch {
	case kind.RequiresStudent():
		if studentID == nil {
			return nil, ErrStudentRequired
		}
		return StudentFee{StudentID: *studentID}, nil
	case kind.IsFeeAdjacent():
		return ClassCharge{StudentID: studentID}, nil
	default:
		return Contribution{Payer: strings.TrimSpace(payer)}, nil
	}
}

// Student returns the student the revenue is attributed to, if any
func (r *Revenue) Student() *uuid.UUID {
	switch src := r.Source.(type) {
	case StudentFee:
		id := src.StudentID
		return &id
	case ClassCharge:
		return src.StudentID
	}
	return nil
}

// Payer returns the outside payer of a contribution
func (r *Revenue) Payer() string {
	if c, ok := r.Source.(Contribution); ok {
		return c.Payer
	}
	return ""
}

// RevenueDetails holds the flat input fields of a new revenue. StudentID and
// Payer are sorted into the kind's RevenueSource.
type RevenueDetails struct {
	StudentID     *uuid.UUID
	ClassName     string
	Payer         string
	Description   string
	PaymentMethod PaymentMethod
	Status        TransactionStatus
}

// NewRevenue creates a revenue. The reference is assigned separately by the
// issuer before the revenue is stored.
func NewRevenue(scope shared.SchoolScope, kind RevenueKind, amount decimal.Decimal, date string, d RevenueDetails) (*Revenue, error) {
	if kind != "" && !kind.IsValid() {
		return nil, ErrInvalidRevenueKind
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	source, err := NewRevenueSource(kind, d.StudentID, d.Payer)
	if err != nil {
		return nil, err
	}
	if d.PaymentMethod == "" {
		d.PaymentMethod = PaymentMethodCash
	}
	if !d.PaymentMethod.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method is not valid")
	}
	if d.Status == "" {
		d.Status = TransactionStatusCompleted
	}
	if !d.Status.IsValid() {
		return nil, ErrInvalidStatus
	}

	r := &Revenue{
		SchoolAggregateRoot: shared.NewSchoolAggregateRoot(scope),
		Kind:                kind,
		Amount:              amount,
		Date:                strings.TrimSpace(date),
		Status:              d.Status,
		PaymentMethod:       d.PaymentMethod,
		ClassName:           strings.TrimSpace(d.ClassName),
		Source:              source,
		Description:         d.Description,
	}
	return r, nil
}

// AssignReference stamps the issued receipt reference on the revenue
func (r *Revenue) AssignReference(ref ReceiptReference) {
	r.Reference = ref.Value
	r.Sequential = ref.Sequential
}

// Day returns the calendar day the revenue belongs to
func (r *Revenue) Day() string {
	return DayOf(r.Date)
}

// ChangeStatus moves the revenue to another status
func (r *Revenue) ChangeStatus(status TransactionStatus) error {
	if !status.IsValid() {
		return ErrInvalidStatus
	}
	r.Status = status
	r.Touch()
	return nil
}

// Expense is a cash outflow recorded for a given day
type Expense struct {
	shared.SchoolAggregateRoot
	Category      ExpenseCategory   `json:"category"`
	Amount        decimal.Decimal   `json:"amount"`
	Date          string            `json:"date"`
	Status        TransactionStatus `json:"status"`
	PaymentMethod PaymentMethod     `json:"payment_method"`
	Beneficiary   string            `json:"beneficiary,omitempty"`
	Description   string            `json:"description,omitempty"`
}

// NewExpense creates an expense
func NewExpense(scope shared.SchoolScope, category ExpenseCategory, amount decimal.Decimal, date string, method PaymentMethod, status TransactionStatus) (*Expense, error) {
	if category == "" {
		category = ExpenseCategoryOther
	}
	if !category.IsValid() {
		return nil, shared.NewDomainError("INVALID_CATEGORY", "Expense category is not valid")
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	if method == "" {
		method = PaymentMethodCash
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method is not valid")
	}
	if status == "" {
		status = TransactionStatusCompleted
	}
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}
	return &Expense{
		SchoolAggregateRoot: shared.NewSchoolAggregateRoot(scope),
		Category:            category,
		Amount:              amount,
		Date:                strings.TrimSpace(date),
		Status:              status,
		PaymentMethod:       method,
	}, nil
}

// Day returns the calendar day the expense belongs to
func (e *Expense) Day() string {
	return DayOf(e.Date)
}

// ChangeStatus moves the expense to another status
func (e *Expense) ChangeStatus(status TransactionStatus) error {
	if !status.IsValid() {
		return ErrInvalidStatus
	}
	e.Status = status
	e.Touch()
	return nil
}
