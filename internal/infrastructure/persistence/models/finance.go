package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/shopspring/decimal"
)

// RevenueModel is the persistence model for the Revenue aggregate root.
// Day is the calendar day of Date, stored for ledger range queries.
type RevenueModel struct {
	SchoolAggregateModel
	Reference     string                    `gorm:"type:varchar(64);not null"`
	Sequential    bool                      `gorm:"not null;index"`
	Kind          finance.RevenueKind       `gorm:"type:varchar(30);index"`
	Amount        decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	Date          string                    `gorm:"type:varchar(32);not null"`
	Day           string                    `gorm:"type:varchar(10);not null;index"`
	Status        finance.TransactionStatus `gorm:"type:varchar(20);not null;default:'completed'"`
	PaymentMethod finance.PaymentMethod     `gorm:"type:varchar(30);not null;default:'cash'"`
	StudentID     *uuid.UUID                `gorm:"type:uuid;index"`
	ClassName     string                    `gorm:"type:varchar(100)"`
	Payer         string                    `gorm:"type:varchar(200)"`
	Description   string                    `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (RevenueModel) TableName() string {
	return "revenues"
}

// ToDomain converts the persistence model to a domain Revenue
func (m *RevenueModel) ToDomain() *finance.Revenue {
	return &finance.Revenue{
		SchoolAggregateRoot: m.ToSchoolAggregateRoot(),
		Reference:           m.Reference,
		Sequential:          m.Sequential,
		Kind:                m.Kind,
		Amount:              m.Amount,
		Date:                m.Date,
		Status:              m.Status,
		PaymentMethod:       m.PaymentMethod,
		ClassName:           m.ClassName,
		Source:              revenueSource(m),
		Description:         m.Description,
	}
}

// revenueSource rebuilds the kind's variant from the flat columns. A fee row
// missing its student keeps the variant with a nil id.
func revenueSource(m *RevenueModel) finance.RevenueSource {
	source, err := finance.NewRevenueSource(m.Kind, m.StudentID, m.Payer)
	if err != nil {
		return finance.StudentFee{}
	}
	return source
}

// RevenueModelFromDomain creates a persistence model from a domain Revenue
func RevenueModelFromDomain(r *finance.Revenue) *RevenueModel {
	m := &RevenueModel{
		Reference:     r.Reference,
		Sequential:    r.Sequential,
		Kind:          r.Kind,
		Amount:        r.Amount,
		Date:          r.Date,
		Day:           r.Day(),
		Status:        r.Status,
		PaymentMethod: r.PaymentMethod,
		StudentID:     r.Student(),
		ClassName:     r.ClassName,
		Payer:         r.Payer(),
		Description:   r.Description,
	}
	m.FromDomainSchoolAggregateRoot(r.SchoolAggregateRoot)
	return m
}

// ExpenseModel is the persistence model for the Expense aggregate root
type ExpenseModel struct {
	SchoolAggregateModel
	Category      finance.ExpenseCategory   `gorm:"type:varchar(30);not null;index"`
	Amount        decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	Date          string                    `gorm:"type:varchar(32);not null"`
	Day           string                    `gorm:"type:varchar(10);not null;index"`
	Status        finance.TransactionStatus `gorm:"type:varchar(20);not null;default:'completed'"`
	PaymentMethod finance.PaymentMethod     `gorm:"type:varchar(30);not null;default:'cash'"`
	Beneficiary   string                    `gorm:"type:varchar(200)"`
	Description   string                    `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ExpenseModel) TableName() string {
	return "expenses"
}

// ToDomain converts the persistence model to a domain Expense
func (m *ExpenseModel) ToDomain() *finance.Expense {
	return &finance.Expense{
		SchoolAggregateRoot: m.ToSchoolAggregateRoot(),
		Category:            m.Category,
		Amount:              m.Amount,
		Date:                m.Date,
		Status:              m.Status,
		PaymentMethod:       m.PaymentMethod,
		Beneficiary:         m.Beneficiary,
		Description:         m.Description,
	}
}

// ExpenseModelFromDomain creates a persistence model from a domain Expense
func ExpenseModelFromDomain(e *finance.Expense) *ExpenseModel {
	m := &ExpenseModel{
		Category:      e.Category,
		Amount:        e.Amount,
		Date:          e.Date,
		Day:           e.Day(),
		Status:        e.Status,
		PaymentMethod: e.PaymentMethod,
		Beneficiary:   e.Beneficiary,
		Description:   e.Description,
	}
	m.FromDomainSchoolAggregateRoot(e.SchoolAggregateRoot)
	return m
}

// DailyClosureModel is the persistence model for the DailyClosure aggregate
// root. The variance justification is stored inline; a closure has at most one.
type DailyClosureModel struct {
	SchoolAggregateModel
	Date                     string                `gorm:"type:varchar(10);not null"`
	TotalIncome              decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	TotalExpenses            decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	NetBalance               decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	OpeningCash              decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	CashOnHand               decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	ExpectedCash             decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Variance                 decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Notes                    string                `gorm:"type:text"`
	Status                   finance.ClosureStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	JustificationText        *string               `gorm:"type:text"`
	JustificationVariance    decimal.NullDecimal   `gorm:"type:decimal(18,4)"`
	JustificationFingerprint *string               `gorm:"type:varchar(64)"`
	JustificationRecordedBy  *uuid.UUID            `gorm:"type:uuid"`
	JustificationRecordedAt  *time.Time
	ValidatedBy              *uuid.UUID `gorm:"type:uuid"`
	ValidatedAt              *time.Time
}

// TableName returns the table name for GORM
func (DailyClosureModel) TableName() string {
	return "daily_closures"
}

// ToDomain converts the persistence model to a domain DailyClosure
func (m *DailyClosureModel) ToDomain() *finance.DailyClosure {
	c := &finance.DailyClosure{
		SchoolAggregateRoot: m.ToSchoolAggregateRoot(),
		Date:                m.Date,
		TotalIncome:         m.TotalIncome,
		TotalExpenses:       m.TotalExpenses,
		NetBalance:          m.NetBalance,
		OpeningCash:         m.OpeningCash,
		CashOnHand:          m.CashOnHand,
		ExpectedCash:        m.ExpectedCash,
		Variance:            m.Variance,
		Notes:               m.Notes,
		Status:              m.Status,
		ValidatedBy:         m.ValidatedBy,
		ValidatedAt:         m.ValidatedAt,
	}
	if m.JustificationText != nil {
		j := &finance.VarianceJustification{
			Text:       *m.JustificationText,
			Variance:   m.JustificationVariance.Decimal,
			RecordedBy: m.JustificationRecordedBy,
		}
		if m.JustificationFingerprint != nil {
			j.Fingerprint = *m.JustificationFingerprint
		}
		if m.JustificationRecordedAt != nil {
			j.RecordedAt = *m.JustificationRecordedAt
		}
		c.Justification = j
	}
	return c
}

// DailyClosureModelFromDomain creates a persistence model from a domain DailyClosure
func DailyClosureModelFromDomain(c *finance.DailyClosure) *DailyClosureModel {
	m := &DailyClosureModel{
		Date:          c.Date,
		TotalIncome:   c.TotalIncome,
		TotalExpenses: c.TotalExpenses,
		NetBalance:    c.NetBalance,
		OpeningCash:   c.OpeningCash,
		CashOnHand:    c.CashOnHand,
		ExpectedCash:  c.ExpectedCash,
		Variance:      c.Variance,
		Notes:         c.Notes,
		Status:        c.Status,
		ValidatedBy:   c.ValidatedBy,
		ValidatedAt:   c.ValidatedAt,
	}
	m.FromDomainSchoolAggregateRoot(c.SchoolAggregateRoot)
	if j := c.Justification; j != nil {
		text, fingerprint, recordedAt := j.Text, j.Fingerprint, j.RecordedAt
		m.JustificationText = &text
		m.JustificationVariance = decimal.NewNullDecimal(j.Variance)
		m.JustificationFingerprint = &fingerprint
		m.JustificationRecordedBy = j.RecordedBy
		m.JustificationRecordedAt = &recordedAt
	}
	return m
}

// ReceiptSequenceModel is the last ordinal issued for one receipt scope
type ReceiptSequenceModel struct {
	SchoolID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	YearCode  string    `gorm:"type:varchar(6);primaryKey"`
	ClassCode string    `gorm:"type:varchar(16);primaryKey"`
	Prefix    string    `gorm:"type:varchar(1);primaryKey"`
	LastValue int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReceiptSequenceModel) TableName() string {
	return "receipt_sequences"
}

// TreasuryAccountModel is a cash, bank or mobile money balance holder
type TreasuryAccountModel struct {
	BaseModel
	SchoolID uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Name     string                      `gorm:"type:varchar(100);not null"`
	Type     finance.TreasuryAccountType `gorm:"type:varchar(20);not null"`
	Balance  decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (TreasuryAccountModel) TableName() string {
	return "treasury_accounts"
}

// ToDomain converts the persistence model to a domain TreasuryAccount
func (m *TreasuryAccountModel) ToDomain() finance.TreasuryAccount {
	return finance.TreasuryAccount{
		ID:      m.ID,
		Name:    m.Name,
		Type:    m.Type,
		Balance: m.Balance,
	}
}

// StudentFeeAssignmentModel is a fee a student is expected to pay in a year
type StudentFeeAssignmentModel struct {
	BaseModel
	SchoolID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_fee_student,priority:1"`
	AcademicYear string          `gorm:"type:varchar(9);not null;index:idx_fee_student,priority:2"`
	StudentID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_fee_student,priority:3"`
	Label        string          `gorm:"type:varchar(100);not null"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (StudentFeeAssignmentModel) TableName() string {
	return "student_fee_assignments"
}

// FinanceModels lists the models in migration order. The composite unique
// indexes span the embedded school columns and are created separately, see
// FinanceUniqueIndexes.
func FinanceModels() []any {
	return []any{
		&RevenueModel{},
		&ExpenseModel{},
		&DailyClosureModel{},
		&ReceiptSequenceModel{},
		&TreasuryAccountModel{},
		&StudentFeeAssignmentModel{},
	}
}

// FinanceUniqueIndexes are the uniqueness guarantees the finance workflow
// relies on: one reference per school and one closure per school day.
var FinanceUniqueIndexes = []string{
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_revenue_school_reference ON revenues (school_id, reference)",
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_closure_school_year_date ON daily_closures (school_id, academic_year, date)",
}
