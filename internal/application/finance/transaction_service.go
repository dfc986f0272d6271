package finance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultReferenceAttempts bounds re-issuance after reference collisions
const DefaultReferenceAttempts = 5

// TransactionService records revenues and expenses. Every revenue gets a
// receipt reference; days whose closure is validated reject new entries.
type TransactionService struct {
	revenueRepo finance.RevenueRepository
	expenseRepo finance.ExpenseRepository
	closureRepo finance.DailyClosureRepository
	feeRepo     finance.FeeAssignmentRepository
	issuer      *ReferenceIssuer
	maxAttempts int
	metrics     Recorder
	logger      *zap.Logger
}

// TransactionServiceConfig holds the transaction service dependencies
type TransactionServiceConfig struct {
	RevenueRepo       finance.RevenueRepository
	ExpenseRepo       finance.ExpenseRepository
	ClosureRepo       finance.DailyClosureRepository
	FeeRepo           finance.FeeAssignmentRepository
	Issuer            *ReferenceIssuer
	ReferenceAttempts int
	Metrics           Recorder
	Logger            *zap.Logger
}

// NewTransactionService creates a new TransactionService
func NewTransactionService(cfg TransactionServiceConfig) *TransactionService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NopRecorder{}
	}
	attempts := cfg.ReferenceAttempts
	if attempts <= 0 {
		attempts = DefaultReferenceAttempts
	}
	return &TransactionService{
		revenueRepo: cfg.RevenueRepo,
		expenseRepo: cfg.ExpenseRepo,
		closureRepo: cfg.ClosureRepo,
		feeRepo:     cfg.FeeRepo,
		issuer:      cfg.Issuer,
		maxAttempts: attempts,
		metrics:     metrics,
		logger:      logger,
	}
}

// RecordRevenueRequest represents a request to record a revenue
type RecordRevenueRequest struct {
	Kind          string          `json:"kind" binding:"max=50"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Date          string          `json:"date" binding:"required"`
	Status        string          `json:"status" binding:"omitempty,oneof=completed pending cancelled rejected"`
	PaymentMethod string          `json:"payment_method" binding:"omitempty,oneof=cash mobile_money bank_transfer cheque card unspecified"`
	StudentID     *uuid.UUID      `json:"student_id"`
	ClassName     string          `json:"class_name" binding:"max=100"`
	Payer         string          `json:"payer" binding:"max=200"`
	Description   string          `json:"description" binding:"max=500"`
}

// RecordExpenseRequest represents a request to record an expense
type RecordExpenseRequest struct {
	Category      string          `json:"category" binding:"omitempty,oneof=supplies maintenance utilities transport canteen salaries other"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Date          string          `json:"date" binding:"required"`
	Status        string          `json:"status" binding:"omitempty,oneof=completed pending cancelled rejected"`
	PaymentMethod string          `json:"payment_method" binding:"omitempty,oneof=cash mobile_money bank_transfer cheque card unspecified"`
	Beneficiary   string          `json:"beneficiary" binding:"max=200"`
	Description   string          `json:"description" binding:"max=500"`
}

// ChangeStatusRequest represents a status change of a transaction
type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=completed pending cancelled rejected"`
}

// RevenueResponse represents a revenue in API responses
type RevenueResponse struct {
	ID             uuid.UUID               `json:"id"`
	SchoolID       uuid.UUID               `json:"school_id"`
	AcademicYear   string                  `json:"academic_year"`
	Reference      string                  `json:"reference"`
	Sequential     bool                    `json:"sequential"`
	Kind           string                  `json:"kind"`
	Amount         decimal.Decimal         `json:"amount"`
	Date           string                  `json:"date"`
	Status         string                  `json:"status"`
	PaymentMethod  string                  `json:"payment_method"`
	StudentID      *uuid.UUID              `json:"student_id,omitempty"`
	ClassName      string                  `json:"class_name,omitempty"`
	Payer          string                  `json:"payer,omitempty"`
	Description    string                  `json:"description,omitempty"`
	StudentBalance *finance.StudentBalance `json:"student_balance,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
	Version        int                     `json:"version"`
}

// ExpenseResponse represents an expense in API responses
type ExpenseResponse struct {
	ID            uuid.UUID       `json:"id"`
	SchoolID      uuid.UUID       `json:"school_id"`
	AcademicYear  string          `json:"academic_year"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	Date          string          `json:"date"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	Beneficiary   string          `json:"beneficiary,omitempty"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
}

// RecordRevenue creates a revenue and stamps it with a fresh receipt
// reference. A reference rejected by the store's uniqueness constraint is
// re-issued; after maxAttempts collisions the call fails with
// ErrReferenceIssuanceFailed and nothing is stored.
func (s *TransactionService) RecordRevenue(ctx context.Context, scope shared.SchoolScope, req RecordRevenueRequest) (*RevenueResponse, error) {
	kind, err := finance.ParseRevenueKind(req.Kind)
	if err != nil {
		return nil, err
	}
	revenue, err := finance.NewRevenue(scope, kind, req.Amount, req.Date, finance.RevenueDetails{
		StudentID:     req.StudentID,
		ClassName:     req.ClassName,
		Payer:         req.Payer,
		Description:   req.Description,
		PaymentMethod: finance.PaymentMethod(req.PaymentMethod),
		Status:        finance.TransactionStatus(req.Status),
	})
	if err != nil {
		return nil, err
	}
	if err := s.ensureDayOpen(ctx, scope, revenue.Day()); err != nil {
		return nil, err
	}

	receiptScope := finance.ReceiptScope{
		AcademicYear: scope.AcademicYear,
		ClassName:    revenue.ClassName,
		Kind:         kind,
	}
	stored := false
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		ref, err := s.issuer.Issue(ctx, scope, receiptScope)
		if err != nil {
			return nil, err
		}
		revenue.AssignReference(ref)

		err = s.revenueRepo.Create(ctx, revenue)
		if err == nil {
			stored = true
			break
		}
		if !errors.Is(err, finance.ErrDuplicateReference) {
			return nil, err
		}
		s.metrics.ReferenceConflict()
		s.logger.Warn("Receipt reference collision, re-issuing",
			zap.String("reference", ref.Value),
			zap.Int("attempt", attempt),
		)
	}
	if !stored {
		s.metrics.ReferenceIssuanceFailed()
		s.logger.Error("Receipt reference issuance failed",
			zap.String("school_id", scope.SchoolID.String()),
			zap.String("class_name", revenue.ClassName),
			zap.String("kind", string(kind)),
			zap.Int("attempts", s.maxAttempts),
		)
		return nil, finance.ErrReferenceIssuanceFailed
	}

	resp := toRevenueResponse(revenue)
	if studentID := revenue.Student(); studentID != nil {
		balance, err := s.GetStudentBalance(ctx, scope, *studentID)
		if err != nil {
			// the revenue is stored; a missing balance only degrades the receipt
			s.logger.Warn("Student balance unavailable", zap.Error(err))
		} else {
			resp.StudentBalance = balance
		}
	}
	return resp, nil
}

// RecordExpense creates an expense
func (s *TransactionService) RecordExpense(ctx context.Context, scope shared.SchoolScope, req RecordExpenseRequest) (*ExpenseResponse, error) {
	expense, err := finance.NewExpense(scope,
		finance.ExpenseCategory(req.Category),
		req.Amount,
		req.Date,
		finance.PaymentMethod(req.PaymentMethod),
		finance.TransactionStatus(req.Status),
	)
	if err != nil {
		return nil, err
	}
	expense.Beneficiary = req.Beneficiary
	expense.Description = req.Description

	if err := s.ensureDayOpen(ctx, scope, expense.Day()); err != nil {
		return nil, err
	}
	if err := s.expenseRepo.Create(ctx, expense); err != nil {
		return nil, err
	}
	return toExpenseResponse(expense), nil
}

// ChangeRevenueStatus changes the status of a revenue on an open day
func (s *TransactionService) ChangeRevenueStatus(ctx context.Context, scope shared.SchoolScope, id uuid.UUID, req ChangeStatusRequest) (*RevenueResponse, error) {
	revenue, err := s.revenueRepo.FindByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureDayOpen(ctx, scope, revenue.Day()); err != nil {
		return nil, err
	}
	if err := revenue.ChangeStatus(finance.TransactionStatus(req.Status)); err != nil {
		return nil, err
	}
	if err := s.revenueRepo.Save(ctx, revenue); err != nil {
		return nil, err
	}
	return toRevenueResponse(revenue), nil
}

// ChangeExpenseStatus changes the status of an expense on an open day
func (s *TransactionService) ChangeExpenseStatus(ctx context.Context, scope shared.SchoolScope, id uuid.UUID, req ChangeStatusRequest) (*ExpenseResponse, error) {
	expense, err := s.expenseRepo.FindByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureDayOpen(ctx, scope, expense.Day()); err != nil {
		return nil, err
	}
	if err := expense.ChangeStatus(finance.TransactionStatus(req.Status)); err != nil {
		return nil, err
	}
	if err := s.expenseRepo.Save(ctx, expense); err != nil {
		return nil, err
	}
	return toExpenseResponse(expense), nil
}

// ListNonSequential lists revenues carrying a fallback reference, oldest
// first, for later reconciliation
func (s *TransactionService) ListNonSequential(ctx context.Context, scope shared.SchoolScope, filter shared.Filter) (*shared.Paginated[RevenueResponse], error) {
	revenues, total, err := s.revenueRepo.FindNonSequential(ctx, scope, filter)
	if err != nil {
		return nil, err
	}
	items := make([]RevenueResponse, 0, len(revenues))
	for i := range revenues {
		items = append(items, *toRevenueResponse(&revenues[i]))
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// GetStudentBalance returns expected, paid and remaining fees of a student
// for the scope's academic year
func (s *TransactionService) GetStudentBalance(ctx context.Context, scope shared.SchoolScope, studentID uuid.UUID) (*finance.StudentBalance, error) {
	expected, err := s.feeRepo.SumExpectedForStudent(ctx, scope, studentID)
	if err != nil {
		return nil, err
	}
	paid, err := s.revenueRepo.SumPaidByStudent(ctx, scope, studentID)
	if err != nil {
		return nil, err
	}
	balance := finance.NewStudentBalance(studentID, scope.AcademicYear, expected, paid)
	return &balance, nil
}

// ensureDayOpen fails early with ErrClosureLocked when day has a validated
// closure. The repositories repeat the check in the writing transaction, so a
// validation committed after this read still rejects the write.
func (s *TransactionService) ensureDayOpen(ctx context.Context, scope shared.SchoolScope, day string) error {
	closure, err := s.closureRepo.FindByDate(ctx, scope, day)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	if closure.IsLocked() {
		return finance.ErrClosureLocked
	}
	return nil
}

func toRevenueResponse(r *finance.Revenue) *RevenueResponse {
	return &RevenueResponse{
		ID:            r.ID,
		SchoolID:      r.SchoolID,
		AcademicYear:  r.AcademicYear,
		Reference:     r.Reference,
		Sequential:    r.Sequential,
		Kind:          string(r.Kind),
		Amount:        r.Amount,
		Date:          r.Date,
		Status:        string(r.Status),
		PaymentMethod: string(r.PaymentMethod),
		StudentID:     r.Student(),
		ClassName:     r.ClassName,
		Payer:         r.Payer(),
		Description:   r.Description,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		Version:       r.Version,
	}
}

func toExpenseResponse(e *finance.Expense) *ExpenseResponse {
	return &ExpenseResponse{
		ID:            e.ID,
		SchoolID:      e.SchoolID,
		AcademicYear:  e.AcademicYear,
		Category:      string(e.Category),
		Amount:        e.Amount,
		Date:          e.Date,
		Status:        string(e.Status),
		PaymentMethod: string(e.PaymentMethod),
		Beneficiary:   e.Beneficiary,
		Description:   e.Description,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
		Version:       e.Version,
	}
}
