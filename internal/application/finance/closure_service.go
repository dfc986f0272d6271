package finance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerReader aggregates a calendar day
type LedgerReader interface {
	Aggregate(ctx context.Context, scope shared.SchoolScope, date string) (*finance.DailyLedger, error)
}

// ClosureService owns the daily closure lifecycle: draft creation, edits,
// variance justification, validation (lock) and draft deletion
type ClosureService struct {
	closureRepo    finance.DailyClosureRepository
	ledger         LedgerReader
	eventPublisher shared.EventPublisher
	metrics        Recorder
	logger         *zap.Logger
}

// ClosureServiceConfig holds the closure service dependencies
type ClosureServiceConfig struct {
	ClosureRepo    finance.DailyClosureRepository
	Ledger         LedgerReader
	EventPublisher shared.EventPublisher
	Metrics        Recorder
	Logger         *zap.Logger
}

// NewClosureService creates a new ClosureService
func NewClosureService(cfg ClosureServiceConfig) *ClosureService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NopRecorder{}
	}
	return &ClosureService{
		closureRepo:    cfg.ClosureRepo,
		ledger:         cfg.Ledger,
		eventPublisher: cfg.EventPublisher,
		metrics:        metrics,
		logger:         logger,
	}
}

// CreateClosureRequest represents a request to open a draft closure
type CreateClosureRequest struct {
	Date        string          `json:"date" binding:"required"`
	OpeningCash decimal.Decimal `json:"opening_cash"`
	CashOnHand  decimal.Decimal `json:"cash_on_hand"`
	Notes       string          `json:"notes" binding:"max=2000"`
}

// UpdateClosureRequest represents a partial update of a draft closure
type UpdateClosureRequest struct {
	OpeningCash *decimal.Decimal `json:"opening_cash"`
	CashOnHand  *decimal.Decimal `json:"cash_on_hand"`
	Notes       *string          `json:"notes" binding:"omitempty,max=2000"`
}

// JustificationRequest carries the variance explanation
type JustificationRequest struct {
	Text string `json:"text" binding:"required,max=2000"`
}

// ValidateByDateRequest validates the closure of a day, optionally
// justifying its variance in the same call
type ValidateByDateRequest struct {
	Date          string  `json:"date" binding:"required"`
	Justification *string `json:"justification" binding:"omitempty,max=2000"`
}

// VarianceRequest represents a standalone variance computation
type VarianceRequest struct {
	OpeningCash decimal.Decimal `json:"opening_cash"`
	CurrentCash decimal.Decimal `json:"current_cash"`
	NetBalance  decimal.Decimal `json:"net_balance"`
}

// ClosureListFilter defines filtering options for closure list queries
type ClosureListFilter struct {
	Status   string `form:"status" binding:"omitempty,oneof=draft completed"`
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ClosureResponse represents a daily closure in API responses
type ClosureResponse struct {
	ID                    uuid.UUID       `json:"id"`
	SchoolID              uuid.UUID       `json:"school_id"`
	AcademicYear          string          `json:"academic_year"`
	Date                  string          `json:"date"`
	TotalIncome           decimal.Decimal `json:"total_income"`
	TotalExpenses         decimal.Decimal `json:"total_expenses"`
	NetBalance            decimal.Decimal `json:"net_balance"`
	OpeningCash           decimal.Decimal `json:"opening_cash"`
	CashOnHand            decimal.Decimal `json:"cash_on_hand"`
	ExpectedCash          decimal.Decimal `json:"expected_cash"`
	Variance              decimal.Decimal `json:"variance"`
	Notes                 string          `json:"notes"`
	Justification         string          `json:"justification,omitempty"`
	RequiresJustification bool            `json:"requires_justification"`
	JustificationStale    bool            `json:"justification_stale"`
	Status                string          `json:"status"`
	Locked                bool            `json:"locked"`
	CreatedBy             *uuid.UUID      `json:"created_by,omitempty"`
	ValidatedBy           *uuid.UUID      `json:"validated_by,omitempty"`
	ValidatedAt           *time.Time      `json:"validated_at,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	Version               int             `json:"version"`
}

// ClosurePreview shows what a closure for a day would hold
type ClosurePreview struct {
	Ledger         *finance.DailyLedger   `json:"ledger"`
	Reconciliation finance.Reconciliation `json:"reconciliation"`
	ExistingStatus string                 `json:"existing_status,omitempty"`
	ExistingID     *uuid.UUID             `json:"existing_id,omitempty"`
}

// ComputeVariance runs the reconciliation arithmetic without touching storage
func (s *ClosureService) ComputeVariance(req VarianceRequest) finance.Reconciliation {
	return finance.ComputeVariance(req.OpeningCash, req.CurrentCash, req.NetBalance)
}

// Preview aggregates date and reconciles it against operator-entered cash
func (s *ClosureService) Preview(ctx context.Context, scope shared.SchoolScope, date string, opening, current decimal.Decimal) (*ClosurePreview, error) {
	ledger, err := s.ledger.Aggregate(ctx, scope, date)
	if err != nil {
		return nil, err
	}
	preview := &ClosurePreview{
		Ledger:         ledger,
		Reconciliation: finance.ComputeVariance(opening, current, ledger.NetBalance),
	}
	existing, err := s.closureRepo.FindByDate(ctx, scope, ledger.Date)
	switch {
	case err == nil:
		preview.ExistingStatus = string(existing.Status)
		preview.ExistingID = &existing.ID
	case !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}
	return preview, nil
}

// Create opens a draft closure for a day that has none yet
func (s *ClosureService) Create(ctx context.Context, scope shared.SchoolScope, req CreateClosureRequest) (*ClosureResponse, error) {
	if err := finance.ValidateDate(req.Date); err != nil {
		return nil, err
	}
	day := finance.DayOf(req.Date)

	if _, err := s.closureRepo.FindByDate(ctx, scope, day); err == nil {
		return nil, finance.ErrDuplicateClosure
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	ledger, err := s.ledger.Aggregate(ctx, scope, day)
	if err != nil {
		return nil, err
	}
	closure, err := finance.NewDailyClosure(scope, day, finance.ClosureFigures{
		OpeningCash:   req.OpeningCash,
		CashOnHand:    req.CashOnHand,
		TotalIncome:   ledger.TotalIncome,
		TotalExpenses: ledger.TotalExpenses,
	}, req.Notes)
	if err != nil {
		return nil, err
	}

	// the unique (school, year, date) index settles concurrent creates
	if err := s.closureRepo.Create(ctx, closure); err != nil {
		return nil, err
	}

	s.logger.Info("Daily closure drafted",
		zap.String("closure_id", closure.ID.String()),
		zap.String("date", closure.Date),
		zap.String("variance", closure.Variance.String()),
	)
	return toClosureResponse(closure), nil
}

// Get returns a closure by ID
func (s *ClosureService) Get(ctx context.Context, scope shared.SchoolScope, id uuid.UUID) (*ClosureResponse, error) {
	closure, err := s.closureRepo.FindByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	return toClosureResponse(closure), nil
}

// List returns closures matching the filter
func (s *ClosureService) List(ctx context.Context, scope shared.SchoolScope, filter ClosureListFilter) (*shared.Paginated[ClosureResponse], error) {
	f := finance.ClosureFilter{
		Filter:   shared.DefaultFilter(),
		Status:   finance.ClosureStatus(filter.Status),
		DateFrom: filter.DateFrom,
		DateTo:   filter.DateTo,
	}
	f.OrderBy = "date"
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		f.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		f.OrderDir = filter.OrderDir
	}

	closures, total, err := s.closureRepo.FindAll(ctx, scope, f)
	if err != nil {
		return nil, err
	}
	items := make([]ClosureResponse, 0, len(closures))
	for i := range closures {
		items = append(items, *toClosureResponse(&closures[i]))
	}
	page := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &page, nil
}

// Update edits a draft closure and refreshes its totals from the ledger
func (s *ClosureService) Update(ctx context.Context, scope shared.SchoolScope, id uuid.UUID, req UpdateClosureRequest) (*ClosureResponse, error) {
	closure, err := s.loadDraft(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	ledger, err := s.ledger.Aggregate(ctx, scope, closure.Date)
	if err != nil {
		return nil, err
	}
	if err := closure.Update(finance.ClosurePatch{
		OpeningCash: req.OpeningCash,
		CashOnHand:  req.CashOnHand,
		Notes:       req.Notes,
	}, ledger); err != nil {
		return nil, err
	}
	if err := s.save(ctx, scope, closure); err != nil {
		return nil, err
	}
	return toClosureResponse(closure), nil
}

// RecordJustification explains the current variance of a draft
func (s *ClosureService) RecordJustification(ctx context.Context, scope shared.SchoolScope, id uuid.UUID, req JustificationRequest) (*ClosureResponse, error) {
	closure, err := s.loadDraft(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.refreshTotals(ctx, scope, closure); err != nil {
		return nil, err
	}
	if err := closure.RecordJustification(req.Text, scope.UserID); err != nil {
		return nil, err
	}
	if err := s.save(ctx, scope, closure); err != nil {
		return nil, err
	}
	return toClosureResponse(closure), nil
}

// Validate locks a draft closure. Totals are refreshed from the ledger
// first, so a justification written before a late transaction goes stale.
func (s *ClosureService) Validate(ctx context.Context, scope shared.SchoolScope, id uuid.UUID) (*ClosureResponse, error) {
	closure, err := s.loadDraft(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	return s.validate(ctx, scope, closure, nil)
}

// ValidateByDate validates the closure of a day. A non-empty justification
// is recorded first when the variance is not already justified.
func (s *ClosureService) ValidateByDate(ctx context.Context, scope shared.SchoolScope, req ValidateByDateRequest) (*ClosureResponse, error) {
	if err := finance.ValidateDate(req.Date); err != nil {
		return nil, err
	}
	closure, err := s.closureRepo.FindByDate(ctx, scope, finance.DayOf(req.Date))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, finance.ErrClosureNotFound
		}
		return nil, err
	}
	if closure.IsLocked() {
		return nil, finance.ErrClosureLocked
	}
	return s.validate(ctx, scope, closure, req.Justification)
}

// Delete removes a draft closure and its justification
func (s *ClosureService) Delete(ctx context.Context, scope shared.SchoolScope, id uuid.UUID) error {
	closure, err := s.closureRepo.FindByID(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := closure.EnsureDeletable(); err != nil {
		return err
	}
	if err := s.closureRepo.DeleteDraft(ctx, scope, id); err != nil {
		return err
	}
	s.logger.Info("Daily closure draft deleted",
		zap.String("closure_id", id.String()),
		zap.String("date", closure.Date),
	)
	return nil
}

func (s *ClosureService) validate(ctx context.Context, scope shared.SchoolScope, closure *finance.DailyClosure, justification *string) (resp *ClosureResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "closure", "validate",
		telemetry.SpanAttrSchoolID, scope.SchoolID.String(),
		telemetry.SpanAttrClosureID, closure.ID.String(),
		telemetry.SpanAttrDate, closure.Date,
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	if err := s.refreshTotals(ctx, scope, closure); err != nil {
		return nil, err
	}
	if justification != nil && strings.TrimSpace(*justification) != "" {
		err := closure.RecordJustification(*justification, scope.UserID)
		if err != nil && !errors.Is(err, finance.ErrJustificationAlreadyRecorded) && !errors.Is(err, finance.ErrNoVarianceToJustify) {
			return nil, err
		}
	}

	if err := closure.Validate(scope.UserID); err != nil {
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			s.metrics.ValidationRejected(domainErr.Code)
		}
		return nil, err
	}
	if err := s.save(ctx, scope, closure); err != nil {
		return nil, err
	}

	s.metrics.ClosureValidated()
	s.logger.Info("Daily closure validated",
		zap.String("closure_id", closure.ID.String()),
		zap.String("date", closure.Date),
		zap.String("net_balance", closure.NetBalance.String()),
		zap.String("variance", closure.Variance.String()),
	)

	if s.eventPublisher != nil {
		events := closure.GetDomainEvents()
		if len(events) > 0 {
			if err := s.eventPublisher.Publish(ctx, events...); err != nil {
				// the closure is locked already; downstream reporting can replay
				s.logger.Error("Failed to publish closure events",
					zap.String("closure_id", closure.ID.String()),
					zap.Error(err),
				)
			}
		}
	}
	closure.ClearDomainEvents()
	return toClosureResponse(closure), nil
}

// refreshTotals reloads the day's ledger and applies changed totals to the draft
func (s *ClosureService) refreshTotals(ctx context.Context, scope shared.SchoolScope, closure *finance.DailyClosure) error {
	ledger, err := s.ledger.Aggregate(ctx, scope, closure.Date)
	if err != nil {
		return err
	}
	if ledger.TotalIncome.Equal(closure.TotalIncome) && ledger.TotalExpenses.Equal(closure.TotalExpenses) {
		return nil
	}
	s.logger.Info("Closure totals changed since draft",
		zap.String("closure_id", closure.ID.String()),
		zap.String("total_income", ledger.TotalIncome.String()),
		zap.String("total_expenses", ledger.TotalExpenses.String()),
	)
	return closure.Update(finance.ClosurePatch{}, ledger)
}

func (s *ClosureService) loadDraft(ctx context.Context, scope shared.SchoolScope, id uuid.UUID) (*finance.DailyClosure, error) {
	closure, err := s.closureRepo.FindByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if closure.IsLocked() {
		return nil, finance.ErrClosureLocked
	}
	return closure, nil
}

// save persists with the optimistic lock. Losing the race to a concurrent
// validation surfaces as ErrClosureLocked.
func (s *ClosureService) save(ctx context.Context, scope shared.SchoolScope, closure *finance.DailyClosure) error {
	err := s.closureRepo.SaveWithLock(ctx, closure)
	if err == nil {
		return nil
	}
	if !errors.Is(err, shared.ErrConcurrencyConflict) {
		return err
	}
	current, findErr := s.closureRepo.FindByID(ctx, scope, closure.ID)
	if findErr != nil {
		if errors.Is(findErr, shared.ErrNotFound) {
			return finance.ErrClosureNotFound
		}
		return err
	}
	if current.IsLocked() {
		return finance.ErrClosureLocked
	}
	return err
}

func toClosureResponse(c *finance.DailyClosure) *ClosureResponse {
	resp := &ClosureResponse{
		ID:                    c.ID,
		SchoolID:              c.SchoolID,
		AcademicYear:          c.AcademicYear,
		Date:                  c.Date,
		TotalIncome:           c.TotalIncome,
		TotalExpenses:         c.TotalExpenses,
		NetBalance:            c.NetBalance,
		OpeningCash:           c.OpeningCash,
		CashOnHand:            c.CashOnHand,
		ExpectedCash:          c.ExpectedCash,
		Variance:              c.Variance,
		Notes:                 c.Notes,
		RequiresJustification: c.Reconciliation().RequiresJustification(),
		JustificationStale:    c.JustificationIsStale(),
		Status:                string(c.Status),
		Locked:                c.IsLocked(),
		CreatedBy:             c.CreatedBy,
		ValidatedBy:           c.ValidatedBy,
		ValidatedAt:           c.ValidatedAt,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
		Version:               c.Version,
	}
	if c.Justification != nil {
		resp.Justification = c.Justification.Text
	}
	return resp
}
