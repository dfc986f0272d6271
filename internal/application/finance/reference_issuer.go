package finance

import (
	"context"
	"time"

	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ReferenceIssuer hands out receipt references drawn from a per-scope
// sequence store. When the store cannot be reached it falls back to a
// time-based reference flagged as non-sequential.
type ReferenceIssuer struct {
	store        finance.SequenceStore
	classCodeLen int
	metrics      Recorder
	logger       *zap.Logger
	now          func() time.Time
}

// ReferenceIssuerConfig holds the issuer dependencies
type ReferenceIssuerConfig struct {
	Store           finance.SequenceStore
	ClassCodeLength int
	Metrics         Recorder
	Logger          *zap.Logger
}

// NewReferenceIssuer creates a new ReferenceIssuer
func NewReferenceIssuer(cfg ReferenceIssuerConfig) *ReferenceIssuer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NopRecorder{}
	}
	classCodeLen := cfg.ClassCodeLength
	if classCodeLen <= 0 {
		classCodeLen = finance.DefaultClassCodeLength
	}
	return &ReferenceIssuer{
		store:        cfg.Store,
		classCodeLen: classCodeLen,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// IssueReferenceRequest is the scope of a new reference
type IssueReferenceRequest struct {
	AcademicYear string `json:"academic_year" binding:"omitempty,academic_year"`
	ClassName    string `json:"class_name" binding:"max=100"`
	Kind         string `json:"kind" binding:"max=50"`
}

// IssueReferenceResponse is an issued reference
type IssueReferenceResponse struct {
	Reference  string `json:"reference"`
	Ordinal    int    `json:"ordinal,omitempty"`
	Sequential bool   `json:"sequential"`
}

// IssueReference resolves the request into a receipt scope and issues a reference
func (s *ReferenceIssuer) IssueReference(ctx context.Context, scope shared.SchoolScope, req IssueReferenceRequest) (*IssueReferenceResponse, error) {
	kind, err := finance.ParseRevenueKind(req.Kind)
	if err != nil {
		return nil, err
	}
	year := req.AcademicYear
	if year == "" {
		year = scope.AcademicYear
	}
	ref, err := s.Issue(ctx, scope, finance.ReceiptScope{
		AcademicYear: year,
		ClassName:    req.ClassName,
		Kind:         kind,
	})
	if err != nil {
		return nil, err
	}
	return &IssueReferenceResponse{
		Reference:  ref.Value,
		Ordinal:    ref.Ordinal,
		Sequential: ref.Sequential,
	}, nil
}

// Issue draws the next ordinal for the receipt scope and formats it
func (s *ReferenceIssuer) Issue(ctx context.Context, scope shared.SchoolScope, rs finance.ReceiptScope) (finance.ReceiptReference, error) {
	if rs.AcademicYear == "" {
		rs.AcademicYear = scope.AcademicYear
	}
	key, err := finance.NewSequenceKey(scope.SchoolID, rs, s.classCodeLen)
	if err != nil {
		return finance.ReceiptReference{}, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "reference", "issue",
		telemetry.SpanAttrSchoolID, scope.SchoolID.String(),
		"sequence_key", key.String(),
	)
	defer span.End()

	ordinal, err := s.store.Next(ctx, key)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return finance.ReceiptReference{}, ctxErr
		}
		ref := finance.FallbackReference(key, s.now())
		s.logger.Warn("Sequence store unavailable, issued non-sequential reference",
			zap.String("sequence_key", key.String()),
			zap.String("reference", ref.Value),
			zap.Error(err),
		)
		telemetry.RecordError(span, err)
		telemetry.SetAttributes(span, telemetry.SpanAttrSequential, false)
		s.metrics.ReferenceIssued(false)
		return ref, nil
	}

	ref := finance.FormatReference(key, ordinal)
	telemetry.SetAttributes(span, telemetry.SpanAttrReference, ref.Value, telemetry.SpanAttrSequential, true)
	s.metrics.ReferenceIssued(true)
	return ref, nil
}
