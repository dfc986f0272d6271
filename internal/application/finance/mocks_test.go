package finance

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockSequenceStore is a mock implementation of finance.SequenceStore
type MockSequenceStore struct {
	mock.Mock
}

func (m *MockSequenceStore) Next(ctx context.Context, key finance.SequenceKey) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

// counterStore is a goroutine-safe in-process sequence store for tests
type counterStore struct {
	mu     sync.Mutex
	values map[finance.SequenceKey]int
}

func newCounterStore() *counterStore {
	return &counterStore{values: make(map[finance.SequenceKey]int)}
}

func (s *counterStore) Next(_ context.Context, key finance.SequenceKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key]++
	return s.values[key], nil
}

// MockRevenueRepository is a mock implementation of finance.RevenueRepository
type MockRevenueRepository struct {
	mock.Mock
}

func (m *MockRevenueRepository) Create(ctx context.Context, revenue *finance.Revenue) error {
	args := m.Called(ctx, revenue)
	return args.Error(0)
}

func (m *MockRevenueRepository) Save(ctx context.Context, revenue *finance.Revenue) error {
	args := m.Called(ctx, revenue)
	return args.Error(0)
}

func (m *MockRevenueRepository) FindByID(ctx context.Context, scope shared.SchoolScope, id uuid.UUID) (*finance.Revenue, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Revenue), args.Error(1)
}

func (m *MockRevenueRepository) FindByDay(ctx context.Context, scope shared.SchoolScope, day string) ([]finance.Revenue, error) {
	args := m.Called(ctx, scope, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]finance.Revenue), args.Error(1)
}

func (m *MockRevenueRepository) FindNonSequential(ctx context.Context, scope shared.SchoolScope, filter shared.Filter) ([]finance.Revenue, int64, error) {
	args := m.Called(ctx, scope, filter)
	return args.Get(0).([]finance.Revenue), args.Get(1).(int64), args.Error(2)
}

func (m *MockRevenueRepository) FindReferences(ctx context.Context, key finance.SequenceKey) ([]string, error) {
	args := m.Called(ctx, key)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRevenueRepository) SumPaidByStudent(ctx context.Context, scope shared.SchoolScope, studentID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, scope, studentID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockRevenueRepository) SumBetween(ctx context.Context, scope shared.SchoolScope, fromDay, toDay string) (decimal.Decimal, error) {
	args := m.Called(ctx, scope, fromDay, toDay)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockExpenseRepository is a mock implementation of finance.ExpenseRepository
type MockExpenseRepository struct {
	mock.Mock
}

func (m *MockExpenseRepository) Create(ctx context.Context, expense *finance.Expense) error {
	args := m.Called(ctx, expense)
	return args.Error(0)
}

func (m *MockExpenseRepository) Save(ctx context.Context, expense *finance.Expense) error {
	args := m.Called(ctx, expense)
	return args.Error(0)
}

func (m *MockExpenseRepository) FindByID(ctx context.Context, scope shared.SchoolScope, id uuid.UUID) (*finance.Expense, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Expense), args.Error(1)
}

func (m *MockExpenseRepository) FindByDay(ctx context.Context, scope shared.SchoolScope, day string) ([]finance.Expense, error) {
	args := m.Called(ctx, scope, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]finance.Expense), args.Error(1)
}

func (m *MockExpenseRepository) SumBetween(ctx context.Context, scope shared.SchoolScope, fromDay, toDay string) (decimal.Decimal, error) {
	args := m.Called(ctx, scope, fromDay, toDay)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockDailyClosureRepository is a mock implementation of finance.DailyClosureRepository
type MockDailyClosureRepository struct {
	mock.Mock
}

func (m *MockDailyClosureRepository) Create(ctx context.Context, closure *finance.DailyClosure) error {
	args := m.Called(ctx, closure)
	return args.Error(0)
}

func (m *MockDailyClosureRepository) SaveWithLock(ctx context.Context, closure *finance.DailyClosure) error {
	args := m.Called(ctx, closure)
	return args.Error(0)
}

func (m *MockDailyClosureRepository) FindByID(ctx context.Context, scope shared.SchoolScope, id uuid.UUID) (*finance.DailyClosure, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.DailyClosure), args.Error(1)
}

func (m *MockDailyClosureRepository) FindByDate(ctx context.Context, scope shared.SchoolScope, day string) (*finance.DailyClosure, error) {
	args := m.Called(ctx, scope, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.DailyClosure), args.Error(1)
}

func (m *MockDailyClosureRepository) FindAll(ctx context.Context, scope shared.SchoolScope, filter finance.ClosureFilter) ([]finance.DailyClosure, int64, error) {
	args := m.Called(ctx, scope, filter)
	return args.Get(0).([]finance.DailyClosure), args.Get(1).(int64), args.Error(2)
}

func (m *MockDailyClosureRepository) DeleteDraft(ctx context.Context, scope shared.SchoolScope, id uuid.UUID) error {
	args := m.Called(ctx, scope, id)
	return args.Error(0)
}

// MockFeeAssignmentRepository is a mock implementation of finance.FeeAssignmentRepository
type MockFeeAssignmentRepository struct {
	mock.Mock
}

func (m *MockFeeAssignmentRepository) SumExpectedForStudent(ctx context.Context, scope shared.SchoolScope, studentID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, scope, studentID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockTreasuryAccountRepository is a mock implementation of finance.TreasuryAccountRepository
type MockTreasuryAccountRepository struct {
	mock.Mock
}

func (m *MockTreasuryAccountRepository) FindAll(ctx context.Context, schoolID uuid.UUID) ([]finance.TreasuryAccount, error) {
	args := m.Called(ctx, schoolID)
	return args.Get(0).([]finance.TreasuryAccount), args.Error(1)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockLedgerReader is a mock implementation of LedgerReader
type MockLedgerReader struct {
	mock.Mock
}

func (m *MockLedgerReader) Aggregate(ctx context.Context, scope shared.SchoolScope, date string) (*finance.DailyLedger, error) {
	args := m.Called(ctx, scope, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.DailyLedger), args.Error(1)
}

// recorderSpy counts recorder calls
type recorderSpy struct {
	mu        sync.Mutex
	issued    map[bool]int
	conflicts int
	failed    int
	retries   int
	validated int
	rejected  map[string]int
}

func newRecorderSpy() *recorderSpy {
	return &recorderSpy{issued: map[bool]int{}, rejected: map[string]int{}}
}

func (r *recorderSpy) ReferenceIssued(sequential bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued[sequential]++
}

func (r *recorderSpy) ReferenceConflict() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts++
}

func (r *recorderSpy) ReferenceIssuanceFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
}

func (r *recorderSpy) AggregationRetry() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
}

func (r *recorderSpy) ClosureValidated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validated++
}

func (r *recorderSpy) ValidationRejected(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected[reason]++
}
