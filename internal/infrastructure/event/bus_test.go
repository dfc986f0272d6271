package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHandler struct {
	mu         sync.Mutex
	eventTypes []string
	received   []shared.DomainEvent
	err        error
	panicWith  any
}

func (h *recordingHandler) Handle(_ context.Context, evt shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, evt)
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.eventTypes }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.received)
}

func validatedEvent(schoolID uuid.UUID) *finance.ClosureValidatedEvent {
	return &finance.ClosureValidatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(finance.EventTypeClosureValidated, "DailyClosure", uuid.New(), schoolID),
		Date:            "2025-10-17",
		NetBalance:      decimal.NewFromInt(16000),
	}
}

type auditEvent struct {
	shared.BaseDomainEvent
}

func newAuditEvent(schoolID uuid.UUID) *auditEvent {
	return &auditEvent{BaseDomainEvent: shared.NewBaseDomainEvent("ClosureAudited", "DailyClosure", uuid.New(), schoolID)}
}

func TestInMemoryEventBus_PublishToTypedHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := &recordingHandler{eventTypes: []string{finance.EventTypeClosureValidated}}
	bus.Subscribe(handler)

	evt := validatedEvent(uuid.New())
	require.NoError(t, bus.Publish(context.Background(), evt, newAuditEvent(uuid.New())))

	require.Equal(t, 1, handler.count())
	assert.Same(t, evt, handler.received[0])
}

func TestInMemoryEventBus_CatchAllHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	typed := &recordingHandler{}
	catchAll := &recordingHandler{}
	bus.Subscribe(typed, finance.EventTypeClosureValidated)
	bus.Subscribe(catchAll)

	schoolID := uuid.New()
	require.NoError(t, bus.Publish(context.Background(), validatedEvent(schoolID), newAuditEvent(schoolID)))

	assert.Equal(t, 1, typed.count())
	assert.Equal(t, 2, catchAll.count())
}

func TestInMemoryEventBus_FailingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	failing := &recordingHandler{err: errors.New("broker unreachable")}
	panicking := &recordingHandler{panicWith: "nil map"}
	healthy := &recordingHandler{}
	for _, h := range []*recordingHandler{failing, panicking, healthy} {
		bus.Subscribe(h, finance.EventTypeClosureValidated)
	}

	err := bus.Publish(context.Background(), validatedEvent(uuid.New()))

	require.NoError(t, err)
	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, panicking.count())
	assert.Equal(t, 1, healthy.count())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := &recordingHandler{}
	bus.Subscribe(handler, finance.EventTypeClosureValidated, "ClosureAudited")
	bus.Unsubscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), validatedEvent(uuid.New())))
	assert.Zero(t, handler.count())
	assert.Zero(t, bus.registry.Len())
}

func TestInMemoryEventBus_StopRejectsPublish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := &recordingHandler{}
	bus.Subscribe(handler, finance.EventTypeClosureValidated)
	ctx := context.Background()

	require.NoError(t, bus.Stop(ctx))
	assert.ErrorIs(t, bus.Publish(ctx, validatedEvent(uuid.New())), ErrBusStopped)

	require.NoError(t, bus.Start(ctx))
	assert.NoError(t, bus.Publish(ctx, validatedEvent(uuid.New())))
	assert.Equal(t, 1, handler.count())
}

func TestHandlerRegistry_RegisterIsIdempotentPerType(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := &recordingHandler{}

	registry.Register(handler, finance.EventTypeClosureValidated)
	registry.Register(handler, finance.EventTypeClosureValidated, "ClosureAudited")

	assert.Len(t, registry.HandlersFor(finance.EventTypeClosureValidated), 1)
	assert.Len(t, registry.HandlersFor("ClosureAudited"), 1)
	assert.Empty(t, registry.HandlersFor("RevenueRecorded"))
	assert.Equal(t, 1, registry.Len())
}
