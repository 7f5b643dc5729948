package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/analytics/router"
	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

func TestDecodeBuildsEnvelope(t *testing.T) {
	svc, _, _ := newTestService(t)
	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	orderID := uuid.New()
	msg := buildOrderCreatedMessage(t, uuid.NewString(), orderID, occurred)

	env, payload, err := svc.decode(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.EventType != enums.EventOrderCreated || env.AggregateType != enums.AggregateOrder {
		t.Fatalf("unexpected routing %s/%s", env.EventType, env.AggregateType)
	}
	if env.AggregateID != orderID.String() || env.MessageID != "msg-1" {
		t.Fatalf("unexpected ids %+v", env)
	}
	if !env.OccurredAt.Equal(occurred) {
		t.Fatalf("unexpected occurred at %v", env.OccurredAt)
	}
	event, ok := payload.(*payloads.OrderCreatedEvent)
	if !ok || event.OrderID != orderID {
		t.Fatalf("expected decoded order_created payload, got %#v", payload)
	}
}

func TestProcessHandlesOnce(t *testing.T) {
	svc, handler, guard := newTestService(t)
	eventID := uuid.NewString()
	msg := buildOrderCreatedMessage(t, eventID, uuid.New(), time.Now().UTC())

	if res := svc.process(context.Background(), msg); res.nack {
		t.Fatal("expected ack on first delivery")
	}
	if res := svc.process(context.Background(), msg); res.nack {
		t.Fatal("expected ack on redelivery")
	}
	if handler.calls != 1 {
		t.Fatalf("expected handler once, got %d", handler.calls)
	}
	if !guard.marked[eventID] {
		t.Fatal("expected event marked processed")
	}
}

func TestProcessHandlerErrorNacksAndClearsMark(t *testing.T) {
	svc, handler, guard := newTestService(t)
	handler.err = errors.New("bigquery down")
	eventID := uuid.NewString()
	msg := buildOrderCreatedMessage(t, eventID, uuid.New(), time.Now().UTC())

	if res := svc.process(context.Background(), msg); !res.nack {
		t.Fatal("expected nack on handler error")
	}
	if guard.marked[eventID] {
		t.Fatal("failed events must stay retryable")
	}

	handler.err = nil
	if res := svc.process(context.Background(), msg); res.nack {
		t.Fatal("expected ack once the handler recovers")
	}
	if handler.calls != 2 {
		t.Fatalf("expected retry to reach the handler, got %d calls", handler.calls)
	}
}

func TestProcessGuardOutcomes(t *testing.T) {
	cases := map[string]struct {
		result   guardResult
		wantNack bool
	}{
		"in flight elsewhere":  {result: guardResult{err: fmt.Errorf("claim: %w", idempotency.ErrInFlight)}, wantNack: true},
		"handled but unmarked": {result: guardResult{handled: true, err: errors.New("redis timeout")}},
		"redis unavailable":    {result: guardResult{err: errors.New("redis down")}, wantNack: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _, guard := newTestService(t)
			result := tc.result
			guard.result = &result
			msg := buildOrderCreatedMessage(t, uuid.NewString(), uuid.New(), time.Now().UTC())
			if res := svc.process(context.Background(), msg); res.nack != tc.wantNack {
				t.Fatalf("nack = %v, want %v", res.nack, tc.wantNack)
			}
		})
	}
}

func TestProcessAcksUnsupportedEvent(t *testing.T) {
	svc, handler, _ := newTestService(t)
	handler.err = fmt.Errorf("%w: cart_merged", router.ErrUnsupportedEventType)

	data := mustEnvelope(t, uuid.NewString(), time.Now().UTC(), payloads.CartMergedEvent{UserID: uuid.New(), MergedLines: 2})
	msg := buildMessage(data, map[string]string{
		"event_type":     "cart_merged",
		"aggregate_type": "cart",
		"aggregate_id":   uuid.NewString(),
	})
	if res := svc.process(context.Background(), msg); res.nack {
		t.Fatal("unsupported event should ack")
	}
}

func TestProcessAcksMalformedMessages(t *testing.T) {
	svc, handler, guard := newTestService(t)
	valid := mustEnvelope(t, uuid.NewString(), time.Now().UTC(), payloads.OrderCreatedEvent{OrderID: uuid.New()})

	cases := map[string]*gcppubsub.Message{
		"invalid json":      buildMessage([]byte("invalid json"), orderAttributes(uuid.NewString())),
		"unknown type":      buildMessage(valid, map[string]string{"event_type": "store_created", "aggregate_type": "order", "aggregate_id": "x"}),
		"missing aggregate": buildMessage(valid, map[string]string{"event_type": "order_created", "aggregate_type": "order"}),
		"bad event id":      buildMessage(mustEnvelope(t, "not-a-uuid", time.Now(), payloads.OrderCreatedEvent{}), orderAttributes(uuid.NewString())),
		"null payload":      buildMessage([]byte(`{"version":1,"eventId":"`+uuid.NewString()+`","data":null}`), orderAttributes(uuid.NewString())),
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			if res := svc.process(context.Background(), msg); res.nack {
				t.Fatal("malformed message should ack")
			}
		})
	}
	if handler.calls != 0 {
		t.Fatalf("handler should not be invoked, got %d", handler.calls)
	}
	if len(guard.marked) != 0 {
		t.Fatal("idempotency guard should not be touched")
	}
}

func TestNewServiceValidation(t *testing.T) {
	reg := mustRegistry(t)
	if _, err := NewService(nil, reg, &stubHandler{}, newStubGuard(), logger.Nop()); err == nil {
		t.Fatal("expected error when subscription missing")
	}
	if _, err := newService(nil, nil, &stubHandler{}, newStubGuard(), logger.Nop()); err == nil {
		t.Fatal("expected error when decoder missing")
	}
	if _, err := newService(nil, reg, nil, newStubGuard(), logger.Nop()); err == nil {
		t.Fatal("expected error when handler missing")
	}
	if _, err := newService(nil, reg, &stubHandler{}, nil, logger.Nop()); err == nil {
		t.Fatal("expected error when guard missing")
	}
}

func newTestService(t *testing.T) (*Service, *stubHandler, *stubGuard) {
	t.Helper()
	handler := &stubHandler{}
	guard := newStubGuard()
	svc, err := newService(nil, mustRegistry(t), handler, guard, logger.Nop())
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, handler, guard
}

func mustRegistry(t *testing.T) *registry.EventRegistry {
	t.Helper()
	reg, err := registry.NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func buildOrderCreatedMessage(t *testing.T, eventID string, orderID uuid.UUID, occurred time.Time) *gcppubsub.Message {
	t.Helper()
	data := mustEnvelope(t, eventID, occurred, payloads.OrderCreatedEvent{
		OrderID: orderID,
		UserID:  uuid.New(),
		Total:   decimal.RequireFromString("35.00"),
	})
	return buildMessage(data, orderAttributes(orderID.String()))
}

func orderAttributes(aggregateID string) map[string]string {
	return map[string]string{
		"event_type":     "order_created",
		"aggregate_type": "order",
		"aggregate_id":   aggregateID,
	}
}

func mustEnvelope(t *testing.T, eventID string, occurred time.Time, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	out, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: eventID, OccurredAt: occurred, Data: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return out
}

func buildMessage(data []byte, attrs map[string]string) *gcppubsub.Message {
	return &gcppubsub.Message{
		ID:         "msg-1",
		Data:       data,
		Attributes: attrs,
	}
}

type stubHandler struct {
	calls int
	err   error
}

func (h *stubHandler) Handle(context.Context, types.Envelope, any) error {
	h.calls++
	return h.err
}

type stubGuard struct {
	marked map[string]bool
	// result overrides the guard outcome when set
	result *guardResult
}

type guardResult struct {
	handled bool
	err     error
}

func newStubGuard() *stubGuard {
	return &stubGuard{marked: map[string]bool{}}
}

func (g *stubGuard) Guard(ctx context.Context, _ string, eventID uuid.UUID, fn func(context.Context) error) (bool, error) {
	if g.result != nil {
		return g.result.handled, g.result.err
	}
	key := eventID.String()
	if g.marked[key] {
		return false, nil
	}
	g.marked[key] = true
	if err := fn(ctx); err != nil {
		delete(g.marked, key)
		return false, err
	}
	return true, nil
}
