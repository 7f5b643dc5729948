// Package idempotency makes Pub/Sub consumers effectively-once. A consumer
// claims an event id in Redis before handling it and confirms the claim once the
// handler succeeded. A claim from a worker that died mid-handler expires after
// the claim TTL, so the redelivered message is handled again instead of being
// dropped.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	defaultClaimTTL = 2 * time.Minute

	stateClaimed = "claimed"
	stateDone    = "done"
)

// ErrInFlight means another delivery of the same event holds the claim. The
// message should be nacked and retried later.
var ErrInFlight = errors.New("event is being handled by another delivery")

// Manager records processed event ids per consumer under
// sf:idempotency:evt:<consumer>:<event_id>.
type Manager struct {
	store    redis.IdempotencyStore
	doneTTL  time.Duration
	claimTTL time.Duration
}

// NewManager keeps confirmed marks for ttl. A zero ttl keeps them forever.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("idempotency ttl must not be negative")
	}
	claim := defaultClaimTTL
	if ttl > 0 && ttl < claim {
		claim = ttl
	}
	return &Manager{store: store, doneTTL: ttl, claimTTL: claim}, nil
}

// Guard runs fn at most once per (consumer, eventID). handled is false when the
// event was already confirmed. A failing fn releases the claim so the next
// delivery can retry.
func (m *Manager) Guard(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (handled bool, err error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	claimed, err := m.store.SetNX(ctx, key, stateClaimed, m.claimTTL)
	if err != nil {
		return false, err
	}
	if !claimed {
		state, err := m.store.Get(ctx, key)
		switch {
		case err != nil && !errors.Is(err, redis.Nil):
			return false, err
		case state == stateDone:
			return false, nil
		default:
			return false, ErrInFlight
		}
	}

	if err := fn(ctx); err != nil {
		if relErr := m.store.Del(ctx, key); relErr != nil {
			return false, errors.Join(err, relErr)
		}
		return false, err
	}
	if err := m.store.Set(ctx, key, stateDone, m.doneTTL); err != nil {
		return true, err
	}
	return true, nil
}

// Forget removes any mark for the event.
func (m *Manager) Forget(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	switch {
	case consumer == "":
		return "", errors.New("consumer name is required")
	case eventID == uuid.Nil:
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
