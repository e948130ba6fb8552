package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// Guard marks webhook events as in flight so concurrent redeliveries skip
// the work. Keys look like gamekeys:idempotency:<scope>:<event_id>.
type Guard struct {
	store Store
	ttl   time.Duration
	scope string
}

func NewGuard(store Store, ttl time.Duration, scope string) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &Guard{store: store, ttl: ttl, scope: scope}, nil
}

// CheckAndMark returns true when the event was already marked.
func (g *Guard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.key(eventID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Release drops the mark so the next delivery runs again.
func (g *Guard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.key(eventID))
}

func (g *Guard) key(eventID string) string {
	return "gamekeys:idempotency:" + g.scope + ":" + eventID
}
