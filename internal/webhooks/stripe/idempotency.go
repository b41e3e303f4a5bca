package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/orderflow-backend/pkg/redis"
)

const (
	markProcessing = "processing"
	markDone       = "done"

	// A claim that is never completed expires after this long, so a crashed
	// handler does not swallow the gateway's retries for the full ttl.
	defaultClaimTTL = 5 * time.Minute
)

// IdempotencyGuard tracks gateway event ids in redis in two steps: Claim marks
// an event as in flight, Complete records it as done for ttl, Release forgets it.
type IdempotencyGuard struct {
	store    redis.IdempotencyStore
	ttl      time.Duration
	claimTTL time.Duration
	scope    string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	claimTTL := defaultClaimTTL
	if ttl > 0 && ttl < claimTTL {
		claimTTL = ttl
	}
	return &IdempotencyGuard{store: store, ttl: ttl, claimTTL: claimTTL, scope: scope}, nil
}

// Claim reports true when this caller owns eventID. False means the event is
// already done or being handled elsewhere.
func (g *IdempotencyGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	key, err := g.key(eventID)
	if err != nil {
		return false, err
	}
	claimed, err := g.store.SetNX(ctx, key, markProcessing, g.claimTTL)
	if err != nil {
		return false, fmt.Errorf("claim idempotency key: %w", err)
	}
	return claimed, nil
}

func (g *IdempotencyGuard) Complete(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	if err := g.store.Set(ctx, key, markDone, g.ttl); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release drops the claim so a redelivery of eventID is processed again.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *IdempotencyGuard) key(eventID string) (string, error) {
	if eventID == "" {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(g.scope, eventID), nil
}
