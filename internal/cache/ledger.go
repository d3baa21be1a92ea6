// Package cache holds the Redis-backed webhook event ledger.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultLedgerTTL covers the provider's redelivery window.
const DefaultLedgerTTL = 72 * time.Hour

const ledgerPrefix = "webhook:event:"

// EventLedger records processed webhook event ids in Redis.
type EventLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEventLedger creates a ledger. A zero ttl uses DefaultLedgerTTL.
func NewEventLedger(client *redis.Client, ttl time.Duration) *EventLedger {
	if ttl <= 0 {
		ttl = DefaultLedgerTTL
	}
	return &EventLedger{client: client, ttl: ttl}
}

// Seen reports whether eventID was marked.
func (l *EventLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := l.client.Exists(ctx, ledgerPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("ledger seen: %w", err)
	}
	return n > 0, nil
}

// Mark records eventID until the ttl expires.
func (l *EventLedger) Mark(ctx context.Context, eventID string) error {
	if err := l.client.Set(ctx, ledgerPrefix+eventID, time.Now().UTC().Format(time.RFC3339), l.ttl).Err(); err != nil {
		return fmt.Errorf("ledger mark: %w", err)
	}
	return nil
}

// Connect parses a redis URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
