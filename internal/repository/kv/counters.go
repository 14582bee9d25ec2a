package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/fallsearch/internal/db"
)

type counterStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Counters keeps integer counters under the repository prefix (INCRBY + EXPIRE NX).
type Counters struct {
	store  counterStore
	prefix string
}

// NewCounters creates a counter store. An empty prefix means DefaultPrefix.
func NewCounters(s counterStore, prefix string) *Counters {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Counters{store: s, prefix: prefix}
}

// Add increments key by n. The TTL is set only on the first write so it is never extended.
func (c *Counters) Add(ctx context.Context, key string, n int64, ttl time.Duration) error {
	full := c.prefix + key
	if err := c.store.IncrBy(ctx, full, n); err != nil {
		return fmt.Errorf("incr %s: %w", full, err)
	}
	if ttl <= 0 {
		return nil
	}
	if err := c.store.Expire(ctx, full, ttl, true); err != nil {
		return fmt.Errorf("expire %s: %w", full, err)
	}
	return nil
}

// Load returns the counter value, or 0 when the key does not exist.
func (c *Counters) Load(ctx context.Context, key string) (int64, error) {
	full := c.prefix + key
	data, err := c.store.Get(ctx, full)
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", full, err)
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", full, err)
	}
	return v, nil
}
