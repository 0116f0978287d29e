package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyDedup is dedup:{scope}:{id}.
	KeyDedup = "dedup:%s:%s"

	TTLDedup = 48 * time.Hour
)

// New creates a Redis client for addr.
func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Deduper remembers processed keys for a while so repeated deliveries can be
// skipped cheaply. It is a fast path only; the database stays authoritative.
type Deduper struct {
	rdb   redis.Cmdable
	scope string
	ttl   time.Duration
}

// NewDeduper creates a Deduper storing keys under scope.
func NewDeduper(rdb redis.Cmdable, scope string, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = TTLDedup
	}
	return &Deduper{rdb: rdb, scope: scope, ttl: ttl}
}

func (d *Deduper) key(id string) string {
	return fmt.Sprintf(KeyDedup, d.scope, id)
}

// Seen reports whether id was marked before.
func (d *Deduper) Seen(ctx context.Context, id string) (bool, error) {
	n, err := d.rdb.Exists(ctx, d.key(id)).Result()
	return n > 0, err
}

// Mark records id as processed.
func (d *Deduper) Mark(ctx context.Context, id string) error {
	return d.rdb.Set(ctx, d.key(id), "1", d.ttl).Err()
}
