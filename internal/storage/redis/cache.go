// Package redis implements the advisory order cache on top of a Redis
// server. The store row is always authoritative; everything here may be
// stale or absent and callers tolerate misses.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/shopnow/order-service/internal/domain/order"
)

const (
	// DefaultTTL matches the advisory lifetime of every cache entry.
	DefaultTTL = 300 * time.Second

	// defaultOpTimeout bounds each cache round trip so a slow Redis
	// never stalls the pipeline. A timeout is an infrastructure fault,
	// not a miss.
	defaultOpTimeout = 500 * time.Millisecond
)

var _ order.Cache = (*Cache)(nil)

// Cache is the Redis-backed order.Cache implementation.
type Cache struct {
	client    *redis.Client
	ttl       time.Duration
	opTimeout time.Duration
}

// Option customizes a Cache.
type Option func(*Cache)

// WithTTL overrides the entry time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithOpTimeout overrides the per-operation execution budget.
func WithOpTimeout(d time.Duration) Option {
	return func(c *Cache) { c.opTimeout = d }
}

// New connects to Redis at the given URL (redis://...) and verifies the
// connection with a ping.
func New(ctx context.Context, redisURL string, opts ...Option) (*Cache, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}

	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}

	c := &Cache{
		client:    client,
		ttl:       DefaultTTL,
		opTimeout: defaultOpTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromClient wraps an existing client. Used by tests and by callers
// that manage the client lifecycle themselves.
func NewFromClient(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{
		client:    client,
		ttl:       DefaultTTL,
		opTimeout: defaultOpTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping reports whether the Redis server is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func statusKey(orderID int64) string {
	return fmt.Sprintf("order:%d:status", orderID)
}

func fraudKey(orderID int64) string {
	return fmt.Sprintf("fraud:check:%d", orderID)
}

// GetStatus returns the cached status of an order, or ErrStatusNotCached
// when the entry is absent or expired.
func (c *Cache) GetStatus(ctx context.Context, orderID int64) (order.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	val, err := c.client.Get(ctx, statusKey(orderID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", order.ErrStatusNotCached
		}
		return "", errors.Wrapf(err, "get cached status of order %d", orderID)
	}
	return order.Status(val), nil
}

// SetStatus caches the status of an order with the configured TTL.
func (c *Cache) SetStatus(ctx context.Context, orderID int64, status order.Status) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.SetEx(ctx, statusKey(orderID), status.String(), c.ttl).Err(); err != nil {
		return errors.Wrapf(err, "cache status of order %d", orderID)
	}
	return nil
}

// SetFraudVerdict records the fraud verdict for an order as an audit
// trail entry with the configured TTL.
func (c *Cache) SetFraudVerdict(ctx context.Context, orderID int64, verdict string) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.SetEx(ctx, fraudKey(orderID), verdict, c.ttl).Err(); err != nil {
		return errors.Wrapf(err, "cache fraud verdict of order %d", orderID)
	}
	return nil
}
