// Package currency keeps the USD to ARS exchange rate used to show prices in
// dollars.
package currency

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultTTL = 30 * time.Minute
	// DefaultRetryInterval is the minimum gap between background fetch
	// attempts while the rate is stale.
	DefaultRetryInterval = time.Minute

	refreshTimeout = 10 * time.Second
)

// Fetcher retrieves the current price of one US dollar in pesos.
type Fetcher interface {
	FetchUSDRate(ctx context.Context) (decimal.Decimal, error)
}

// Rate is a snapshot of the cached exchange rate.
type Rate struct {
	USDPrice    decimal.Decimal `json:"usdPrice"`
	LastUpdated time.Time       `json:"lastUpdated"`
	IsUpdating  bool            `json:"isUpdating"`
}

// Cache serves the last known rate without blocking and refreshes it in the
// background once it is older than the TTL.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	retry   time.Duration
	now     func() time.Time
	log     *zap.Logger

	mu          sync.Mutex
	usdPrice    decimal.Decimal
	lastUpdated time.Time
	lastAttempt time.Time
	isUpdating  bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithTTL sets how long a fetched rate stays fresh.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithRetryInterval sets how long to wait after a background fetch attempt
// before starting another one while the rate is still stale.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.retry = d
		}
	}
}

// NewCache creates a Cache that reports fallback until the first successful
// fetch.
func NewCache(fetcher Fetcher, fallback decimal.Decimal, log *zap.Logger, opts ...Option) *Cache {
	c := &Cache{
		fetcher:  fetcher,
		ttl:      DefaultTTL,
		retry:    DefaultRetryInterval,
		now:      time.Now,
		log:      log,
		usdPrice: fallback,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetRate returns the cached rate immediately. A stale rate triggers one
// background refresh; callers keep getting the stale value until it lands.
// After a failed refresh the next attempt waits for the retry interval.
func (c *Cache) GetRate() Rate {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.isUpdating && now.Sub(c.lastUpdated) > c.ttl && now.Sub(c.lastAttempt) >= c.retry {
		c.isUpdating = true
		c.lastAttempt = now
		go c.refresh()
	}
	return c.snapshot()
}

// ForceRefresh fetches the rate synchronously. On failure the previous rate
// is returned along with the error.
func (c *Cache) ForceRefresh(ctx context.Context) (Rate, error) {
	rate, err := c.fetcher.FetchUSDRate(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.log.Warn("forced exchange rate refresh failed", zap.Error(err))
		return c.snapshot(), err
	}
	c.store(rate)
	return c.snapshot(), nil
}

func (c *Cache) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	rate, err := c.fetcher.FetchUSDRate(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.isUpdating = false
	if err != nil {
		c.log.Warn("exchange rate refresh failed, keeping last value",
			zap.String("usd_price", c.usdPrice.String()),
			zap.Error(err),
		)
		return
	}
	c.store(rate)
}

// store must be called with mu held.
func (c *Cache) store(rate decimal.Decimal) {
	c.usdPrice = rate
	c.lastUpdated = c.now()
	c.log.Info("exchange rate updated", zap.String("usd_price", rate.String()))
}

// snapshot must be called with mu held.
func (c *Cache) snapshot() Rate {
	return Rate{
		USDPrice:    c.usdPrice,
		LastUpdated: c.lastUpdated,
		IsUpdating:  c.isUpdating,
	}
}
