package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a Redis-backed warm cache sitting in front of a live/paper-mode
// Provider's Data Context population. Backtest mode never touches it — the
// CSVProvider path has no network I/O in the hot loop — it exists only so a
// paper or live run can avoid re-fetching bars/quotes it has already seen
// this session.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache dials Redis and pings it with a bounded timeout before returning,
// so a misconfigured cache fails at startup rather than on the first miss.
func NewCache(config CacheConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: config.RedisURL,
		DB:   0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{client: client, ttl: config.TTL}, nil
}

// GetBars retrieves cached bars for (instrument, resolution).
func (c *Cache) GetBars(ctx context.Context, i Instrument, r Resolution) ([]Bar, error) {
	key := fmt.Sprintf("bars:%s:%s", i.Symbol, r)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	var bars []Bar
	if err := json.Unmarshal(data, &bars); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal bars: %v", ErrCacheError, err)
	}
	return bars, nil
}

// SetBars caches bars for (instrument, resolution). Daily bars get a longer
// TTL than intraday ones since they change far less often.
func (c *Cache) SetBars(ctx context.Context, i Instrument, r Resolution, bars []Bar) error {
	key := fmt.Sprintf("bars:%s:%s", i.Symbol, r)
	data, err := json.Marshal(bars)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal bars: %v", ErrCacheError, err)
	}
	ttl := c.ttl
	if r == ResDay {
		ttl = 24 * time.Hour
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	return nil
}

// GetQuote retrieves the cached latest quote for an instrument.
func (c *Cache) GetQuote(ctx context.Context, i Instrument) (QuoteTick, error) {
	key := fmt.Sprintf("quote:%s", i.Symbol)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return QuoteTick{}, ErrNoData
		}
		return QuoteTick{}, fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	var q QuoteTick
	if err := json.Unmarshal(data, &q); err != nil {
		return QuoteTick{}, fmt.Errorf("%w: failed to unmarshal quote: %v", ErrCacheError, err)
	}
	return q, nil
}

// SetQuote caches the latest quote for an instrument.
func (c *Cache) SetQuote(ctx context.Context, q QuoteTick) error {
	key := fmt.Sprintf("quote:%s", q.Instrument.Symbol)
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal quote: %v", ErrCacheError, err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	return nil
}

// Close closes the underlying Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
