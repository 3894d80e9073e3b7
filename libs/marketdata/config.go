package marketdata

import "time"

// CacheConfig holds the optional Redis warm-cache configuration used in
// paper/live execution mode. Backtest mode leaves Enabled false.
type CacheConfig struct {
	Enabled  bool
	RedisURL string
	TTL      time.Duration
}

// DefaultCacheConfig returns a CacheConfig with the cache disabled.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:  false,
		RedisURL: "localhost:6379",
		TTL:      5 * time.Minute,
	}
}
