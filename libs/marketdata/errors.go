package marketdata

import "errors"

var (
	// ErrCacheError is returned when cache operations fail.
	ErrCacheError = errors.New("cache error")

	// ErrNoData is returned when no data is available for the request.
	ErrNoData = errors.New("no data available")
)
