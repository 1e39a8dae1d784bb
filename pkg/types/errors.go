package types

import "errors"

// Error taxonomy for venue operations. Per-market read failures during batch
// listings are recovered locally (sentinel quotes, omitted positions); these
// sentinels classify the failures that reach the caller.
var (
	// ErrMarketNotFound: the market index does not exist in the catalog.
	// Caller error; never retried.
	ErrMarketNotFound = errors.New("market not found")

	// ErrMarketUnavailable: a single market's book, oracle, or position could
	// not be read. Batch operations isolate it; single-target reads surface it.
	ErrMarketUnavailable = errors.New("market unavailable")

	// ErrInvalidRequest: malformed direction, amount, or limit price.
	// Rejected before any venue call is made.
	ErrInvalidRequest = errors.New("invalid request")
)
