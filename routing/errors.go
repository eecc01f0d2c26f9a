package routing

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid routing configuration")
	ErrNoRouteFound         = errors.New("no route found")
	ErrStaleBlockHeight     = errors.New("block height is stale")
	ErrDeadlineExceeded     = errors.New("routing deadline exceeded")
	ErrPartialQuoteFailure  = errors.New("some quotes failed")
)
