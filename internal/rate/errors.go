package rate

import "errors"

var (
	// ErrUnavailable indicates the limiter backend is unreachable. Callers
	// must treat this as a denial, never as an allowance.
	ErrUnavailable = errors.New("rate limit backend unavailable")
)
