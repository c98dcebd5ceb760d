package provider

import "golang.org/x/time/rate"

// NewLimiter returns a token bucket allowing rps requests per second with a burst of one.
// A non-positive rps never blocks.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}
