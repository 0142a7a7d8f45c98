package types

import (
	"golang.org/x/time/rate"
)

const DefaultPaceBurst = 1

// RateLimiter paces background work such as library-wide cover generation.
type RateLimiter struct {
	*rate.Limiter
}

// NewRateLimiter creates a limiter allowing perSecond events per second.
// A non-positive rate creates an unlimited limiter.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return &RateLimiter{rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < 1 {
		burst = DefaultPaceBurst
	}
	return &RateLimiter{rate.NewLimiter(rate.Limit(perSecond), burst)}
}
