package dispatch

import (
	"math/rand"
	"time"
)

// RetryPolicy is the outbound send backoff: up to 2 additional attempts,
// base 100ms, factor 2, jitter +/-25%. Applied identically to WhatsApp
// and Discord transports.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Factor      float64
	JitterFrac  float64
}

// DefaultRetryPolicy is the standard outbound retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Base: 100 * time.Millisecond, Factor: 2, JitterFrac: 0.25}
}

// Backoff returns the delay before attempt n (0-indexed: 0 is the first
// retry after the initial attempt), with +/-JitterFrac jitter applied.
func (p RetryPolicy) Backoff(n int) time.Duration {
	d := float64(p.Base)
	for i := 0; i < n; i++ {
		d *= p.Factor
	}
	jitter := d * p.JitterFrac * (2*rand.Float64() - 1)
	return time.Duration(d + jitter)
}

// Retryable classifies a transport attempt outcome: HTTP 4xx is never
// retried; 5xx and connect errors (statusCode == 0) are.
func Retryable(statusCode int) bool {
	if statusCode == 0 {
		return true // connect/transport error
	}
	return statusCode >= 500
}
