// Package backoff provides delay strategies for retries.
package backoff

import (
	"math"
	"time"
)

// Strategy returns the delay before the next attempt. attempts starts at 1.
type Strategy func(attempts uint) time.Duration

// Constant always waits interval.
func Constant(interval time.Duration) Strategy {
	return func(uint) time.Duration {
		return interval
	}
}

// Linear waits baseDelay * attempts, for example 2s, 4s, 6s.
func Linear(baseDelay time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		return saturatingMul(baseDelay, float64(attempts))
	}
}

// BinaryExponential doubles the delay on every attempt, starting at
// baseDelay, for example 1s, 2s, 4s, 8s.
func BinaryExponential(baseDelay time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		if attempts == 0 {
			return baseDelay
		}
		return saturatingMul(baseDelay, math.Exp2(float64(attempts-1)))
	}
}

// Capped bounds every delay of strategy by max.
func Capped(strategy Strategy, max time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		if delay := strategy(attempts); delay < max {
			return delay
		}
		return max
	}
}

func saturatingMul(d time.Duration, factor float64) time.Duration {
	if product := float64(d) * factor; product < math.MaxInt64 {
		return time.Duration(product)
	}
	return math.MaxInt64
}
