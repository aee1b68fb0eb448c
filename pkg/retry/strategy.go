package retry

import (
	"errors"
	"math/rand"
	"time"

	"github.com/apologystake/stake-server/pkg/retry/backoff"
)

// Strategy decides whether a failed action is attempted again. Strategies
// may block, which is how backoff is applied.
type Strategy func(attempts uint, err error) bool

// Limit stops after maxAttempts attempts, the first included.
func Limit(maxAttempts uint) Strategy {
	return func(attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors only retries errors matching one of retriable.
func RetriableErrors(retriable ...error) Strategy {
	return RetriableWhen(func(err error) bool {
		return isAny(err, retriable)
	})
}

// NonRetriableErrors retries everything except errors matching one of
// nonRetriable.
func NonRetriableErrors(nonRetriable ...error) Strategy {
	return NonRetriableWhen(func(err error) bool {
		return isAny(err, nonRetriable)
	})
}

// RetriableWhen only retries errors matching the predicate.
func RetriableWhen(isRetriable func(err error) bool) Strategy {
	return func(_ uint, err error) bool {
		return isRetriable(err)
	}
}

// NonRetriableWhen stops on errors matching the predicate.
func NonRetriableWhen(isNonRetriable func(err error) bool) Strategy {
	return func(_ uint, err error) bool {
		return !isNonRetriable(err)
	}
}

// Backoff sleeps for the strategy's delay, capped at maxBackoff, before
// allowing the next attempt.
func Backoff(strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	capped := backoff.Capped(strategy, maxBackoff)
	return func(attempts uint, _ error) bool {
		sleeperImpl.Sleep(capped(attempts))
		return true
	}
}

// BackoffWithJitter is Backoff with the capped delay shifted by up to
// +/- jitter of itself. A 100ms delay with 0.1 jitter sleeps 90ms to 110ms.
func BackoffWithJitter(strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	capped := backoff.Capped(strategy, maxBackoff)
	return func(attempts uint, _ error) bool {
		offset := (rand.Float64()*2 - 1) * jitter
		sleeperImpl.Sleep(time.Duration(float64(capped(attempts)) * (1 + offset)))
		return true
	}
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type sleeper interface {
	Sleep(time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

var sleeperImpl sleeper = realSleeper{}
