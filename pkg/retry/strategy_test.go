package retry

import (
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/apologystake/stake-server/pkg/retry/backoff"
)

func TestLimit(t *testing.T) {
	strategy := Limit(2)
	assert.True(t, strategy(1, errors.New("test")))
	assert.False(t, strategy(2, errors.New("test")))
}

func TestErrorStrategies(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	errOther := errors.New("other")

	retriable := RetriableErrors(errA, errB)
	nonRetriable := NonRetriableErrors(errA, errB)
	for _, err := range []error{errA, errB, errors.Wrap(errB, "wrapped")} {
		assert.True(t, retriable(1, err))
		assert.False(t, nonRetriable(1, err))
	}
	assert.False(t, retriable(1, errOther))
	assert.True(t, nonRetriable(1, errOther))
}

func TestPredicateStrategies(t *testing.T) {
	errTransient := errors.New("transient")
	isTransient := func(err error) bool {
		return errors.Is(err, errTransient)
	}

	strategy := RetriableWhen(isTransient)
	assert.True(t, strategy(1, errors.Wrap(errTransient, "wrapped")))
	assert.False(t, strategy(1, errors.New("fatal")))

	strategy = NonRetriableWhen(isTransient)
	assert.False(t, strategy(1, errTransient))
	assert.True(t, strategy(1, errors.New("fatal")))
}

func TestBackoff(t *testing.T) {
	ts := &testSleeper{}
	sleeperImpl = ts

	strategy := Backoff(backoff.BinaryExponential(100*time.Millisecond), 500*time.Millisecond)
	for i := uint(1); i <= 5; i++ {
		assert.True(t, strategy(i, errors.New("test")))
	}

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond,
		500 * time.Millisecond,
	}, ts.sleepTimes)
}

func TestBackoffWithJitter(t *testing.T) {
	ts := &testSleeper{}
	sleeperImpl = ts

	delay := time.Millisecond
	strategy := BackoffWithJitter(backoff.Constant(delay), delay, 0.1)
	for i := 0; i < 10000; i++ {
		assert.True(t, strategy(1, errors.New("err")))
	}

	for _, d := range ts.sleepTimes {
		assert.True(t, d >= 900*time.Microsecond && d <= 1100*time.Microsecond, d)
	}

	// Uniform jitter over +/- 10% has a mean absolute deviation of 5%
	assert.InDelta(t, float64(delay), float64(ts.Mean()), 0.01*float64(delay))
	assert.InDelta(t, 0.05*float64(delay), float64(ts.AbsDeviation()), 0.005*float64(delay))
}

type testSleeper struct {
	sleepTimes []time.Duration
}

func (t *testSleeper) Sleep(d time.Duration) {
	t.sleepTimes = append(t.sleepTimes, d)
}

func (t *testSleeper) Mean() time.Duration {
	var total time.Duration
	for _, d := range t.sleepTimes {
		total += d
	}
	return total / time.Duration(len(t.sleepTimes))
}

func (t *testSleeper) AbsDeviation() time.Duration {
	mean := t.Mean()

	var dev float64
	for _, d := range t.sleepTimes {
		dev += math.Abs(float64(d - mean))
	}
	return time.Duration(dev / float64(len(t.sleepTimes)))
}
