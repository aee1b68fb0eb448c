package retry

import "context"

// Action is a function to be performed in a retriable manner.
type Action func() error

// Retrier retries actions with a fixed set of strategies.
type Retrier interface {
	// Retry behaves like the package level Retry, additionally giving up with
	// ctx.Err() once ctx is done.
	Retry(ctx context.Context, action Action) (uint, error)
}

type retrier struct {
	strategies []Strategy
}

// NewRetrier returns a Retrier using strategies. Without strategies it
// retries in a tight loop until the action succeeds or the context is done.
func NewRetrier(strategies ...Strategy) Retrier {
	return &retrier{
		strategies: strategies,
	}
}

func (r *retrier) Retry(ctx context.Context, action Action) (uint, error) {
	strategies := make([]Strategy, 0, len(r.strategies)+1)
	strategies = append(strategies, func(uint, error) bool { return ctx.Err() == nil })
	strategies = append(strategies, r.strategies...)

	return Retry(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return action()
	}, strategies...)
}

// Retry runs action until it succeeds or a strategy declines another attempt,
// returning the number of attempts made and the last error.
//
// Strategies are consulted in order and the first refusal stops, so
// strategies that sleep belong last.
func Retry(action Action, strategies ...Strategy) (uint, error) {
	for attempts := uint(1); ; attempts++ {
		err := action()
		if err == nil {
			return attempts, nil
		}
		if !shouldRetry(strategies, attempts, err) {
			return attempts, err
		}
	}
}

// Loop runs action forever, returning only when a strategy refuses to retry a
// failure. A success resets the attempt counter.
func Loop(action Action, strategies ...Strategy) error {
	var attempts uint
	for {
		err := action()
		if err == nil {
			attempts = 0
			continue
		}

		attempts++
		if !shouldRetry(strategies, attempts, err) {
			return err
		}
	}
}

func shouldRetry(strategies []Strategy, attempts uint, err error) bool {
	for _, s := range strategies {
		if !s(attempts, err) {
			return false
		}
	}
	return true
}
