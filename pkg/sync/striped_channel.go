package sync

import (
	"context"
	base "sync"
)

// StripedChannel fans values out over a fixed set of buffered channels. All
// values sent with the same key land on the same channel, so a single
// consumer per channel sees them in order.
type StripedChannel[T any] struct {
	channels  []chan T
	ring      *ring
	closeOnce base.Once
}

func NewStripedChannel[T any](count, queueSize uint) *StripedChannel[T] {
	channels := make([]chan T, count)
	for i := range channels {
		channels[i] = make(chan T, queueSize)
	}

	return &StripedChannel[T]{
		channels: channels,
		ring:     newRing(int(count), defaultReplicas),
	}
}

// Receivers returns every channel, for one consumer each
func (c *StripedChannel[T]) Receivers() []<-chan T {
	receivers := make([]<-chan T, len(c.channels))
	for i, channel := range c.channels {
		receivers[i] = channel
	}
	return receivers
}

// Send blocks until value is queued on key's channel or ctx is done
func (c *StripedChannel[T]) Send(ctx context.Context, key []byte, value T) error {
	select {
	case c.channels[c.ring.stripe(key)] <- value:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes every channel. Sending after Close panics.
func (c *StripedChannel[T]) Close() {
	c.closeOnce.Do(func() {
		for _, channel := range c.channels {
			close(channel)
		}
	})
}
