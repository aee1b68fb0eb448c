package rate

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// DefaultMaxKeys bounds the number of keys a KeyedLimiter tracks at once
const DefaultMaxKeys = 65536

// KeyedLimiter applies an independent token bucket per key, such as a client
// IP. Only the most recently used keys are tracked, so a key that goes quiet
// long enough to be evicted starts over with a full bucket.
type KeyedLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
}

// NewKeyedLimiter returns a KeyedLimiter allowing limit events per second for
// each key. The burst is the per second limit, with a minimum of one.
func NewKeyedLimiter(limit rate.Limit, maxKeys int) (*KeyedLimiter, error) {
	limiters, err := lru.New[string, *rate.Limiter](maxKeys)
	if err != nil {
		return nil, err
	}

	burst := int(limit)
	if burst < 1 {
		burst = 1
	}

	return &KeyedLimiter{
		limit:    limit,
		burst:    burst,
		limiters: limiters,
	}, nil
}

// Allow reports whether an event for key may happen now, consuming a token
// if it may.
func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(key, limiter)
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// Tracked returns the number of keys currently held
func (l *KeyedLimiter) Tracked() int {
	return l.limiters.Len()
}
