package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/apologystake/stake-server/pkg/config"
)

var errDeveloperInduced = errors.New("in memory config: developer induced error")

// Config holds a value in memory. It's used to override configs in tests.
type Config struct {
	mu       sync.RWMutex
	value    interface{}
	fail     bool
	shutdown bool
}

// NewConfig returns a new in memory config. A nil value means no value is set.
func NewConfig(value interface{}) *Config {
	return &Config{value: value}
}

func (c *Config) Get(_ context.Context) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.shutdown:
		return nil, config.ErrShutdown
	case c.fail:
		return nil, errDeveloperInduced
	case c.value == nil:
		return nil, config.ErrNoValue
	}
	return c.value, nil
}

func (c *Config) Shutdown() {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()
}

// SetValue replaces the value returned by Get. Use nil to clear it.
func (c *Config) SetValue(value interface{}) {
	c.mu.Lock()
	c.value = value
	c.mu.Unlock()
}

// SetFailing makes Get return an error until it's called again with false
func (c *Config) SetFailing(fail bool) {
	c.mu.Lock()
	c.fail = fail
	c.mu.Unlock()
}
