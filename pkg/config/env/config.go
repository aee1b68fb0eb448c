package env

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/apologystake/stake-server/pkg/config"
	"github.com/apologystake/stake-server/pkg/config/wrapper"
)

// source reads an environment variable once, at construction
type source struct {
	val string
}

// NewConfig returns a config holding the raw bytes of the upper cased
// environment variable key
func NewConfig(key string) config.Config {
	return &source{
		val: os.Getenv(strings.ToUpper(key)),
	}
}

func (s *source) Get(_ context.Context) (interface{}, error) {
	if len(s.val) == 0 {
		return nil, config.ErrNoValue
	}
	return []byte(s.val), nil
}

func (s *source) Shutdown() {}

func NewUint64Config(key string, defaultValue uint64) config.Uint64 {
	return wrapper.NewUint64Config(NewConfig(key), defaultValue)
}

func NewFloat64Config(key string, defaultValue float64) config.Float64 {
	return wrapper.NewFloat64Config(NewConfig(key), defaultValue)
}

func NewStringConfig(key string, defaultValue string) config.String {
	return wrapper.NewStringConfig(NewConfig(key), defaultValue)
}

func NewBoolConfig(key string, defaultValue bool) config.Bool {
	return wrapper.NewBoolConfig(NewConfig(key), defaultValue)
}

func NewDurationConfig(key string, defaultValue time.Duration) config.Duration {
	return wrapper.NewDurationConfig(NewConfig(key), defaultValue)
}
