package web

import (
	"github.com/apologystake/stake-server/pkg/config"
	"github.com/apologystake/stake-server/pkg/config/env"
	"github.com/apologystake/stake-server/pkg/config/memory"
	"github.com/apologystake/stake-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "APOLOGY_WEB_"

	RequestsPerSecondConfigEnvName = envConfigPrefix + "REQUESTS_PER_SECOND"
	defaultRequestsPerSecond       = 10

	MaxPageSizeConfigEnvName = envConfigPrefix + "MAX_PAGE_SIZE"
	defaultMaxPageSize       = 100
)

type conf struct {
	requestsPerSecond config.Float64
	maxPageSize       config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			requestsPerSecond: env.NewFloat64Config(RequestsPerSecondConfigEnvName, defaultRequestsPerSecond),
			maxPageSize:       env.NewUint64Config(MaxPageSizeConfigEnvName, defaultMaxPageSize),
		}
	}
}

type testOverrides struct {
	requestsPerSecond float64
	maxPageSize       uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			requestsPerSecond: wrapper.NewFloat64Config(memory.NewConfig(overrides.requestsPerSecond), defaultRequestsPerSecond),
			maxPageSize:       wrapper.NewUint64Config(memory.NewConfig(overrides.maxPageSize), defaultMaxPageSize),
		}
	}
}
