package data

import (
	"time"

	"github.com/apologystake/stake-server/pkg/config"
	"github.com/apologystake/stake-server/pkg/config/env"
	"github.com/apologystake/stake-server/pkg/config/memory"
	"github.com/apologystake/stake-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "APOLOGY_DATA_"

	ApologyCacheTTLConfigEnvName = envConfigPrefix + "APOLOGY_CACHE_TTL"
	defaultApologyCacheTTL       = 5 * time.Second // Keep this relatively small

	UseAwsIamConfigEnvName = envConfigPrefix + "USE_AWS_IAM"
	defaultUseAwsIam       = false
)

type conf struct {
	apologyCacheTTL config.Duration
	useAwsIam       config.Bool
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			apologyCacheTTL: env.NewDurationConfig(ApologyCacheTTLConfigEnvName, defaultApologyCacheTTL),
			useAwsIam:       env.NewBoolConfig(UseAwsIamConfigEnvName, defaultUseAwsIam),
		}
	}
}

type testOverrides struct {
	apologyCacheTTL time.Duration
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			apologyCacheTTL: wrapper.NewDurationConfig(memory.NewConfig(overrides.apologyCacheTTL), defaultApologyCacheTTL),
			useAwsIam:       wrapper.NewBoolConfig(memory.NewConfig(false), defaultUseAwsIam),
		}
	}
}
