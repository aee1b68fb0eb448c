package client

import (
	"time"

	"github.com/apologystake/stake-server/pkg/config"
	"github.com/apologystake/stake-server/pkg/config/env"
	"github.com/apologystake/stake-server/pkg/config/memory"
	"github.com/apologystake/stake-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "APOLOGY_CLIENT_"

	MaxNonceProbesConfigEnvName = envConfigPrefix + "MAX_NONCE_PROBES"
	defaultMaxNonceProbes       = 64

	SubmitAttemptsConfigEnvName = envConfigPrefix + "SUBMIT_ATTEMPTS"
	defaultSubmitAttempts       = 3

	SubmitBackoffConfigEnvName = envConfigPrefix + "SUBMIT_BACKOFF"
	defaultSubmitBackoff       = 500 * time.Millisecond
)

type conf struct {
	maxNonceProbes config.Uint64
	submitAttempts config.Uint64
	submitBackoff  config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			maxNonceProbes: env.NewUint64Config(MaxNonceProbesConfigEnvName, defaultMaxNonceProbes),
			submitAttempts: env.NewUint64Config(SubmitAttemptsConfigEnvName, defaultSubmitAttempts),
			submitBackoff:  env.NewDurationConfig(SubmitBackoffConfigEnvName, defaultSubmitBackoff),
		}
	}
}

type testOverrides struct {
	maxNonceProbes uint64
	submitAttempts uint64
	submitBackoff  time.Duration
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			maxNonceProbes: wrapper.NewUint64Config(memory.NewConfig(overrides.maxNonceProbes), defaultMaxNonceProbes),
			submitAttempts: wrapper.NewUint64Config(memory.NewConfig(overrides.submitAttempts), defaultSubmitAttempts),
			submitBackoff:  wrapper.NewDurationConfig(memory.NewConfig(overrides.submitBackoff), defaultSubmitBackoff),
		}
	}
}
