package ledger

import (
	"github.com/apologystake/stake-server/pkg/config"
	"github.com/apologystake/stake-server/pkg/config/env"
	"github.com/apologystake/stake-server/pkg/config/memory"
	"github.com/apologystake/stake-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "LEDGER_"

	LamportsPerSignatureConfigEnvName = envConfigPrefix + "LAMPORTS_PER_SIGNATURE"
	defaultLamportsPerSignature       = 5000

	RentLamportsPerByteYearConfigEnvName = envConfigPrefix + "RENT_LAMPORTS_PER_BYTE_YEAR"
	defaultRentLamportsPerByteYear       = 3480

	RentExemptionYearsConfigEnvName = envConfigPrefix + "RENT_EXEMPTION_YEARS"
	defaultRentExemptionYears       = 2

	RecentBlockhashWindowConfigEnvName = envConfigPrefix + "RECENT_BLOCKHASH_WINDOW"
	defaultRecentBlockhashWindow       = 150
)

type conf struct {
	lamportsPerSignature    config.Uint64
	rentLamportsPerByteYear config.Uint64
	rentExemptionYears      config.Uint64
	recentBlockhashWindow   config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			lamportsPerSignature:    env.NewUint64Config(LamportsPerSignatureConfigEnvName, defaultLamportsPerSignature),
			rentLamportsPerByteYear: env.NewUint64Config(RentLamportsPerByteYearConfigEnvName, defaultRentLamportsPerByteYear),
			rentExemptionYears:      env.NewUint64Config(RentExemptionYearsConfigEnvName, defaultRentExemptionYears),
			recentBlockhashWindow:   env.NewUint64Config(RecentBlockhashWindowConfigEnvName, defaultRecentBlockhashWindow),
		}
	}
}

// TestOverrides configures a ledger for tests. Fees default to zero so that
// balances only move through program logic.
type TestOverrides struct {
	LamportsPerSignature  uint64
	RecentBlockhashWindow uint64
}

// WithTestOverrides returns an in memory configuration for tests
func WithTestOverrides(overrides *TestOverrides) ConfigProvider {
	return func() *conf {
		window := overrides.RecentBlockhashWindow
		if window == 0 {
			window = defaultRecentBlockhashWindow
		}

		return &conf{
			lamportsPerSignature:    wrapper.NewUint64Config(memory.NewConfig(overrides.LamportsPerSignature), 0),
			rentLamportsPerByteYear: wrapper.NewUint64Config(memory.NewConfig(uint64(defaultRentLamportsPerByteYear)), defaultRentLamportsPerByteYear),
			rentExemptionYears:      wrapper.NewUint64Config(memory.NewConfig(uint64(defaultRentExemptionYears)), defaultRentExemptionYears),
			recentBlockhashWindow:   wrapper.NewUint64Config(memory.NewConfig(window), window),
		}
	}
}
