package app

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the application specific configuration found under the "app"
// key of the config file.
type Config map[string]interface{}

// BaseConfig configures the process hosting an App
type BaseConfig struct {
	AppName  string `mapstructure:"app_name"`
	LogLevel string `mapstructure:"log_level"`

	ListenAddress      string `mapstructure:"listen_address"`
	DebugListenAddress string `mapstructure:"debug_listen_address"`

	// When set, ListenAddress serves TLS. Both are URLs understood by
	// LoadFile.
	TLSCertificate string `mapstructure:"tls_certificate"`
	TLSKey         string `mapstructure:"tls_private_key"`

	ReadTimeout         time.Duration `mapstructure:"read_timeout"`
	WriteTimeout        time.Duration `mapstructure:"write_timeout"`
	IdleTimeout         time.Duration `mapstructure:"idle_timeout"`
	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`

	EnablePprof  bool `mapstructure:"enable_pprof"`
	EnableExpvar bool `mapstructure:"enable_expvar"`

	// Fraction of total memory held as GC ballast, at most half
	EnableBallast   bool    `mapstructure:"enable_ballast"`
	BallastCapacity float32 `mapstructure:"ballast_capacity"`

	// Cron schedule on which the process exits, to be restarted by its
	// supervisor
	EnableMemoryLeakCron   bool   `mapstructure:"enable_memory_leak_cron"`
	MemoryLeakCronSchedule string `mapstructure:"memory_leak_cron_schedule"`

	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`

	AppConfig Config `mapstructure:"app"`
}

type setting struct {
	key          string
	env          string
	defaultValue interface{}
}

var settings = []setting{
	{"app_name", "APP_NAME", ""},
	{"log_level", "LOG_LEVEL", "info"},

	{"listen_address", "LISTEN_ADDRESS", ":8085"},
	{"debug_listen_address", "DEBUG_LISTEN_ADDRESS", "localhost:8123"},

	{"tls_certificate", "TLS_CERTIFICATE", ""},
	{"tls_private_key", "TLS_PRIVATE_KEY", ""},

	{"read_timeout", "HTTP_READ_TIMEOUT", 10 * time.Second},
	{"write_timeout", "HTTP_WRITE_TIMEOUT", 10 * time.Second},
	{"idle_timeout", "HTTP_IDLE_TIMEOUT", time.Minute},
	{"shutdown_grace_period", "SHUTDOWN_GRACE_PERIOD", 30 * time.Second},

	{"enable_pprof", "ENABLE_PPROF", true},
	{"enable_expvar", "ENABLE_EXPVAR", true},

	{"enable_ballast", "ENABLE_BALLAST", true},
	{"ballast_capacity", "BALLAST_CAPACITY", 0.333},

	{"enable_memory_leak_cron", "ENABLE_MEMORY_LEAK_CRON", false},
	{"memory_leak_cron_schedule", "MEMORY_LEAK_CRON_SCHEDULE", "0 5 * * *"},

	{"new_relic_license_key", "NEW_RELIC_LICENSE_KEY", ""},
}

func init() {
	for _, s := range settings {
		viper.SetDefault(s.key, s.defaultValue)
		_ = viper.BindEnv(s.key, s.env)
	}
}

// loadConfig reads the config file set on viper, if any, with environment
// variables taking precedence over it.
func loadConfig() (BaseConfig, error) {
	if viper.ConfigFileUsed() != "" {
		if err := viper.ReadInConfig(); err != nil {
			return BaseConfig{}, errors.Wrap(err, "failed to read config file")
		}
	}

	var config BaseConfig
	if err := viper.Unmarshal(&config); err != nil {
		return BaseConfig{}, errors.Wrap(err, "failed to unmarshal config")
	}

	if config.AppName == "" {
		return BaseConfig{}, errors.New("must specify an application name")
	}
	if (config.TLSCertificate == "") != (config.TLSKey == "") {
		return BaseConfig{}, errors.New("tls certificate and key must be provided together")
	}
	return config, nil
}
