// Package bootstrap wires the data model, IPC transport, persistency,
// and ambient stack into the two executables: configd (the daemon)
// and configproviderd (a provider host usable standalone or embedded).
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DaemonConfig is the configd process configuration.
type DaemonConfig struct {
	ServiceID string      `mapstructure:"service_id" validate:"required"`
	Server    ServerConfig `mapstructure:"server"`
	SeedPath  string      `mapstructure:"seed_path" validate:"required"`
	Log       LogConfig   `mapstructure:"log"`
	Metrics   MetricsConfig `mapstructure:"metrics"`
}

// ProviderConfig is the configproviderd process configuration.
type ProviderConfig struct {
	DaemonBaseURL        string        `mapstructure:"daemon_base_url" validate:"required"`
	ServiceID            string        `mapstructure:"service_id" validate:"required"`
	MaxSamplesLimit      int           `mapstructure:"max_samples_limit" validate:"gte=0"`
	PollingCycleInterval time.Duration `mapstructure:"polling_cycle_interval"`
	Persistency          PersistencyConfig `mapstructure:"persistency"`
	Log                  LogConfig     `mapstructure:"log"`
	Metrics              MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig holds the daemon's HTTP+WebSocket listen address.
type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// LogConfig mirrors pkg/logger.Config for viper unmarshalling.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig controls whether a Prometheus /metrics endpoint is served.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// PersistencyConfig selects and configures the provider's durable tier.
type PersistencyConfig struct {
	// Backend is one of "noop", "sqlite", "redis".
	Backend string `mapstructure:"backend" validate:"oneof=noop sqlite redis"`

	SQLitePath string `mapstructure:"sqlite_path"`

	RedisAddr        string        `mapstructure:"redis_addr"`
	RedisPassword    string        `mapstructure:"redis_password"`
	RedisDB          int           `mapstructure:"redis_db"`
	RedisTTL         time.Duration `mapstructure:"redis_ttl"`
	RedisCompression bool          `mapstructure:"redis_compression"`
}

var validate = validator.New()

// LoadDaemonConfig reads configPath (if non-empty) and environment
// variables (CONFIGD_-prefixed, "." replaced with "_") into a
// DaemonConfig, applying defaults first.
func LoadDaemonConfig(configPath string) (*DaemonConfig, error) {
	v := viper.New()
	setDaemonDefaults(v)
	v.SetEnvPrefix("CONFIGD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg DaemonConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal daemon config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("daemon config validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadProviderConfig reads configPath (if non-empty) and environment
// variables (CONFIGPROVIDERD_-prefixed) into a ProviderConfig.
func LoadProviderConfig(configPath string) (*ProviderConfig, error) {
	v := viper.New()
	setProviderDefaults(v)
	v.SetEnvPrefix("CONFIGPROVIDERD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg ProviderConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provider config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("provider config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDaemonDefaults(v *viper.Viper) {
	v.SetDefault("service_id", "ConfigDaemon/ConfigDaemon_RootSwc/InternalConfigProviderAppPPort")
	v.SetDefault("server.addr", ":8443")
	v.SetDefault("seed_path", "/etc/configd/seed.yaml")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")
}

func setProviderDefaults(v *viper.Viper) {
	v.SetDefault("daemon_base_url", "http://127.0.0.1:8443")
	v.SetDefault("service_id", "ConfigDaemon/ConfigDaemon_RootSwc/InternalConfigProviderAppPPort")
	v.SetDefault("max_samples_limit", 0)
	v.SetDefault("polling_cycle_interval", "0s")
	v.SetDefault("persistency.backend", "noop")
	v.SetDefault("persistency.sqlite_path", "/var/lib/configproviderd/cache.db")
	v.SetDefault("persistency.redis_addr", "localhost:6379")
	v.SetDefault("persistency.redis_db", 0)
	v.SetDefault("persistency.redis_ttl", "24h")
	v.SetDefault("persistency.redis_compression", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9091")
}
