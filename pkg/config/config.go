// Package config loads SoliDB's recognized configuration (spec §6.4)
// from a YAML file, environment variables, and command-line flags, in
// that order of increasing precedence, the way the pack's eve service
// binds viper to a cobra command tree.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every recognized configuration key (spec §6.4).
type Config struct {
	DataDir        string `mapstructure:"data_dir"`
	ListenAddr     string `mapstructure:"listen_addr"`
	DriverListenAddr string `mapstructure:"driver_listen_addr"`
	AdminPassword  string `mapstructure:"admin_password"`

	QueryTimeoutS         int `mapstructure:"query_timeout_s"`
	SlowQueryThresholdMS  int `mapstructure:"slow_query_threshold_ms"`
	TransactionTimeoutS   int `mapstructure:"transaction_timeout_s"`
	TTLSweepIntervalS     int `mapstructure:"ttl_sweep_interval_s"`
	MaxMessageSize        int `mapstructure:"max_message_size"`
	ScatterGatherTimeoutS int `mapstructure:"scatter_gather_timeout_s"`

	ClusterSecret string `mapstructure:"cluster_secret"`
	ClusterScheme string `mapstructure:"cluster_scheme"`

	LogLevel  string `mapstructure:"log_level"`
	LogJSON   bool   `mapstructure:"log_json"`
}

// defaults mirrors the bracketed defaults in spec §6.4.
var defaults = map[string]interface{}{
	"data_dir":                 "./data",
	"listen_addr":              ":16746",
	"driver_listen_addr":       ":16747",
	"admin_password":           "",
	"query_timeout_s":          30,
	"slow_query_threshold_ms":  100,
	"transaction_timeout_s":    300,
	"ttl_sweep_interval_s":     60,
	"max_message_size":         4 << 20, // 4MiB, implementation-defined per spec
	"cluster_secret":           "",
	"cluster_scheme":           "http",
	"scatter_gather_timeout_s": 10,
	"log_level":                "info",
	"log_json":                 false,
}

// Load builds a Config from, in increasing precedence: built-in
// defaults, an optional YAML file at cfgFile (skipped silently if
// empty or absent), environment variables prefixed SOLIDB_ (with "."
// and "-" mapped to "_"), and already-bound flags.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix("solidb")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: read %s: %w", cfgFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// QueryTimeout returns QueryTimeoutS as a time.Duration.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutS) * time.Second
}

// SlowQueryThreshold returns SlowQueryThresholdMS as a time.Duration.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMS) * time.Millisecond
}

// TransactionTimeout returns TransactionTimeoutS as a time.Duration.
func (c *Config) TransactionTimeout() time.Duration {
	return time.Duration(c.TransactionTimeoutS) * time.Second
}

// TTLSweepInterval returns TTLSweepIntervalS as a time.Duration.
func (c *Config) TTLSweepInterval() time.Duration {
	return time.Duration(c.TTLSweepIntervalS) * time.Second
}

// ScatterGatherTimeout returns ScatterGatherTimeoutS as a time.Duration.
func (c *Config) ScatterGatherTimeout() time.Duration {
	return time.Duration(c.ScatterGatherTimeoutS) * time.Second
}
