// Package config loads dittodrop configuration from a YAML file, the
// environment and command-line flags.
//
// Precedence, highest first: changed flags, DITTODROP_* environment
// variables, the config file, built-in defaults. Nested keys map to
// environment variables by replacing dots with underscores, e.g.
// DITTODROP_DAEMON_PORT or DITTODROP_STORAGE_FILESYSTEM_PATH.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittodrop/pkg/adapter/transfer"
	"github.com/marmos91/dittodrop/pkg/gc"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full configuration shared by dittodrop and dittodropd.
type Config struct {
	// Logging controls log output.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Client holds settings for the sending side.
	Client ClientConfig `mapstructure:"client" yaml:"client"`

	// Daemon holds the receiving side's network settings.
	Daemon transfer.TransferConfig `mapstructure:"daemon" yaml:"daemon"`

	// Storage selects where received files are written.
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Journal selects where transfer outcomes are recorded.
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// GC sweeps partial files left by interrupted writes.
	GC gc.Config `mapstructure:"gc" yaml:"gc"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format is "text" or "json".
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output is "stdout", "stderr" or a file path.
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ClientConfig configures the sending side.
type ClientConfig struct {
	// Address is the daemon's host name or IP address.
	Address string `mapstructure:"address" yaml:"address" validate:"required"`

	// Port is the daemon's TCP port.
	Port int `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout" validate:"min=0"`

	// Cat prints files instead of sending them.
	Cat bool `mapstructure:"cat" yaml:"cat"`
}

// StorageConfig selects and configures the content store.
//
// Only the section matching Type is used. Options are decoded by the
// store factory, see factories.go.
type StorageConfig struct {
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=filesystem memory s3"`

	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem"`

	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	S3 map[string]any `mapstructure:"s3" yaml:"s3"`
}

// JournalConfig selects and configures the transfer journal.
type JournalConfig struct {
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=none memory badger"`

	Badger map[string]any `mapstructure:"badger" yaml:"badger"`
}

// MetricsConfig configures the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
}

// FlagBinding ties a command-line flag to a configuration key. Only flags
// the user actually set override other sources.
type FlagBinding struct {
	Key  string
	Flag *pflag.Flag
}

// Load reads configuration from configPath, or from the default location
// when configPath is empty, and applies env vars, flag bindings, defaults
// and validation.
//
// An explicit configPath must exist. A missing default file is fine.
func Load(configPath string, bindings ...FlagBinding) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	for _, b := range bindings {
		if b.Flag == nil {
			continue
		}
		if err := v.BindPFlag(b.Key, b.Flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", b.Flag.Name, err)
		}
	}

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("DITTODROP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about.
	setViperDefaults(v, GetDefaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper, configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file %s: %w", configPath, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittodrop")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "dittodrop")
}

// GetDefaultConfigPath returns $XDG_CONFIG_HOME/dittodrop/config.yaml, or
// ~/.config/dittodrop/config.yaml when XDG_CONFIG_HOME is unset.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists reports whether the default config file exists.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

func GetConfigDir() string {
	return getConfigDir()
}
