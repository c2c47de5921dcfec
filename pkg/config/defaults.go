package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittodrop/pkg/adapter/transfer"
	"github.com/marmos91/dittodrop/pkg/session"
	"github.com/spf13/viper"
)

const (
	DefaultAddress     = "127.0.0.1"
	DefaultPort        = 6942
	DefaultStoragePath = "./dittodrop_storage"
	DefaultMetricsPort = 9090
)

// ApplyDefaults fills zero values. It runs after unmarshaling, so anything
// set in the file, env or flags is kept.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyClientDefaults(&cfg.Client)
	applyDaemonDefaults(&cfg.Daemon)
	applyStorageDefaults(&cfg.Storage)
	applyJournalDefaults(&cfg.Journal)
	applyMetricsDefaults(&cfg.Metrics)
	cfg.GC.ApplyDefaults()
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyClientDefaults(cfg *ClientConfig) {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = session.DefaultDialTimeout
	}
}

func applyDaemonDefaults(cfg *transfer.TransferConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Backlog == 0 {
		cfg.Backlog = transfer.DefaultBacklog
	}
	if cfg.MaxFiles == 0 {
		cfg.MaxFiles = session.DefaultMaxFiles
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = DefaultStoragePath
	}
}

func applyJournalDefaults(cfg *JournalConfig) {
	if cfg.Type == "" {
		cfg.Type = "none"
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if _, ok := cfg.Badger["path"]; !ok {
		cfg.Badger["path"] = "./dittodrop_journal"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

// GetDefaultConfig returns a Config with every default applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// setViperDefaults registers every leaf of cfg so env vars can override it.
func setViperDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("client.address", cfg.Client.Address)
	v.SetDefault("client.port", cfg.Client.Port)
	v.SetDefault("client.dial_timeout", cfg.Client.DialTimeout)
	v.SetDefault("client.cat", cfg.Client.Cat)

	v.SetDefault("daemon.port", cfg.Daemon.Port)
	v.SetDefault("daemon.backlog", cfg.Daemon.Backlog)
	v.SetDefault("daemon.max_files", cfg.Daemon.MaxFiles)
	v.SetDefault("daemon.idle_timeout", cfg.Daemon.IdleTimeout)
	v.SetDefault("daemon.shutdown_timeout", cfg.Daemon.ShutdownTimeout)
	v.SetDefault("daemon.accept_rate", cfg.Daemon.AcceptRate)
	v.SetDefault("daemon.accept_burst", cfg.Daemon.AcceptBurst)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.filesystem.path", cfg.Storage.Filesystem["path"])

	v.SetDefault("journal.type", cfg.Journal.Type)
	v.SetDefault("journal.badger.path", cfg.Journal.Badger["path"])

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)

	v.SetDefault("gc.enabled", cfg.GC.Enabled)
	v.SetDefault("gc.interval", cfg.GC.Interval)
	v.SetDefault("gc.min_age", cfg.GC.MinAge)
	v.SetDefault("gc.batch_size", cfg.GC.BatchSize)
	v.SetDefault("gc.dry_run", cfg.GC.DryRun)
}
