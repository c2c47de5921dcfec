package config

import (
	"testing"
	"time"

	"github.com/marmos91/dittodrop/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults_Empty(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, session.DefaultDialTimeout, cfg.Client.DialTimeout)
	assert.Equal(t, uint64(session.DefaultMaxFiles), cfg.Daemon.MaxFiles)
	assert.Equal(t, 30*time.Second, cfg.Daemon.ShutdownTimeout)
	assert.Equal(t, DefaultMetricsPort, cfg.Metrics.Port)
	assert.NotNil(t, cfg.Storage.S3)
	assert.NotNil(t, cfg.Storage.Memory)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "warn", Format: "json"},
		Client:  ClientConfig{Address: "192.168.1.20", Port: 7000},
		Storage: StorageConfig{
			Type:       "filesystem",
			Filesystem: map[string]any{"path": "/srv/drop"},
		},
	}
	ApplyDefaults(cfg)

	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "192.168.1.20", cfg.Client.Address)
	assert.Equal(t, 7000, cfg.Client.Port)
	assert.Equal(t, "/srv/drop", cfg.Storage.Filesystem["path"])
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	require.NoError(t, Validate(GetDefaultConfig()))
}
