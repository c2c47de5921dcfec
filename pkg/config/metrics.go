package config

import (
	"github.com/marmos91/dittodrop/pkg/metrics"
	"github.com/marmos91/dittodrop/pkg/metrics/prometheus"
)

// MetricsResult holds the metrics server and the collectors wired to it.
// Server is nil when metrics are disabled; Transfer is always usable.
type MetricsResult struct {
	Server   *metrics.Server
	Transfer metrics.TransferMetrics
}

// InitializeMetrics sets up the global registry when metrics are enabled.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{Transfer: metrics.NewNoopTransferMetrics()}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server:   metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port}),
		Transfer: prometheus.NewTransferMetrics(),
	}
}
