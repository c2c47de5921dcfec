// Package metrics exposes Prometheus metrics for the dittodrop daemon.
//
// Metrics are optional. Until InitRegistry is called every constructor
// returns a no-op implementation, so components can record unconditionally.
//
// Usage:
//
//	metrics.InitRegistry()
//	transferMetrics := prometheus.NewTransferMetrics()
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the global registry. Later calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
