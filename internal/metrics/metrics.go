package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Persistence metrics
	PersistOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletdb_persist_operations_total",
			Help: "Total number of persistence operations by backend",
		},
		[]string{"backend", "operation", "status"},
	)

	PersistDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walletdb_persist_duration_seconds",
			Help:    "Persistence operation latencies in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"backend", "operation"},
	)

	// Wallet metrics
	StagedChanges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "walletdb_staged_changes",
			Help: "1 while the wallet holds changes not yet persisted, 0 otherwise",
		},
	)

	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "walletdb_build_info",
			Help: "Build information about walletdb",
		},
		[]string{"version", "backends"},
	)
)

// ObservePersist records one persistence call against backend.
func ObservePersist(backend, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	PersistOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	PersistDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
}

// SetStaged reflects whether the wallet has unpersisted changes.
func SetStaged(staged bool) {
	if staged {
		StagedChanges.Set(1)
		return
	}
	StagedChanges.Set(0)
}

// WriteTextfile dumps every registered metric to path in the Prometheus text
// format, for node_exporter's textfile collector. The file is replaced
// atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}
