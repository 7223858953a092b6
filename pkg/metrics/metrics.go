package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DetectionRuns counts completed detection runs by outcome (ok/error)
var DetectionRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "glsentinel_detection_runs_total",
		Help: "Total number of detection runs executed",
	},
	[]string{"outcome"},
)

// AnomaliesDetected counts emitted anomalies by type and severity
var AnomaliesDetected = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "glsentinel_anomalies_detected_total",
		Help: "Total number of anomalies emitted by the engine",
	},
	[]string{"type", "severity"},
)

// LineItemsScanned counts line items scanned across runs
var LineItemsScanned = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "glsentinel_line_items_scanned_total",
		Help: "Total number of GL line items scanned",
	},
)

// RunDuration records detection run latency distribution
var RunDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "glsentinel_detection_run_duration_seconds",
		Help:    "Duration in seconds of detection runs",
		Buckets: prometheus.DefBuckets,
	},
)

func init() {
	prometheus.MustRegister(DetectionRuns, AnomaliesDetected)
	prometheus.MustRegister(LineItemsScanned, RunDuration)
}
