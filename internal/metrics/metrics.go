// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPServerHandlingSeconds is a histogram for HTTP request latencies
	HTTPServerHandlingSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_handling_seconds",
			Help:    "Histogram of response latency (seconds) of HTTP requests handled by the server.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "code"},
	)

	// InferenceLatencySeconds is a histogram for inference-only latency
	InferenceLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inference_latency_seconds",
			Help:    "Histogram of model forward pass latency (seconds) excluding decoding and preprocessing.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"model"},
	)

	// PredictionsTotal counts predictions by model and predicted label
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Number of predictions served, by model and predicted label.",
		},
		[]string{"model", "label"},
	)

	// CacheRequestsTotal counts result cache lookups by outcome (hit, miss, error)
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prediction_cache_requests_total",
			Help: "Number of prediction cache lookups, by result.",
		},
		[]string{"result"},
	)

	// ModelsLoaded is the number of models in the registry
	ModelsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "models_loaded",
			Help: "Number of models loaded at startup.",
		},
	)

	// ModelsSkippedTotal counts model config entries skipped at load time
	ModelsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "models_skipped_total",
			Help: "Number of model config entries skipped while loading, by reason.",
		},
		[]string{"reason"},
	)

	// HealthStatus is a gauge indicating the health status of the service
	HealthStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "health_status",
			Help: "Health status of the service (1 = healthy, 0 = unhealthy).",
		},
	)
)

// RecordHTTPLatency records the latency of an HTTP request
func RecordHTTPLatency(method, route, code string, seconds float64) {
	HTTPServerHandlingSeconds.WithLabelValues(method, route, code).Observe(seconds)
}

// RecordInferenceLatency records the latency of a model forward pass
func RecordInferenceLatency(model string, seconds float64) {
	InferenceLatencySeconds.WithLabelValues(model).Observe(seconds)
}

// RecordPrediction counts a served prediction
func RecordPrediction(model, label string) {
	PredictionsTotal.WithLabelValues(model, label).Inc()
}

// RecordCacheResult counts a cache lookup outcome
func RecordCacheResult(result string) {
	CacheRequestsTotal.WithLabelValues(result).Inc()
}

// SetModelsLoaded sets the loaded model gauge
func SetModelsLoaded(n int) {
	ModelsLoaded.Set(float64(n))
}

// RecordModelSkipped counts a skipped model config entry
func RecordModelSkipped(reason string) {
	ModelsSkippedTotal.WithLabelValues(reason).Inc()
}

// SetHealthy sets the health status to healthy
func SetHealthy() {
	HealthStatus.Set(1)
}

// SetUnhealthy sets the health status to unhealthy
func SetUnhealthy() {
	HealthStatus.Set(0)
}
