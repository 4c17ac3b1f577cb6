package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audio_bridge_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audio_bridge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audio_bridge_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Metadata cache metrics
var (
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audio_bridge_cache_hits_total",
			Help: "Metadata cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audio_bridge_cache_misses_total",
			Help: "Metadata cache misses (absent or expired entries)",
		},
	)
)

// RegisterCacheSize exports the metadata cache entry count as a gauge
// evaluated at scrape time, so clears and sweeps never leave it stale.
func RegisterCacheSize(size func() float64) prometheus.GaugeFunc {
	return promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "audio_bridge_cache_entries",
			Help: "Number of entries currently held by the metadata cache",
		},
		size,
	)
}

// Fetch tool metrics
var (
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audio_bridge_fetch_total",
			Help: "Fetch tool invocations by operation and result",
		},
		[]string{"operation", "status"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audio_bridge_fetch_duration_seconds",
			Help:    "Fetch tool run duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"operation"},
	)
)

// Transcoder metrics
var (
	TranscodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audio_bridge_transcodes_total",
			Help: "Transcoder runs by result",
		},
		[]string{"status"},
	)

	TranscodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audio_bridge_transcode_duration_seconds",
			Help:    "Transcoder run duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
	)
)

// Delivery session metrics
var (
	SessionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audio_bridge_sessions_in_flight",
			Help: "Delivery sessions currently running",
		},
	)

	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audio_bridge_sessions_total",
			Help: "Finished delivery sessions by outcome",
		},
		[]string{"outcome"},
	)

	BytesStreamedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audio_bridge_bytes_streamed_total",
			Help: "Transcoded audio bytes delivered to clients",
		},
	)
)
