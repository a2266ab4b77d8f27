package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the full-buffer daemon.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal prometheus.Counter
	errorsTotal   prometheus.Counter

	episodesStarted  *prometheus.CounterVec
	episodesFinished *prometheus.CounterVec
	episodeDuration  prometheus.Histogram
	seeksTotal       prometheus.Counter
	classifications  *prometheus.CounterVec
	bufferProgress   prometheus.Gauge
	activeSessions   prometheus.Gauge
}

// New creates and registers the daemon's metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fullbuffer_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fullbuffer_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		episodesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fullbuffer_episodes_started_total",
			Help: "Buffering episodes started, by trigger",
		}, []string{"trigger"}),
		episodesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fullbuffer_episodes_finished_total",
			Help: "Buffering episodes finished, by outcome",
		}, []string{"outcome"}),
		episodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fullbuffer_episode_duration_seconds",
			Help:    "Wall time from entering buffering to playback restore",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		seeksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fullbuffer_seeks_total",
			Help: "Seeks issued by buffering strategies",
		}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fullbuffer_classifications_total",
			Help: "Delivery shape classifications, by shape",
		}, []string{"shape"}),
		bufferProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fullbuffer_buffer_progress_percent",
			Help: "Progress of the most recent buffering episode",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fullbuffer_active_sessions",
			Help: "Number of sessions that are not ended",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.episodesStarted,
		m.episodesFinished,
		m.episodeDuration,
		m.seeksTotal,
		m.classifications,
		m.bufferProgress,
		m.activeSessions,
	)
	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

func (m *Metrics) IncEpisodesStarted(trigger string) {
	m.episodesStarted.WithLabelValues(trigger).Inc()
}

// ObserveEpisodeFinished counts the outcome and records how long the
// episode held playback.
func (m *Metrics) ObserveEpisodeFinished(outcome string, elapsed time.Duration) {
	m.episodesFinished.WithLabelValues(outcome).Inc()
	m.episodeDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) IncSeeks() {
	m.seeksTotal.Inc()
}

func (m *Metrics) IncClassifications(shape string) {
	m.classifications.WithLabelValues(shape).Inc()
}

func (m *Metrics) SetBufferProgress(percent float64) {
	m.bufferProgress.Set(percent)
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	serve := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		serve.ServeHTTP(w, r)
	})
}
