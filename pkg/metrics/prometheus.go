// Package metrics provides Prometheus metrics for the couple pet service.
package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Pet care
	actions           *prometheus.CounterVec
	coupleActivities  *prometheus.CounterVec
	decayPoints       prometheus.Histogram
	resets            prometheus.Counter
	vitals            *prometheus.GaugeVec
	streaks           *prometheus.GaugeVec
	historyLength     prometheus.Gauge
	idempotentReplays prometheus.Counter

	// Mutation pipeline
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueRejected    prometheus.Counter
	mutationLatency  *prometheus.HistogramVec
	mutationErrors   *prometheus.CounterVec
	storeLoadLatency prometheus.Histogram
	storeSaveLatency prometheus.Histogram
	storeErrors      *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// Runtime
	goroutines prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "couplepet",
		subsystem:        "pet",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.actions = auto.NewCounterVec(
		m.counterOpts("actions_total", "Care actions applied, by action"),
		[]string{"action"},
	)
	m.coupleActivities = auto.NewCounterVec(
		m.counterOpts("couple_activities_total", "Joint couple activities applied, by activity"),
		[]string{"activity"},
	)
	m.decayPoints = auto.NewHistogram(m.histogramOpts(
		"decay_points", "Points lost per applied time decay",
		[]float64{0.5, 1, 2, 5, 10, 20, 30, 40, 50},
	))
	m.resets = auto.NewCounter(m.counterOpts("resets_total", "Pet resets"))
	m.vitals = auto.NewGaugeVec(
		m.gaugeOpts("vital", "Current vital value by stat"),
		[]string{"stat"},
	)
	m.streaks = auto.NewGaugeVec(
		m.gaugeOpts("partner_streak", "Current care streak by partner"),
		[]string{"partner"},
	)
	m.historyLength = auto.NewGauge(m.gaugeOpts("history_length", "Entries in the action history"))
	m.idempotentReplays = auto.NewCounter(m.counterOpts(
		"idempotent_replays_total", "Requests answered from an already seen Idempotency-Key",
	))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Mutations waiting for the state writer"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Capacity of the mutation queue"))
	m.queueRejected = auto.NewCounter(m.counterOpts(
		"queue_rejected_total", "Mutations rejected because the queue was full",
	))
	m.mutationLatency = auto.NewHistogramVec(
		m.histogramOpts("mutation_latency_milliseconds", "Load, apply and save time of one mutation", nil),
		[]string{"kind"},
	)
	m.mutationErrors = auto.NewCounterVec(
		m.counterOpts("mutation_errors_total", "Mutations that failed, by kind"),
		[]string{"kind"},
	)
	m.storeLoadLatency = auto.NewHistogram(m.histogramOpts(
		"store_load_latency_milliseconds", "State store load latency", nil,
	))
	m.storeSaveLatency = auto.NewHistogram(m.histogramOpts(
		"store_save_latency_milliseconds", "State store save latency", nil,
	))
	m.storeErrors = auto.NewCounterVec(
		m.counterOpts("store_errors_total", "State store errors by operation"),
		[]string{"op"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", nil),
		[]string{"endpoint", "method", "status_code"},
	)
	m.errorsByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Error responses by endpoint and error code"),
		[]string{"endpoint", "method", "code"},
	)

	m.goroutines = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
}

// RecordAction counts an applied care action.
func RecordAction(action string) {
	globalManager.actions.WithLabelValues(action).Inc()
}

// RecordCoupleActivity counts an applied joint activity.
func RecordCoupleActivity(activity string) {
	globalManager.coupleActivities.WithLabelValues(activity).Inc()
}

// RecordDecay observes the points lost in one decay step.
func RecordDecay(points float64) {
	globalManager.decayPoints.Observe(points)
}

// RecordReset counts a pet reset.
func RecordReset() {
	globalManager.resets.Inc()
}

// UpdateVitals publishes the current vitals.
func UpdateVitals(happiness, health, hunger, cleanliness float64) {
	globalManager.vitals.WithLabelValues("happiness").Set(happiness)
	globalManager.vitals.WithLabelValues("health").Set(health)
	globalManager.vitals.WithLabelValues("hunger").Set(hunger)
	globalManager.vitals.WithLabelValues("cleanliness").Set(cleanliness)
}

// UpdateStreak publishes a partner's current streak.
func UpdateStreak(partner string, streak int) {
	globalManager.streaks.WithLabelValues(partner).Set(float64(streak))
}

// UpdateHistoryLength publishes the action history length.
func UpdateHistoryLength(n int) {
	globalManager.historyLength.Set(float64(n))
}

// RecordIdempotentReplay counts a replayed request.
func RecordIdempotentReplay() {
	globalManager.idempotentReplays.Inc()
}

// UpdateQueueSize updates the current queue depth.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity updates the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueRejected counts a mutation refused by a full queue.
func RecordQueueRejected() {
	globalManager.queueRejected.Inc()
}

// RecordMutationLatency records the writer time of one mutation.
func RecordMutationLatency(kind string, latencyMs float64) {
	globalManager.mutationLatency.WithLabelValues(kind).Observe(latencyMs)
}

// RecordMutationError counts a failed mutation.
func RecordMutationError(kind string) {
	globalManager.mutationErrors.WithLabelValues(kind).Inc()
}

// RecordStoreLoadLatency records a store load in milliseconds.
func RecordStoreLoadLatency(latencyMs float64) {
	globalManager.storeLoadLatency.Observe(latencyMs)
}

// RecordStoreSaveLatency records a store save in milliseconds.
func RecordStoreSaveLatency(latencyMs float64) {
	globalManager.storeSaveLatency.Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(op string) {
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint counts an error response.
func RecordErrorByEndpoint(endpoint, method, code string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, code).Inc()
}

// UpdateSystemGoroutineCount samples the goroutine count.
func UpdateSystemGoroutineCount() {
	globalManager.goroutines.Set(float64(runtime.NumGoroutine()))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
