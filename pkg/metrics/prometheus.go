// Package metrics provides Prometheus metrics for the ranks service.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Latency histograms observe milliseconds.
var defaultLatencyBuckets = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500} //nolint:gochecknoglobals // read-only defaults

// Manager manages all Prometheus metrics for the ranks service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// exposed is the registry served on /healthz when the manager is global.
	exposed *prometheus.Registry

	// Rank-up transaction
	rankUps          *prometheus.CounterVec
	rankUpLatency    prometheus.Histogram
	rankUpRefunds    prometheus.Counter
	inconsistencies  *prometheus.CounterVec
	duplicateRequest prometheus.Counter
	commandsDropped  *prometheus.CounterVec

	// Registries
	ranksTotal   prometheus.Gauge
	laddersTotal prometheus.Gauge
	playersTotal prometheus.Gauge
	firstJoins   prometheus.Counter
	ladderOps    *prometheus.CounterVec

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec
	storeRetries prometheus.Counter

	// Command dispatch queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec
	workerCount        prometheus.Gauge
	commandsExecuted   prometheus.Counter
	commandErrors      prometheus.Counter
	commandLatency     prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager atomic.Pointer[Manager] //nolint:gochecknoglobals // intentional global for singleton metrics manager

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	Init()
}

// Init replaces the global manager with one built from opts on a fresh
// registry. It is called once at startup, before any metric is recorded.
func Init(opts ...Option) {
	reg := prometheus.NewRegistry()
	m := NewManager(append([]Option{WithPrometheusRegistry(reg)}, opts...)...)
	m.exposed = reg
	globalManager.Store(m)
}

func global() *Manager { return global().Load() }

// NewManager creates a new metrics manager with default configuration.
// A disabled manager registers into a private registry that is never exposed.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "prison",
		subsystem:        "ranks",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}
	if !m.enabled {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.rankUps = m.counterVec("rankups_total", "Rank-up attempts by result status", "status")
	m.rankUpLatency = m.histogram("rankup_latency_milliseconds", "Rank-up transaction latency in milliseconds")
	m.rankUpRefunds = m.counter("rankup_refunds_total", "Debits refunded because the promotion could not be recorded")
	m.inconsistencies = m.counterVec("inconsistencies_total", "State left inconsistent between economy and registries", "kind")
	m.duplicateRequest = m.counter("duplicate_requests_total", "Rank-up requests rejected as duplicates")
	m.commandsDropped = m.counterVec("rankup_commands_dropped_total", "Successful rank-ups whose commands could not be queued", "reason")

	m.ranksTotal = m.gauge("ranks", "Number of ranks in the registry")
	m.laddersTotal = m.gauge("ladders", "Number of ladders in the registry")
	m.playersTotal = m.gauge("players", "Number of player records in the registry")
	m.firstJoins = m.counter("first_joins_total", "Player records created on first join")
	m.ladderOps = m.counterVec("ladder_operations_total", "Ladder position mutations by operation", "op")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Persistent store operation latency", "op")
	m.storeErrors = m.counterVec("store_errors_total", "Persistent store failures by operation", "op")
	m.storeRetries = m.counter("store_retries_total", "Persistent store operations retried")

	m.queueSize = m.gauge("command_queue_size", "Current number of queued rank-up command batches")
	m.queueCapacity = m.gauge("command_queue_capacity", "Maximum command queue capacity")
	m.queueEnqueued = m.counter("command_queue_enqueued_total", "Command batches enqueued")
	m.queueDequeued = m.counter("command_queue_dequeued_total", "Command batches dequeued")
	m.queueEnqueueErrors = m.counterVec("command_queue_enqueue_errors_total", "Command batches rejected by the queue", "reason")
	m.workerCount = m.gauge("command_workers", "Number of command executor workers")
	m.commandsExecuted = m.counter("commands_executed_total", "Rank-up commands executed")
	m.commandErrors = m.counter("command_errors_total", "Rank-up commands that failed to execute")
	m.commandLatency = m.histogram("command_latency_milliseconds", "Rank-up command batch execution latency")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// Enabled reports whether the manager exposes its observations.
func (m *Manager) Enabled() bool { return m.enabled }

// RecordRankUp counts a rank-up attempt and its latency.
func RecordRankUp(status string, latency time.Duration) {
	m := global()
	m.rankUps.WithLabelValues(status).Inc()
	m.rankUpLatency.Observe(float64(latency.Milliseconds()))
}

// RecordCommandsDropped counts a rank-up whose commands could not be queued.
func RecordCommandsDropped(reason string) {
	m := global()
	m.commandsDropped.WithLabelValues(reason).Inc()
	m.errorsByComponent.WithLabelValues("rankup", "commands_dropped").Inc()
}

// RecordRefund counts a compensating refund.
func RecordRefund() {
	global().rankUpRefunds.Inc()
}

// RecordInconsistency counts state that could not be reconciled.
func RecordInconsistency(kind string) {
	global().inconsistencies.WithLabelValues(kind).Inc()
}

// RecordDuplicateRequest counts a rejected duplicate rank-up request.
func RecordDuplicateRequest() {
	global().duplicateRequest.Inc()
}

// UpdateRanks sets the rank registry size.
func UpdateRanks(n int) { global().ranksTotal.Set(float64(n)) }

// UpdateLadders sets the ladder registry size.
func UpdateLadders(n int) { global().laddersTotal.Set(float64(n)) }

// UpdatePlayers sets the player registry size.
func UpdatePlayers(n int) { global().playersTotal.Set(float64(n)) }

// RecordFirstJoin counts a newly created player record.
func RecordFirstJoin() { global().firstJoins.Inc() }

// RecordLadderOp counts a ladder mutation ("add", "insert", "remove").
func RecordLadderOp(op string) { global().ladderOps.WithLabelValues(op).Inc() }

// RecordStoreLatency records a store operation latency.
func RecordStoreLatency(op string, latency time.Duration) {
	global().storeLatency.WithLabelValues(op).Observe(float64(latency.Milliseconds()))
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(op string) {
	global().storeErrors.WithLabelValues(op).Inc()
	global().errorsByComponent.WithLabelValues("store", op).Inc()
}

// RecordStoreRetry counts a retried store operation.
func RecordStoreRetry() { global().storeRetries.Inc() }

// UpdateQueueSize sets the current command queue length.
func UpdateQueueSize(size int) { global().queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the command queue capacity.
func UpdateQueueCapacity(capacity int) { global().queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue counts an enqueued batch.
func RecordQueueEnqueue() { global().queueEnqueued.Inc() }

// RecordQueueDequeue counts a dequeued batch.
func RecordQueueDequeue() { global().queueDequeued.Inc() }

// RecordQueueEnqueueError counts a rejected batch.
func RecordQueueEnqueueError(reason string) {
	global().queueEnqueueErrors.WithLabelValues(reason).Inc()
	global().errorsByComponent.WithLabelValues("queue", reason).Inc()
}

// UpdateWorkerCount sets the number of command workers.
func UpdateWorkerCount(count int) { global().workerCount.Set(float64(count)) }

// RecordCommandExecuted counts one executed command.
func RecordCommandExecuted() { global().commandsExecuted.Inc() }

// RecordCommandError counts one failed command.
func RecordCommandError() {
	global().commandErrors.Inc()
	global().errorsByComponent.WithLabelValues("worker", "command_error").Inc()
}

// RecordCommandLatency records how long a batch took to execute.
func RecordCommandLatency(latency time.Duration) {
	global().commandLatency.Observe(float64(latency.Milliseconds()))
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	global().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	global().httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent counts an error for a component.
func RecordErrorByComponent(component, errorType string) {
	global().errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	global().systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	global().systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return global().exposed
}
