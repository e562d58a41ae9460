// Package metrics provides Prometheus metrics for the pulsemap playback service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the pulsemap service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Playback Metrics - timer and state machine health
	playbackTicks       prometheus.Counter
	playbackStaleTicks  prometheus.Counter
	playbackAdvances    prometheus.Counter
	playbackCompleted   prometheus.Counter
	playbackLooped      prometheus.Counter
	playbackTransitions *prometheus.CounterVec
	playbackState       prometheus.Gauge
	playbackDateIndex   prometheus.Gauge
	playbackBlend       prometheus.Gauge
	playbackInterval    prometheus.Gauge
	playbackTimers      prometheus.Gauge

	// Frame Metrics - composition cost and data coverage
	frameComposeLatency prometheus.Histogram
	frameEntities       prometheus.Gauge
	frameNoData         prometheus.Counter
	framesPublished     prometheus.Counter
	framesDropped       *prometheus.CounterVec

	// Queue Metrics - frame job queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics - frame workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter
	workerThroughput        prometheus.Gauge

	// Stream Metrics - websocket subscribers
	streamSubscribers prometheus.Gauge
	streamSent        prometheus.Counter
	streamDropped     prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pulsemap",
		subsystem:        "playback",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Playback Metrics
	m.playbackTicks = m.counter("ticks_total", "Total number of timer ticks applied to the animation state")
	m.playbackStaleTicks = m.counter("stale_ticks_total", "Ticks discarded because their timer was replaced or cancelled")
	m.playbackAdvances = m.counter("date_advances_total", "Total number of date advances")
	m.playbackCompleted = m.counter("completed_total", "Total number of playbacks that reached the last date")
	m.playbackLooped = m.counter("looped_total", "Total number of rewinds under the loop end policy")
	m.playbackTransitions = m.counterVec("transitions_total", "State machine transitions", "from", "to")
	m.playbackState = m.gauge("state", "Current state (0 stopped, 1 running, 2 paused)")
	m.playbackDateIndex = m.gauge("current_date_index", "Position of the current date in the sequence")
	m.playbackBlend = m.gauge("blend_fraction", "Blend fraction between previous and current date")
	m.playbackInterval = m.gauge("tick_interval_milliseconds", "Configured tick interval in milliseconds")
	m.playbackTimers = m.gauge("active_timers", "Number of live tick timers (must stay at most 1)")

	// Frame Metrics
	m.frameComposeLatency = m.histogram("frame_compose_latency_milliseconds", "Frame composition latency in milliseconds", m.histogramBuckets)
	m.frameEntities = m.gauge("frame_entities", "Number of entities in the last composed frame")
	m.frameNoData = m.counter("frame_no_data_entities_total", "Entities rendered with the no-data sentinel")
	m.framesPublished = m.counter("frames_published_total", "Total number of frames published to renderers")
	m.framesDropped = m.counterVec("frames_dropped_total", "Frames dropped before publication", "reason")

	// Queue Metrics
	m.queueSize = m.gauge("queue_size", "Current size of the frame job queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum frame job queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of frame jobs enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of frame jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")

	// Worker Metrics
	m.workerCount = m.gauge("worker_count", "Number of frame workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Frame job processing latency in milliseconds", m.histogramBuckets)
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of frame worker errors")
	m.workerThroughput = m.gauge("worker_frames_per_second", "Frames composed per second across the pool")

	// Stream Metrics
	m.streamSubscribers = m.gauge("stream_subscribers", "Connected frame stream subscribers")
	m.streamSent = m.counter("stream_messages_sent_total", "Frames queued to stream subscribers")
	m.streamDropped = m.counter("stream_messages_dropped_total", "Frames skipped for slow stream subscribers")

	// HTTP Performance Metrics
	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	// Error Metrics
	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of operations that resulted in errors", "component", "error_type")

	// System Performance Metrics
	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Playback Metrics Functions.

// RecordPlaybackTick increments the applied tick counter.
func RecordPlaybackTick() { globalManager.playbackTicks.Inc() }

// RecordStaleTick increments the discarded tick counter.
func RecordStaleTick() { globalManager.playbackStaleTicks.Inc() }

// RecordDateAdvance increments the date advance counter.
func RecordDateAdvance() { globalManager.playbackAdvances.Inc() }

// RecordPlaybackCompleted increments the completion counter.
func RecordPlaybackCompleted() { globalManager.playbackCompleted.Inc() }

// RecordPlaybackLooped increments the loop counter.
func RecordPlaybackLooped() { globalManager.playbackLooped.Inc() }

// RecordPlaybackTransition records a state machine transition.
func RecordPlaybackTransition(from, to string) {
	globalManager.playbackTransitions.WithLabelValues(from, to).Inc()
}

// UpdatePlaybackState sets the current state.
func UpdatePlaybackState(state int) { globalManager.playbackState.Set(float64(state)) }

// UpdateCurrentDateIndex sets the current date position.
func UpdateCurrentDateIndex(index int) { globalManager.playbackDateIndex.Set(float64(index)) }

// UpdateBlendFraction sets the current blend fraction.
func UpdateBlendFraction(blend float64) { globalManager.playbackBlend.Set(blend) }

// UpdateTickInterval sets the tick interval in milliseconds.
func UpdateTickInterval(ms float64) { globalManager.playbackInterval.Set(ms) }

// UpdateActiveTimers sets the number of live timers.
func UpdateActiveTimers(count int) { globalManager.playbackTimers.Set(float64(count)) }

// Frame Metrics Functions.

// RecordFrameComposeLatency records frame composition latency.
func RecordFrameComposeLatency(latencyMs float64) {
	globalManager.frameComposeLatency.Observe(latencyMs)
}

// UpdateFrameEntities sets the entity count of the last frame.
func UpdateFrameEntities(count int) { globalManager.frameEntities.Set(float64(count)) }

// RecordNoDataEntities adds entities rendered without data.
func RecordNoDataEntities(count int) { globalManager.frameNoData.Add(float64(count)) }

// RecordFramePublished increments the published frame counter.
func RecordFramePublished() { globalManager.framesPublished.Inc() }

// RecordFrameDropped records a frame dropped before publication.
func RecordFrameDropped(reason string) { globalManager.framesDropped.WithLabelValues(reason).Inc() }

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueueRate.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeueRate.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// Worker Metrics Functions.

// UpdateWorkerCount sets the number of frame workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records frame job processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrorRate.Inc() }

// UpdateWorkerFramesPerSecond sets the pool throughput.
func UpdateWorkerFramesPerSecond(rate float64) { globalManager.workerThroughput.Set(rate) }

// Stream Metrics Functions.

// UpdateStreamSubscribers sets the connected subscriber count.
func UpdateStreamSubscribers(count int) { globalManager.streamSubscribers.Set(float64(count)) }

// RecordStreamSent increments the sent frame counter.
func RecordStreamSent() { globalManager.streamSent.Inc() }

// RecordStreamDropped increments the skipped frame counter.
func RecordStreamDropped() { globalManager.streamDropped.Inc() }

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// RefreshInterval returns how often periodic gauges should be refreshed.
func RefreshInterval() time.Duration { return globalManager.refreshInterval }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
