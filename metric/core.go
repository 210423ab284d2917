package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "listen"

// Metrics holds the listen client metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ChannelsOpen        prometheus.Gauge
	FramesReceived      *prometheus.CounterVec
	Polls               *prometheus.CounterVec
	Commands            *prometheus.CounterVec
	CommandDuration     *prometheus.HistogramVec
	TargetsActive       prometheus.Gauge
	DeferredRemovals    *prometheus.CounterVec
	Errors              *prometheus.CounterVec
	CorrelationDuration prometheus.Histogram

	PoolChannels *prometheus.GaugeVec
	CacheLookups *prometheus.CounterVec

	DocumentsPublished *prometheus.CounterVec
	NATSConnected      prometheus.Gauge
	NATSCircuitBreaker prometheus.Gauge
}

// NewMetrics creates the listen metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ChannelsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "open",
			Help:      "Number of open listen channels",
		}),

		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_total",
			Help:      "Frames decoded from the long-poll stream by message kind",
		}, []string{"kind"}),

		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "polls_total",
			Help:      "Long-poll cycles by result",
		}, []string{"result"}),

		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "sent_total",
			Help:      "Command POSTs by command and status",
		}, []string{"command", "status"}),

		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "Command round-trip time in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),

		TargetsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "target",
			Name:      "active",
			Help:      "Targets added and not yet removed",
		}),

		DeferredRemovals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "target",
			Name:      "deferred_removals_total",
			Help:      "Removals queued until CURRENT, by result (queued, sent, failed)",
		}, []string{"result"}),

		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "errors",
			Name:      "total",
			Help:      "Errors by kind",
		}, []string{"kind"}),

		CorrelationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "target",
			Name:      "correlation_seconds",
			Help:      "Time from acknowledgement to a drained target burst",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),

		PoolChannels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "channels",
			Help:      "Pooled channels by state (idle, busy)",
		}, []string{"state"}),

		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "document_cache_total",
			Help:      "Document cache lookups by result (hit, miss)",
		}, []string{"result"}),

		DocumentsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "nats",
			Name:      "documents_published_total",
			Help:      "Documents published to NATS by subject",
		}, []string{"subject"}),

		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "nats",
			Name:      "connected",
			Help:      "NATS connection status (0=disconnected, 1=connected)",
		}),

		NATSCircuitBreaker: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "nats",
			Name:      "circuit_breaker",
			Help:      "NATS circuit breaker status (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ChannelsOpen, m.FramesReceived, m.Polls, m.Commands, m.CommandDuration,
		m.TargetsActive, m.DeferredRemovals, m.Errors, m.CorrelationDuration,
		m.PoolChannels, m.CacheLookups,
		m.DocumentsPublished, m.NATSConnected, m.NATSCircuitBreaker,
	}
}

// ChannelOpened increments the open channel gauge
func (m *Metrics) ChannelOpened() {
	if m == nil {
		return
	}
	m.ChannelsOpen.Inc()
}

// ChannelClosed decrements the open channel gauge
func (m *Metrics) ChannelClosed() {
	if m == nil {
		return
	}
	m.ChannelsOpen.Dec()
}

// RecordFrame counts a decoded frame
func (m *Metrics) RecordFrame(kind string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(kind).Inc()
}

// RecordPoll counts a finished long-poll cycle
func (m *Metrics) RecordPoll(err error) {
	if m == nil {
		return
	}
	m.Polls.WithLabelValues(result(err)).Inc()
}

// RecordCommand counts a command round-trip and its duration
func (m *Metrics) RecordCommand(command string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(command, result(err)).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// TargetAdded increments the active target gauge
func (m *Metrics) TargetAdded() {
	if m == nil {
		return
	}
	m.TargetsActive.Inc()
}

// TargetRemoved decrements the active target gauge
func (m *Metrics) TargetRemoved() {
	if m == nil {
		return
	}
	m.TargetsActive.Dec()
}

// RecordDeferredRemoval counts a deferred removal event
func (m *Metrics) RecordDeferredRemoval(outcome string) {
	if m == nil {
		return
	}
	m.DeferredRemovals.WithLabelValues(outcome).Inc()
}

// RecordError counts an error by kind
func (m *Metrics) RecordError(kind string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(kind).Inc()
}

// RecordCorrelation observes how long a target burst took to drain
func (m *Metrics) RecordCorrelation(duration time.Duration) {
	if m == nil {
		return
	}
	m.CorrelationDuration.Observe(duration.Seconds())
}

// RecordPoolChannels sets the idle and busy channel gauges
func (m *Metrics) RecordPoolChannels(idle, busy int) {
	if m == nil {
		return
	}
	m.PoolChannels.WithLabelValues("idle").Set(float64(idle))
	m.PoolChannels.WithLabelValues("busy").Set(float64(busy))
}

// RecordCacheLookup counts a document cache hit or miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// RecordPublished counts documents published to a subject
func (m *Metrics) RecordPublished(subject string, n int) {
	if m == nil {
		return
	}
	m.DocumentsPublished.WithLabelValues(subject).Add(float64(n))
}

// RecordNATSStatus updates NATS connection status
func (m *Metrics) RecordNATSStatus(connected bool) {
	if m == nil {
		return
	}
	m.NATSConnected.Set(boolValue(connected))
}

// RecordCircuitBreakerState updates circuit breaker status
func (m *Metrics) RecordCircuitBreakerState(open bool) {
	if m == nil {
		return
	}
	m.NATSCircuitBreaker.Set(boolValue(open))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
