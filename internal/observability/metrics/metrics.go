// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_voice_bridge"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal   *prometheus.CounterVec
	SessionsActive  prometheus.Gauge
	SessionDuration prometheus.Histogram
	FinalizeReasons *prometheus.CounterVec

	// Media metrics
	AudioBytes      *prometheus.CounterVec
	AudioChunks     *prometheus.CounterVec
	FramesEmitted   prometheus.Counter
	FramesDropped   prometheus.Counter
	Interruptions   prometheus.Counter
	DecodeErrors    *prometheus.CounterVec
	LivenessFailure prometheus.Counter

	// Agent leg metrics
	AgentDialLatency prometheus.Histogram
	AgentDialErrors  prometheus.Counter

	// Outcome metrics
	OutcomesPersisted *prometheus.CounterVec
	PersistLatency    prometheus.Histogram
	PaymentIntents    *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Transport metrics
	HTTPRequests   *prometheus.CounterVec
	HTTPLatency    *prometheus.HistogramVec
	GRPCRequests   *prometheus.CounterVec
	TelephonyCalls *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of bridged sessions accepted",
		}, []string{"mode"}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions currently bridged",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of bridged sessions in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		FinalizeReasons: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalize_total",
			Help:      "Sessions finalized by reason",
		}, []string{"reason"}),

		AudioBytes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Audio bytes moved per leg and direction",
		}, []string{"leg", "direction"}),
		AudioChunks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_total",
			Help:      "Audio messages moved per leg and direction",
		}, []string{"leg", "direction"}),
		FramesEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_emitted_total",
			Help:      "Paced frames written to the caller leg",
		}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames discarded by the pacer overflow policy",
		}),
		Interruptions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Agent interruptions that cleared queued caller audio",
		}),
		DecodeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Malformed or unknown messages dropped per leg",
		}, []string{"leg"}),
		LivenessFailure: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liveness_failures_total",
			Help:      "Sessions ended because a heartbeat went unanswered",
		}),

		AgentDialLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_dial_latency_seconds",
			Help:      "Time to open the agent leg",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		AgentDialErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_dial_errors_total",
			Help:      "Failed attempts to open the agent leg",
		}),

		OutcomesPersisted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Outcome persistence attempts by result",
		}, []string{"result"}),
		PersistLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outcome_persist_latency_seconds",
			Help:      "Outcome store write latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}),
		PaymentIntents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_intents_total",
			Help:      "Classified payment intents of finalized sessions",
		}, []string{"intent"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		GRPCRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "gRPC requests by method and code",
		}, []string{"method", "code"}),
		TelephonyCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telephony_requests_total",
			Help:      "Telephony provider API calls by operation and result",
		}, []string{"operation", "result"}),
	}
}

// RecordSessionStart records a new session being accepted.
func (m *Metrics) RecordSessionStart(mode string) {
	m.SessionsTotal.WithLabelValues(mode).Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session finalizing.
func (m *Metrics) RecordSessionEnd(reason string, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
	m.FinalizeReasons.WithLabelValues(reason).Inc()
}

// RecordAudio records one audio message on a leg ("caller", "agent")
// in a direction ("in", "out").
func (m *Metrics) RecordAudio(leg, direction string, bytes int) {
	m.AudioChunks.WithLabelValues(leg, direction).Inc()
	m.AudioBytes.WithLabelValues(leg, direction).Add(float64(bytes))
}

// RecordFrameEmitted records a paced frame written to the caller.
func (m *Metrics) RecordFrameEmitted() {
	m.FramesEmitted.Inc()
}

// RecordFramesDropped records frames discarded on overflow.
func (m *Metrics) RecordFramesDropped(n int) {
	if n > 0 {
		m.FramesDropped.Add(float64(n))
	}
}

// RecordInterruption records an agent barge-in.
func (m *Metrics) RecordInterruption() {
	m.Interruptions.Inc()
}

// RecordDecodeError records a dropped message.
func (m *Metrics) RecordDecodeError(leg string) {
	m.DecodeErrors.WithLabelValues(leg).Inc()
}

// RecordLivenessFailure records a missed heartbeat.
func (m *Metrics) RecordLivenessFailure() {
	m.LivenessFailure.Inc()
}

// RecordAgentDial records an agent leg dial attempt.
func (m *Metrics) RecordAgentDial(err error, latencySeconds float64) {
	m.AgentDialLatency.Observe(latencySeconds)
	if err != nil {
		m.AgentDialErrors.Inc()
	}
}

// RecordOutcome records an outcome persistence attempt; result is one of
// "stored", "invalid", "error".
func (m *Metrics) RecordOutcome(result, intent string, latencySeconds float64) {
	m.OutcomesPersisted.WithLabelValues(result).Inc()
	m.PersistLatency.Observe(latencySeconds)
	if intent != "" {
		m.PaymentIntents.WithLabelValues(intent).Inc()
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(route, method, code string, latencySeconds float64) {
	m.HTTPRequests.WithLabelValues(route, method, code).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(latencySeconds)
}

// RecordGRPCRequest records a completed gRPC call.
func (m *Metrics) RecordGRPCRequest(method, code string) {
	m.GRPCRequests.WithLabelValues(method, code).Inc()
}

// RecordTelephonyCall records a telephony provider API call.
func (m *Metrics) RecordTelephonyCall(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.TelephonyCalls.WithLabelValues(operation, result).Inc()
}
