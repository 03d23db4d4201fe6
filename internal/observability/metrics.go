package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	TurnsTotal        *prometheus.CounterVec
	ModelRequests     *prometheus.CounterVec
	ModelLatency      prometheus.Histogram
	FallbackReplies   prometheus.Counter
	MemoriesExtracted prometheus.Counter
	ProtocolMatches   prometheus.Counter
	ActiveChatStreams prometheus.Gauge

	turnStages *turnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		TurnsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Persisted conversation turns by role.",
		}, []string{"role"}),
		ModelRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_requests_total",
			Help:      "Language model completion calls by outcome.",
		}, []string{"outcome"}),
		ModelLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_latency_ms",
			Help:      "Latency of language model completion calls in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000},
		}),
		FallbackReplies: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_replies_total",
			Help:      "Turns answered with the fixed fallback reply.",
		}),
		MemoriesExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_extracted_total",
			Help:      "Long-term memories created by keyword extraction.",
		}),
		ProtocolMatches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_matches_total",
			Help:      "Protocols matched into model context.",
		}),
		ActiveChatStreams: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_chat_streams",
			Help:      "Open chat websocket connections.",
		}),

		turnStages: newTurnStageWindow(256),
	}
}

// ObserveTurnStage records one latency sample for a turn stage.
func (m *Metrics) ObserveTurnStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.turnStages.Observe(stage, float64(d.Microseconds())/1000)
}

// MarkIndicator bumps a named occurrence counter in the rolling perf window.
func (m *Metrics) MarkIndicator(name string) {
	if m == nil {
		return
	}
	m.turnStages.ObserveIndicator(name)
}

// SnapshotTurnStages reports rolling latency stats for the perf endpoint.
func (m *Metrics) SnapshotTurnStages() TurnStageSnapshot {
	return m.turnStages.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
