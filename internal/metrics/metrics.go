package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeApplied = "applied"
	OutcomeNoop    = "noop"
	OutcomeInvalid = "invalid"
)

var (
	intents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rider",
		Subsystem: "negotiation",
		Name:      "intents_total",
		Help:      "Total number of negotiation intents broken down by intent and outcome.",
	}, []string{"intent", "outcome"})

	feedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rider",
		Subsystem: "feed",
		Name:      "messages_total",
		Help:      "Total number of feed rows written broken down by kind.",
	}, []string{"kind"})

	mirrorErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rider",
		Subsystem: "snapshot",
		Name:      "mirror_errors_total",
		Help:      "Total number of failed snapshot mirror writes.",
	})

	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rider",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Total number of API requests broken down by method and result.",
	}, []string{"method", "result"})

	apiLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rider",
		Subsystem: "api",
		Name:      "latency_seconds",
		Help:      "Latency distribution for API requests.",
		Buckets: []float64{
			0.001, 0.002, 0.005,
			0.01, 0.02, 0.05,
			0.1, 0.2, 0.5,
			1, 2, 5,
		},
	}, []string{"method", "result"})
)

func RecordIntent(intent, outcome string) {
	if outcome == "" {
		outcome = OutcomeApplied
	}
	intents.WithLabelValues(intent, outcome).Inc()
}

func RecordFeedMessage(kind string) {
	feedMessages.WithLabelValues(kind).Inc()
}

func RecordMirrorError() {
	mirrorErrors.Inc()
}

// RecordRequest buckets status into 2xx/4xx/5xx.
func RecordRequest(method string, status int, elapsed time.Duration) {
	result := "2xx"
	switch {
	case status >= 500:
		result = "5xx"
	case status >= 400:
		result = "4xx"
	}
	apiRequests.WithLabelValues(method, result).Inc()
	apiLatency.WithLabelValues(method, result).Observe(elapsed.Seconds())
}
