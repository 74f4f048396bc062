// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the dirigent server.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts HTTP requests by method, route pattern, and
	// status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirigent_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dirigent_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks active SSE progress streams.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dirigent_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// ExchangesTotal counts completed chat exchanges by outcome.
	ExchangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirigent_exchanges_total",
			Help: "Completed chat exchanges",
		},
		[]string{"status"},
	)

	// ExchangeTurns records how many provider turns each exchange used.
	ExchangeTurns = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dirigent_exchange_turns",
			Help:    "Provider turns per exchange",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20},
		},
	)

	// ProviderRequestsTotal counts round trips to upstream model backends.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirigent_provider_requests_total",
			Help: "Provider round trips",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records upstream round-trip latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dirigent_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts tokens by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirigent_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirigent_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		ExchangesTotal,
		ExchangeTurns,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		RateLimitRejectedTotal,
	)
}

// RecordProviderTurn records the metrics of one provider round trip:
// the outcome counter, the latency observation, and (when the upstream
// reported usage) the token counters.
func RecordProviderTurn(provider, model string, seconds float64, inputTokens, outputTokens int, failed bool) {
	status := "success"
	if failed {
		status = "error"
	}
	ProviderRequestsTotal.WithLabelValues(provider, model, status).Inc()
	ProviderLatency.WithLabelValues(provider, model).Observe(seconds)
	if inputTokens > 0 {
		ProviderTokensTotal.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		ProviderTokensTotal.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}
