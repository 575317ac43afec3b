package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process on a private registry so
// tests can create as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	pollAttempts  *prometheus.CounterVec
	scenarioTotal *prometheus.CounterVec
}

// New registers all collectors under the given namespace
// ("anchor_e2e" for the harness, "mock_anchor" for the mock server).
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests, labeled by status code",
		}, []string{"method", "endpoint", "status"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP requests",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}, []string{"method", "endpoint"}),
		pollAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_attempts_total",
			Help:      "Poll attempts, labeled by poller and outcome",
		}, []string{"poller", "outcome"}),
		scenarioTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Executed scenarios, labeled by name and result",
		}, []string{"scenario", "result"}),
	}
}

// ObserveRequest records one HTTP exchange. A status of 0 means the request
// never produced a response.
func (m *Metrics) ObserveRequest(method, endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// ObservePoll records one poll attempt
func (m *Metrics) ObservePoll(poller, outcome string) {
	if m == nil {
		return
	}
	m.pollAttempts.WithLabelValues(poller, outcome).Inc()
}

// ObserveScenario records one finished scenario
func (m *Metrics) ObserveScenario(name, result string) {
	if m == nil {
		return
	}
	m.scenarioTotal.WithLabelValues(name, result).Inc()
}

// Registry exposes the underlying gatherer
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry to path for the node_exporter textfile
// collector. One-shot runs have nothing to scrape, so this is how the
// harness exports its numbers.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
