package routing

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all the Prometheus metrics of the routing pipeline. A nil
// *Metrics records nothing.
type Metrics struct {
	requestDuration *prometheus.HistogramVec
	routesGenerated prometheus.Histogram
	chunkDuration   prometheus.Histogram
	chunksTotal     *prometheus.CounterVec
	retriesTotal    prometheus.Counter
	entriesTotal    *prometheus.CounterVec
	splits          prometheus.Histogram
}

// NewMetrics creates and registers the routing metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "router_request_duration_seconds",
			Help:    "Total time taken to answer a routing request, labeled by result.",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		routesGenerated: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "router_routes_generated",
			Help:    "Number of candidate routes produced per request.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 200},
		}),
		chunkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quoter_chunk_duration_seconds",
			Help:    "Time taken by a single batched quote call.",
			Buckets: prometheus.DefBuckets,
		}),
		chunksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quoter_chunks_total",
			Help: "Total number of batched quote calls, labeled by result.",
		}, []string{"result"}),
		retriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quoter_retries_total",
			Help: "Total number of chunk halvings.",
		}),
		entriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quoter_entries_total",
			Help: "Total number of quoted (route, amount) entries, labeled by result.",
		}, []string{"result"}),
		splits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "optimizer_splits",
			Help:    "Number of routes in the selected swap route.",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7},
		}),
	}
	reg.MustRegister(m.requestDuration, m.routesGenerated, m.chunkDuration, m.chunksTotal, m.retriesTotal, m.entriesTotal, m.splits)
	return m
}

func (m *Metrics) ObserveRequest(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) ObserveRoutesGenerated(n int) {
	if m == nil {
		return
	}
	m.routesGenerated.Observe(float64(n))
}

func (m *Metrics) ObserveChunk(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.chunkDuration.Observe(d.Seconds())
	m.chunksTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.retriesTotal.Inc()
}

func (m *Metrics) AddEntries(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.entriesTotal.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) ObserveSplits(n int) {
	if m == nil {
		return
	}
	m.splits.Observe(float64(n))
}
