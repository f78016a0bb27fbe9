package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stage names
const (
	StageResolve  = "resolve"
	StageEncode   = "encode"
	StageRetrieve = "retrieve"
	StageBuild    = "build"
	StageGenerate = "generate"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// RAGRequests counts orchestrator invocations by outcome (ok or error type)
	RAGRequests *prometheus.CounterVec
	// StageDuration observes each pipeline stage in seconds
	StageDuration *prometheus.HistogramVec
	// RetrievedDocuments observes how many documents feed each prompt
	RetrievedDocuments prometheus.Histogram
	// DroppedDocuments counts retrieved records rejected for missing fields
	DroppedDocuments prometheus.Counter
	// CollectionCacheLookups counts resolver cache hits and misses
	CollectionCacheLookups *prometheus.CounterVec

	// HTTPRequests counts API requests
	HTTPRequests *prometheus.CounterVec
	// HTTPRequestDuration observes API latency in seconds
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RAGRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "character_chat_rag_requests_total",
				Help: "RAG pipeline invocations by outcome",
			},
			[]string{"outcome"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "character_chat_rag_stage_duration_seconds",
				Help:    "RAG pipeline stage latency",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage", "status"},
		),
		RetrievedDocuments: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "character_chat_retrieved_documents",
				Help:    "Reference documents placed in each prompt",
				Buckets: []float64{0, 1, 2, 3, 4, 5, 10},
			},
		),
		DroppedDocuments: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "character_chat_dropped_documents_total",
				Help: "Retrieved records rejected for missing payload fields",
			},
		),
		CollectionCacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "character_chat_collection_cache_lookups_total",
				Help: "Collection resolution cache lookups",
			},
			[]string{"result"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "character_chat_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "character_chat_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// ObserveStage records a stage duration with its outcome
func (m *Metrics) ObserveStage(stage string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StageDuration.WithLabelValues(stage, status).Observe(time.Since(started).Seconds())
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
