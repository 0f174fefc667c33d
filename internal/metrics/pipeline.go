package metrics

import "github.com/prometheus/client_golang/prometheus"

// Enrichment, upload and query metrics.
var (
	EnrichRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecbot",
			Name:      "enrich_records_total",
			Help:      "Records processed by the enrichment pipeline",
		},
		[]string{"status"},
	)

	UploadDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecbot",
			Name:      "upload_documents_total",
			Help:      "Documents sent to the search index",
		},
		[]string{"status"},
	)

	SearchQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecbot",
			Name:      "search_queries_total",
			Help:      "Queries executed by mode",
		},
		[]string{"mode", "status"},
	)

	SearchQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vecbot",
			Name:      "search_query_duration_seconds",
			Help:      "Query duration including query embedding, in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"mode"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers enrichment, upload and query metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(EnrichRecordsTotal)
	prometheus.MustRegister(UploadDocumentsTotal)
	prometheus.MustRegister(SearchQueriesTotal)
	prometheus.MustRegister(SearchQueryDuration)
	pipelineMetricsRegistered = true
}
