package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trafficsentinel"

var (
	// extraction
	PacketsSeen = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_seen_total",
		Help:      "Total number of raw packet records offered to the extractor",
	})

	RecordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_skipped_total",
		Help:      "Packet records skipped because a required field was missing",
	}, []string{"field"})

	// scoring
	RowsScored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rows_scored_total",
		Help:      "Total number of rows labelled by the anomaly scorer",
	})

	AnomaliesFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "anomalies_flagged_total",
		Help:      "Total number of rows labelled Anomaly",
	})

	TreesBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "isolation_trees_built_total",
		Help:      "Total number of isolation trees built",
	})

	// runs
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_runs_total",
		Help:      "Pipeline runs by outcome",
	}, []string{"status"})

	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_duration_seconds",
		Help:      "Duration of a full extract-encode-score run",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
	})

	WriterDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "writer_duration_seconds",
		Help:      "Duration of writing a scored table, per writer type",
		Buckets:   prometheus.DefBuckets,
	}, []string{"writer", "status"})

	// HTTP
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
