// Package metrics holds the Prometheus instrumentation for the
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the pipeline.
type Registry struct {
	// Ingest
	RowsIngestedTotal prometheus.Counter
	RowErrorsTotal    prometheus.Counter

	// Graph
	GraphNodesTotal   prometheus.Gauge
	GraphEdgesTotal   prometheus.Gauge
	NodesCreatedTotal prometheus.Counter
	EdgesCreatedTotal prometheus.Counter

	// Passes
	LabelsAppliedTotal prometheus.Counter
	PassDuration       *prometheus.HistogramVec
	RunsTotal          *prometheus.CounterVec

	// Distance
	MaliciousSeeds prometheus.Gauge

	// Assembly
	FeatureRowsPublished prometheus.Gauge
}

// NewRegistry creates and registers all pipeline metrics.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		RowsIngestedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beaconforge_rows_ingested_total",
			Help: "Traffic rows applied to the graph",
		}),
		RowErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beaconforge_row_errors_total",
			Help: "Malformed traffic rows skipped during ingest",
		}),
		GraphNodesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "beaconforge_graph_nodes",
			Help: "Nodes in the cumulative graph",
		}),
		GraphEdgesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "beaconforge_graph_edges",
			Help: "Edges in the cumulative graph",
		}),
		NodesCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beaconforge_nodes_created_total",
			Help: "Nodes created by batch upserts",
		}),
		EdgesCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beaconforge_edges_created_total",
			Help: "Edges created by batch upserts",
		}),
		LabelsAppliedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beaconforge_labels_applied_total",
			Help: "FQDN nodes updated by label propagation",
		}),
		PassDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "beaconforge_pass_duration_seconds",
			Help:    "Duration of each pipeline pass",
			Buckets: prometheus.DefBuckets,
		}, []string{"pass"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beaconforge_runs_total",
			Help: "Pipeline runs by outcome",
		}, []string{"status"}),
		MaliciousSeeds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "beaconforge_malicious_seeds",
			Help: "Malicious seed FQDNs used for distance scoring",
		}),
		FeatureRowsPublished: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "beaconforge_feature_rows_published",
			Help: "Rows in the published wide feature table",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			r.RowsIngestedTotal,
			r.RowErrorsTotal,
			r.GraphNodesTotal,
			r.GraphEdgesTotal,
			r.NodesCreatedTotal,
			r.EdgesCreatedTotal,
			r.LabelsAppliedTotal,
			r.PassDuration,
			r.RunsTotal,
			r.MaliciousSeeds,
			r.FeatureRowsPublished,
		)
	}

	return r
}

// ObservePass records one pass duration.
func (r *Registry) ObservePass(pass string, d time.Duration) {
	r.PassDuration.WithLabelValues(pass).Observe(d.Seconds())
}
