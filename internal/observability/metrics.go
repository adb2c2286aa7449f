package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the clustering pipeline.
type Metrics struct {
	RunsTotal         prometheus.Counter
	RunFailures       *prometheus.CounterVec // labels: stage={extract,analyze,load}
	RecordsLoaded     prometheus.Gauge
	CountiesClustered prometheus.Gauge
	PipelineRunning   prometheus.Gauge

	RunDuration prometheus.Histogram
	ClusterSize *prometheus.GaugeVec // labels: cluster
	ClusterRisk *prometheus.GaugeVec // labels: cluster

	AssignmentsPublished prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.RunsTotal,
		m.RunFailures,
		m.RecordsLoaded,
		m.CountiesClustered,
		m.PipelineRunning,
		m.RunDuration,
		m.ClusterSize,
		m.ClusterRisk,
		m.AssignmentsPublished,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aqi_cluster",
			Name:      "runs_total",
			Help:      "Total completed clustering runs.",
		}),
		RunFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aqi_cluster",
			Name:      "run_failures_total",
			Help:      "Clustering runs that failed, by pipeline stage.",
		}, []string{"stage"}),
		RecordsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aqi_cluster",
			Name:      "records_loaded",
			Help:      "County-year records read in the latest run.",
		}),
		CountiesClustered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aqi_cluster",
			Name:      "counties_clustered",
			Help:      "Counties partitioned in the latest run.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aqi_cluster",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aqi_cluster",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete extract-analyze-load run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ClusterSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aqi_cluster",
			Name:      "cluster_size",
			Help:      "Counties per cluster in the latest run.",
		}, []string{"cluster"}),
		ClusterRisk: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aqi_cluster",
			Name:      "cluster_mean_risk_score",
			Help:      "Mean risk score per cluster in the latest run.",
		}, []string{"cluster"}),
		AssignmentsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aqi_cluster",
			Name:      "assignments_published_total",
			Help:      "County assignment messages written to the sink topic.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aqi_cluster",
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aqi_cluster",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aqi_cluster",
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aqi_cluster",
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
	}
}
