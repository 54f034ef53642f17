package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for a
// download run.
type Metrics struct {
	ProbeAttempts *prometheus.CounterVec // labels: outcome={success,boot_failed,rejected}
	TreeNodes     *prometheus.CounterVec // labels: dimension={zb,reg}

	SeriesFetches  *prometheus.CounterVec // labels: outcome={success,error}
	SeriesDuration prometheus.Histogram

	RowsDecoded prometheus.Counter
	RowsDropped prometheus.Counter

	PanelRows     prometheus.Gauge
	RunInProgress prometheus.Gauge
}

// NewMetrics creates and registers all run metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ProbeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statcn_etl",
			Name:      "probe_attempts_total",
			Help:      "Candidate locale/database combinations tried, by outcome.",
		}, []string{"outcome"}),
		TreeNodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statcn_etl",
			Name:      "tree_nodes_total",
			Help:      "Catalog tree nodes fetched, by dimension.",
		}, []string{"dimension"}),
		SeriesFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statcn_etl",
			Name:      "series_fetches_total",
			Help:      "Indicator series downloads, by outcome.",
		}, []string{"outcome"}),
		SeriesDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "statcn_etl",
			Name:      "series_fetch_duration_seconds",
			Help:      "Duration of one QueryData fetch including decoding.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		RowsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statcn_etl",
			Name:      "rows_decoded_total",
			Help:      "Data nodes successfully decoded into observations.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statcn_etl",
			Name:      "rows_dropped_total",
			Help:      "Data nodes dropped for undecodable wds strings.",
		}),
		PanelRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "statcn_etl",
			Name:      "panel_rows",
			Help:      "Region-year rows in the assembled panel.",
		}),
		RunInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "statcn_etl",
			Name:      "run_in_progress",
			Help:      "1 while a download run is active, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.ProbeAttempts,
		m.TreeNodes,
		m.SeriesFetches,
		m.SeriesDuration,
		m.RowsDecoded,
		m.RowsDropped,
		m.PanelRows,
		m.RunInProgress,
	)

	return m
}

// NewMetricsForTesting creates Metrics without touching the default registry,
// avoiding "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ProbeAttempts:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "statcn_etl", Name: "probe_attempts_total"}, []string{"outcome"}),
		TreeNodes:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "statcn_etl", Name: "tree_nodes_total"}, []string{"dimension"}),
		SeriesFetches:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "statcn_etl", Name: "series_fetches_total"}, []string{"outcome"}),
		SeriesDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "statcn_etl", Name: "series_fetch_duration_seconds"}),
		RowsDecoded:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "statcn_etl", Name: "rows_decoded_total"}),
		RowsDropped:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "statcn_etl", Name: "rows_dropped_total"}),
		PanelRows:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "statcn_etl", Name: "panel_rows"}),
		RunInProgress:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "statcn_etl", Name: "run_in_progress"}),
	}
}
