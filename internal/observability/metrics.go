package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// chart reader service.
type Metrics struct {
	StationFetches      *prometheus.CounterVec // labels: outcome={success,error,validation}
	StationFetchSeconds prometheus.Histogram
	RecordsNormalized   prometheus.Histogram

	ChartRenders       *prometheus.CounterVec // labels: outcome={success,error}
	ChartRenderSeconds prometheus.Histogram

	AnalysisRequests *prometheus.CounterVec   // labels: kind={chart,station}, outcome={success,error,unavailable}
	AnalysisSeconds  *prometheus.HistogramVec // labels: kind={chart,station}

	ModelPulls          *prometheus.CounterVec   // labels: outcome={success,error}
	ModelRequestSeconds *prometheus.HistogramVec // labels: op={generate,tags,pull}

	AnalysesPublished prometheus.Counter
	KafkaEnabled      prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.StationFetches,
		m.StationFetchSeconds,
		m.RecordsNormalized,
		m.ChartRenders,
		m.ChartRenderSeconds,
		m.AnalysisRequests,
		m.AnalysisSeconds,
		m.ModelPulls,
		m.ModelRequestSeconds,
		m.AnalysesPublished,
		m.KafkaEnabled,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		StationFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chartreader",
			Name:      "station_fetches_total",
			Help:      "Station data fetch attempts by outcome.",
		}, []string{"outcome"}),
		StationFetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chartreader",
			Name:      "station_fetch_duration_seconds",
			Help:      "Duration of station data API requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RecordsNormalized: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chartreader",
			Name:      "records_normalized",
			Help:      "Number of records per normalized series.",
			Buckets:   []float64{0, 10, 50, 100, 250, 500, 1000, 5000},
		}),
		ChartRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chartreader",
			Name:      "chart_renders_total",
			Help:      "Chart raster renders by outcome.",
		}, []string{"outcome"}),
		ChartRenderSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chartreader",
			Name:      "chart_render_duration_seconds",
			Help:      "Duration of chart PNG rendering.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		AnalysisRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chartreader",
			Name:      "analysis_requests_total",
			Help:      "Model analysis requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		AnalysisSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chartreader",
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end duration of analysis requests.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),
		ModelPulls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chartreader",
			Name:      "model_pulls_total",
			Help:      "Model auto-pull attempts by outcome.",
		}, []string{"outcome"}),
		ModelRequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chartreader",
			Name:      "model_request_duration_seconds",
			Help:      "Ollama API request duration by operation.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 180},
		}, []string{"op"}),
		AnalysesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chartreader",
			Name:      "analyses_published_total",
			Help:      "Completed station analyses published to the sink topic.",
		}),
		KafkaEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chartreader",
			Name:      "kafka_enabled",
			Help:      "1 when analysis event publishing is enabled, 0 otherwise.",
		}),
	}
}
