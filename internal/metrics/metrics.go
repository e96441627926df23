package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LoadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "districtchart_loads_total",
		Help: "Total number of dataset loads",
	})
	LoadFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "districtchart_load_fail_total",
		Help: "Total number of failed dataset loads",
	})
	LoadDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "districtchart_load_duration_ms",
		Help:    "Dataset load + aggregate duration in milliseconds",
		Buckets: []float64{5, 10, 50, 100, 250, 500, 1000, 2500, 5000},
	})
	RowsKept = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "districtchart_rows_kept",
		Help: "Rows with a district in the current dataset",
	})
	RowsDropped = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "districtchart_rows_dropped",
		Help: "Rows dropped for missing district in the current dataset",
	})
	Districts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "districtchart_districts",
		Help: "Distinct districts in the current dataset",
	})
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "districtchart_requests_total",
		Help: "Total chart/API requests by route",
	}, []string{"route"})
	RenderDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "districtchart_render_duration_ms",
		Help:    "Chart render duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500},
	}, []string{"format"})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "districtchart_cache_hits_total",
		Help: "Total redis chart cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "districtchart_cache_misses_total",
		Help: "Total redis chart cache misses",
	})
)

func init() {
	prometheus.MustRegister(LoadsTotal)
	prometheus.MustRegister(LoadFailTotal)
	prometheus.MustRegister(LoadDurationMs)
	prometheus.MustRegister(RowsKept)
	prometheus.MustRegister(RowsDropped)
	prometheus.MustRegister(Districts)
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RenderDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
}

// 文档注释：返回 Prometheus 指标处理器，在主入口挂载到 {API_BASE}/metrics
func Handler() http.Handler { return promhttp.Handler() }
