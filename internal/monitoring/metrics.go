package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ScrapesTotal     *prometheus.CounterVec
	ScrapeDuration   *prometheus.HistogramVec
	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
}

// New registers the pipehub collectors with reg; a nil reg uses the default
// registerer. Tests pass a fresh prometheus.NewRegistry per instance.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ScrapesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipehub_scrapes_total",
			Help: "The total number of scrape dispatches by module and outcome",
		}, []string{"module", "status"}), // status: 'success' or 'failure'
		ScrapeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipehub_scrape_duration_seconds",
			Help:    "Duration of scrape module execution",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"module"}),
		AnalysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipehub_analyses_total",
			Help: "The total number of analysis dispatches by module and outcome",
		}, []string{"module", "status"}),
		AnalysisDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipehub_analysis_duration_seconds",
			Help:    "Duration of analyzer module execution",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"module"}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipehub_http_requests_total",
			Help: "The total number of HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipehub_http_request_duration_seconds",
			Help:    "Duration of HTTP request handling",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
	}
}

// ObserveScrape records one scrape dispatch outcome.
func (m *Metrics) ObserveScrape(module, status string, d time.Duration) {
	m.ScrapesTotal.WithLabelValues(module, status).Inc()
	m.ScrapeDuration.WithLabelValues(module).Observe(d.Seconds())
}

// ObserveAnalysis records one analysis dispatch outcome.
func (m *Metrics) ObserveAnalysis(module, status string, d time.Duration) {
	m.AnalysesTotal.WithLabelValues(module, status).Inc()
	m.AnalysisDuration.WithLabelValues(module).Observe(d.Seconds())
}

// ObserveRequest records one handled HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
