package metrics

import (
	"sync"

	"github.com/mmdatafocus/moldpark_backend/monitor"
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the monitoring jobs and the status API
var (
	PassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moldpark_monitor_passes_total",
			Help: "Total number of monitoring passes by job and result",
		},
		[]string{"job", "result"},
	)

	PassDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moldpark_monitor_pass_duration_seconds",
			Help:    "Duration of monitoring passes",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"job"},
	)

	FindingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moldpark_findings_total",
			Help: "Total number of findings produced by rules",
		},
		[]string{"kind", "severity"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moldpark_notifications_total",
			Help: "Total number of notification deliveries by outcome",
		},
		[]string{"outcome"},
	)

	HealthScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "moldpark_health_score",
			Help: "Most recently computed system health score (0-100)",
		},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moldpark_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moldpark_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

var registerOnce sync.Once

// Register registers all Prometheus metrics with the default registry. It is
// safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(PassesTotal)
		prometheus.MustRegister(PassDuration)
		prometheus.MustRegister(FindingsTotal)
		prometheus.MustRegister(NotificationsTotal)
		prometheus.MustRegister(HealthScore)
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
	})
}

func ObserveFindings(findings []monitor.Finding) {
	for _, f := range findings {
		FindingsTotal.WithLabelValues(string(f.Kind), f.Severity.String()).Inc()
	}
}

func ObserveDispatch(s monitor.DispatchSummary) {
	for _, d := range s.Deliveries {
		NotificationsTotal.WithLabelValues(string(d.Outcome)).Inc()
	}
}
