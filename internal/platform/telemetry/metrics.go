package telemetry

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hmtp/hmtp/internal/platform/apperr"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hmtp_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hmtp_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hmtp_http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// Outcome is "booked" or the rejection code. Tenant is deliberately not
	// a label.
	BookingAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hmtp_booking_attempts_total",
			Help: "Appointment booking attempts by outcome.",
		},
		[]string{"outcome"},
	)

	DispenseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hmtp_dispense_total",
			Help: "Medicine dispense attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpRequests, httpLatency, httpInflight, BookingAttempts, DispenseTotal)
}

// Outcome labels a domain result: ok on success, the error code otherwise.
func Outcome(ok string, err error) string {
	if err == nil {
		return ok
	}
	return apperr.As(err).Code
}

type poolCollector struct {
	pool  *pgxpool.Pool
	total *prometheus.Desc
	idle  *prometheus.Desc
	inUse *prometheus.Desc
}

// NewPoolCollector exposes pgxpool statistics as gauges.
func NewPoolCollector(pool *pgxpool.Pool) prometheus.Collector {
	return &poolCollector{
		pool:  pool,
		total: prometheus.NewDesc("hmtp_db_pool_total_conns", "Total pooled connections.", nil, nil),
		idle:  prometheus.NewDesc("hmtp_db_pool_idle_conns", "Idle pooled connections.", nil, nil),
		inUse: prometheus.NewDesc("hmtp_db_pool_acquired_conns", "Acquired pooled connections.", nil, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.idle
	ch <- c.inUse
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(s.AcquiredConns()))
}
