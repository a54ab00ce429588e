// Package metrics provides Prometheus metrics for the vaccination service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	AdministrationsRecorded prometheus.Counter
	AdministrationFailures  *prometheus.CounterVec
	PrescriptionsCreated    prometheus.Counter
	PrescriptionsCancelled  prometheus.Counter
	AccountsRegistered      *prometheus.CounterVec
	StockLevel              *prometheus.GaugeVec
	RequestDuration         prometheus.Histogram
	KafkaMessagesProduced   prometheus.Counter
	KafkaMessagesConsumed   prometheus.Counter
	OutboxPending           prometheus.Gauge
	CircuitBreakerState     *prometheus.GaugeVec
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		AdministrationsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "administrations_recorded_total",
			Help: "Total vaccine doses administered",
		}),
		AdministrationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "administration_failures_total",
			Help: "Failed administration attempts by reason",
		}, []string{"reason"}),
		PrescriptionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prescriptions_created_total",
			Help: "Total prescriptions created",
		}),
		PrescriptionsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prescriptions_cancelled_total",
			Help: "Total prescriptions cancelled",
		}),
		AccountsRegistered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_registered_total",
			Help: "Accounts registered by role",
		}, []string{"role"}),
		StockLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "center_stock_doses",
			Help: "Doses on hand per center and vaccine",
		}, []string{"center", "vaccine"}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		KafkaMessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total Kafka messages produced",
		}),
		KafkaMessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total Kafka messages consumed",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	prometheus.MustRegister(
		m.AdministrationsRecorded,
		m.AdministrationFailures,
		m.PrescriptionsCreated,
		m.PrescriptionsCancelled,
		m.AccountsRegistered,
		m.StockLevel,
		m.RequestDuration,
		m.KafkaMessagesProduced,
		m.KafkaMessagesConsumed,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
