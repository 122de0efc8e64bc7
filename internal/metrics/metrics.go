// Package metrics exposes Prometheus instruments for bookings and the
// assistant. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	admissions    *prometheus.CounterVec
	reservations  *prometheus.CounterVec
	intents       *prometheus.CounterVec
	completion    *prometheus.HistogramVec
	notifications *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		admissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservas_admission_decisions_total",
				Help: "Admission checks by outcome",
			},
			[]string{"outcome"},
		),
		reservations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservas_reservations_total",
				Help: "Reservation writes by result",
			},
			[]string{"result"},
		),
		intents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservas_assistant_intents_total",
				Help: "Parsed assistant intents by kind",
			},
			[]string{"kind"},
		),
		completion: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reservas_completion_duration_seconds",
				Help:    "Latency of language model completions",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
			},
			[]string{"result"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservas_notifications_total",
				Help: "Notifications by kind and result",
			},
			[]string{"kind", "result"},
		),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.admissions, m.reservations, m.intents, m.completion, m.notifications,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Admission records "accepted" or the rejection reason.
func (m *Metrics) Admission(outcome string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Reservation(result string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(result).Inc()
}

func (m *Metrics) Intent(kind string) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(kind).Inc()
}

func (m *Metrics) Completion(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.completion.WithLabelValues(result(err)).Observe(d.Seconds())
}

func (m *Metrics) Notification(kind string, err error) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
