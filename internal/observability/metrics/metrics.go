package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the booking and visit workflows.
type BookingMetrics struct {
	bookingTotal    *prometheus.CounterVec
	transitionTotal *prometheus.CounterVec
	snapshotTotal   *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "operations_total",
			Help:      "Booking operations by outcome (created, conflict, capacity, contended, cancelled)",
		}, []string{"outcome"}),
		transitionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "visit",
			Name:      "transitions_total",
			Help:      "Visit status transitions",
		}, []string{"from", "to"}),
		snapshotTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "viewsync",
			Name:      "snapshots_total",
			Help:      "Full snapshots pushed to station subscribers",
		}, []string{"collection"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingTotal, m.transitionTotal, m.snapshotTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionTotal.WithLabelValues(from, to).Inc()
}

func (m *BookingMetrics) ObserveSnapshot(collection string) {
	if m == nil {
		return
	}
	m.snapshotTotal.WithLabelValues(collection).Inc()
}
