package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the booking and transition flows.
type BookingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	webhookTotal     *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docpoint",
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docpoint",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Appointment status transitions by target status and trigger",
		}, []string{"to", "trigger"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docpoint",
			Subsystem: "payments",
			Name:      "webhook_events_total",
			Help:      "Provider webhook deliveries by event type and handling status",
		}, []string{"event_type", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.webhookTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveTransition(to, trigger string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to, trigger).Inc()
}

func (m *BookingMetrics) ObserveWebhook(eventType, status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(eventType, status).Inc()
}

// SweepMetrics tracks reconciliation sweep runs and per-item outcomes.
type SweepMetrics struct {
	runsTotal  prometheus.Counter
	itemsTotal *prometheus.CounterVec
	duration   prometheus.Histogram
}

func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	m := &SweepMetrics{
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docpoint",
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Reconciliation sweep executions",
		}),
		itemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docpoint",
			Subsystem: "reconcile",
			Name:      "items_total",
			Help:      "Sweep items by transition kind and result",
		}, []string{"kind", "result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docpoint",
			Subsystem: "reconcile",
			Name:      "run_duration_seconds",
			Help:      "Duration of a full sweep run",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.itemsTotal, m.duration)
	return m
}

func (m *SweepMetrics) ObserveRun(seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.Inc()
	m.duration.Observe(seconds)
}

func (m *SweepMetrics) ObserveItem(kind, result string) {
	if m == nil {
		return
	}
	m.itemsTotal.WithLabelValues(kind, result).Inc()
}
