package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "grooming_scheduler"

// Collector records availability searches and booking attempts by outcome.
// It satisfies appointment.Recorder.
type Collector struct {
	searches        *prometheus.CounterVec
	searchDuration  *prometheus.HistogramVec
	bookings        *prometheus.CounterVec
	bookingDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_searches_total",
			Help:      "Availability searches by outcome.",
		}, []string{"outcome"}),
		searchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "availability_search_duration_seconds",
			Help:      "Availability search latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome. outcome=conflict counts lost races for a slot.",
		}, []string{"outcome"}),
		bookingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "booking_duration_seconds",
			Help:      "Booking latency including the wait for the day lock.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	reg.MustRegister(c.searches, c.searchDuration, c.bookings, c.bookingDuration)
	return c
}

func (c *Collector) ObserveSearch(outcome string, d time.Duration) {
	c.searches.WithLabelValues(outcome).Inc()
	c.searchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (c *Collector) ObserveBooking(outcome string, d time.Duration) {
	c.bookings.WithLabelValues(outcome).Inc()
	c.bookingDuration.WithLabelValues(outcome).Observe(d.Seconds())
}
