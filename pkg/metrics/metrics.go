package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "voltbook",
			Name:      "bookings_created_total",
			Help:      "Count of bookings created.",
		},
	)

	bookingsVerified = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "voltbook",
			Name:      "bookings_verified_total",
			Help:      "Count of bookings verified by QR scan.",
		},
	)

	bookingsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "voltbook",
			Name:      "bookings_expired_total",
			Help:      "Count of bookings reconciled by the expiry sweeper.",
		},
	)

	bookingsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "voltbook",
			Name:      "bookings_cancelled_total",
			Help:      "Count of bookings cancelled.",
		},
	)

	slotSaturations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voltbook",
			Name:      "slot_ledger_saturations_total",
			Help:      "Count of slot ledger operations that saturated at a bound instead of moving the counter.",
		},
		[]string{"op"},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "voltbook",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one expiry sweep pass.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	sweepFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "voltbook",
			Name:      "sweep_booking_failures_total",
			Help:      "Count of per-booking reconciliation failures during sweeps.",
		},
	)

	kafkaPublishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voltbook",
			Name:      "kafka_messages_published_total",
			Help:      "Count of Kafka publish attempts by topic and outcome.",
		},
		[]string{"topic", "status"},
	)
)

// Register registers all collectors (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingsCreated,
			bookingsVerified,
			bookingsExpired,
			bookingsCancelled,
			slotSaturations,
			sweepDuration,
			sweepFailures,
			kafkaPublishes,
		)
	})
}

func IncBookingCreated()   { bookingsCreated.Inc() }
func IncBookingVerified()  { bookingsVerified.Inc() }
func IncBookingExpired()   { bookingsExpired.Inc() }
func IncBookingCancelled() { bookingsCancelled.Inc() }

// IncSlotSaturation records a decrement that hit zero or an increment
// that hit total_slots.
func IncSlotSaturation(op string) { slotSaturations.WithLabelValues(op).Inc() }

func ObserveSweepDuration(seconds float64) { sweepDuration.Observe(seconds) }
func IncSweepFailure()                     { sweepFailures.Inc() }

// IncKafkaPublish records a publish attempt. Status is "ok" or "error".
func IncKafkaPublish(topic, status string) { kafkaPublishes.WithLabelValues(topic, status).Inc() }
