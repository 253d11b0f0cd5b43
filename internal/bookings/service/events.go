package service

import (
	"context"
	"time"

	"voltbook/pkg/kafka"
	"voltbook/pkg/model"
)

// Booking lifecycle event types carried in the event-type header.
const (
	EventBookingCreated   = "booking.created"
	EventBookingVerified  = "booking.verified"
	EventBookingCancelled = "booking.cancelled"
	EventBookingPayment   = "booking.payment_updated"
)

const eventSource = "bookings"

// EventPublisher abstracts the Kafka producer so tests can capture
// published events.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// BookingEvent is the payload published on the booking events topic for
// every lifecycle transition.
type BookingEvent struct {
	BookingID  string    `json:"booking_id"`
	UserID     string    `json:"user_id"`
	StationID  string    `json:"station_id"`
	Status     string    `json:"status"`
	Payment    string    `json:"payment_status"`
	TotalCost  float64   `json:"total_cost"`
	Currency   string    `json:"currency"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newBookingEvent(b *model.Booking) BookingEvent {
	return BookingEvent{
		BookingID:  b.ID,
		UserID:     b.UserID,
		StationID:  b.StationID,
		Status:     string(b.Status),
		Payment:    string(b.Payment),
		TotalCost:  b.TotalCost,
		Currency:   b.Currency,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
		OccurredAt: time.Now().UTC(),
	}
}

// publishEvent emits a lifecycle event. Delivery failures are logged and
// swallowed; the booking transition already committed and must not be
// rolled back over a broker hiccup.
func (s *bookingService) publishEvent(ctx context.Context, eventType string, booking *model.Booking) {
	if s.events == nil {
		return
	}

	msg := kafka.NewMessage().
		WithKey(booking.ID).
		WithValue(newBookingEvent(booking)).
		WithEventType(eventType).
		WithSource(eventSource).
		WithSchemaVersion("1").
		Build()

	if err := s.events.Publish(ctx, msg); err != nil {
		s.cfg.Log.Warn("Failed to publish booking event",
			"event_type", eventType,
			"booking_id", booking.ID,
			"error", err,
		)
	}
}
