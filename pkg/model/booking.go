package model

import (
	"time"
)

type BookingStatus string

const (
	// BookingPending exists for schema completeness; the booking flow
	// creates bookings directly in BookingConfirmed because payment is
	// simulated.
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingVerified  BookingStatus = "verified"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type Booking struct {
	ID          string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	UserID      string        `json:"user_id" bson:"user_id" validate:"required,min=1,max=128"`
	StationID   string        `json:"station_id" bson:"station_id" validate:"required,mongodb"`
	StationName string        `json:"station_name" bson:"station_name" validate:"omitempty,max=100"`
	StartTime   time.Time     `json:"start_time" bson:"start_time" validate:"required"`
	EndTime     time.Time     `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	DurationMin int           `json:"duration" bson:"duration" validate:"required,min=15"`
	TotalCost   float64       `json:"total_cost" bson:"total_cost" validate:"gte=0"`
	Currency    string        `json:"currency" bson:"currency" validate:"required,len=3"`
	Status      BookingStatus `json:"status" bson:"status" validate:"required,oneof=pending confirmed verified completed cancelled"`
	Payment     PaymentStatus `json:"payment_status" bson:"payment_status" validate:"required,oneof=pending completed failed"`
	Expired     bool          `json:"expired" bson:"expired"`
	// SlotReleased records that the booking's slot went back to the
	// station ledger. It is the reconciliation guard: Expired is a
	// display flag that a scan may set early, while SlotReleased flips
	// exactly once, when the increment happens.
	SlotReleased bool `json:"slot_released" bson:"slot_released"`
	// QRCode carries the scannable payload, which is the booking id
	// verbatim.
	QRCode     string     `json:"qr_code,omitempty" bson:"qr_code,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at" bson:"expires_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty" bson:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at"`
}

// IsExpired reports whether the reservation window has elapsed, either
// because a sweep or scan marked it or because the end time has passed.
func (b *Booking) IsExpired(now time.Time) bool {
	return b.Expired || !now.Before(b.EndTime)
}

// IsTerminal reports whether no further lifecycle transition applies.
func (b *Booking) IsTerminal() bool {
	switch b.Status {
	case BookingCompleted, BookingCancelled:
		return true
	case BookingVerified:
		return b.Expired
	}
	return false
}

// CanBeCancelled reports whether the booking is still in a state a user
// may cancel from.
func (b *Booking) CanBeCancelled() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}

// DisplayState derives the presentation state for a booking. It never
// mutates the booking.
func (b *Booking) DisplayState(now time.Time) string {
	if b.Status == BookingCancelled {
		return "cancelled"
	}

	expired := b.IsExpired(now)
	switch {
	case b.Status == BookingVerified && expired:
		return "verified & expired"
	case b.Status == BookingVerified:
		return "verified"
	case expired:
		return "expired"
	}
	return string(b.Status)
}
