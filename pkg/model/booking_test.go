package model

import (
	"testing"
	"time"
)

func TestDisplayState(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		booking Booking
		want    string
	}{
		{
			name:    "cancelled wins over everything",
			booking: Booking{Status: BookingCancelled, Expired: true, EndTime: now.Add(-time.Hour)},
			want:    "cancelled",
		},
		{
			name:    "verified and past end time",
			booking: Booking{Status: BookingVerified, EndTime: now.Add(-time.Minute)},
			want:    "verified & expired",
		},
		{
			name:    "verified with expired flag set",
			booking: Booking{Status: BookingVerified, Expired: true, EndTime: now.Add(time.Hour)},
			want:    "verified & expired",
		},
		{
			name:    "verified inside the window",
			booking: Booking{Status: BookingVerified, EndTime: now.Add(time.Hour)},
			want:    "verified",
		},
		{
			name:    "confirmed past end time",
			booking: Booking{Status: BookingConfirmed, EndTime: now.Add(-time.Minute)},
			want:    "expired",
		},
		{
			name:    "confirmed inside the window",
			booking: Booking{Status: BookingConfirmed, EndTime: now.Add(time.Hour)},
			want:    "confirmed",
		},
		{
			name:    "completed after sweep",
			booking: Booking{Status: BookingCompleted, Expired: true, EndTime: now.Add(-time.Hour)},
			want:    "expired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.booking.DisplayState(now); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	b := Booking{Status: BookingConfirmed, EndTime: now.Add(time.Hour)}
	if b.IsExpired(now) {
		t.Error("booking inside its window should not be expired")
	}

	b.EndTime = now
	if !b.IsExpired(now) {
		t.Error("booking at its end time should be expired")
	}

	b = Booking{Status: BookingConfirmed, Expired: true, EndTime: now.Add(time.Hour)}
	if !b.IsExpired(now) {
		t.Error("expired flag should win regardless of end time")
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name    string
		booking Booking
		want    bool
	}{
		{"pending", Booking{Status: BookingPending}, false},
		{"confirmed", Booking{Status: BookingConfirmed}, false},
		{"verified before expiry", Booking{Status: BookingVerified}, false},
		{"verified after expiry", Booking{Status: BookingVerified, Expired: true}, true},
		{"completed", Booking{Status: BookingCompleted}, true},
		{"cancelled", Booking{Status: BookingCancelled}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.booking.IsTerminal(); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanBeCancelled(t *testing.T) {
	for _, status := range []BookingStatus{BookingPending, BookingConfirmed} {
		if !(&Booking{Status: status}).CanBeCancelled() {
			t.Errorf("%s booking should be cancellable", status)
		}
	}
	for _, status := range []BookingStatus{BookingVerified, BookingCompleted, BookingCancelled} {
		if (&Booking{Status: status}).CanBeCancelled() {
			t.Errorf("%s booking should not be cancellable", status)
		}
	}
}
