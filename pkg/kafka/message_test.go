package kafka

import (
	"testing"
)

func TestMessageBuilder(t *testing.T) {
	type payload struct {
		BookingID string `json:"booking_id"`
	}

	msg := NewMessage().
		WithKey("64b5f0c2e4b0a1d2c3e4f5a6").
		WithValue(payload{BookingID: "64b5f0c2e4b0a1d2c3e4f5a6"}).
		WithEventType("booking.created").
		WithSource("bookings").
		WithSchemaVersion("1").
		Build()

	if msg.Key != "64b5f0c2e4b0a1d2c3e4f5a6" {
		t.Errorf("unexpected key %q", msg.Key)
	}
	if msg.GetEventType() != "booking.created" {
		t.Errorf("unexpected event type %q", msg.GetEventType())
	}
	if msg.GetEventID() == "" {
		t.Error("expected Build to assign an event id")
	}
	if ts, ok := msg.GetHeader(HeaderTimestamp); !ok || ts == "" {
		t.Error("expected Build to stamp the timestamp header")
	}
	if source, _ := msg.GetHeader(HeaderSource); source != "bookings" {
		t.Errorf("unexpected source %q", source)
	}

	var decoded payload
	if err := msg.DecodeValue(&decoded); err != nil {
		t.Fatalf("failed to decode value: %v", err)
	}
	if decoded.BookingID != "64b5f0c2e4b0a1d2c3e4f5a6" {
		t.Errorf("unexpected decoded payload: %+v", decoded)
	}
}

func TestMessageBuilder_ExplicitEventID(t *testing.T) {
	msg := NewMessage().
		WithKey("k").
		WithRawValue([]byte(`{}`)).
		WithEventID("fixed-id").
		Build()

	if msg.GetEventID() != "fixed-id" {
		t.Errorf("expected explicit event id preserved, got %q", msg.GetEventID())
	}
}
