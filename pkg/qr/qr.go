// Package qr handles the payload carried inside a booking's scannable
// code. Rendering and camera scanning are external widgets; this package
// only translates between payload text and booking ids.
package qr

import (
	"encoding/json"
	"strings"
	"time"

	apperrors "voltbook/pkg/errors"
)

const timeLayout = time.RFC3339

// Envelope is the display-oriented JSON payload some clients encode
// instead of the bare booking id.
type Envelope struct {
	BookingID   string `json:"bookingId"`
	StationName string `json:"stationName,omitempty"`
	StartTime   string `json:"startTime,omitempty"`
	EndTime     string `json:"endTime,omitempty"`
}

// Encode returns the canonical payload for a booking: the id verbatim.
func Encode(bookingID string) string {
	return bookingID
}

// EncodeEnvelope returns the JSON envelope form of the payload.
func EncodeEnvelope(bookingID, stationName string, start, end time.Time) (string, error) {
	data, err := json.Marshal(Envelope{
		BookingID:   bookingID,
		StationName: stationName,
		StartTime:   start.UTC().Format(timeLayout),
		EndTime:     end.UTC().Format(timeLayout),
	})
	if err != nil {
		return "", apperrors.Internal("Failed to encode QR payload", err)
	}
	return string(data), nil
}

// Decode extracts the booking id from a scanned payload. Accepts either a
// bare id or a JSON envelope containing a bookingId field.
func Decode(payload string) (string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", apperrors.InvalidInput("QR payload cannot be empty")
	}

	if !strings.HasPrefix(payload, "{") {
		return payload, nil
	}

	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return "", apperrors.InvalidInput("QR payload is neither a booking id nor a valid JSON envelope")
	}
	if strings.TrimSpace(env.BookingID) == "" {
		return "", apperrors.InvalidInput("QR payload envelope is missing bookingId")
	}
	return strings.TrimSpace(env.BookingID), nil
}
