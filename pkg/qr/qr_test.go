package qr

import (
	"testing"
	"time"

	apperrors "voltbook/pkg/errors"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{
			name:    "bare booking id",
			payload: "64b5f0c2e4b0a1d2c3e4f5a6",
			want:    "64b5f0c2e4b0a1d2c3e4f5a6",
		},
		{
			name:    "bare id with surrounding whitespace",
			payload: "  64b5f0c2e4b0a1d2c3e4f5a6\n",
			want:    "64b5f0c2e4b0a1d2c3e4f5a6",
		},
		{
			name:    "json envelope",
			payload: `{"bookingId":"64b5f0c2e4b0a1d2c3e4f5a6","stationName":"Indiranagar Hub"}`,
			want:    "64b5f0c2e4b0a1d2c3e4f5a6",
		},
		{
			name:    "envelope missing bookingId",
			payload: `{"stationName":"Indiranagar Hub"}`,
			wantErr: true,
		},
		{
			name:    "malformed json",
			payload: `{"bookingId":`,
			wantErr: true,
		},
		{
			name:    "empty payload",
			payload: "   ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.payload)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInvalidInput {
					t.Errorf("expected invalid input, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	id := "64b5f0c2e4b0a1d2c3e4f5a6"

	got, err := Decode(Encode(id))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != id {
		t.Errorf("got %q, want %q", got, id)
	}
}

func TestEncodeEnvelopeRoundTrip(t *testing.T) {
	id := "64b5f0c2e4b0a1d2c3e4f5a6"
	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	payload, err := EncodeEnvelope(id, "Indiranagar Hub", start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := Decode(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != id {
		t.Errorf("got %q, want %q", got, id)
	}
}
