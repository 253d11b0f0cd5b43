package model

import "time"

// OTPCode is a single-use email verification code. The collection carries
// a TTL index on expires_at so stale codes disappear without a sweeper.
type OTPCode struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty"`
	Email     string    `json:"email" bson:"email" validate:"required,email"`
	Code      string    `json:"code" bson:"code" validate:"required,len=6,numeric"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
