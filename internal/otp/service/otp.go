package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"voltbook/internal/otp/repository"
	"voltbook/pkg/config"
	apperrors "voltbook/pkg/errors"
	"voltbook/pkg/kafka"
	"voltbook/pkg/model"
	"voltbook/pkg/sanitizer"

	"github.com/go-playground/validator/v10"
)

const eventSource = "bookings"

// EventEmailOTP is the event type the external notifier matches on to
// render and send the OTP email.
const EventEmailOTP = "notification.email.otp"

// EmailEvent is the payload published on the notification emails topic.
// Actual SMTP delivery happens in the notifier service that consumes it.
type EmailEvent struct {
	To        string    `json:"to"`
	Template  string    `json:"template"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// EventPublisher abstracts the Kafka producer so tests can capture
// published events.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type OTPService interface {
	Send(ctx context.Context, email string) error
	Check(ctx context.Context, email string, code string) error
}

type otpService struct {
	repo     repository.OTPRepository
	events   EventPublisher
	validate *validator.Validate
	cfg      *config.Config
}

func NewOTPService(repo repository.OTPRepository, events EventPublisher, cfg *config.Config) OTPService {
	return &otpService{
		repo:     repo,
		events:   events,
		validate: validator.New(),
		cfg:      cfg,
	}
}

// Send issues a fresh six digit code, invalidating any earlier codes for
// the same address, and hands delivery to the notifier via Kafka.
func (s *otpService) Send(ctx context.Context, email string) error {
	email = sanitizer.NormalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return apperrors.InvalidInput("A valid email address is required")
	}

	code, err := generateCode()
	if err != nil {
		return apperrors.Internal("Failed to generate OTP code", err)
	}

	if err := s.repo.DeleteByEmail(ctx, email); err != nil {
		return apperrors.Internal("Failed to invalidate previous OTP codes", err)
	}

	otp := &model.OTPCode{
		Email:     email,
		Code:      code,
		ExpiresAt: time.Now().UTC().Add(s.cfg.OTPTTL),
	}
	if err := s.repo.Create(ctx, otp); err != nil {
		return apperrors.Internal("Failed to store OTP code", err)
	}

	if s.events != nil {
		msg := kafka.NewMessage().
			WithKey(email).
			WithValue(EmailEvent{
				To:        email,
				Template:  "otp",
				Code:      code,
				ExpiresAt: otp.ExpiresAt,
			}).
			WithEventType(EventEmailOTP).
			WithSource(eventSource).
			WithSchemaVersion("1").
			Build()

		if err := s.events.Publish(ctx, msg); err != nil {
			s.cfg.Log.Error("Failed to publish OTP email event", "error", err)
			return apperrors.Unavailable("OTP delivery")
		}
	}

	s.cfg.Log.Info("OTP code issued", "email", email, "expires_at", otp.ExpiresAt)
	return nil
}

// Check consumes a code. A matching code works exactly once.
func (s *otpService) Check(ctx context.Context, email string, code string) error {
	email = sanitizer.NormalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return apperrors.InvalidInput("A valid email address is required")
	}
	if err := s.validate.Var(code, "required,len=6,numeric"); err != nil {
		return apperrors.InvalidInput("OTP code must be 6 digits")
	}

	if err := s.repo.Consume(ctx, email, code); err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return apperrors.Unauthorized("Invalid or expired OTP code")
		}
		return apperrors.Internal("Failed to check OTP code", err)
	}

	s.cfg.Log.Info("OTP code verified", "email", email)
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
