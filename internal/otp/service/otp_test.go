package service

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"voltbook/internal/otp/repository"
	"voltbook/pkg/config"
	apperrors "voltbook/pkg/errors"
	"voltbook/pkg/kafka"
	"voltbook/pkg/logger"
	"voltbook/pkg/model"
)

type mockOTPRepo struct {
	createFunc  func(ctx context.Context, otp *model.OTPCode) error
	consumeFunc func(ctx context.Context, email string, code string) error
	deleted     []string
}

func (m *mockOTPRepo) Create(ctx context.Context, otp *model.OTPCode) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, otp)
	}
	return nil
}

func (m *mockOTPRepo) Consume(ctx context.Context, email string, code string) error {
	if m.consumeFunc != nil {
		return m.consumeFunc(ctx, email, code)
	}
	return repository.ErrCodeNotFound
}

func (m *mockOTPRepo) DeleteByEmail(ctx context.Context, email string) error {
	m.deleted = append(m.deleted, email)
	return nil
}

type mockPublisher struct {
	messages []kafka.Message
}

func (m *mockPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

func newTestService(repo *mockOTPRepo, events *mockPublisher) OTPService {
	cfg := &config.Config{
		OTPTTL: 5 * time.Minute,
		Log: logger.New(logger.Config{
			Level:   logger.ERROR,
			Format:  logger.JSON,
			Service: "test",
		}),
	}
	return NewOTPService(repo, events, cfg)
}

func TestSend_IssuesSixDigitCode(t *testing.T) {
	var stored *model.OTPCode
	repo := &mockOTPRepo{
		createFunc: func(ctx context.Context, otp *model.OTPCode) error {
			stored = otp
			return nil
		},
	}
	events := &mockPublisher{}
	svc := newTestService(repo, events)

	if err := svc.Send(context.Background(), "  Rider@Example.COM "); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if stored == nil {
		t.Fatal("expected code to be stored")
	}
	if stored.Email != "rider@example.com" {
		t.Errorf("expected normalized email, got %q", stored.Email)
	}
	if !regexp.MustCompile(`^\d{6}$`).MatchString(stored.Code) {
		t.Errorf("expected a 6 digit code, got %q", stored.Code)
	}
	// Old codes for the address go away before a new one is issued.
	if len(repo.deleted) != 1 || repo.deleted[0] != "rider@example.com" {
		t.Errorf("expected previous codes invalidated, got %v", repo.deleted)
	}

	if len(events.messages) != 1 {
		t.Fatalf("expected one email event, got %d", len(events.messages))
	}
	msg := events.messages[0]
	if msg.GetEventType() != EventEmailOTP {
		t.Errorf("expected event type %s, got %s", EventEmailOTP, msg.GetEventType())
	}
	var payload EmailEvent
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		t.Fatalf("failed to decode event payload: %v", err)
	}
	if payload.To != "rider@example.com" || payload.Template != "otp" || payload.Code != stored.Code {
		t.Errorf("unexpected email event payload: %+v", payload)
	}
}

func TestSend_RejectsInvalidEmail(t *testing.T) {
	svc := newTestService(&mockOTPRepo{}, &mockPublisher{})

	err := svc.Send(context.Background(), "not-an-email")
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInvalidInput {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestCheck_ConsumesCodeOnce(t *testing.T) {
	consumed := false
	repo := &mockOTPRepo{
		consumeFunc: func(ctx context.Context, email string, code string) error {
			if consumed {
				return repository.ErrCodeNotFound
			}
			consumed = true
			return nil
		},
	}
	svc := newTestService(repo, &mockPublisher{})

	if err := svc.Check(context.Background(), "rider@example.com", "123456"); err != nil {
		t.Fatalf("expected first check to pass, got %v", err)
	}

	err := svc.Check(context.Background(), "rider@example.com", "123456")
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeUnauthorized {
		t.Errorf("expected second check to be rejected, got %v", err)
	}
}

func TestCheck_RejectsMalformedCode(t *testing.T) {
	svc := newTestService(&mockOTPRepo{}, &mockPublisher{})

	for _, code := range []string{"", "12345", "1234567", "12345a"} {
		err := svc.Check(context.Background(), "rider@example.com", code)
		if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInvalidInput {
			t.Errorf("code %q: expected invalid input, got %v", code, err)
		}
	}
}

func TestCheck_WrongCodeUnauthorized(t *testing.T) {
	svc := newTestService(&mockOTPRepo{}, &mockPublisher{})

	err := svc.Check(context.Background(), "rider@example.com", "000000")
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeUnauthorized {
		t.Errorf("expected unauthorized for unknown code, got %v", err)
	}
}
