package service

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "voltbook/internal/bookings/errors"
	stationserrors "voltbook/internal/stations/errors"
	"voltbook/internal/bookings/validator"
	"voltbook/pkg/config"
	mongotx "voltbook/pkg/db/mongo"
	apperrors "voltbook/pkg/errors"
	"voltbook/pkg/kafka"
	"voltbook/pkg/logger"
	"voltbook/pkg/middleware"
	"voltbook/pkg/model"
)

const (
	testStationID = "507f1f77bcf86cd799439011"
	testBookingID = "64b5f0c2e4b0a1d2c3e4f5a6"
)

// Mock booking repository for testing
type mockBookingRepo struct {
	createFunc        func(ctx context.Context, booking *model.Booking) error
	findByIDFunc      func(ctx context.Context, id string) (*model.Booking, error)
	markVerifiedFunc  func(ctx context.Context, id string, now time.Time) (*model.Booking, error)
	expireFunc        func(ctx context.Context, id string, now time.Time) (bool, error)
	cancelFunc        func(ctx context.Context, id string, userID string) (*model.Booking, error)
	updatePaymentFunc func(ctx context.Context, id string, payment model.PaymentStatus, status model.BookingStatus) error
}

func (m *mockBookingRepo) Create(ctx context.Context, booking *model.Booking) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, booking)
	}
	booking.ID = testBookingID
	return nil
}

func (m *mockBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepo) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	return []*model.Booking{}, nil
}

func (m *mockBookingRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepo) FindByStation(ctx context.Context, stationID string, limit int, offset int64) ([]*model.Booking, error) {
	return []*model.Booking{}, nil
}

func (m *mockBookingRepo) CountByStation(ctx context.Context, stationID string) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepo) MarkVerified(ctx context.Context, id string, now time.Time) (*model.Booking, error) {
	if m.markVerifiedFunc != nil {
		return m.markVerifiedFunc(ctx, id, now)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepo) ExpireAndComplete(ctx context.Context, id string, now time.Time) (bool, error) {
	if m.expireFunc != nil {
		return m.expireFunc(ctx, id, now)
	}
	return false, nil
}

func (m *mockBookingRepo) Cancel(ctx context.Context, id string, userID string) (*model.Booking, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, id, userID)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepo) SetQRCode(ctx context.Context, id string, code string) error {
	return nil
}

func (m *mockBookingRepo) UpdatePaymentStatus(ctx context.Context, id string, payment model.PaymentStatus, status model.BookingStatus) error {
	if m.updatePaymentFunc != nil {
		return m.updatePaymentFunc(ctx, id, payment, status)
	}
	return nil
}

func (m *mockBookingRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

// Mock station repository for testing
type mockStationRepo struct {
	findByIDFunc   func(ctx context.Context, id string) (*model.Station, error)
	decrementFunc  func(ctx context.Context, id string) (bool, error)
	incrementFunc  func(ctx context.Context, id string) (bool, error)
	decrementCalls int
	incrementCalls int
}

func (m *mockStationRepo) Create(ctx context.Context, station *model.Station) error { return nil }

func (m *mockStationRepo) FindByID(ctx context.Context, id string) (*model.Station, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return operationalStation(), nil
}

func (m *mockStationRepo) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Station, error) {
	return nil, nil
}

func (m *mockStationRepo) FindByCreator(ctx context.Context, creatorID string, limit int, offset int64) ([]*model.Station, error) {
	return nil, nil
}

func (m *mockStationRepo) CountByCreator(ctx context.Context, creatorID string) (int64, error) {
	return 0, nil
}

func (m *mockStationRepo) Update(ctx context.Context, id string, station *model.Station) (*mongo.UpdateResult, error) {
	return nil, nil
}

func (m *mockStationRepo) Delete(ctx context.Context, id string) error { return nil }

func (m *mockStationRepo) Count(ctx context.Context) (int64, error) { return 0, nil }

func (m *mockStationRepo) DecrementSlots(ctx context.Context, id string) (bool, error) {
	m.decrementCalls++
	if m.decrementFunc != nil {
		return m.decrementFunc(ctx, id)
	}
	return true, nil
}

func (m *mockStationRepo) IncrementSlots(ctx context.Context, id string) (bool, error) {
	m.incrementCalls++
	if m.incrementFunc != nil {
		return m.incrementFunc(ctx, id)
	}
	return true, nil
}

func (m *mockStationRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

// Event publisher that records published messages
type mockPublisher struct {
	messages []kafka.Message
}

func (m *mockPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DefaultCurrency:       "INR",
		MinBookingDurationMin: 15,
		MaxBookingDurationMin: 480,
		Log: logger.New(logger.Config{
			Level:   logger.ERROR,
			Format:  logger.JSON,
			Service: "test",
		}),
	}
}

func newTestService(t *testing.T, bookings *mockBookingRepo, stations *mockStationRepo, events *mockPublisher) BookingService {
	t.Helper()
	cfg := newTestConfig(t)
	v := validator.NewBookingValidator(cfg.Log, cfg.MinBookingDurationMin, cfg.MaxBookingDurationMin)
	return NewBookingService(bookings, stations, v, events, cfg)
}

func operationalStation() *model.Station {
	return &model.Station{
		ID:             testStationID,
		Name:           "Indiranagar Hub",
		Address:        "100 Feet Road",
		TotalSlots:     4,
		AvailableSlots: 4,
		Rates:          model.Rates{PerHour: 120, Currency: "INR"},
		OperatingHours: model.OperatingHours{Open: "06:00", Close: "23:00"},
		Status:         model.StationOperational,
		CreatedBy:      "admin-1",
	}
}

func userIdentity() middleware.Identity {
	return middleware.Identity{UserID: "user-1", Role: middleware.RoleUser}
}

func adminIdentity() middleware.Identity {
	return middleware.Identity{UserID: "admin-1", Role: middleware.RoleAdmin}
}

func TestCreate_Success(t *testing.T) {
	bookings := &mockBookingRepo{}
	stations := &mockStationRepo{}
	events := &mockPublisher{}
	svc := newTestService(t, bookings, stations, events)

	start := time.Now().UTC().Add(1 * time.Hour).Truncate(time.Minute)
	booking, err := svc.Create(context.Background(), userIdentity(), &CreateBookingRequest{
		StationID:   testStationID,
		StartTime:   start,
		DurationMin: 90,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if booking.Status != model.BookingConfirmed {
		t.Errorf("expected status confirmed, got %s", booking.Status)
	}
	if booking.Payment != model.PaymentCompleted {
		t.Errorf("expected payment completed, got %s", booking.Payment)
	}
	if booking.QRCode != booking.ID {
		t.Errorf("expected QR code to be the booking id, got %q", booking.QRCode)
	}
	if want := start.Add(90 * time.Minute); !booking.EndTime.Equal(want) {
		t.Errorf("expected end time %v, got %v", want, booking.EndTime)
	}
	// 120/hour for 90 minutes
	if booking.TotalCost != 180 {
		t.Errorf("expected total cost 180, got %v", booking.TotalCost)
	}
	if stations.decrementCalls != 1 {
		t.Errorf("expected one slot decrement, got %d", stations.decrementCalls)
	}
	if len(events.messages) != 1 || events.messages[0].GetEventType() != EventBookingCreated {
		t.Errorf("expected one booking.created event, got %v", events.messages)
	}
}

func TestCreate_SaturatedLedgerStillBooks(t *testing.T) {
	bookings := &mockBookingRepo{}
	stations := &mockStationRepo{
		decrementFunc: func(ctx context.Context, id string) (bool, error) {
			return false, nil // counter already at zero
		},
	}
	svc := newTestService(t, bookings, stations, &mockPublisher{})

	booking, err := svc.Create(context.Background(), userIdentity(), &CreateBookingRequest{
		StationID:   testStationID,
		StartTime:   time.Now().UTC().Add(time.Hour),
		DurationMin: 60,
	})
	if err != nil {
		t.Fatalf("expected booking to succeed with saturated counter, got %v", err)
	}
	if booking.ID == "" {
		t.Error("expected booking to be created")
	}
}

func TestCreate_DurationTooShort(t *testing.T) {
	svc := newTestService(t, &mockBookingRepo{}, &mockStationRepo{}, &mockPublisher{})

	_, err := svc.Create(context.Background(), userIdentity(), &CreateBookingRequest{
		StationID:   testStationID,
		StartTime:   time.Now().UTC().Add(time.Hour),
		DurationMin: 10,
	})
	if err == nil {
		t.Fatal("expected validation error for 10 minute duration")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeValidation {
		t.Errorf("expected validation error code, got %s", appErr.Code)
	}
}

func TestCreate_UnknownStation(t *testing.T) {
	stations := &mockStationRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Station, error) {
			return nil, stationserrors.ErrNotFound
		},
	}
	svc := newTestService(t, &mockBookingRepo{}, stations, &mockPublisher{})

	_, err := svc.Create(context.Background(), userIdentity(), &CreateBookingRequest{
		StationID:   testStationID,
		StartTime:   time.Now().UTC().Add(time.Hour),
		DurationMin: 60,
	})
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCreate_StationNotBookable(t *testing.T) {
	stations := &mockStationRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Station, error) {
			station := operationalStation()
			station.Status = model.StationMaintenance
			return station, nil
		},
	}
	svc := newTestService(t, &mockBookingRepo{}, stations, &mockPublisher{})

	_, err := svc.Create(context.Background(), userIdentity(), &CreateBookingRequest{
		StationID:   testStationID,
		StartTime:   time.Now().UTC().Add(time.Hour),
		DurationMin: 60,
	})
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected conflict for station in maintenance, got %v", err)
	}
}

// confirmedBookingLookup backs the FindByID read the verify path does
// for its ownership check.
func confirmedBookingLookup(ctx context.Context, id string) (*model.Booking, error) {
	return &model.Booking{
		ID:        id,
		UserID:    "user-1",
		StationID: testStationID,
		Status:    model.BookingConfirmed,
		Payment:   model.PaymentCompleted,
	}, nil
}

func TestVerify_Success(t *testing.T) {
	verifiedAt := time.Now().UTC()
	bookings := &mockBookingRepo{
		findByIDFunc: confirmedBookingLookup,
		markVerifiedFunc: func(ctx context.Context, id string, now time.Time) (*model.Booking, error) {
			return &model.Booking{
				ID:         id,
				UserID:     "user-1",
				StationID:  testStationID,
				Status:     model.BookingVerified,
				Payment:    model.PaymentCompleted,
				Expired:    true,
				VerifiedAt: &verifiedAt,
				EndTime:    verifiedAt.Add(time.Hour),
			}, nil
		},
	}
	stations := &mockStationRepo{}
	events := &mockPublisher{}
	svc := newTestService(t, bookings, stations, events)

	view, err := svc.Verify(context.Background(), adminIdentity(), testBookingID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if view.Status != model.BookingVerified {
		t.Errorf("expected verified status, got %s", view.Status)
	}
	// Slot release happens at expiry, never at scan time.
	if stations.incrementCalls != 0 {
		t.Errorf("expected no slot increment on verify, got %d", stations.incrementCalls)
	}
	if len(events.messages) != 1 || events.messages[0].GetEventType() != EventBookingVerified {
		t.Errorf("expected one booking.verified event")
	}
}

func TestVerify_SecondScanConflicts(t *testing.T) {
	bookings := &mockBookingRepo{
		findByIDFunc: confirmedBookingLookup,
		markVerifiedFunc: func(ctx context.Context, id string, now time.Time) (*model.Booking, error) {
			return nil, bookingserrors.ErrAlreadyVerified
		},
	}
	svc := newTestService(t, bookings, &mockStationRepo{}, &mockPublisher{})

	_, err := svc.Verify(context.Background(), adminIdentity(), testBookingID)
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected conflict on second scan, got %v", err)
	}
}

func TestVerify_RequiresAdmin(t *testing.T) {
	svc := newTestService(t, &mockBookingRepo{}, &mockStationRepo{}, &mockPublisher{})

	_, err := svc.Verify(context.Background(), userIdentity(), testBookingID)
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeForbidden {
		t.Errorf("expected forbidden for non-admin, got %v", err)
	}
}

func TestVerify_ForeignStationForbidden(t *testing.T) {
	markVerifiedCalled := false
	bookings := &mockBookingRepo{
		findByIDFunc: confirmedBookingLookup,
		markVerifiedFunc: func(ctx context.Context, id string, now time.Time) (*model.Booking, error) {
			markVerifiedCalled = true
			return &model.Booking{ID: id, Status: model.BookingVerified, Expired: true}, nil
		},
	}
	// The station belongs to admin-1; admin-2 is scanning.
	svc := newTestService(t, bookings, &mockStationRepo{}, &mockPublisher{})

	otherAdmin := middleware.Identity{UserID: "admin-2", Role: middleware.RoleAdmin}
	_, err := svc.Verify(context.Background(), otherAdmin, testBookingID)
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeForbidden {
		t.Errorf("expected forbidden for another admin's station, got %v", err)
	}
	if markVerifiedCalled {
		t.Error("expected no mutation when the ownership check fails")
	}
}

func TestVerify_EnvelopePayload(t *testing.T) {
	var receivedID string
	bookings := &mockBookingRepo{
		findByIDFunc: confirmedBookingLookup,
		markVerifiedFunc: func(ctx context.Context, id string, now time.Time) (*model.Booking, error) {
			receivedID = id
			return &model.Booking{ID: id, Status: model.BookingVerified, Expired: true}, nil
		},
	}
	svc := newTestService(t, bookings, &mockStationRepo{}, &mockPublisher{})

	payload := `{"bookingId":"` + testBookingID + `","stationName":"Indiranagar Hub"}`
	if _, err := svc.Verify(context.Background(), adminIdentity(), payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if receivedID != testBookingID {
		t.Errorf("expected id %s from envelope, got %s", testBookingID, receivedID)
	}
}

func TestCancel_ReleasesSlot(t *testing.T) {
	bookings := &mockBookingRepo{
		cancelFunc: func(ctx context.Context, id string, userID string) (*model.Booking, error) {
			return &model.Booking{
				ID:        id,
				UserID:    userID,
				StationID: testStationID,
				Status:    model.BookingCancelled,
				Expired:   true,
			}, nil
		},
	}
	stations := &mockStationRepo{}
	events := &mockPublisher{}
	svc := newTestService(t, bookings, stations, events)

	view, err := svc.Cancel(context.Background(), userIdentity(), testBookingID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if view.DisplayState != "cancelled" {
		t.Errorf("expected display state cancelled, got %s", view.DisplayState)
	}
	if stations.incrementCalls != 1 {
		t.Errorf("expected one slot increment on cancel, got %d", stations.incrementCalls)
	}
}

func TestCancel_TerminalBookingConflicts(t *testing.T) {
	bookings := &mockBookingRepo{
		cancelFunc: func(ctx context.Context, id string, userID string) (*model.Booking, error) {
			return nil, bookingserrors.ErrNotCancellable
		},
	}
	stations := &mockStationRepo{}
	svc := newTestService(t, bookings, stations, &mockPublisher{})

	_, err := svc.Cancel(context.Background(), userIdentity(), testBookingID)
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected conflict, got %v", err)
	}
	if stations.incrementCalls != 0 {
		t.Errorf("expected no slot increment on failed cancel, got %d", stations.incrementCalls)
	}
}

func TestGetByID_OwnershipEnforced(t *testing.T) {
	bookings := &mockBookingRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, UserID: "someone-else", Status: model.BookingConfirmed}, nil
		},
	}
	svc := newTestService(t, bookings, &mockStationRepo{}, &mockPublisher{})

	_, err := svc.GetByID(context.Background(), userIdentity(), testBookingID)
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeForbidden {
		t.Errorf("expected forbidden for foreign booking, got %v", err)
	}

	// Admins can read anything.
	if _, err := svc.GetByID(context.Background(), adminIdentity(), testBookingID); err != nil {
		t.Errorf("expected admin read to succeed, got %v", err)
	}
}

func TestRecordPaymentOutcome_FailureCancelsAndReleases(t *testing.T) {
	var payment model.PaymentStatus
	var status model.BookingStatus
	bookings := &mockBookingRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{
				ID:        id,
				UserID:    "user-1",
				StationID: testStationID,
				Status:    model.BookingConfirmed,
				Payment:   model.PaymentPending,
			}, nil
		},
		updatePaymentFunc: func(ctx context.Context, id string, p model.PaymentStatus, s model.BookingStatus) error {
			payment, status = p, s
			return nil
		},
	}
	stations := &mockStationRepo{}
	svc := newTestService(t, bookings, stations, &mockPublisher{})

	err := svc.RecordPaymentOutcome(context.Background(), userIdentity(), testBookingID, model.PaymentFailed)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if payment != model.PaymentFailed || status != model.BookingCancelled {
		t.Errorf("expected failed payment to cancel booking, got payment=%s status=%s", payment, status)
	}
	if stations.incrementCalls != 1 {
		t.Errorf("expected one slot increment on failed payment, got %d", stations.incrementCalls)
	}
}

func TestRecordPaymentOutcome_SweptBookingConflicts(t *testing.T) {
	// The pre-read still sees a confirmed booking, but the sweeper wins
	// before the write: the conditional update matches nothing.
	bookings := &mockBookingRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{
				ID:        id,
				UserID:    "user-1",
				StationID: testStationID,
				Status:    model.BookingConfirmed,
				Payment:   model.PaymentPending,
			}, nil
		},
		updatePaymentFunc: func(ctx context.Context, id string, p model.PaymentStatus, s model.BookingStatus) error {
			return bookingserrors.ErrNotCancellable
		},
	}
	stations := &mockStationRepo{}
	svc := newTestService(t, bookings, stations, &mockPublisher{})

	err := svc.RecordPaymentOutcome(context.Background(), userIdentity(), testBookingID, model.PaymentFailed)
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected conflict when the booking is already terminal, got %v", err)
	}
	if stations.incrementCalls != 0 {
		t.Errorf("expected no slot increment after a lost payment race, got %d", stations.incrementCalls)
	}
}

func TestListByUser_RequiresAdmin(t *testing.T) {
	svc := newTestService(t, &mockBookingRepo{}, &mockStationRepo{}, &mockPublisher{})

	_, _, err := svc.ListByUser(context.Background(), userIdentity(), "user-2", 10, 0)
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeForbidden {
		t.Errorf("expected forbidden for non-admin, got %v", err)
	}

	if _, _, err := svc.ListByUser(context.Background(), adminIdentity(), "user-2", 10, 0); err != nil {
		t.Errorf("expected admin listing to succeed, got %v", err)
	}
}
