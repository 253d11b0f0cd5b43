package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"voltbook/pkg/config"
	mongotx "voltbook/pkg/db/mongo"
	"voltbook/pkg/kafka"
	"voltbook/pkg/logger"
	"voltbook/pkg/model"
)

type mockBookingRepo struct {
	findDueFunc func(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error)
	expireFunc  func(ctx context.Context, id string, now time.Time) (bool, error)
}

func (m *mockBookingRepo) Create(ctx context.Context, booking *model.Booking) error { return nil }

func (m *mockBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepo) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepo) FindByStation(ctx context.Context, stationID string, limit int, offset int64) ([]*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepo) CountByStation(ctx context.Context, stationID string) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
	if m.findDueFunc != nil {
		return m.findDueFunc(ctx, now, limit)
	}
	return nil, nil
}

func (m *mockBookingRepo) MarkVerified(ctx context.Context, id string, now time.Time) (*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepo) ExpireAndComplete(ctx context.Context, id string, now time.Time) (bool, error) {
	if m.expireFunc != nil {
		return m.expireFunc(ctx, id, now)
	}
	return true, nil
}

func (m *mockBookingRepo) Cancel(ctx context.Context, id string, userID string) (*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepo) SetQRCode(ctx context.Context, id string, code string) error { return nil }

func (m *mockBookingRepo) UpdatePaymentStatus(ctx context.Context, id string, payment model.PaymentStatus, status model.BookingStatus) error {
	return nil
}

func (m *mockBookingRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockStationRepo struct {
	incrementCalls []string
}

func (m *mockStationRepo) Create(ctx context.Context, station *model.Station) error { return nil }

func (m *mockStationRepo) FindByID(ctx context.Context, id string) (*model.Station, error) {
	return nil, nil
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
	return true, nil
}

func (m *mockStationRepo) IncrementSlots(ctx context.Context, id string) (bool, error) {
	m.incrementCalls = append(m.incrementCalls, id)
	return true, nil
}

func (m *mockStationRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockPublisher struct {
	messages []kafka.Message
}

func (m *mockPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

func newTestSweeper(bookings *mockBookingRepo, stations *mockStationRepo, events *mockPublisher) SweeperService {
	cfg := &config.Config{
		Log: logger.New(logger.Config{
			Level:   logger.ERROR,
			Format:  logger.JSON,
			Service: "test",
		}),
	}
	return NewSweeperService(bookings, stations, events, cfg)
}

func dueBooking(id, stationID string, status model.BookingStatus) *model.Booking {
	return &model.Booking{
		ID:        id,
		UserID:    "user-1",
		StationID: stationID,
		Status:    status,
		// A scan marks verified bookings expired immediately; the slot
		// is still outstanding either way.
		Expired: status == model.BookingVerified,
		EndTime: time.Now().UTC().Add(-10 * time.Minute),
	}
}

func TestRunSweepOnce_ReconcilesDueBookings(t *testing.T) {
	due := []*model.Booking{
		dueBooking("64b5f0c2e4b0a1d2c3e4f5a1", "507f1f77bcf86cd799439011", model.BookingConfirmed),
		dueBooking("64b5f0c2e4b0a1d2c3e4f5a2", "507f1f77bcf86cd799439012", model.BookingVerified),
	}

	calls := 0
	bookings := &mockBookingRepo{
		findDueFunc: func(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
			calls++
			if calls == 1 {
				return due, nil
			}
			return nil, nil
		},
	}
	stations := &mockStationRepo{}
	events := &mockPublisher{}
	sweeper := newTestSweeper(bookings, stations, events)

	report, err := sweeper.RunSweepOnce(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.Scanned != 2 || report.Reconciled != 2 || report.Failed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(stations.incrementCalls) != 2 {
		t.Fatalf("expected 2 slot increments, got %d", len(stations.incrementCalls))
	}
	if stations.incrementCalls[0] != "507f1f77bcf86cd799439011" {
		t.Errorf("slot returned to wrong station: %s", stations.incrementCalls[0])
	}
	if len(events.messages) != 2 {
		t.Fatalf("expected 2 expiry events, got %d", len(events.messages))
	}
	if events.messages[0].GetEventType() != EventBookingExpired {
		t.Errorf("expected %s event, got %s", EventBookingExpired, events.messages[0].GetEventType())
	}
}

// ledgerState is a fake honoring the repository's real filter semantics:
// FindDue and ExpireAndComplete key on slot_released, and a scan leaves a
// verified booking expired but with its slot still outstanding.
type ledgerState struct {
	booking *model.Booking
}

func (l *ledgerState) findDue(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
	b := l.booking
	if b.SlotReleased || b.EndTime.After(now) {
		return nil, nil
	}
	if b.Status != model.BookingConfirmed && b.Status != model.BookingVerified {
		return nil, nil
	}
	copy := *b
	return []*model.Booking{&copy}, nil
}

func (l *ledgerState) expireAndComplete(ctx context.Context, id string, now time.Time) (bool, error) {
	b := l.booking
	if b.ID != id || b.SlotReleased || b.EndTime.After(now) {
		return false, nil
	}
	if b.Status != model.BookingVerified {
		b.Status = model.BookingCompleted
	}
	b.Expired = true
	b.SlotReleased = true
	return true, nil
}

func TestRunSweepOnce_VerifiedBookingStillReturnsSlot(t *testing.T) {
	// State exactly as a QR scan leaves it: verified, expired already
	// set, slot not yet back in the ledger.
	state := &ledgerState{
		booking: &model.Booking{
			ID:        "64b5f0c2e4b0a1d2c3e4f5a1",
			UserID:    "user-1",
			StationID: "507f1f77bcf86cd799439011",
			Status:    model.BookingVerified,
			Expired:   true,
			EndTime:   time.Now().UTC().Add(-10 * time.Minute),
		},
	}
	bookings := &mockBookingRepo{
		findDueFunc: state.findDue,
		expireFunc:  state.expireAndComplete,
	}
	stations := &mockStationRepo{}
	events := &mockPublisher{}
	sweeper := newTestSweeper(bookings, stations, events)

	report, err := sweeper.RunSweepOnce(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.Reconciled != 1 {
		t.Fatalf("expected the verified booking to be reconciled, got %+v", report)
	}
	if len(stations.incrementCalls) != 1 {
		t.Fatalf("expected the scanned booking's slot back in the ledger, got %d increments", len(stations.incrementCalls))
	}
	if state.booking.Status != model.BookingVerified {
		t.Errorf("expected reconciliation to keep the verified status, got %s", state.booking.Status)
	}

	// A second pass finds nothing and must not move the ledger again.
	report, err = sweeper.RunSweepOnce(context.Background())
	if err != nil {
		t.Fatalf("expected no error on second pass, got %v", err)
	}
	if report.Scanned != 0 {
		t.Errorf("expected an empty second pass, got %+v", report)
	}
	if len(stations.incrementCalls) != 1 {
		t.Errorf("expected exactly one increment across both passes, got %d", len(stations.incrementCalls))
	}
}

func TestRunSweepOnce_LostRaceSkipsSlotReturn(t *testing.T) {
	bookings := &mockBookingRepo{
		findDueFunc: func(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
			return []*model.Booking{dueBooking("64b5f0c2e4b0a1d2c3e4f5a1", "507f1f77bcf86cd799439011", model.BookingConfirmed)}, nil
		},
		expireFunc: func(ctx context.Context, id string, now time.Time) (bool, error) {
			// Another sweeper already flipped the expired flag.
			return false, nil
		},
	}
	stations := &mockStationRepo{}
	events := &mockPublisher{}
	sweeper := newTestSweeper(bookings, stations, events)

	report, err := sweeper.RunSweepOnce(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.Failed != 0 {
		t.Errorf("a lost race is not a failure, got %+v", report)
	}
	if len(stations.incrementCalls) != 0 {
		t.Errorf("expected no slot increment after lost race, got %d", len(stations.incrementCalls))
	}
	if len(events.messages) != 0 {
		t.Errorf("expected no expiry event after lost race, got %d", len(events.messages))
	}
}

func TestRunSweepOnce_FailureDoesNotAbortPass(t *testing.T) {
	due := []*model.Booking{
		dueBooking("64b5f0c2e4b0a1d2c3e4f5a1", "507f1f77bcf86cd799439011", model.BookingConfirmed),
		dueBooking("64b5f0c2e4b0a1d2c3e4f5a2", "507f1f77bcf86cd799439012", model.BookingConfirmed),
	}

	calls := 0
	bookings := &mockBookingRepo{
		findDueFunc: func(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
			calls++
			if calls == 1 {
				return due, nil
			}
			return nil, nil
		},
	}
	bookings.expireFunc = func(ctx context.Context, id string, now time.Time) (bool, error) {
		if id == due[0].ID {
			return false, errors.New("write conflict")
		}
		return true, nil
	}
	stations := &mockStationRepo{}
	sweeper := newTestSweeper(bookings, stations, &mockPublisher{})

	report, err := sweeper.RunSweepOnce(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.Scanned != 2 || report.Reconciled != 1 || report.Failed != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(stations.incrementCalls) != 1 {
		t.Errorf("expected 1 slot increment, got %d", len(stations.incrementCalls))
	}
}

func TestRunSweepOnce_FullyFailingBatchBailsOut(t *testing.T) {
	// A full batch where every reconcile fails must not loop forever.
	batch := make([]*model.Booking, sweepBatchSize)
	for i := range batch {
		batch[i] = dueBooking("64b5f0c2e4b0a1d2c3e4f5a1", "507f1f77bcf86cd799439011", model.BookingConfirmed)
	}

	bookings := &mockBookingRepo{
		findDueFunc: func(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
			return batch, nil
		},
		expireFunc: func(ctx context.Context, id string, now time.Time) (bool, error) {
			return false, errors.New("write conflict")
		},
	}
	sweeper := newTestSweeper(bookings, &mockStationRepo{}, &mockPublisher{})

	done := make(chan SweepReport, 1)
	go func() {
		report, _ := sweeper.RunSweepOnce(context.Background())
		done <- report
	}()

	select {
	case report := <-done:
		if report.Failed != sweepBatchSize {
			t.Errorf("expected %d failures, got %+v", sweepBatchSize, report)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not terminate on a fully failing batch")
	}
}
