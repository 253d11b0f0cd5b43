package service

import (
	"context"
	"time"

	bookingsrepo "voltbook/internal/bookings/repository"
	stationsrepo "voltbook/internal/stations/repository"
	"voltbook/pkg/config"
	"voltbook/pkg/kafka"
	"voltbook/pkg/metrics"
	"voltbook/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	// EventBookingExpired announces a booking the sweeper reconciled.
	EventBookingExpired = "booking.expired"

	eventSource = "sweeper"

	sweepBatchSize = 100
)

// ExpiredEvent is the payload published for each reconciled booking.
type ExpiredEvent struct {
	BookingID  string    `json:"booking_id"`
	UserID     string    `json:"user_id"`
	StationID  string    `json:"station_id"`
	WasScanned bool      `json:"was_scanned"`
	EndTime    time.Time `json:"end_time"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher abstracts the Kafka producer so tests can capture
// published events.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// SweepReport summarizes one sweep pass.
type SweepReport struct {
	Scanned    int
	Reconciled int
	Failed     int
}

type SweeperService interface {
	RunSweepOnce(ctx context.Context) (SweepReport, error)
}

type sweeperService struct {
	bookings bookingsrepo.BookingRepository
	stations stationsrepo.StationRepository
	events   EventPublisher
	cfg      *config.Config
	now      func() time.Time
}

func NewSweeperService(
	bookings bookingsrepo.BookingRepository,
	stations stationsrepo.StationRepository,
	events EventPublisher,
	cfg *config.Config,
) SweeperService {
	return &sweeperService{
		bookings: bookings,
		stations: stations,
		events:   events,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunSweepOnce reconciles every booking whose reservation window has
// ended: the booking completes (or stays verified), its expired flag is
// set, and its slot returns to the station ledger. Failures on one
// booking never abort the pass; the next run retries whatever is left.
func (s *sweeperService) RunSweepOnce(ctx context.Context) (SweepReport, error) {
	start := s.now()
	var report SweepReport

	for {
		due, err := s.bookings.FindDue(ctx, s.now(), sweepBatchSize)
		if err != nil {
			s.cfg.Log.Error("Failed to query due bookings", "error", err)
			metrics.ObserveSweepDuration(time.Since(start).Seconds())
			return report, err
		}
		if len(due) == 0 {
			break
		}

		report.Scanned += len(due)
		for _, booking := range due {
			if err := s.reconcile(ctx, booking); err != nil {
				report.Failed++
				metrics.IncSweepFailure()
				s.cfg.Log.Error("Failed to reconcile booking",
					"id", booking.ID,
					"station_id", booking.StationID,
					"error", err,
				)
				continue
			}
			report.Reconciled++
		}

		// A batch that failed entirely would loop forever on the same
		// documents; bail and let the next scheduled run retry.
		if len(due) < sweepBatchSize || report.Failed == report.Scanned {
			break
		}
	}

	metrics.ObserveSweepDuration(time.Since(start).Seconds())
	s.cfg.Log.Info("Sweep pass finished",
		"scanned", report.Scanned,
		"reconciled", report.Reconciled,
		"failed", report.Failed,
		"duration", time.Since(start),
	)
	return report, nil
}

// reconcile transitions one booking and returns its slot. The expired
// filter inside ExpireAndComplete makes concurrent sweepers safe: only
// the winning update increments the ledger.
func (s *sweeperService) reconcile(ctx context.Context, booking *model.Booking) error {
	var won bool
	err := s.bookings.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var err error
		won, err = s.bookings.ExpireAndComplete(sessCtx, booking.ID, s.now())
		if err != nil {
			return err
		}
		if !won {
			// Another sweeper or a cancellation got here first.
			return nil
		}

		_, err = s.stations.IncrementSlots(sessCtx, booking.StationID)
		return err
	})
	if err != nil {
		return err
	}

	if !won {
		return nil
	}

	metrics.IncBookingExpired()
	s.publishExpired(ctx, booking)
	return nil
}

func (s *sweeperService) publishExpired(ctx context.Context, booking *model.Booking) {
	if s.events == nil {
		return
	}

	msg := kafka.NewMessage().
		WithKey(booking.ID).
		WithValue(ExpiredEvent{
			BookingID:  booking.ID,
			UserID:     booking.UserID,
			StationID:  booking.StationID,
			WasScanned: booking.Status == model.BookingVerified,
			EndTime:    booking.EndTime,
			OccurredAt: s.now(),
		}).
		WithEventType(EventBookingExpired).
		WithSource(eventSource).
		WithSchemaVersion("1").
		Build()

	if err := s.events.Publish(ctx, msg); err != nil {
		s.cfg.Log.Warn("Failed to publish expiry event",
			"booking_id", booking.ID,
			"error", err,
		)
	}
}
