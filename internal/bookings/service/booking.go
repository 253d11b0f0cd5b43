package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	bookingserrors "voltbook/internal/bookings/errors"
	"voltbook/internal/bookings/repository"
	"voltbook/internal/bookings/validator"
	stationserrors "voltbook/internal/stations/errors"
	stationsrepo "voltbook/internal/stations/repository"
	"voltbook/pkg/config"
	apperrors "voltbook/pkg/errors"
	"voltbook/pkg/metrics"
	"voltbook/pkg/middleware"
	"voltbook/pkg/model"
	"voltbook/pkg/qr"

	"go.mongodb.org/mongo-driver/mongo"
)

// CreateBookingRequest is the client-facing creation payload. Everything
// else on the booking is derived server-side.
type CreateBookingRequest struct {
	StationID   string    `json:"station_id"`
	StartTime   time.Time `json:"start_time"`
	DurationMin int       `json:"duration"`
}

// BookingView decorates a booking with its derived presentation state.
type BookingView struct {
	*model.Booking
	DisplayState string `json:"display_state"`
}

type BookingService interface {
	Create(ctx context.Context, identity middleware.Identity, req *CreateBookingRequest) (*model.Booking, error)
	GetByID(ctx context.Context, identity middleware.Identity, id string) (*BookingView, error)
	ListMine(ctx context.Context, identity middleware.Identity, limit int, offset int64) ([]*BookingView, int64, error)
	ListByUser(ctx context.Context, identity middleware.Identity, userID string, limit int, offset int64) ([]*BookingView, int64, error)
	ListByStation(ctx context.Context, identity middleware.Identity, stationID string, limit int, offset int64) ([]*BookingView, int64, error)
	Verify(ctx context.Context, identity middleware.Identity, qrPayload string) (*BookingView, error)
	Cancel(ctx context.Context, identity middleware.Identity, id string) (*BookingView, error)
	RecordPaymentOutcome(ctx context.Context, identity middleware.Identity, id string, outcome model.PaymentStatus) error
}

type bookingService struct {
	repo      repository.BookingRepository
	stations  stationsrepo.StationRepository
	validator *validator.BookingValidator
	events    EventPublisher
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	stations stationsrepo.StationRepository,
	validator *validator.BookingValidator,
	events EventPublisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		stations:  stations,
		validator: validator,
		events:    events,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *bookingService) Create(ctx context.Context, identity middleware.Identity, req *CreateBookingRequest) (*model.Booking, error) {
	if identity.UserID == "" {
		return nil, apperrors.Unauthorized("Missing user identity")
	}
	if req == nil || req.StationID == "" {
		return nil, apperrors.InvalidInput("station_id is required")
	}

	station, err := s.findStation(ctx, req.StationID)
	if err != nil {
		return nil, err
	}
	if !station.IsBookable() {
		return nil, apperrors.Conflict("Station is not accepting bookings")
	}

	booking := s.buildBooking(identity, req, station)
	if err := s.validate(booking); err != nil {
		return nil, err
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		moved, err := s.stations.DecrementSlots(sessCtx, station.ID)
		if err != nil {
			return apperrors.Internal("Failed to reserve slot", err)
		}
		if !moved {
			// Counter already at zero; the booking still goes through
			// and the ledger saturates rather than going negative.
			s.cfg.Log.Warn("Slot counter saturated at zero during booking",
				"station_id", station.ID,
			)
		}

		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}

		booking.QRCode = qr.Encode(booking.ID)
		if err := s.repo.SetQRCode(sessCtx, booking.ID, booking.QRCode); err != nil {
			return apperrors.Internal("Failed to attach QR code", err)
		}

		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create booking", "error", err)
		return nil, err
	}

	metrics.IncBookingCreated()
	s.publishEvent(ctx, EventBookingCreated, booking)

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"user_id", booking.UserID,
		"station_id", booking.StationID,
		"start_time", booking.StartTime,
		"end_time", booking.EndTime,
		"total_cost", booking.TotalCost,
	)
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, identity middleware.Identity, id string) (*BookingView, error) {
	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	if !identity.IsAdmin() && booking.UserID != identity.UserID {
		return nil, apperrors.Forbidden("You can only view your own bookings")
	}

	return s.view(booking), nil
}

func (s *bookingService) ListMine(ctx context.Context, identity middleware.Identity, limit int, offset int64) ([]*BookingView, int64, error) {
	if identity.UserID == "" {
		return nil, 0, apperrors.Unauthorized("Missing user identity")
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByUser(ctx, identity.UserID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count user bookings", "user_id", identity.UserID, "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindByUser(ctx, identity.UserID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list user bookings", "user_id", identity.UserID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return s.views(bookings), count, nil
}

// ListByUser is the admin view onto another user's bookings.
func (s *bookingService) ListByUser(ctx context.Context, identity middleware.Identity, userID string, limit int, offset int64) ([]*BookingView, int64, error) {
	if !identity.IsAdmin() {
		return nil, 0, apperrors.Forbidden("Only admins can list bookings by user")
	}
	if userID == "" {
		return nil, 0, apperrors.InvalidInput("User ID cannot be empty")
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByUser(ctx, userID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count user bookings", "user_id", userID, "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindByUser(ctx, userID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list user bookings", "user_id", userID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return s.views(bookings), count, nil
}

func (s *bookingService) ListByStation(ctx context.Context, identity middleware.Identity, stationID string, limit int, offset int64) ([]*BookingView, int64, error) {
	if !identity.IsAdmin() {
		return nil, 0, apperrors.Forbidden("Only admins can list bookings by station")
	}
	if stationID == "" {
		return nil, 0, apperrors.InvalidInput("Station ID cannot be empty")
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByStation(ctx, stationID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count station bookings", "station_id", stationID, "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindByStation(ctx, stationID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list station bookings", "station_id", stationID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return s.views(bookings), count, nil
}

// Verify marks a booking as checked in after a QR scan at the station.
// Only the admin who owns the station may scan its bookings. A second
// scan of the same code gets a conflict, and the slot stays taken until
// the sweeper reconciles the booking at its end time.
func (s *bookingService) Verify(ctx context.Context, identity middleware.Identity, qrPayload string) (*BookingView, error) {
	if !identity.IsAdmin() {
		return nil, apperrors.Forbidden("Only station operators can verify bookings")
	}

	id, err := qr.Decode(qrPayload)
	if err != nil {
		return nil, err
	}

	// Ownership is checked before anything mutates; the conditional
	// update below still carries the race-safe idempotency guard.
	existing, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	station, err := s.findStation(ctx, existing.StationID)
	if err != nil {
		return nil, err
	}
	if station.CreatedBy != identity.UserID {
		return nil, apperrors.Forbidden("You can only verify bookings at your own stations")
	}

	booking, err := s.repo.MarkVerified(ctx, id, s.now())
	if err != nil {
		switch {
		case errors.Is(err, bookingserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Booking", id)
		case errors.Is(err, bookingserrors.ErrInvalidID):
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		case errors.Is(err, bookingserrors.ErrAlreadyVerified):
			return nil, apperrors.Conflict("QR code has already been used")
		case errors.Is(err, bookingserrors.ErrAlreadyExpired):
			return nil, apperrors.Conflict("Booking is no longer verifiable")
		}
		return nil, apperrors.Internal("Failed to verify booking", err)
	}

	metrics.IncBookingVerified()
	s.publishEvent(ctx, EventBookingVerified, booking)

	s.cfg.Log.Info("Booking verified successfully",
		"id", booking.ID,
		"station_id", booking.StationID,
		"verified_by", identity.UserID,
	)
	return s.view(booking), nil
}

// Cancel releases the booking's slot back to the ledger, since a
// cancelled booking is out of the sweeper's reach.
func (s *bookingService) Cancel(ctx context.Context, identity middleware.Identity, id string) (*BookingView, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	ownerID := identity.UserID
	if identity.IsAdmin() {
		existing, err := s.findBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		ownerID = existing.UserID
	}
	if ownerID == "" {
		return nil, apperrors.Unauthorized("Missing user identity")
	}

	var booking *model.Booking
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var err error
		booking, err = s.repo.Cancel(sessCtx, id, ownerID)
		if err != nil {
			switch {
			case errors.Is(err, bookingserrors.ErrNotFound):
				return apperrors.NotFoundWithID("Booking", id)
			case errors.Is(err, bookingserrors.ErrInvalidID):
				return apperrors.InvalidInput("Invalid booking ID format")
			case errors.Is(err, bookingserrors.ErrNotCancellable):
				return apperrors.Conflict("Booking can no longer be cancelled")
			}
			return apperrors.Internal("Failed to cancel booking", err)
		}

		if _, err := s.stations.IncrementSlots(sessCtx, booking.StationID); err != nil {
			return apperrors.Internal("Failed to release slot", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncBookingCancelled()
	s.publishEvent(ctx, EventBookingCancelled, booking)

	s.cfg.Log.Info("Booking cancelled successfully", "id", booking.ID, "user_id", ownerID)
	return s.view(booking), nil
}

// RecordPaymentOutcome applies a simulated payment callback. A failed
// payment cancels the booking and returns its slot. The terminal-state
// guard lives in the repository's status filter, so a sweep or scan that
// lands first turns this into a conflict instead of a second transition.
func (s *bookingService) RecordPaymentOutcome(ctx context.Context, identity middleware.Identity, id string, outcome model.PaymentStatus) error {
	if outcome != model.PaymentCompleted && outcome != model.PaymentFailed {
		return apperrors.InvalidInput("payment outcome must be 'completed' or 'failed'")
	}

	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return err
	}
	if !identity.IsAdmin() && booking.UserID != identity.UserID {
		return apperrors.Forbidden("You can only update your own bookings")
	}

	if outcome == model.PaymentCompleted {
		if err := s.repo.UpdatePaymentStatus(ctx, id, model.PaymentCompleted, model.BookingConfirmed); err != nil {
			return s.mapPaymentError(id, err)
		}
	} else {
		err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			if err := s.repo.UpdatePaymentStatus(sessCtx, id, model.PaymentFailed, model.BookingCancelled); err != nil {
				return s.mapPaymentError(id, err)
			}
			if _, err := s.stations.IncrementSlots(sessCtx, booking.StationID); err != nil {
				return apperrors.Internal("Failed to release slot", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	booking.Payment = outcome
	s.publishEvent(ctx, EventBookingPayment, booking)

	s.cfg.Log.Info("Booking payment updated", "id", id, "outcome", outcome)
	return nil
}

// --- Helpers ---

func (s *bookingService) buildBooking(identity middleware.Identity, req *CreateBookingRequest, station *model.Station) *model.Booking {
	start := req.StartTime.UTC()
	end := start.Add(time.Duration(req.DurationMin) * time.Minute)

	cost := station.Rates.PerHour * float64(req.DurationMin) / 60
	cost = math.Round(cost*100) / 100

	currency := station.Rates.Currency
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}

	return &model.Booking{
		UserID:      identity.UserID,
		StationID:   station.ID,
		StationName: station.Name,
		StartTime:   start,
		EndTime:     end,
		DurationMin: req.DurationMin,
		TotalCost:   cost,
		Currency:    currency,
		// Payment is simulated, so a new booking lands directly in
		// confirmed with a completed payment.
		Status:    model.BookingConfirmed,
		Payment:   model.PaymentCompleted,
		Expired:   false,
		ExpiresAt: end,
	}
}

func (s *bookingService) findStation(ctx context.Context, id string) (*model.Station, error) {
	station, err := s.stations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, stationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Station", id)
		}
		if errors.Is(err, stationserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid station ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve station", err)
	}
	return station, nil
}

func (s *bookingService) findBooking(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) mapPaymentError(id string, err error) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	case errors.Is(err, bookingserrors.ErrNotCancellable):
		return apperrors.Conflict("Booking payment can no longer change")
	}
	return apperrors.Internal("Failed to update payment status", err)
}

func (s *bookingService) validate(booking *model.Booking) error {
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *bookingService) view(b *model.Booking) *BookingView {
	return &BookingView{
		Booking:      b,
		DisplayState: b.DisplayState(s.now()),
	}
}

func (s *bookingService) views(bookings []*model.Booking) []*BookingView {
	views := make([]*BookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, s.view(b))
	}
	return views
}
