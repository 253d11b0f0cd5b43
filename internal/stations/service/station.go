package service

import (
	"context"
	"errors"
	"sync"

	stationserrors "voltbook/internal/stations/errors"
	"voltbook/internal/stations/repository"
	"voltbook/internal/stations/validator"
	"voltbook/pkg/config"
	apperrors "voltbook/pkg/errors"
	"voltbook/pkg/middleware"
	"voltbook/pkg/model"
	"voltbook/pkg/sanitizer"
)

type StationService interface {
	Create(ctx context.Context, identity middleware.Identity, station *model.Station) error
	GetByID(ctx context.Context, id string) (*model.Station, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Station, int64, error)
	GetByCreator(ctx context.Context, identity middleware.Identity, creatorID string, limit int, offset int64) ([]*model.Station, int64, error)
	Update(ctx context.Context, identity middleware.Identity, id string, updates *model.StationUpdate) error
	Delete(ctx context.Context, identity middleware.Identity, id string) error
}

type stationService struct {
	repo      repository.StationRepository
	validator *validator.StationValidator
	cfg       *config.Config
}

func NewStationService(
	repo repository.StationRepository,
	validator *validator.StationValidator,
	cfg *config.Config,
) StationService {
	return &stationService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *stationService) Create(ctx context.Context, identity middleware.Identity, station *model.Station) error {
	if !identity.IsAdmin() {
		return apperrors.Forbidden("Only admins can create stations")
	}

	s.applyDefaults(identity, station)
	s.sanitize(station)
	if err := s.validate(station); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, station); err != nil {
		s.cfg.Log.Error("Failed to create station", "error", err)
		return apperrors.Internal("Failed to create station", err)
	}

	s.cfg.Log.Info("Station created successfully",
		"id", station.ID,
		"name", station.Name,
		"total_slots", station.TotalSlots,
		"created_by", identity.UserID,
	)
	return nil
}

func (s *stationService) GetByID(ctx context.Context, id string) (*model.Station, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Station ID cannot be empty")
	}

	station, err := s.repo.FindByID(ctx, id)
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

func (s *stationService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Station, int64, error) {
	var count int64
	var stations []*model.Station
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count stations", "error", errCount)
			errCount = apperrors.Internal("Failed to count stations", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		stations, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list stations", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve stations", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return stations, count, nil
}

// GetByCreator is the admin dashboard listing: the stations a given
// admin registered.
func (s *stationService) GetByCreator(ctx context.Context, identity middleware.Identity, creatorID string, limit int, offset int64) ([]*model.Station, int64, error) {
	if !identity.IsAdmin() {
		return nil, 0, apperrors.Forbidden("Only admins can list stations by owner")
	}
	if creatorID == "" {
		return nil, 0, apperrors.InvalidInput("Admin ID cannot be empty")
	}

	var count int64
	var stations []*model.Station
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByCreator(ctx, creatorID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count stations by creator", "created_by", creatorID, "error", errCount)
			errCount = apperrors.Internal("Failed to count stations", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		stations, errFind = s.repo.FindByCreator(ctx, creatorID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list stations by creator", "created_by", creatorID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve stations", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return stations, count, nil
}

func (s *stationService) Update(ctx context.Context, identity middleware.Identity, id string, updates *model.StationUpdate) error {
	if !identity.IsAdmin() {
		return apperrors.Forbidden("Only admins can update stations")
	}
	if id == "" {
		return apperrors.InvalidInput("Station ID cannot be empty")
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Station update validation failed", "id", id, "error", err)
		return apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.mergeStationUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.validate(merged); err != nil {
		return err
	}

	if _, err := s.repo.Update(ctx, id, merged); err != nil {
		if errors.Is(err, stationserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Station", id)
		}
		s.cfg.Log.Error("Failed to update station", "id", id, "error", err)
		return apperrors.Internal("Failed to update station", err)
	}

	s.cfg.Log.Info("Station updated successfully", "id", id)
	return nil
}

func (s *stationService) Delete(ctx context.Context, identity middleware.Identity, id string) error {
	if !identity.IsAdmin() {
		return apperrors.Forbidden("Only admins can delete stations")
	}
	if id == "" {
		return apperrors.InvalidInput("Station ID cannot be empty")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, stationserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Station", id)
		}
		if errors.Is(err, stationserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid station ID format")
		}
		return apperrors.Internal("Failed to delete station", err)
	}

	s.cfg.Log.Info("Station deleted successfully", "id", id)
	return nil
}

// --- Helpers ---

func (s *stationService) applyDefaults(identity middleware.Identity, station *model.Station) {
	if station.Status == "" {
		station.Status = model.StationOperational
	}
	// A new station starts with every slot free.
	station.AvailableSlots = station.TotalSlots
	if station.Rates.Currency == "" {
		station.Rates.Currency = s.cfg.DefaultCurrency
	}
	station.CreatedBy = identity.UserID
}

func (s *stationService) sanitize(station *model.Station) {
	station.Name = sanitizer.NormalizeName(station.Name)
	station.Address = sanitizer.NormalizeAddress(station.Address)
	station.Rates.Currency = sanitizer.NormalizeCurrency(station.Rates.Currency)
}

func (s *stationService) mergeStationUpdates(existing *model.Station, updates *model.StationUpdate) *model.Station {
	merged := *existing

	if updates.Name != "" {
		merged.Name = updates.Name
	}
	if updates.Address != "" {
		merged.Address = updates.Address
	}
	if updates.Latitude != nil {
		merged.Latitude = *updates.Latitude
	}
	if updates.Longitude != nil {
		merged.Longitude = *updates.Longitude
	}
	if updates.Rates != nil {
		merged.Rates = *updates.Rates
	}
	if updates.OperatingHours != nil {
		merged.OperatingHours = *updates.OperatingHours
	}
	if updates.Status != "" {
		merged.Status = updates.Status
	}

	return &merged
}

func (s *stationService) validate(station *model.Station) error {
	if err := s.validator.Validate(station); err != nil {
		s.cfg.Log.Warn("Station validation failed", "error", err)
		return apperrors.Validation("Station validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}
