package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	stationserrors "voltbook/internal/stations/errors"
	"voltbook/pkg/config"
	mongotx "voltbook/pkg/db/mongo"
	"voltbook/pkg/metrics"
	"voltbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Stations"
)

type mongoStationRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type StationRepository interface {
	Create(ctx context.Context, station *model.Station) error
	FindByID(ctx context.Context, id string) (*model.Station, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Station, error)
	FindByCreator(ctx context.Context, creatorID string, limit int, offset int64) ([]*model.Station, error)
	Update(ctx context.Context, id string, station *model.Station) (*mongo.UpdateResult, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	CountByCreator(ctx context.Context, creatorID string) (int64, error)
	DecrementSlots(ctx context.Context, id string) (bool, error)
	IncrementSlots(ctx context.Context, id string) (bool, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoStationRepository(cfg *config.Config) StationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoStationRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// When inside a transaction (SessionContext), returns the original context
// unchanged with a no-op cancel function.
func (r *mongoStationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoStationRepository) Create(ctx context.Context, station *model.Station) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	station.CreatedAt = now
	station.UpdatedAt = now
	result, err := r.collection.InsertOne(ctx, station)
	if err != nil {
		return fmt.Errorf("failed to create station: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		station.ID = oid.Hex()
	}
	return nil
}

func (r *mongoStationRepository) FindByID(ctx context.Context, id string) (*model.Station, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", stationserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}

	var station model.Station
	err = r.collection.FindOne(ctx, filter).Decode(&station)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, stationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find station: %w", err)
	}

	return &station, nil
}

func (r *mongoStationRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Station, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find stations: %w", err)
	}
	defer cursor.Close(ctx)

	var stations []*model.Station
	if err = cursor.All(ctx, &stations); err != nil {
		return nil, fmt.Errorf("failed to decode stations: %w", err)
	}

	return stations, nil
}

// FindByCreator returns the stations a given admin registered.
func (r *mongoStationRepository) FindByCreator(ctx context.Context, creatorID string, limit int, offset int64) ([]*model.Station, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"created_by": creatorID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find stations by creator: %w", err)
	}
	defer cursor.Close(ctx)

	var stations []*model.Station
	if err = cursor.All(ctx, &stations); err != nil {
		return nil, fmt.Errorf("failed to decode stations: %w", err)
	}

	return stations, nil
}

func (r *mongoStationRepository) CountByCreator(ctx context.Context, creatorID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"created_by": creatorID})
	if err != nil {
		return 0, fmt.Errorf("failed to count stations by creator: %w", err)
	}

	return count, nil
}

func (r *mongoStationRepository) Update(ctx context.Context, id string, station *model.Station) (*mongo.UpdateResult, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", stationserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}
	update := bson.M{
		"$set": bson.M{
			"name":            station.Name,
			"address":         station.Address,
			"latitude":        station.Latitude,
			"longitude":       station.Longitude,
			"rates":           station.Rates,
			"operating_hours": station.OperatingHours,
			"status":          station.Status,
			"updated_at":      time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update station: %w", err)
	}

	if result.MatchedCount == 0 {
		return nil, stationserrors.ErrNotFound
	}

	return result, nil
}

func (r *mongoStationRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", stationserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}
	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete station: %w", err)
	}

	if result.DeletedCount == 0 {
		return stationserrors.ErrNotFound
	}

	return nil
}

func (r *mongoStationRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count stations: %w", err)
	}

	return count, nil
}

// DecrementSlots atomically takes one slot from the station. The filter
// only matches while available_slots > 0, so the counter can never go
// negative regardless of concurrent callers. Returns false when the
// counter was already at zero.
func (r *mongoStationRepository) DecrementSlots(ctx context.Context, id string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("%w: %s", stationserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":             objectID,
		"available_slots": bson.M{"$gt": 0},
	}
	update := bson.M{
		"$inc": bson.M{"available_slots": -1},
		"$set": bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to decrement slots: %w", err)
	}

	if result.MatchedCount == 0 {
		if err := r.classifyNoMatch(ctx, objectID); err != nil {
			return false, err
		}
		metrics.IncSlotSaturation("decrement")
		return false, nil
	}

	return true, nil
}

// IncrementSlots atomically returns one slot to the station. The $expr
// filter only matches while available_slots < total_slots, so the counter
// can never exceed capacity. Returns false when the counter was already
// full.
func (r *mongoStationRepository) IncrementSlots(ctx context.Context, id string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("%w: %s", stationserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":   objectID,
		"$expr": bson.M{"$lt": bson.A{"$available_slots", "$total_slots"}},
	}
	update := bson.M{
		"$inc": bson.M{"available_slots": 1},
		"$set": bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to increment slots: %w", err)
	}

	if result.MatchedCount == 0 {
		if err := r.classifyNoMatch(ctx, objectID); err != nil {
			return false, err
		}
		metrics.IncSlotSaturation("increment")
		return false, nil
	}

	return true, nil
}

// classifyNoMatch distinguishes a missing station from a counter that
// saturated at its bound. Returns ErrNotFound for the former, nil for
// the latter.
func (r *mongoStationRepository) classifyNoMatch(ctx context.Context, objectID primitive.ObjectID) error {
	err := r.collection.FindOne(ctx, bson.M{"_id": objectID}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return stationserrors.ErrNotFound
		}
		return fmt.Errorf("failed to classify slot update: %w", err)
	}
	return nil
}

func (r *mongoStationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
