package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "voltbook/internal/bookings/errors"
	"voltbook/pkg/config"
	mongotx "voltbook/pkg/db/mongo"
	"voltbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type mongoBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	FindByStation(ctx context.Context, stationID string, limit int, offset int64) ([]*model.Booking, error)
	CountByStation(ctx context.Context, stationID string) (int64, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error)
	MarkVerified(ctx context.Context, id string, now time.Time) (*model.Booking, error)
	ExpireAndComplete(ctx context.Context, id string, now time.Time) (bool, error)
	Cancel(ctx context.Context, id string, userID string) (*model.Booking, error)
	SetQRCode(ctx context.Context, id string, code string) error
	UpdatePaymentStatus(ctx context.Context, id string, payment model.PaymentStatus, status model.BookingStatus) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// When inside a transaction (SessionContext), returns the original context
// unchanged with a no-op cancel function.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now
	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	return r.findByFilter(ctx, bson.M{"user_id": userID}, limit, offset)
}

func (r *mongoBookingRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	return r.countByFilter(ctx, bson.M{"user_id": userID})
}

func (r *mongoBookingRepository) FindByStation(ctx context.Context, stationID string, limit int, offset int64) ([]*model.Booking, error) {
	return r.findByFilter(ctx, bson.M{"station_id": stationID}, limit, offset)
}

func (r *mongoBookingRepository) CountByStation(ctx context.Context, stationID string) (int64, error) {
	return r.countByFilter(ctx, bson.M{"station_id": stationID})
}

func (r *mongoBookingRepository) findByFilter(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) countByFilter(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// FindDue returns bookings whose reservation window has ended but whose
// slot has not been returned to the ledger yet. These are the sweeper's
// work items. The filter keys on slot_released, not expired: a scan sets
// expired early and the booking must still get its slot back.
func (r *mongoBookingRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"status":        bson.M{"$in": bson.A{model.BookingConfirmed, model.BookingVerified}},
		"end_time":      bson.M{"$lte": now},
		"slot_released": bson.M{"$ne": true},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "end_time", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find due bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode due bookings: %w", err)
	}

	return bookings, nil
}

// MarkVerified flips a confirmed booking to verified in a single
// conditional update. The status filter is the idempotency guard: a
// second scan matches nothing and reports why via classification.
func (r *mongoBookingRepository) MarkVerified(ctx context.Context, id string, now time.Time) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":    objectID,
		"status": model.BookingConfirmed,
	}
	update := bson.M{
		"$set": bson.M{
			"status":      model.BookingVerified,
			"expired":     true,
			"verified_at": now,
			"updated_at":  now,
		},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.classifyVerifyMiss(ctx, objectID)
		}
		return nil, fmt.Errorf("failed to verify booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) classifyVerifyMiss(ctx context.Context, objectID primitive.ObjectID) error {
	var existing model.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&existing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return bookingserrors.ErrNotFound
		}
		return fmt.Errorf("failed to classify verify miss: %w", err)
	}

	if existing.Status == model.BookingVerified {
		return bookingserrors.ErrAlreadyVerified
	}
	return bookingserrors.ErrAlreadyExpired
}

// ExpireAndComplete reconciles one booking whose end time has passed. The
// pipeline keeps a verified booking verified and completes anything else;
// the slot_released filter guarantees at most one caller wins, so the
// slot going back to the ledger happens exactly once. Returns true only
// for the winning call.
func (r *mongoBookingRepository) ExpireAndComplete(ctx context.Context, id string, now time.Time) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":           objectID,
		"status":        bson.M{"$in": bson.A{model.BookingConfirmed, model.BookingVerified}},
		"end_time":      bson.M{"$lte": now},
		"slot_released": bson.M{"$ne": true},
	}

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"status": bson.M{"$cond": bson.M{
				"if":   bson.M{"$eq": bson.A{"$status", model.BookingVerified}},
				"then": model.BookingVerified,
				"else": model.BookingCompleted,
			}},
			"expired":       true,
			"slot_released": true,
			"updated_at":    now,
		}}},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to expire booking: %w", err)
	}

	return result.MatchedCount > 0, nil
}

// Cancel flips a pending or confirmed booking to cancelled. The user_id
// filter keeps users from cancelling each other's bookings.
func (r *mongoBookingRepository) Cancel(ctx context.Context, id string, userID string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	filter := bson.M{
		"_id":     objectID,
		"user_id": userID,
		"status":  bson.M{"$in": bson.A{model.BookingPending, model.BookingConfirmed}},
	}
	// Cancellation returns the slot in its own transaction, so the
	// booking leaves the sweeper's work queue here.
	update := bson.M{
		"$set": bson.M{
			"status":        model.BookingCancelled,
			"expired":       true,
			"slot_released": true,
			"updated_at":    now,
		},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.classifyCancelMiss(ctx, objectID, userID)
		}
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) classifyCancelMiss(ctx context.Context, objectID primitive.ObjectID, userID string) error {
	var existing model.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": objectID, "user_id": userID}).Decode(&existing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return bookingserrors.ErrNotFound
		}
		return fmt.Errorf("failed to classify cancel miss: %w", err)
	}
	return bookingserrors.ErrNotCancellable
}

// SetQRCode stores the scannable payload. The driver assigns the id at
// insert time, so the payload can only be written afterwards, inside the
// same transaction as the insert.
func (r *mongoBookingRepository) SetQRCode(ctx context.Context, id string, code string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"qr_code": code}},
	)
	if err != nil {
		return fmt.Errorf("failed to set qr code: %w", err)
	}

	if result.MatchedCount == 0 {
		return bookingserrors.ErrNotFound
	}

	return nil
}

// UpdatePaymentStatus applies a payment outcome in a single conditional
// update. The status filter is the guard: once a booking is verified,
// completed or cancelled, the payment can no longer move it, and a
// concurrent sweep losing the race here surfaces as ErrNotCancellable
// instead of a second terminal transition.
func (r *mongoBookingRepository) UpdatePaymentStatus(ctx context.Context, id string, payment model.PaymentStatus, status model.BookingStatus) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":    objectID,
		"status": bson.M{"$in": bson.A{model.BookingPending, model.BookingConfirmed}},
	}

	set := bson.M{
		"payment_status": payment,
		"status":         status,
		"updated_at":     time.Now().UTC().Truncate(time.Millisecond),
	}
	if status == model.BookingCancelled {
		set["expired"] = true
		set["slot_released"] = true
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	if result.MatchedCount == 0 {
		return r.classifyPaymentMiss(ctx, objectID)
	}

	return nil
}

func (r *mongoBookingRepository) classifyPaymentMiss(ctx context.Context, objectID primitive.ObjectID) error {
	var existing model.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&existing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return bookingserrors.ErrNotFound
		}
		return fmt.Errorf("failed to classify payment miss: %w", err)
	}
	return bookingserrors.ErrNotCancellable
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
