package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voltbook/pkg/config"
	"voltbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	CollectionName = "Otp_codes"
)

var (
	ErrCodeNotFound = errors.New("otp code not found or expired")
)

type OTPRepository interface {
	Create(ctx context.Context, code *model.OTPCode) error
	Consume(ctx context.Context, email string, code string) error
	DeleteByEmail(ctx context.Context, email string) error
}

type mongoOTPRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoOTPRepository(cfg *config.Config) OTPRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoOTPRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoOTPRepository) Create(ctx context.Context, code *model.OTPCode) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	code.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := r.collection.InsertOne(ctx, code); err != nil {
		return fmt.Errorf("failed to store otp code: %w", err)
	}
	return nil
}

// Consume atomically deletes a matching, unexpired code. The delete is
// what makes codes single-use: a second check finds nothing. The TTL
// index eventually removes expired codes, but the expires_at filter keeps
// correctness independent of the TTL monitor's timing.
func (r *mongoOTPRepository) Consume(ctx context.Context, email string, code string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"email":      email,
		"code":       code,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}

	err := r.collection.FindOneAndDelete(ctx, filter).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrCodeNotFound
		}
		return fmt.Errorf("failed to consume otp code: %w", err)
	}

	return nil
}

// DeleteByEmail drops any outstanding codes so only the latest one sent
// is valid.
func (r *mongoOTPRepository) DeleteByEmail(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteMany(ctx, bson.M{"email": email}); err != nil {
		return fmt.Errorf("failed to delete otp codes: %w", err)
	}
	return nil
}
