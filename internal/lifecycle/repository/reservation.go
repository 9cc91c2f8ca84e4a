package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	lifecycleerrors "libris/internal/lifecycle/errors"
	"libris/pkg/config"
	mongodb "libris/pkg/db/mongo"
	"libris/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ReservationsCollection = "Reservations"
)

type mongoReservationRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

type ReservationRepository interface {
	Create(ctx context.Context, res *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	Transition(ctx context.Context, id string, to model.ReservationStatus, now time.Time) (*model.Reservation, error)
	Revert(ctx context.Context, id string, from model.ReservationStatus) error
	AttachBorrowRecord(ctx context.Context, id, recordID string) error
	FindDue(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error)
	Find(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error)
	Count(ctx context.Context, userID string) (int64, error)
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(ReservationsCollection),
	}
}

func (r *mongoReservationRepository) Create(ctx context.Context, res *model.Reservation) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, res)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		res.ID = oid.Hex()
	}
	return nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var res model.Reservation
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&res); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", lifecycleerrors.ErrReservationNotFound, id)
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return &res, nil
}

// transitionGuard narrows the pending filter by the hold window: only a live
// hold can be accepted and only a lapsed one can expire.
func transitionGuard(to model.ReservationStatus, now time.Time) bson.M {
	switch to {
	case model.ReservationAccepted:
		return bson.M{"$gt": now}
	case model.ReservationExpired:
		return bson.M{"$lt": now}
	}
	return nil
}

// Transition moves a pending reservation to its next status in one
// FindOneAndUpdate filtered on status=pending, so concurrent accept, reject
// and expiry cannot both win.
func (r *mongoReservationRepository) Transition(ctx context.Context, id string, to model.ReservationStatus, now time.Time) (*model.Reservation, error) {
	if err := model.ValidateReservationTransition(model.ReservationPending, to); err != nil {
		return nil, err
	}

	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": objectID, "status": model.ReservationPending}
	if guard := transitionGuard(to, now); guard != nil {
		filter["expires_at"] = guard
	}
	update := bson.M{"$set": bson.M{"status": to, "resolved_at": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var res model.Reservation
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&res)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.missOrNotPending(ctx, objectID, id)
		}
		return nil, fmt.Errorf("failed to transition reservation to %s: %w", to, err)
	}
	return &res, nil
}

// Revert puts a reservation back to pending after a later step of its
// transition failed.
func (r *mongoReservationRepository) Revert(ctx context.Context, id string, from model.ReservationStatus) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(id)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set":   bson.M{"status": model.ReservationPending},
		"$unset": bson.M{"resolved_at": "", "borrow_record_id": ""},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID, "status": from}, update)
	if err != nil {
		return fmt.Errorf("failed to revert reservation: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", lifecycleerrors.ErrReservationNotFound, id)
	}
	return nil
}

func (r *mongoReservationRepository) AttachBorrowRecord(ctx context.Context, id, recordID string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": bson.M{"borrow_record_id": recordID}})
	if err != nil {
		return fmt.Errorf("failed to attach borrow record: %w", err)
	}
	return nil
}

// FindDue returns pending reservations whose hold lapsed before now, oldest first.
func (r *mongoReservationRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"status":     model.ReservationPending,
		"expires_at": bson.M{"$lt": now},
	}
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "expires_at", Value: 1}})

	return r.find(ctx, filter, opts)
}

// Find lists reservations newest first. An empty userID lists everyone's.
func (r *mongoReservationRepository) Find(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "reserved_at", Value: -1}, {Key: "_id", Value: -1}})

	return r.find(ctx, ownerFilter(userID), opts)
}

func (r *mongoReservationRepository) Count(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, ownerFilter(userID))
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

func (r *mongoReservationRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Reservation, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer cursor.Close(ctx)

	reservations := []*model.Reservation{}
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return reservations, nil
}

func (r *mongoReservationRepository) missOrNotPending(ctx context.Context, objectID primitive.ObjectID, id string) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to check reservation existence: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", lifecycleerrors.ErrReservationNotFound, id)
	}
	return fmt.Errorf("%w: %s", lifecycleerrors.ErrReservationNotPending, id)
}

func ownerFilter(userID string) bson.M {
	if userID == "" {
		return bson.M{}
	}
	return bson.M{"user_id": userID}
}
