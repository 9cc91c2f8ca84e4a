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
	BorrowRecordsCollection = "Borrow_records"
)

type mongoBorrowRecordRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

type BorrowRecordRepository interface {
	Create(ctx context.Context, rec *model.BorrowRecord) error
	Delete(ctx context.Context, id string) error
	FindActive(ctx context.Context, userID, bookID string) (*model.BorrowRecord, error)
	MarkLate(ctx context.Context, id string, fineAmount int64) error
	MarkReturned(ctx context.Context, id string, at time.Time) (*model.BorrowRecord, error)
	Unreturn(ctx context.Context, id string) error
	FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.BorrowRecord, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

func NewMongoBorrowRecordRepository(cfg *config.Config) BorrowRecordRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBorrowRecordRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(BorrowRecordsCollection),
	}
}

// Create inserts an active record. The partial unique index on
// {user_id, book_id} where returned=false makes the insert the check.
func (r *mongoBorrowRecordRepository) Create(ctx context.Context, rec *model.BorrowRecord) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, rec)
	if err != nil {
		if mongodb.IsDuplicateKey(err) {
			return fmt.Errorf("%w: user %s book %s", lifecycleerrors.ErrActiveRecordExists, rec.UserID, rec.BookID)
		}
		return fmt.Errorf("failed to create borrow record: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		rec.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBorrowRecordRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(id)
	if err != nil {
		return err
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete borrow record: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", lifecycleerrors.ErrBorrowRecordNotFound, id)
	}
	return nil
}

func (r *mongoBorrowRecordRepository) FindActive(ctx context.Context, userID, bookID string) (*model.BorrowRecord, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"user_id": userID, "book_id": bookID, "returned": false}

	var rec model.BorrowRecord
	if err := r.collection.FindOne(ctx, filter).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: user %s book %s", lifecycleerrors.ErrBorrowRecordNotFound, userID, bookID)
		}
		return nil, fmt.Errorf("failed to find active borrow record: %w", err)
	}
	return &rec, nil
}

func (r *mongoBorrowRecordRepository) MarkLate(ctx context.Context, id string, fineAmount int64) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(id)
	if err != nil {
		return err
	}

	update := bson.M{"$set": bson.M{"late": true, "fine_amount": fineAmount}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID, "returned": false}, update)
	if err != nil {
		return fmt.Errorf("failed to mark borrow record late: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", lifecycleerrors.ErrRecordNotActive, id)
	}
	return nil
}

// MarkReturned closes the record only while it is still active, so two
// concurrent returns cannot both succeed.
func (r *mongoBorrowRecordRepository) MarkReturned(ctx context.Context, id string, at time.Time) (*model.BorrowRecord, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	update := bson.M{"$set": bson.M{"returned": true, "returned_at": at}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var rec model.BorrowRecord
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objectID, "returned": false}, update, opts).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", lifecycleerrors.ErrRecordNotActive, id)
		}
		return nil, fmt.Errorf("failed to mark borrow record returned: %w", err)
	}
	return &rec, nil
}

func (r *mongoBorrowRecordRepository) Unreturn(ctx context.Context, id string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(id)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set":   bson.M{"returned": false},
		"$unset": bson.M{"returned_at": ""},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID, "returned": true}, update)
	if err != nil {
		if mongodb.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", lifecycleerrors.ErrActiveRecordExists, id)
		}
		return fmt.Errorf("failed to reopen borrow record: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", lifecycleerrors.ErrBorrowRecordNotFound, id)
	}
	return nil
}

func (r *mongoBorrowRecordRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.BorrowRecord, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "issued_at", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query borrow records: %w", err)
	}
	defer cursor.Close(ctx)

	records := []*model.BorrowRecord{}
	if err = cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode borrow records: %w", err)
	}
	return records, nil
}

func (r *mongoBorrowRecordRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to count borrow records: %w", err)
	}
	return count, nil
}

func objectIDFromHex(id string) (primitive.ObjectID, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", lifecycleerrors.ErrInvalidID, id)
	}
	return objectID, nil
}
