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
	FineRecordsCollection = "Fine_records"
)

type mongoFineRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

type FineRepository interface {
	Create(ctx context.Context, fine *model.FineRecord) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*model.FineRecord, error)
	FindByBorrowRecord(ctx context.Context, recordID string) (*model.FineRecord, error)
	MarkPaid(ctx context.Context, id string, at time.Time) (*model.FineRecord, error)
	MarkPending(ctx context.Context, id string) error
	Find(ctx context.Context, userID string, status model.FineStatus, limit int, offset int64) ([]*model.FineRecord, error)
	Count(ctx context.Context, userID string, status model.FineStatus) (int64, error)
}

func NewMongoFineRepository(cfg *config.Config) FineRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoFineRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(FineRecordsCollection),
	}
}

// Create inserts a pending fine. The unique index on borrow_record_id keeps
// it to one fine per loan.
func (r *mongoFineRepository) Create(ctx context.Context, fine *model.FineRecord) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, fine)
	if err != nil {
		if mongodb.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", lifecycleerrors.ErrFineExists, fine.BorrowRecordID)
		}
		return fmt.Errorf("failed to create fine: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		fine.ID = oid.Hex()
	}
	return nil
}

func (r *mongoFineRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(id)
	if err != nil {
		return err
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete fine: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", lifecycleerrors.ErrFineNotFound, id)
	}
	return nil
}

func (r *mongoFineRepository) FindByID(ctx context.Context, id string) (*model.FineRecord, error) {
	objectID, err := objectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": objectID}, id)
}

func (r *mongoFineRepository) FindByBorrowRecord(ctx context.Context, recordID string) (*model.FineRecord, error) {
	return r.findOne(ctx, bson.M{"borrow_record_id": recordID}, recordID)
}

func (r *mongoFineRepository) findOne(ctx context.Context, filter bson.M, key string) (*model.FineRecord, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var fine model.FineRecord
	if err := r.collection.FindOne(ctx, filter).Decode(&fine); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", lifecycleerrors.ErrFineNotFound, key)
		}
		return nil, fmt.Errorf("failed to find fine: %w", err)
	}
	return &fine, nil
}

// MarkPaid flips pending to paid. A fine that is already paid does not match.
func (r *mongoFineRepository) MarkPaid(ctx context.Context, id string, at time.Time) (*model.FineRecord, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": objectID, "status": model.FinePending}
	update := bson.M{"$set": bson.M{"status": model.FinePaid, "paid_at": at}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var fine model.FineRecord
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&fine); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			n, countErr := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
			if countErr != nil {
				return nil, fmt.Errorf("failed to check fine existence: %w", countErr)
			}
			if n == 0 {
				return nil, fmt.Errorf("%w: %s", lifecycleerrors.ErrFineNotFound, id)
			}
			return nil, fmt.Errorf("%w: %s", lifecycleerrors.ErrFineNotPending, id)
		}
		return nil, fmt.Errorf("failed to mark fine paid: %w", err)
	}
	return &fine, nil
}

func (r *mongoFineRepository) MarkPending(ctx context.Context, id string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(id)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set":   bson.M{"status": model.FinePending},
		"$unset": bson.M{"paid_at": ""},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID, "status": model.FinePaid}, update)
	if err != nil {
		return fmt.Errorf("failed to revert fine payment: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", lifecycleerrors.ErrFineNotFound, id)
	}
	return nil
}

func (r *mongoFineRepository) Find(ctx context.Context, userID string, status model.FineStatus, limit int, offset int64) ([]*model.FineRecord, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, fineFilter(userID, status), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query fines: %w", err)
	}
	defer cursor.Close(ctx)

	fines := []*model.FineRecord{}
	if err = cursor.All(ctx, &fines); err != nil {
		return nil, fmt.Errorf("failed to decode fines: %w", err)
	}
	return fines, nil
}

func (r *mongoFineRepository) Count(ctx context.Context, userID string, status model.FineStatus) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, fineFilter(userID, status))
	if err != nil {
		return 0, fmt.Errorf("failed to count fines: %w", err)
	}
	return count, nil
}

func fineFilter(userID string, status model.FineStatus) bson.M {
	filter := ownerFilter(userID)
	if status != "" {
		filter["status"] = status
	}
	return filter
}
