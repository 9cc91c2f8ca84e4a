package repository

import (
	"context"
	"errors"
	"fmt"

	bookserrors "libris/internal/books/errors"
	"libris/pkg/clock"
	"libris/pkg/config"
	mongodb "libris/pkg/db/mongo"
	"libris/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Books"
)

type mongoBookRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	clock      clock.Clock
}

type BookRepository interface {
	Create(ctx context.Context, b *model.Book) error
	FindByID(ctx context.Context, id string) (*model.Book, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Book, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id string, b *model.Book, seen *model.Book) error
	Delete(ctx context.Context, id string) error
	DecrementAvailable(ctx context.Context, id string) (*model.Book, error)
	IncrementAvailable(ctx context.Context, id string) (*model.Book, error)
}

func NewMongoBookRepository(cfg *config.Config, clk clock.Clock) BookRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		clock:      clk,
	}
}

func (r *mongoBookRepository) Create(ctx context.Context, b *model.Book) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, b)
	if err != nil {
		if mongodb.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", bookserrors.ErrDuplicateISBN, b.ISBN)
		}
		return fmt.Errorf("failed to create book: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		b.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookRepository) FindByID(ctx context.Context, id string) (*model.Book, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookserrors.ErrInvalidID, id)
	}

	var b model.Book
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", bookserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find book: %w", err)
	}
	return &b, nil
}

func (r *mongoBookRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Book, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer cursor.Close(ctx)

	books := []*model.Book{}
	if err = cursor.All(ctx, &books); err != nil {
		return nil, fmt.Errorf("failed to decode books: %w", err)
	}
	return books, nil
}

func (r *mongoBookRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return count, nil
}

// Update writes the catalog fields of b. The write only applies while the
// stored copy counters still equal the ones in seen.
func (r *mongoBookRepository) Update(ctx context.Context, id string, b *model.Book, seen *model.Book) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":              objectID,
		"copies_total":     seen.CopiesTotal,
		"copies_available": seen.CopiesAvailable,
	}
	set := bson.M{
		"title":            b.Title,
		"author":           b.Author,
		"genre":            b.Genre,
		"description":      b.Description,
		"language":         b.Language,
		"price":            b.Price,
		"copies_total":     b.CopiesTotal,
		"copies_available": b.CopiesAvailable,
		"updated_at":       b.UpdatedAt,
	}
	update := bson.M{"$set": set}
	// An empty ISBN must not reach the partial unique index.
	if b.ISBN != "" {
		set["isbn"] = b.ISBN
	} else {
		update["$unset"] = bson.M{"isbn": ""}
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		if mongodb.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", bookserrors.ErrDuplicateISBN, b.ISBN)
		}
		return fmt.Errorf("failed to update book: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.missOrConflict(ctx, objectID, id, bookserrors.ErrStaleCounts)
	}
	return nil
}

// Delete removes the book only while every copy is on the shelf.
func (r *mongoBookRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":   objectID,
		"$expr": bson.M{"$eq": bson.A{"$copies_available", "$copies_total"}},
	}
	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	if result.DeletedCount == 0 {
		return r.missOrConflict(ctx, objectID, id, bookserrors.ErrCopiesOnLoan)
	}
	return nil
}

// DecrementAvailable takes one copy off the shelf in a single conditional
// update, so two callers can never both take the last copy.
func (r *mongoBookRepository) DecrementAvailable(ctx context.Context, id string) (*model.Book, error) {
	return r.shiftAvailable(ctx, id, -1,
		bson.M{"copies_available": bson.M{"$gte": 1}},
		bookserrors.ErrUnavailable,
	)
}

// IncrementAvailable puts one copy back, never above copies_total.
func (r *mongoBookRepository) IncrementAvailable(ctx context.Context, id string) (*model.Book, error) {
	return r.shiftAvailable(ctx, id, 1,
		bson.M{"$expr": bson.M{"$lt": bson.A{"$copies_available", "$copies_total"}}},
		bookserrors.ErrFullyStocked,
	)
}

func (r *mongoBookRepository) shiftAvailable(ctx context.Context, id string, delta int, guard bson.M, guardErr error) (*model.Book, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}
	for k, v := range guard {
		filter[k] = v
	}
	update := bson.M{
		"$inc": bson.M{"copies_available": delta},
		"$set": bson.M{"updated_at": r.clock.Now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var b model.Book
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&b)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.missOrConflict(ctx, objectID, id, guardErr)
		}
		return nil, fmt.Errorf("failed to update book availability: %w", err)
	}
	return &b, nil
}

// missOrConflict tells a missing book apart from a guard that did not match.
func (r *mongoBookRepository) missOrConflict(ctx context.Context, objectID primitive.ObjectID, id string, guardErr error) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to check book existence: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", bookserrors.ErrNotFound, id)
	}
	return fmt.Errorf("%w: %s", guardErr, id)
}
