package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	booksrepo "libris/internal/books/repository"
	lifecyclerepo "libris/internal/lifecycle/repository"
	"libris/internal/migrations/mongo/validators"
	notificationsrepo "libris/internal/notifications/repository"
	usersrepo "libris/internal/users/repository"
	"libris/pkg/logger"
)

var (
	BooksIndexes = []mongo.IndexModel{
		// Books without an ISBN stay out of the unique index.
		{
			Keys: bson.D{{Key: "isbn", Value: 1}},
			Options: options.Index().
				SetName("isbn_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"isbn": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "author", Value: 1}, {Key: "title", Value: 1}}},
	}

	UsersIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
	}

	BorrowRecordsIndexes = []mongo.IndexModel{
		// At most one active loan per user and book. The insert is the check.
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "book_id", Value: 1}},
			Options: options.Index().
				SetName("active_loan_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"returned": false}),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "issued_at", Value: -1}}},
		{Keys: bson.D{{Key: "returned", Value: 1}, {Key: "due_at", Value: 1}}},
	}

	ReservationsIndexes = []mongo.IndexModel{
		// Drives the expiry sweep.
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "reserved_at", Value: -1}}},
		{Keys: bson.D{{Key: "reserved_at", Value: -1}}},
	}

	FineRecordsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "borrow_record_id", Value: 1}},
			Options: options.Index().SetName("fine_per_loan_unique").SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	NotificationsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetName("event_unique").SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
)

type CollectionSpec struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

// Collections lists every collection the services use, in creation order.
func Collections() []CollectionSpec {
	return []CollectionSpec{
		{Name: usersrepo.CollectionName, Indexes: UsersIndexes, Validator: validators.UserValidator},
		{Name: booksrepo.CollectionName, Indexes: BooksIndexes, Validator: validators.BookValidator},
		{Name: lifecyclerepo.BorrowRecordsCollection, Indexes: BorrowRecordsIndexes, Validator: validators.BorrowRecordValidator},
		{Name: lifecyclerepo.ReservationsCollection, Indexes: ReservationsIndexes, Validator: validators.ReservationValidator},
		{Name: lifecyclerepo.FineRecordsCollection, Indexes: FineRecordsIndexes, Validator: validators.FineRecordValidator},
		{Name: notificationsrepo.CollectionName, Indexes: NotificationsIndexes, Validator: validators.NotificationValidator},
	}
}

// RunMigration creates or updates every collection with its validator and
// indexes. It is safe to run repeatedly.
func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	for _, def := range Collections() {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	log.Info("All migrations applied successfully", "database", db.Name())
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	names, err := db.Collection(name).Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "indexes", names)
	return nil
}
