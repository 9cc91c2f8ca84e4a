// Package library wires repositories, services and handlers into the
// components the binaries run.
package library

import (
	bookshandler "libris/internal/books/handler"
	booksrepo "libris/internal/books/repository"
	booksservice "libris/internal/books/service"
	booksvalidator "libris/internal/books/validator"
	"libris/internal/lifecycle/events"
	lifecyclehandler "libris/internal/lifecycle/handler"
	lifecyclerepo "libris/internal/lifecycle/repository"
	lifecycleservice "libris/internal/lifecycle/service"
	lifecyclevalidator "libris/internal/lifecycle/validator"
	notificationshandler "libris/internal/notifications/handler"
	notificationsrepo "libris/internal/notifications/repository"
	notificationsservice "libris/internal/notifications/service"
	usershandler "libris/internal/users/handler"
	usersrepo "libris/internal/users/repository"
	usersservice "libris/internal/users/service"
	usersvalidator "libris/internal/users/validator"
	"libris/pkg/clock"
	"libris/pkg/config"
	"libris/pkg/contracts"
	"libris/pkg/jwt"
	"libris/pkg/middleware"
	"libris/pkg/password"
)

// NewLifecycleService builds the rental lifecycle on the Mongo repositories.
func NewLifecycleService(cfg *config.Config, publisher events.Publisher, clk clock.Clock) lifecycleservice.LifecycleService {
	return lifecycleservice.NewLifecycleService(lifecycleservice.Dependencies{
		Books:        booksrepo.NewMongoBookRepository(cfg, clk),
		Users:        usersrepo.NewMongoUserRepository(cfg),
		Borrows:      lifecyclerepo.NewMongoBorrowRecordRepository(cfg),
		Reservations: lifecyclerepo.NewMongoReservationRepository(cfg),
		Fines:        lifecyclerepo.NewMongoFineRepository(cfg),
		Events:       publisher,
		Validator:    lifecyclevalidator.NewLifecycleValidator(cfg.Log),
		Clock:        clk,
	}, cfg)
}

// Handlers returns every API handler of the library service. cfg must carry
// a JWT secret.
func Handlers(cfg *config.Config, publisher events.Publisher, clk clock.Clock) []contracts.Handler {
	tokens := jwt.NewService(cfg.JWTSecret, cfg.JWTTokenDuration, cfg.JWTIssuer, clk)
	auth := middleware.NewAuthenticator(tokens, cfg.Log)

	userService := usersservice.NewUserService(
		usersrepo.NewMongoUserRepository(cfg),
		usersvalidator.NewUserValidator(cfg.Log),
		password.NewHasher(cfg.BcryptCost),
		tokens,
		clk,
		cfg,
	)
	bookService := booksservice.NewBookService(
		booksrepo.NewMongoBookRepository(cfg, clk),
		booksvalidator.NewBookValidator(cfg.Log),
		clk,
		cfg,
	)
	notificationService := notificationsservice.NewNotificationService(
		notificationsrepo.NewMongoNotificationRepository(cfg), clk, cfg,
	)

	cfg.Log.Info("Library services initialized", "database", cfg.MongoDatabaseName)

	return []contracts.Handler{
		usershandler.NewUserHandler(userService, auth, cfg.Log),
		bookshandler.NewBookHandler(bookService, auth, cfg.Log),
		lifecyclehandler.NewLifecycleHandler(NewLifecycleService(cfg, publisher, clk), auth, cfg.Log),
		notificationshandler.NewNotificationHandler(notificationService, auth, cfg.Log),
	}
}
