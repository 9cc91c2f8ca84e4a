package service

import (
	"context"
	"errors"
	"sync"
	"time"

	bookserrors "libris/internal/books/errors"
	"libris/internal/lifecycle/events"
	"libris/internal/lifecycle/repository"
	"libris/internal/lifecycle/validator"
	userserrors "libris/internal/users/errors"
	"libris/pkg/clock"
	"libris/pkg/config"
	mongodb "libris/pkg/db/mongo"
	apperrors "libris/pkg/errors"
	"libris/pkg/middleware"
	"libris/pkg/model"
)

// Inventory moves single copies on and off the shelf with conditional updates.
type Inventory interface {
	DecrementAvailable(ctx context.Context, bookID string) (*model.Book, error)
	IncrementAvailable(ctx context.Context, bookID string) (*model.Book, error)
}

// Accounts maintains the denormalized per-user counters.
type Accounts interface {
	AdjustBorrowedCount(ctx context.Context, userID string, delta int) error
	AdjustOutstandingFine(ctx context.Context, userID string, delta int64) error
}

type LifecycleService interface {
	Rent(ctx context.Context, p middleware.Principal, req *model.RentRequest) (*model.BorrowRecord, error)
	Return(ctx context.Context, p middleware.Principal, req *model.ReturnRequest) (*model.ReturnResult, error)
	History(ctx context.Context, p middleware.Principal, limit int, offset int64) ([]*model.BorrowRecord, int64, error)

	Reserve(ctx context.Context, p middleware.Principal, req *model.ReserveRequest) (*model.Reservation, error)
	AcceptReservation(ctx context.Context, p middleware.Principal, id string) (*model.ReservationAcceptance, error)
	RejectReservation(ctx context.Context, p middleware.Principal, id string) (*model.Reservation, error)
	ListReservations(ctx context.Context, p middleware.Principal, limit int, offset int64) ([]*model.Reservation, int64, error)
	ExpireDue(ctx context.Context, now time.Time, batch int) (int, error)

	PayFine(ctx context.Context, p middleware.Principal, id string) (*model.FineRecord, error)
	ListFines(ctx context.Context, p middleware.Principal, status string, limit int, offset int64) ([]*model.FineRecord, int64, error)
}

type Dependencies struct {
	Books        Inventory
	Users        Accounts
	Borrows      repository.BorrowRecordRepository
	Reservations repository.ReservationRepository
	Fines        repository.FineRepository
	Events       events.Publisher
	Validator    *validator.LifecycleValidator
	Clock        clock.Clock
}

type lifecycleService struct {
	books        Inventory
	users        Accounts
	borrows      repository.BorrowRecordRepository
	reservations repository.ReservationRepository
	fines        repository.FineRepository
	events       events.Publisher
	validator    *validator.LifecycleValidator
	clock        clock.Clock
	policy       model.FinePolicy
	cfg          *config.Config
}

func NewLifecycleService(deps Dependencies, cfg *config.Config) LifecycleService {
	if deps.Events == nil {
		deps.Events = events.NoopPublisher{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.NewRealClock()
	}
	return &lifecycleService{
		books:        deps.Books,
		users:        deps.Users,
		borrows:      deps.Borrows,
		reservations: deps.Reservations,
		fines:        deps.Fines,
		events:       deps.Events,
		validator:    deps.Validator,
		clock:        deps.Clock,
		policy:       model.FinePolicy{RatePerDay: cfg.FinePerDay},
		cfg:          cfg,
	}
}

func (s *lifecycleService) newCompensator() *mongodb.Compensator {
	return mongodb.NewCompensator(s.cfg.Log, s.cfg.WriteTimeout)
}

// rollback undoes the applied steps. A failed undo leaves the counters out of
// step with the ledgers, which is logged for repair.
func (s *lifecycleService) rollback(comp *mongodb.Compensator, cause error) {
	if err := comp.Rollback(cause); err != nil {
		s.cfg.Log.Error("Lifecycle compensation incomplete",
			"cause", cause,
			"error", err,
		)
	}
}

// publish is best effort: the state change is already committed, so a
// broker failure is logged and not returned.
func (s *lifecycleService) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.cfg.Log.Warn("Failed to publish lifecycle event",
			"event_id", e.ID,
			"event_type", e.Type,
			"user_id", e.UserID,
			"error", err,
		)
	}
}

func requirePrincipal(p middleware.Principal) error {
	if p.UserID == "" {
		return apperrors.Unauthorized("Access token required")
	}
	return nil
}

func invalidInput(message string, err error) error {
	return apperrors.InvalidInput(message).WithDetails(map[string]any{
		"error": err.Error(),
	})
}

// inventoryError maps a failed shelf update for the rent and reserve paths.
func (s *lifecycleService) inventoryError(err error, bookID string) error {
	switch {
	case errors.Is(err, bookserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Book", bookID)
	case errors.Is(err, bookserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid book ID format")
	case errors.Is(err, bookserrors.ErrUnavailable):
		return apperrors.Precondition("Book unavailable").WithDetails(map[string]any{"book_id": bookID})
	}
	s.cfg.Log.Error("Failed to update book availability", "book_id", bookID, "error", err)
	return apperrors.Internal("Failed to update book availability", err)
}

func (s *lifecycleService) accountError(err error, userID, message string) error {
	if errors.Is(err, userserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("User", userID)
	}
	s.cfg.Log.Error(message, "user_id", userID, "error", err)
	return apperrors.Internal(message, err)
}

// fetchPage runs the count and the page query concurrently under one deadline.
func fetchPage[T any](
	ctx context.Context,
	timeout time.Duration,
	count func(ctx context.Context) (int64, error),
	find func(ctx context.Context) ([]T, error),
) ([]T, int64, error) {
	sharedCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var total int64
	var items []T
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = count(sharedCtx)
	}()

	go func() {
		defer wg.Done()
		items, errFind = find(sharedCtx)
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return items, total, nil
}
