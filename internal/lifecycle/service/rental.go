package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	lifecycleerrors "libris/internal/lifecycle/errors"
	"libris/internal/lifecycle/events"
	"libris/pkg/config"
	mongodb "libris/pkg/db/mongo"
	apperrors "libris/pkg/errors"
	"libris/pkg/middleware"
	"libris/pkg/model"
)

const (
	msgActiveRental   = "You already have an active rental for this book"
	msgNoActiveRental = "No active rental found"
	msgFinePending    = "Pay the outstanding fine before returning this book"
)

// Rent takes a copy off the shelf and opens a loan for the caller. The copy
// is claimed first; every later failure puts it back.
func (s *lifecycleService) Rent(ctx context.Context, p middleware.Principal, req *model.RentRequest) (*model.BorrowRecord, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateRent(req); err != nil {
		return nil, invalidInput("Invalid rental request", err)
	}

	if _, err := s.books.DecrementAvailable(ctx, req.BookID); err != nil {
		s.cfg.Log.Warn("Rent rejected", "user_id", p.UserID, "book_id", req.BookID, "error", err)
		return nil, s.inventoryError(err, req.BookID)
	}

	comp := s.newCompensator()
	comp.Push("restore book availability", func(ctx context.Context) error {
		_, err := s.books.IncrementAvailable(ctx, req.BookID)
		return err
	})

	record, err := s.openLoan(ctx, comp, p.UserID, req.BookID, "", msgActiveRental)
	if err != nil {
		return nil, err
	}
	comp.Discard()

	s.cfg.Log.Info("Book rented successfully",
		"record_id", record.ID,
		"user_id", p.UserID,
		"book_id", req.BookID,
		"due_at", record.DueAt,
	)
	s.publish(ctx, events.New(events.RentalCreated, p.UserID, req.BookID, record.ID, record.IssuedAt))
	return record, nil
}

// openLoan inserts the borrow record and bumps the user's borrow count. On
// failure it rolls back comp, including the steps the caller pushed.
func (s *lifecycleService) openLoan(
	ctx context.Context,
	comp *mongodb.Compensator,
	userID, bookID, reservationID, duplicateMsg string,
) (*model.BorrowRecord, error) {
	record := model.NewBorrowRecord(userID, bookID, s.clock.Now(), s.cfg.LoanPeriod)
	record.ReservationID = reservationID

	if err := s.borrows.Create(ctx, record); err != nil {
		s.rollback(comp, err)
		if errors.Is(err, lifecycleerrors.ErrActiveRecordExists) {
			s.cfg.Log.Warn("Duplicate active rental", "user_id", userID, "book_id", bookID)
			return nil, apperrors.Precondition(duplicateMsg)
		}
		s.cfg.Log.Error("Failed to create borrow record", "user_id", userID, "book_id", bookID, "error", err)
		return nil, apperrors.Internal("Failed to create borrow record", err)
	}
	comp.Push("delete borrow record", func(ctx context.Context) error {
		return s.borrows.Delete(ctx, record.ID)
	})

	if err := s.users.AdjustBorrowedCount(ctx, userID, 1); err != nil {
		s.rollback(comp, err)
		return nil, s.accountError(err, userID, "Failed to update user borrow count")
	}

	return record, nil
}

// Return closes the caller's active loan of a book. An overdue loan is only
// closed once its fine is paid; the first late attempt issues the fine.
func (s *lifecycleService) Return(ctx context.Context, p middleware.Principal, req *model.ReturnRequest) (*model.ReturnResult, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateReturn(req); err != nil {
		return nil, invalidInput("Invalid return request", err)
	}

	record, err := s.borrows.FindActive(ctx, p.UserID, req.BookID)
	if err != nil {
		if errors.Is(err, lifecycleerrors.ErrBorrowRecordNotFound) {
			return nil, apperrors.Precondition(msgNoActiveRental)
		}
		s.cfg.Log.Error("Failed to find active rental", "user_id", p.UserID, "book_id", req.BookID, "error", err)
		return nil, apperrors.Internal("Failed to find active rental", err)
	}

	now := s.clock.Now()
	var paidFine *model.FineRecord
	if record.Late || record.IsOverdue(now) {
		fine, err := s.fines.FindByBorrowRecord(ctx, record.ID)
		switch {
		case errors.Is(err, lifecycleerrors.ErrFineNotFound):
			if blocked := s.issueFine(ctx, record, now); blocked != nil {
				return nil, blocked
			}
		case err != nil:
			s.cfg.Log.Error("Failed to look up fine", "record_id", record.ID, "error", err)
			return nil, apperrors.Internal("Failed to look up fine", err)
		case fine.IsPending():
			return nil, finePendingError(fine)
		default:
			paidFine = fine
		}
	}

	returned, err := s.borrows.MarkReturned(ctx, record.ID, now)
	if err != nil {
		if errors.Is(err, lifecycleerrors.ErrRecordNotActive) {
			return nil, apperrors.Precondition(msgNoActiveRental)
		}
		s.cfg.Log.Error("Failed to mark rental returned", "record_id", record.ID, "error", err)
		return nil, apperrors.Internal("Failed to return book", err)
	}

	comp := s.newCompensator()
	comp.Push("reopen borrow record", func(ctx context.Context) error {
		return s.borrows.Unreturn(ctx, record.ID)
	})

	if err := s.users.AdjustBorrowedCount(ctx, p.UserID, -1); err != nil {
		s.rollback(comp, err)
		return nil, s.accountError(err, p.UserID, "Failed to update user borrow count")
	}
	comp.Push("restore user borrow count", func(ctx context.Context) error {
		return s.users.AdjustBorrowedCount(ctx, p.UserID, 1)
	})

	if _, err := s.books.IncrementAvailable(ctx, req.BookID); err != nil {
		s.rollback(comp, err)
		s.cfg.Log.Error("Failed to restore book availability", "book_id", req.BookID, "error", err)
		return nil, apperrors.Internal("Failed to restore book availability", err)
	}
	comp.Discard()

	s.cfg.Log.Info("Book returned successfully",
		"record_id", record.ID,
		"user_id", p.UserID,
		"book_id", req.BookID,
		"late", returned.Late,
	)
	s.publish(ctx, events.New(events.RentalReturned, p.UserID, req.BookID, record.ID, now))

	return &model.ReturnResult{
		Message: "Book returned",
		Record:  returned,
		Fine:    paidFine,
	}, nil
}

// issueFine records the fine for an overdue loan and returns the error that
// blocks the return. It returns nil only when the policy charges nothing.
func (s *lifecycleService) issueFine(ctx context.Context, record *model.BorrowRecord, now time.Time) error {
	amount := s.policy.Assess(record.DueAt, now)
	if amount == 0 {
		return nil
	}

	fine := &model.FineRecord{
		BorrowRecordID: record.ID,
		UserID:         record.UserID,
		BookID:         record.BookID,
		Amount:         amount,
		Status:         model.FinePending,
		CreatedAt:      now,
	}
	if err := s.fines.Create(ctx, fine); err != nil {
		if errors.Is(err, lifecycleerrors.ErrFineExists) {
			return apperrors.Precondition(msgFinePending)
		}
		s.cfg.Log.Error("Failed to create fine", "record_id", record.ID, "error", err)
		return apperrors.Internal("Failed to create fine", err)
	}

	comp := s.newCompensator()
	comp.Push("delete fine", func(ctx context.Context) error {
		return s.fines.Delete(ctx, fine.ID)
	})

	if err := s.users.AdjustOutstandingFine(ctx, record.UserID, amount); err != nil {
		s.rollback(comp, err)
		return s.accountError(err, record.UserID, "Failed to update user outstanding fine")
	}
	comp.Push("restore user outstanding fine", func(ctx context.Context) error {
		return s.users.AdjustOutstandingFine(ctx, record.UserID, -amount)
	})

	if err := s.borrows.MarkLate(ctx, record.ID, amount); err != nil {
		s.rollback(comp, err)
		s.cfg.Log.Error("Failed to mark rental late", "record_id", record.ID, "error", err)
		return apperrors.Internal("Failed to record late return", err)
	}
	comp.Discard()

	s.cfg.Log.Warn("Overdue return blocked, fine issued",
		"fine_id", fine.ID,
		"record_id", record.ID,
		"user_id", record.UserID,
		"amount", amount,
	)
	s.publish(ctx, events.New(events.FineIssued, record.UserID, record.BookID, fine.ID, now).WithAmount(amount))

	return apperrors.Precondition(
		fmt.Sprintf("Book is overdue: pay the fine of %d before returning", amount),
	).WithDetails(map[string]any{
		"fine_id": fine.ID,
		"amount":  amount,
		"due_at":  record.DueAt,
	})
}

func finePendingError(fine *model.FineRecord) error {
	return apperrors.Precondition(msgFinePending).WithDetails(map[string]any{
		"fine_id": fine.ID,
		"amount":  fine.Amount,
	})
}

func (s *lifecycleService) History(ctx context.Context, p middleware.Principal, limit int, offset int64) ([]*model.BorrowRecord, int64, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, 0, err
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	records, total, err := fetchPage(ctx, s.cfg.ReadTimeout,
		func(ctx context.Context) (int64, error) { return s.borrows.CountByUser(ctx, p.UserID) },
		func(ctx context.Context) ([]*model.BorrowRecord, error) {
			return s.borrows.FindByUser(ctx, p.UserID, limit, offset)
		},
	)
	if err != nil {
		s.cfg.Log.Error("Failed to load rental history",
			"user_id", p.UserID,
			"limit", limit,
			"offset", offset,
			"error", err,
		)
		return nil, 0, apperrors.Internal("Failed to retrieve rental history", err)
	}
	return records, total, nil
}
