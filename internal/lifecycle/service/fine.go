package service

import (
	"context"
	"errors"

	lifecycleerrors "libris/internal/lifecycle/errors"
	"libris/internal/lifecycle/events"
	"libris/pkg/config"
	apperrors "libris/pkg/errors"
	"libris/pkg/middleware"
	"libris/pkg/model"
)

const msgFineAlreadyPaid = "Fine already paid"

// PayFine records payment of a pending fine and lowers the owner's
// outstanding balance. Paying unblocks the next return of the book.
func (s *lifecycleService) PayFine(ctx context.Context, p middleware.Principal, id string) (*model.FineRecord, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateID("fine_id", id); err != nil {
		return nil, invalidInput("Invalid fine ID format", err)
	}

	fine, err := s.fines.FindByID(ctx, id)
	if err != nil {
		return nil, s.fineError(err, id, "Failed to retrieve fine")
	}
	if !p.CanAccess(fine.UserID) {
		return nil, apperrors.Forbidden("You cannot pay another user's fine")
	}
	if !fine.IsPending() {
		return nil, apperrors.Conflict(msgFineAlreadyPaid)
	}

	paid, err := s.fines.MarkPaid(ctx, id, s.clock.Now())
	if err != nil {
		if errors.Is(err, lifecycleerrors.ErrFineNotPending) {
			return nil, apperrors.Conflict(msgFineAlreadyPaid)
		}
		return nil, s.fineError(err, id, "Failed to record fine payment")
	}

	comp := s.newCompensator()
	comp.Push("revert fine to pending", func(ctx context.Context) error {
		return s.fines.MarkPending(ctx, id)
	})

	if err := s.users.AdjustOutstandingFine(ctx, paid.UserID, -paid.Amount); err != nil {
		s.rollback(comp, err)
		return nil, s.accountError(err, paid.UserID, "Failed to update user outstanding fine")
	}
	comp.Discard()

	s.cfg.Log.Info("Fine paid successfully",
		"id", id,
		"user_id", paid.UserID,
		"amount", paid.Amount,
		"paid_by", p.UserID,
	)
	s.publish(ctx, events.New(events.FinePaid, paid.UserID, paid.BookID, id, *paid.PaidAt).WithAmount(paid.Amount))
	return paid, nil
}

// ListFines lists the caller's fines, or everyone's for an admin, newest first.
func (s *lifecycleService) ListFines(ctx context.Context, p middleware.Principal, status string, limit int, offset int64) ([]*model.FineRecord, int64, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, 0, err
	}
	if err := s.validator.ValidateFineStatus(status); err != nil {
		return nil, 0, invalidInput("Invalid fine status filter", err)
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	owner := p.UserID
	if p.IsAdmin() {
		owner = ""
	}
	fineStatus := model.FineStatus(status)

	fines, total, err := fetchPage(ctx, s.cfg.ReadTimeout,
		func(ctx context.Context) (int64, error) { return s.fines.Count(ctx, owner, fineStatus) },
		func(ctx context.Context) ([]*model.FineRecord, error) {
			return s.fines.Find(ctx, owner, fineStatus, limit, offset)
		},
	)
	if err != nil {
		s.cfg.Log.Error("Failed to list fines", "user_id", p.UserID, "status", status, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve fines", err)
	}
	return fines, total, nil
}

func (s *lifecycleService) fineError(err error, id, message string) error {
	switch {
	case errors.Is(err, lifecycleerrors.ErrFineNotFound):
		return apperrors.NotFoundWithID("Fine", id)
	case errors.Is(err, lifecycleerrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid fine ID format")
	}
	s.cfg.Log.Error(message, "id", id, "error", err)
	return apperrors.Internal(message, err)
}
