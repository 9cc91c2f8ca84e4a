package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	lifecycleerrors "libris/internal/lifecycle/errors"
	"libris/internal/lifecycle/events"
	"libris/pkg/config"
	apperrors "libris/pkg/errors"
	"libris/pkg/middleware"
	"libris/pkg/model"
)

// Reserve holds one copy for the caller until the hold window lapses.
func (s *lifecycleService) Reserve(ctx context.Context, p middleware.Principal, req *model.ReserveRequest) (*model.Reservation, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateReserve(req); err != nil {
		return nil, invalidInput("Invalid reservation request", err)
	}

	if _, err := s.books.DecrementAvailable(ctx, req.BookID); err != nil {
		s.cfg.Log.Warn("Reservation rejected", "user_id", p.UserID, "book_id", req.BookID, "error", err)
		return nil, s.inventoryError(err, req.BookID)
	}

	comp := s.newCompensator()
	comp.Push("restore book availability", func(ctx context.Context) error {
		_, err := s.books.IncrementAvailable(ctx, req.BookID)
		return err
	})

	reservation := model.NewReservation(p.UserID, req.BookID, s.clock.Now(), s.cfg.HoldWindow)
	if err := s.reservations.Create(ctx, reservation); err != nil {
		s.rollback(comp, err)
		s.cfg.Log.Error("Failed to create reservation", "user_id", p.UserID, "book_id", req.BookID, "error", err)
		return nil, apperrors.Internal("Failed to create reservation", err)
	}
	comp.Discard()

	s.cfg.Log.Info("Reservation created successfully",
		"id", reservation.ID,
		"user_id", p.UserID,
		"book_id", req.BookID,
		"expires_at", reservation.ExpiresAt,
	)
	s.publish(ctx, events.New(events.ReservationCreated, p.UserID, req.BookID, reservation.ID, reservation.ReservedAt))
	return reservation, nil
}

// AcceptReservation turns a live hold into a loan. The held copy becomes the
// rented copy, so availability does not move.
func (s *lifecycleService) AcceptReservation(ctx context.Context, p middleware.Principal, id string) (*model.ReservationAcceptance, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateID("reservation_id", id); err != nil {
		return nil, invalidInput("Invalid reservation ID format", err)
	}

	reservation, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		return nil, s.reservationError(err, id, "Failed to retrieve reservation")
	}
	if !p.CanAccess(reservation.UserID) {
		return nil, apperrors.Forbidden("You cannot accept another user's reservation")
	}
	if reservation.Status != model.ReservationPending {
		return nil, alreadyResolved(reservation.Status)
	}
	now := s.clock.Now()
	if reservation.IsExpiredAt(now) {
		return nil, apperrors.Precondition("Reservation expired")
	}

	accepted, err := s.reservations.Transition(ctx, id, model.ReservationAccepted, now)
	if err != nil {
		if errors.Is(err, lifecycleerrors.ErrReservationNotPending) {
			return nil, s.lostTransition(ctx, id)
		}
		return nil, s.reservationError(err, id, "Failed to accept reservation")
	}

	comp := s.newCompensator()
	comp.Push("revert reservation to pending", func(ctx context.Context) error {
		return s.reservations.Revert(ctx, id, model.ReservationAccepted)
	})

	record, err := s.openLoan(ctx, comp, accepted.UserID, accepted.BookID, id,
		"User already has an active rental for this book")
	if err != nil {
		return nil, err
	}
	comp.Discard()

	if err := s.reservations.AttachBorrowRecord(ctx, id, record.ID); err != nil {
		s.cfg.Log.Warn("Failed to link borrow record to reservation",
			"reservation_id", id,
			"record_id", record.ID,
			"error", err,
		)
	}
	accepted.BorrowRecordID = record.ID

	s.cfg.Log.Info("Reservation accepted successfully",
		"id", id,
		"record_id", record.ID,
		"user_id", accepted.UserID,
		"accepted_by", p.UserID,
	)
	s.publish(ctx, events.New(events.ReservationAccepted, accepted.UserID, accepted.BookID, id, now))
	return &model.ReservationAcceptance{Reservation: accepted, Record: record}, nil
}

// RejectReservation cancels a pending hold and puts its copy back.
func (s *lifecycleService) RejectReservation(ctx context.Context, p middleware.Principal, id string) (*model.Reservation, error) {
	if !p.IsAdmin() {
		return nil, apperrors.Forbidden("Only admins can reject reservations")
	}
	if err := s.validator.ValidateID("reservation_id", id); err != nil {
		return nil, invalidInput("Invalid reservation ID format", err)
	}

	now := s.clock.Now()
	rejected, err := s.reservations.Transition(ctx, id, model.ReservationRejected, now)
	if err != nil {
		if errors.Is(err, lifecycleerrors.ErrReservationNotPending) {
			return nil, s.lostTransition(ctx, id)
		}
		return nil, s.reservationError(err, id, "Failed to reject reservation")
	}

	if err := s.releaseHold(ctx, rejected); err != nil {
		return nil, apperrors.Internal("Failed to restore book availability", err)
	}

	s.cfg.Log.Info("Reservation rejected successfully",
		"id", id,
		"user_id", rejected.UserID,
		"book_id", rejected.BookID,
		"rejected_by", p.UserID,
	)
	s.publish(ctx, events.New(events.ReservationRejected, rejected.UserID, rejected.BookID, id, now))
	return rejected, nil
}

// ExpireDue expires up to batch lapsed holds. Each one is flipped with its own
// conditional transition, so holds accepted or rejected in the meantime are
// skipped. The copy goes back only when the flip won; if that fails the flip
// is reverted and the next sweep retries.
func (s *lifecycleService) ExpireDue(ctx context.Context, now time.Time, batch int) (int, error) {
	due, err := s.reservations.FindDue(ctx, now, batch)
	if err != nil {
		s.cfg.Log.Error("Failed to find due reservations", "error", err)
		return 0, apperrors.Internal("Failed to find due reservations", err)
	}

	expired := 0
	for _, r := range due {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}

		flipped, err := s.reservations.Transition(ctx, r.ID, model.ReservationExpired, now)
		if err != nil {
			if errors.Is(err, lifecycleerrors.ErrReservationNotPending) || errors.Is(err, lifecycleerrors.ErrReservationNotFound) {
				s.cfg.Log.Debug("Reservation resolved before expiry", "id", r.ID)
				continue
			}
			s.cfg.Log.Error("Failed to expire reservation", "id", r.ID, "error", err)
			continue
		}

		if err := s.releaseHold(ctx, flipped); err != nil {
			continue
		}

		expired++
		s.publish(ctx, events.New(events.ReservationExpired, flipped.UserID, flipped.BookID, flipped.ID, now))
	}

	if expired > 0 {
		s.cfg.Log.Info("Expired reservations", "count", expired, "scanned", len(due))
	}
	return expired, nil
}

// releaseHold returns the copy held by a reservation that just left pending.
// If the copy cannot be returned the reservation goes back to pending.
func (s *lifecycleService) releaseHold(ctx context.Context, r *model.Reservation) error {
	_, err := s.books.IncrementAvailable(ctx, r.BookID)
	if err == nil {
		return nil
	}

	s.cfg.Log.Error("Failed to release reserved copy",
		"reservation_id", r.ID,
		"book_id", r.BookID,
		"status", r.Status,
		"error", err,
	)
	comp := s.newCompensator()
	comp.Push("revert reservation to pending", func(ctx context.Context) error {
		return s.reservations.Revert(ctx, r.ID, r.Status)
	})
	s.rollback(comp, err)
	return err
}

func (s *lifecycleService) ListReservations(ctx context.Context, p middleware.Principal, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, 0, err
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	owner := p.UserID
	if p.IsAdmin() {
		owner = ""
	}

	reservations, total, err := fetchPage(ctx, s.cfg.ReadTimeout,
		func(ctx context.Context) (int64, error) { return s.reservations.Count(ctx, owner) },
		func(ctx context.Context) ([]*model.Reservation, error) {
			return s.reservations.Find(ctx, owner, limit, offset)
		},
	)
	if err != nil {
		s.cfg.Log.Error("Failed to list reservations", "user_id", p.UserID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve reservations", err)
	}
	return reservations, total, nil
}

// lostTransition re-reads a reservation whose conditional transition did not
// match and reports why.
func (s *lifecycleService) lostTransition(ctx context.Context, id string) error {
	current, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		return s.reservationError(err, id, "Failed to retrieve reservation")
	}
	if current.Status != model.ReservationPending {
		return alreadyResolved(current.Status)
	}
	return apperrors.Precondition("Reservation expired")
}

func alreadyResolved(status model.ReservationStatus) error {
	return apperrors.Precondition(fmt.Sprintf("Reservation already %s", status)).WithDetails(map[string]any{
		"status": status,
	})
}

func (s *lifecycleService) reservationError(err error, id, message string) error {
	switch {
	case errors.Is(err, lifecycleerrors.ErrReservationNotFound):
		return apperrors.NotFoundWithID("Reservation", id)
	case errors.Is(err, lifecycleerrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid reservation ID format")
	}
	s.cfg.Log.Error(message, "id", id, "error", err)
	return apperrors.Internal(message, err)
}
