package model

import (
	"fmt"
	"time"
)

type ReservationStatus string

const (
	ReservationPending  ReservationStatus = "pending"
	ReservationAccepted ReservationStatus = "accepted"
	ReservationRejected ReservationStatus = "rejected"
	ReservationExpired  ReservationStatus = "expired"
)

// reservationTransitions lists every legal status change. Anything absent is illegal.
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending: {ReservationAccepted, ReservationRejected, ReservationExpired},
}

func (s ReservationStatus) String() string {
	return string(s)
}

func (s ReservationStatus) IsValid() bool {
	switch s {
	case ReservationPending, ReservationAccepted, ReservationRejected, ReservationExpired:
		return true
	}
	return false
}

func (s ReservationStatus) IsTerminal() bool {
	return s.IsValid() && len(reservationTransitions[s]) == 0
}

func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ReleasesCopy reports whether entering this status hands the held copy back to the shelf.
func (s ReservationStatus) ReleasesCopy() bool {
	return s == ReservationRejected || s == ReservationExpired
}

type TransitionError struct {
	From ReservationStatus
	To   ReservationStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal reservation transition %s -> %s", e.From, e.To)
}

func ValidateReservationTransition(from, to ReservationStatus) error {
	if !from.CanTransitionTo(to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

type Reservation struct {
	ID             string            `json:"id,omitempty" bson:"_id,omitempty"`
	UserID         string            `json:"user_id" bson:"user_id"`
	BookID         string            `json:"book_id" bson:"book_id"`
	ReservedAt     time.Time         `json:"reserved_at" bson:"reserved_at"`
	ExpiresAt      time.Time         `json:"expires_at" bson:"expires_at"`
	Status         ReservationStatus `json:"status" bson:"status"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
	BorrowRecordID string            `json:"borrow_record_id,omitempty" bson:"borrow_record_id,omitempty"`
}

func NewReservation(userID, bookID string, now time.Time, holdWindow time.Duration) *Reservation {
	return &Reservation{
		UserID:     userID,
		BookID:     bookID,
		ReservedAt: now,
		ExpiresAt:  now.Add(holdWindow),
		Status:     ReservationPending,
	}
}

// IsExpiredAt is true once the hold window has passed, regardless of the stored status.
func (r *Reservation) IsExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

type ReserveRequest struct {
	BookID string `json:"book_id" validate:"required,mongodb"`
}

type ReservationAcceptance struct {
	Reservation *Reservation  `json:"reservation"`
	Record      *BorrowRecord `json:"record"`
}
