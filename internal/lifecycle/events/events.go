package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	RentalCreated       Type = "rental.created"
	RentalReturned      Type = "rental.returned"
	FineIssued          Type = "fine.issued"
	FinePaid            Type = "fine.paid"
	ReservationCreated  Type = "reservation.created"
	ReservationAccepted Type = "reservation.accepted"
	ReservationRejected Type = "reservation.rejected"
	ReservationExpired  Type = "reservation.expired"
)

const SchemaVersion = "1"

var known = map[Type]struct{}{
	RentalCreated: {}, RentalReturned: {}, FineIssued: {}, FinePaid: {},
	ReservationCreated: {}, ReservationAccepted: {}, ReservationRejected: {}, ReservationExpired: {},
}

func (t Type) IsValid() bool {
	_, ok := known[t]
	return ok
}

// Event is one committed lifecycle transition. ReferenceID points at the
// borrow record, reservation or fine the event is about.
type Event struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	UserID      string    `json:"user_id"`
	BookID      string    `json:"book_id"`
	ReferenceID string    `json:"reference_id"`
	Amount      int64     `json:"amount,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func New(t Type, userID, bookID, referenceID string, at time.Time) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		UserID:      userID,
		BookID:      bookID,
		ReferenceID: referenceID,
		OccurredAt:  at,
	}
}

func (e Event) WithAmount(amount int64) Event {
	e.Amount = amount
	return e
}

// Describe renders the user facing text of a notification for e.
func (e Event) Describe() string {
	switch e.Type {
	case RentalCreated:
		return fmt.Sprintf("You rented book %s.", e.BookID)
	case RentalReturned:
		return fmt.Sprintf("You returned book %s.", e.BookID)
	case FineIssued:
		return fmt.Sprintf("Book %s is overdue. A fine of %d was issued.", e.BookID, e.Amount)
	case FinePaid:
		return fmt.Sprintf("Your fine of %d for book %s was paid.", e.Amount, e.BookID)
	case ReservationCreated:
		return fmt.Sprintf("Book %s is on hold for you.", e.BookID)
	case ReservationAccepted:
		return fmt.Sprintf("Your reservation of book %s was accepted.", e.BookID)
	case ReservationRejected:
		return fmt.Sprintf("Your reservation of book %s was rejected.", e.BookID)
	case ReservationExpired:
		return fmt.Sprintf("Your reservation of book %s expired.", e.BookID)
	}
	return string(e.Type)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NoopPublisher drops events. It is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error {
	return nil
}
