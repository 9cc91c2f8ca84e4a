package model

import "time"

type BorrowRecord struct {
	ID            string     `json:"id,omitempty" bson:"_id,omitempty"`
	UserID        string     `json:"user_id" bson:"user_id"`
	BookID        string     `json:"book_id" bson:"book_id"`
	ReservationID string     `json:"reservation_id,omitempty" bson:"reservation_id,omitempty"`
	IssuedAt      time.Time  `json:"issued_at" bson:"issued_at"`
	DueAt         time.Time  `json:"due_at" bson:"due_at"`
	ReturnedAt    *time.Time `json:"returned_at,omitempty" bson:"returned_at,omitempty"`
	Returned      bool       `json:"returned" bson:"returned"`
	Late          bool       `json:"late" bson:"late"`
	FineAmount    int64      `json:"fine_amount" bson:"fine_amount"`
}

// NewBorrowRecord opens an active loan issued at now and due one loan period later.
func NewBorrowRecord(userID, bookID string, now time.Time, loanPeriod time.Duration) *BorrowRecord {
	return &BorrowRecord{
		UserID:   userID,
		BookID:   bookID,
		IssuedAt: now,
		DueAt:    now.Add(loanPeriod),
	}
}

func (r *BorrowRecord) IsActive() bool {
	return !r.Returned
}

func (r *BorrowRecord) IsOverdue(now time.Time) bool {
	return now.After(r.DueAt)
}

type RentRequest struct {
	BookID string `json:"book_id" validate:"required,mongodb"`
}

type ReturnRequest struct {
	BookID string `json:"book_id" validate:"required,mongodb"`
}

// ReturnResult carries the closed record and, for a late return, the fine
// that was paid to unblock it.
type ReturnResult struct {
	Message string        `json:"message"`
	Record  *BorrowRecord `json:"record"`
	Fine    *FineRecord   `json:"fine,omitempty"`
}
