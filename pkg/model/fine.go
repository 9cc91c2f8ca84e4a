package model

import "time"

type FineStatus string

const (
	FinePending FineStatus = "pending"
	FinePaid    FineStatus = "paid"
)

func (s FineStatus) IsValid() bool {
	return s == FinePending || s == FinePaid
}

type FineRecord struct {
	ID             string     `json:"id,omitempty" bson:"_id,omitempty"`
	BorrowRecordID string     `json:"borrow_record_id" bson:"borrow_record_id"`
	UserID         string     `json:"user_id" bson:"user_id"`
	BookID         string     `json:"book_id" bson:"book_id"`
	Amount         int64      `json:"amount" bson:"amount"`
	Status         FineStatus `json:"status" bson:"status"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
	PaidAt         *time.Time `json:"paid_at,omitempty" bson:"paid_at,omitempty"`
}

func (f *FineRecord) IsPending() bool {
	return f.Status == FinePending
}

// FinePolicy charges a flat rate for every started day past the due date.
type FinePolicy struct {
	RatePerDay int64
}

const day = 24 * time.Hour

// Assess returns ceil((returnedAt - due) / 24h) * RatePerDay, or 0 when not late.
func (p FinePolicy) Assess(due, returnedAt time.Time) int64 {
	late := returnedAt.Sub(due)
	if late <= 0 {
		return 0
	}
	days := int64(late / day)
	if late%day != 0 {
		days++
	}
	return days * p.RatePerDay
}
