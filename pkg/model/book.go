package model

import "time"

type Book struct {
	ID              string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Title           string    `json:"title" bson:"title" validate:"required,min=1,max=200"`
	Author          string    `json:"author" bson:"author" validate:"required,min=2,max=100"`
	ISBN            string    `json:"isbn,omitempty" bson:"isbn,omitempty" validate:"omitempty,isbn"`
	Genre           string    `json:"genre,omitempty" bson:"genre,omitempty" validate:"omitempty,max=50"`
	Description     string    `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=2000"`
	Language        string    `json:"language,omitempty" bson:"language,omitempty" validate:"omitempty,max=30"`
	Price           float64   `json:"price" bson:"price" validate:"gte=0"`
	CopiesTotal     int       `json:"copies_total" bson:"copies_total" validate:"gte=1,lte=10000"`
	CopiesAvailable int       `json:"copies_available" bson:"copies_available" validate:"gte=0,ltefield=CopiesTotal"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at"`
}

// OnLoan is the number of copies currently rented out or held by a reservation.
func (b *Book) OnLoan() int {
	return b.CopiesTotal - b.CopiesAvailable
}

type BookUpdate struct {
	Title       string   `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Author      string   `json:"author,omitempty" validate:"omitempty,min=2,max=100"`
	ISBN        *string  `json:"isbn,omitempty" validate:"omitempty,isbn"`
	Genre       *string  `json:"genre,omitempty" validate:"omitempty,max=50"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=2000"`
	Language    *string  `json:"language,omitempty" validate:"omitempty,max=30"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	CopiesTotal *int     `json:"copies_total,omitempty" validate:"omitempty,gte=1,lte=10000"`
}
