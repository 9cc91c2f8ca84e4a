package model

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole whitelists the requested role. Anything but "admin" becomes a plain user.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

type User struct {
	ID                 string    `json:"id,omitempty" bson:"_id,omitempty"`
	Name               string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Email              string    `json:"email" bson:"email" validate:"required,email,max=254"`
	PasswordHash       string    `json:"-" bson:"password_hash"`
	Role               Role      `json:"role" bson:"role" validate:"required,oneof=user admin"`
	BorrowedBooksCount int       `json:"borrowed_books_count" bson:"borrowed_books_count"`
	OutstandingFine    int64     `json:"outstanding_fine" bson:"outstanding_fine"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72,password_strength"`
	Role     string `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
