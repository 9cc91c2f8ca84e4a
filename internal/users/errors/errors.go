package errors

import "errors"

var (
	ErrNotFound = errors.New("user not found")

	ErrInvalidID = errors.New("invalid user ID format")

	ErrEmailTaken = errors.New("email already registered")

	// ErrCounterUnderflow is returned when a decrement would drive a user
	// counter below zero.
	ErrCounterUnderflow = errors.New("user counter would become negative")
)
