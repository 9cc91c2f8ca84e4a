package errors

import "errors"

var (
	ErrInvalidID = errors.New("invalid ID format")

	ErrBorrowRecordNotFound = errors.New("borrow record not found")

	// ErrActiveRecordExists is the duplicate key on the active (user, book) index.
	ErrActiveRecordExists = errors.New("active borrow record already exists")

	// ErrRecordNotActive means a conditional write expected an unreturned record.
	ErrRecordNotActive = errors.New("borrow record is not active")

	ErrReservationNotFound = errors.New("reservation not found")

	// ErrReservationNotPending means a status transition lost against another
	// writer or the hold window.
	ErrReservationNotPending = errors.New("reservation is not pending")

	ErrFineNotFound = errors.New("fine not found")

	ErrFineExists = errors.New("fine already issued for borrow record")

	ErrFineNotPending = errors.New("fine is not pending")
)
