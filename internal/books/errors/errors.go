package errors

import "errors"

var (
	ErrNotFound = errors.New("book not found")

	ErrInvalidID = errors.New("invalid book ID format")

	ErrDuplicateISBN = errors.New("book with this ISBN already exists")

	// ErrUnavailable means no copy is on the shelf.
	ErrUnavailable = errors.New("no copies available")

	// ErrFullyStocked means every copy is already on the shelf, so there is
	// nothing to put back.
	ErrFullyStocked = errors.New("all copies already available")

	ErrCopiesOnLoan = errors.New("book has copies on loan")

	// ErrStaleCounts is returned by an optimistic update when the copy
	// counters changed after they were read.
	ErrStaleCounts = errors.New("book copy counts changed concurrently")
)
