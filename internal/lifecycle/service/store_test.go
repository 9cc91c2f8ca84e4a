package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	bookserrors "libris/internal/books/errors"
	lifecycleerrors "libris/internal/lifecycle/errors"
	"libris/internal/lifecycle/events"
	userserrors "libris/internal/users/errors"
	"libris/pkg/model"
)

// memStore keeps books, users and the three ledgers behind one mutex. Every
// method applies the same guard as the Mongo filter it stands in for, so
// concurrent callers race the way they would against the database.
type memStore struct {
	mu sync.Mutex

	seq          int
	books        map[string]*model.Book
	users        map[string]*model.User
	records      map[string]*model.BorrowRecord
	reservations map[string]*model.Reservation
	fines        map[string]*model.FineRecord

	// failures makes the named operation return the error once.
	failures map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		books:        map[string]*model.Book{},
		users:        map[string]*model.User{},
		records:      map[string]*model.BorrowRecord{},
		reservations: map[string]*model.Reservation{},
		fines:        map[string]*model.FineRecord{},
		failures:     map[string]error{},
	}
}

func (s *memStore) nextID() string {
	s.seq++
	return fmt.Sprintf("%024x", s.seq)
}

func (s *memStore) failOnce(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *memStore) injected(op string) error {
	err := s.failures[op]
	delete(s.failures, op)
	return err
}

func (s *memStore) addBook(total, available int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID()
	s.books[id] = &model.Book{ID: id, Title: "Book " + id, Author: "Author", CopiesTotal: total, CopiesAvailable: available}
	return id
}

func (s *memStore) addUser(role model.Role) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID()
	s.users[id] = &model.User{ID: id, Name: "User " + id, Email: id + "@example.com", Role: role}
	return id
}

func (s *memStore) book(id string) model.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.books[id]
}

func (s *memStore) user(id string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

func (s *memStore) reservation(id string) model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.reservations[id]
}

func (s *memStore) fine(id string) model.FineRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.fines[id]
}

func (s *memStore) activeRecords(userID, bookID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if !r.Returned && (userID == "" || r.UserID == userID) && (bookID == "" || r.BookID == bookID) {
			n++
		}
	}
	return n
}

func (s *memStore) pendingReservations(bookID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reservations {
		if r.Status == model.ReservationPending && r.BookID == bookID {
			n++
		}
	}
	return n
}

func (s *memStore) pendingFineTotal(userID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, f := range s.fines {
		if f.UserID == userID && f.IsPending() {
			total += f.Amount
		}
	}
	return total
}

// Inventory

func (s *memStore) DecrementAvailable(_ context.Context, bookID string) (*model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("DecrementAvailable"); err != nil {
		return nil, err
	}
	b, ok := s.books[bookID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bookserrors.ErrNotFound, bookID)
	}
	if b.CopiesAvailable < 1 {
		return nil, fmt.Errorf("%w: %s", bookserrors.ErrUnavailable, bookID)
	}
	b.CopiesAvailable--
	out := *b
	return &out, nil
}

func (s *memStore) IncrementAvailable(_ context.Context, bookID string) (*model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("IncrementAvailable"); err != nil {
		return nil, err
	}
	b, ok := s.books[bookID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bookserrors.ErrNotFound, bookID)
	}
	if b.CopiesAvailable >= b.CopiesTotal {
		return nil, fmt.Errorf("%w: %s", bookserrors.ErrFullyStocked, bookID)
	}
	b.CopiesAvailable++
	out := *b
	return &out, nil
}

// Accounts

func (s *memStore) AdjustBorrowedCount(_ context.Context, userID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("AdjustBorrowedCount"); err != nil {
		return err
	}
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%w: %s", userserrors.ErrNotFound, userID)
	}
	if u.BorrowedBooksCount+delta < 0 {
		return fmt.Errorf("%w: %s", userserrors.ErrCounterUnderflow, userID)
	}
	u.BorrowedBooksCount += delta
	return nil
}

func (s *memStore) AdjustOutstandingFine(_ context.Context, userID string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("AdjustOutstandingFine"); err != nil {
		return err
	}
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%w: %s", userserrors.ErrNotFound, userID)
	}
	if u.OutstandingFine+delta < 0 {
		return fmt.Errorf("%w: %s", userserrors.ErrCounterUnderflow, userID)
	}
	u.OutstandingFine += delta
	return nil
}

// borrow records

type memBorrows struct{ *memStore }

func (s memBorrows) Create(_ context.Context, rec *model.BorrowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("CreateBorrowRecord"); err != nil {
		return err
	}
	for _, r := range s.records {
		if !r.Returned && r.UserID == rec.UserID && r.BookID == rec.BookID {
			return fmt.Errorf("%w: user %s book %s", lifecycleerrors.ErrActiveRecordExists, rec.UserID, rec.BookID)
		}
	}
	rec.ID = s.nextID()
	stored := *rec
	s.records[rec.ID] = &stored
	return nil
}

func (s memBorrows) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", lifecycleerrors.ErrBorrowRecordNotFound, id)
	}
	delete(s.records, id)
	return nil
}

func (s memBorrows) FindActive(_ context.Context, userID, bookID string) (*model.BorrowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if !r.Returned && r.UserID == userID && r.BookID == bookID {
			out := *r
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: user %s book %s", lifecycleerrors.ErrBorrowRecordNotFound, userID, bookID)
}

func (s memBorrows) MarkLate(_ context.Context, id string, fineAmount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("MarkLate"); err != nil {
		return err
	}
	r, ok := s.records[id]
	if !ok || r.Returned {
		return fmt.Errorf("%w: %s", lifecycleerrors.ErrRecordNotActive, id)
	}
	r.Late = true
	r.FineAmount = fineAmount
	return nil
}

func (s memBorrows) MarkReturned(_ context.Context, id string, at time.Time) (*model.BorrowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.Returned {
		return nil, fmt.Errorf("%w: %s", lifecycleerrors.ErrRecordNotActive, id)
	}
	r.Returned = true
	r.ReturnedAt = &at
	out := *r
	return &out, nil
}

func (s memBorrows) Unreturn(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || !r.Returned {
		return fmt.Errorf("%w: %s", lifecycleerrors.ErrBorrowRecordNotFound, id)
	}
	r.Returned = false
	r.ReturnedAt = nil
	return nil
}

func (s memBorrows) FindByUser(_ context.Context, userID string, limit int, offset int64) ([]*model.BorrowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.BorrowRecord
	for _, r := range s.records {
		if r.UserID == userID {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, limit, offset), nil
}

func (s memBorrows) CountByUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.records {
		if r.UserID == userID {
			n++
		}
	}
	return n, nil
}

// reservations

type memReservations struct{ *memStore }

func (s memReservations) Create(_ context.Context, res *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("CreateReservation"); err != nil {
		return err
	}
	res.ID = s.nextID()
	stored := *res
	s.reservations[res.ID] = &stored
	return nil
}

func (s memReservations) FindByID(_ context.Context, id string) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", lifecycleerrors.ErrReservationNotFound, id)
	}
	out := *r
	return &out, nil
}

func (s memReservations) Transition(_ context.Context, id string, to model.ReservationStatus, now time.Time) (*model.Reservation, error) {
	if err := model.ValidateReservationTransition(model.ReservationPending, to); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", lifecycleerrors.ErrReservationNotFound, id)
	}
	matched := r.Status == model.ReservationPending
	switch to {
	case model.ReservationAccepted:
		matched = matched && r.ExpiresAt.After(now)
	case model.ReservationExpired:
		matched = matched && r.ExpiresAt.Before(now)
	}
	if !matched {
		return nil, fmt.Errorf("%w: %s", lifecycleerrors.ErrReservationNotPending, id)
	}
	r.Status = to
	r.ResolvedAt = &now
	out := *r
	return &out, nil
}

func (s memReservations) Revert(_ context.Context, id string, from model.ReservationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok || r.Status != from {
		return fmt.Errorf("%w: %s", lifecycleerrors.ErrReservationNotFound, id)
	}
	r.Status = model.ReservationPending
	r.ResolvedAt = nil
	r.BorrowRecordID = ""
	return nil
}

func (s memReservations) AttachBorrowRecord(_ context.Context, id, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return fmt.Errorf("%w: %s", lifecycleerrors.ErrReservationNotFound, id)
	}
	r.BorrowRecordID = recordID
	return nil
}

func (s memReservations) FindDue(_ context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Reservation
	for _, r := range s.reservations {
		if r.Status == model.ReservationPending && r.ExpiresAt.Before(now) {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return page(out, limit, 0), nil
}

func (s memReservations) Find(_ context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Reservation
	for _, r := range s.reservations {
		if userID == "" || r.UserID == userID {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, limit, offset), nil
}

func (s memReservations) Count(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.reservations {
		if userID == "" || r.UserID == userID {
			n++
		}
	}
	return n, nil
}

// fines

type memFines struct{ *memStore }

func (s memFines) Create(_ context.Context, fine *model.FineRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.fines {
		if f.BorrowRecordID == fine.BorrowRecordID {
			return fmt.Errorf("%w: %s", lifecycleerrors.ErrFineExists, fine.BorrowRecordID)
		}
	}
	fine.ID = s.nextID()
	stored := *fine
	s.fines[fine.ID] = &stored
	return nil
}

func (s memFines) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fines[id]; !ok {
		return fmt.Errorf("%w: %s", lifecycleerrors.ErrFineNotFound, id)
	}
	delete(s.fines, id)
	return nil
}

func (s memFines) FindByID(_ context.Context, id string) (*model.FineRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fines[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", lifecycleerrors.ErrFineNotFound, id)
	}
	out := *f
	return &out, nil
}

func (s memFines) FindByBorrowRecord(_ context.Context, recordID string) (*model.FineRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.fines {
		if f.BorrowRecordID == recordID {
			out := *f
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: record %s", lifecycleerrors.ErrFineNotFound, recordID)
}

func (s memFines) MarkPaid(_ context.Context, id string, at time.Time) (*model.FineRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fines[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", lifecycleerrors.ErrFineNotFound, id)
	}
	if !f.IsPending() {
		return nil, fmt.Errorf("%w: %s", lifecycleerrors.ErrFineNotPending, id)
	}
	f.Status = model.FinePaid
	f.PaidAt = &at
	out := *f
	return &out, nil
}

func (s memFines) MarkPending(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fines[id]
	if !ok || f.IsPending() {
		return fmt.Errorf("%w: %s", lifecycleerrors.ErrFineNotFound, id)
	}
	f.Status = model.FinePending
	f.PaidAt = nil
	return nil
}

func (s memFines) Find(_ context.Context, userID string, status model.FineStatus, limit int, offset int64) ([]*model.FineRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.FineRecord
	for _, f := range s.fines {
		if (userID == "" || f.UserID == userID) && (status == "" || f.Status == status) {
			c := *f
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, limit, offset), nil
}

func (s memFines) Count(_ context.Context, userID string, status model.FineStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, f := range s.fines {
		if (userID == "" || f.UserID == userID) && (status == "" || f.Status == status) {
			n++
		}
	}
	return n, nil
}

func page[T any](items []T, limit int, offset int64) []T {
	if offset >= int64(len(items)) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// recordingPublisher keeps published events and can be told to fail.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
