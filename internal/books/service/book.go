package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	bookserrors "libris/internal/books/errors"
	"libris/internal/books/repository"
	"libris/internal/books/validator"
	"libris/pkg/clock"
	"libris/pkg/config"
	apperrors "libris/pkg/errors"
	"libris/pkg/model"
	"libris/pkg/sanitizer"
)

type BookService interface {
	Create(ctx context.Context, b *model.Book) error
	GetByID(ctx context.Context, id string) (*model.Book, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Book, int64, error)
	Update(ctx context.Context, id string, updates *model.BookUpdate) (*model.Book, error)
	Delete(ctx context.Context, id string) error
}

type bookService struct {
	repo      repository.BookRepository
	validator *validator.BookValidator
	clock     clock.Clock
	cfg       *config.Config
}

func NewBookService(
	repo repository.BookRepository,
	validator *validator.BookValidator,
	clk clock.Clock,
	cfg *config.Config,
) BookService {
	return &bookService{
		repo:      repo,
		validator: validator,
		clock:     clk,
		cfg:       cfg,
	}
}

// Create adds a title with every copy on the shelf. A client supplied
// copies_available is ignored.
func (s *bookService) Create(ctx context.Context, b *model.Book) error {
	s.sanitize(b)
	b.ID = ""
	b.CopiesAvailable = b.CopiesTotal
	now := s.clock.Now()
	b.CreatedAt = now
	b.UpdatedAt = now

	if err := s.validator.Validate(b); err != nil {
		s.cfg.Log.Warn("Book validation failed", "title", b.Title, "error", err)
		return apperrors.Validation("Book validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.repo.Create(ctx, b); err != nil {
		if errors.Is(err, bookserrors.ErrDuplicateISBN) {
			return apperrors.Conflict("Book with the same ISBN already exists")
		}
		s.cfg.Log.Error("Failed to create book", "title", b.Title, "error", err)
		return apperrors.Internal("Failed to create book", err)
	}

	s.cfg.Log.Info("Book created successfully",
		"id", b.ID,
		"title", b.Title,
		"copies_total", b.CopiesTotal,
	)
	return nil
}

func (s *bookService) GetByID(ctx context.Context, id string) (*model.Book, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Book ID cannot be empty")
	}

	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to retrieve book")
	}
	return b, nil
}

func (s *bookService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Book, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	sharedCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	var count int64
	var books []*model.Book
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(sharedCtx)
		if err != nil {
			s.cfg.Log.Error("Failed to count books", "error", err)
			errCount = apperrors.Internal("Failed to count books", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		books, err = s.repo.FindAll(sharedCtx, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to get all books",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve books", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return books, count, nil
}

// Update merges the catalog fields. Changing copies_total keeps the number of
// copies on loan fixed and moves copies_available by the same amount.
func (s *bookService) Update(ctx context.Context, id string, updates *model.BookUpdate) (*model.Book, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Book ID cannot be empty")
	}

	s.sanitizeUpdate(updates)
	if err := s.validator.ValidateUpdate(updates); err != nil {
		return nil, apperrors.Validation("Book validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to check book existence")
	}

	merged, err := s.mergeBookUpdates(existing, updates)
	if err != nil {
		s.cfg.Log.Warn("Book update rejected", "id", id, "error", err)
		return nil, err
	}
	if err := s.validator.Validate(merged); err != nil {
		return nil, apperrors.Validation("Book validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.repo.Update(ctx, id, merged, existing); err != nil {
		if errors.Is(err, bookserrors.ErrStaleCounts) {
			s.cfg.Log.Warn("Book changed during update", "id", id)
			return nil, apperrors.Conflict("Book was modified concurrently, retry the update")
		}
		if errors.Is(err, bookserrors.ErrDuplicateISBN) {
			return nil, apperrors.Conflict("Another book with the same ISBN already exists")
		}
		return nil, s.mapRepoError(err, id, "Failed to update book")
	}

	s.cfg.Log.Info("Book updated successfully",
		"id", id,
		"copies_total", merged.CopiesTotal,
		"copies_available", merged.CopiesAvailable,
	)
	return merged, nil
}

func (s *bookService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Book ID cannot be empty")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, bookserrors.ErrCopiesOnLoan) {
			return apperrors.Precondition("Book cannot be deleted while copies are rented or reserved")
		}
		return s.mapRepoError(err, id, "Failed to delete book")
	}

	s.cfg.Log.Info("Book deleted successfully", "id", id)
	return nil
}

func (s *bookService) mapRepoError(err error, id, internalMsg string) error {
	if errors.Is(err, bookserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Book", id)
	}
	if errors.Is(err, bookserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid book ID format")
	}
	s.cfg.Log.Error(internalMsg, "id", id, "error", err)
	return apperrors.Internal(internalMsg, err)
}

func (s *bookService) sanitize(b *model.Book) {
	b.Title = sanitizer.NormalizeTitle(b.Title)
	b.Author = sanitizer.NormalizeName(b.Author)
	b.ISBN = sanitizer.NormalizeISBN(b.ISBN)
	b.Genre = sanitizer.NormalizeGenre(b.Genre)
	b.Language = sanitizer.NormalizeLanguage(b.Language)
	b.Description = sanitizer.NormalizeDescription(b.Description)
}

func (s *bookService) sanitizeUpdate(u *model.BookUpdate) {
	u.Title = sanitizer.NormalizeTitle(u.Title)
	u.Author = sanitizer.NormalizeName(u.Author)
	if u.ISBN != nil {
		*u.ISBN = sanitizer.NormalizeISBN(*u.ISBN)
	}
	if u.Genre != nil {
		*u.Genre = sanitizer.NormalizeGenre(*u.Genre)
	}
	if u.Language != nil {
		*u.Language = sanitizer.NormalizeLanguage(*u.Language)
	}
	if u.Description != nil {
		*u.Description = sanitizer.NormalizeDescription(*u.Description)
	}
}

func (s *bookService) mergeBookUpdates(existing *model.Book, updates *model.BookUpdate) (*model.Book, error) {
	merged := *existing

	if updates.Title != "" {
		merged.Title = updates.Title
	}
	if updates.Author != "" {
		merged.Author = updates.Author
	}
	if updates.ISBN != nil {
		merged.ISBN = *updates.ISBN
	}
	if updates.Genre != nil {
		merged.Genre = *updates.Genre
	}
	if updates.Description != nil {
		merged.Description = *updates.Description
	}
	if updates.Language != nil {
		merged.Language = *updates.Language
	}
	if updates.Price != nil {
		merged.Price = *updates.Price
	}
	if updates.CopiesTotal != nil {
		onLoan := existing.OnLoan()
		if *updates.CopiesTotal < onLoan {
			return nil, apperrors.Precondition(
				fmt.Sprintf("copies_total cannot be lower than the %d copies currently on loan", onLoan),
			).WithDetails(map[string]any{"copies_on_loan": onLoan})
		}
		merged.CopiesTotal = *updates.CopiesTotal
		merged.CopiesAvailable = *updates.CopiesTotal - onLoan
	}

	merged.ID = existing.ID
	merged.CreatedAt = existing.CreatedAt
	merged.UpdatedAt = s.clock.Now()
	return &merged, nil
}
