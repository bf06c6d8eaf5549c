package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	apperrors "github.com/almogrr/projectTrainigLibary/internal/errors"
	"github.com/almogrr/projectTrainigLibary/internal/id"
	"github.com/almogrr/projectTrainigLibary/internal/media/images"
	"github.com/almogrr/projectTrainigLibary/internal/normalize"
	"github.com/almogrr/projectTrainigLibary/internal/search"
	"github.com/almogrr/projectTrainigLibary/internal/sse"
	"github.com/almogrr/projectTrainigLibary/internal/store"
	"github.com/almogrr/projectTrainigLibary/internal/validation"
)

// BookRequest creates or replaces a catalog entry. The category may be given
// by name or by its legacy book_type code.
type BookRequest struct {
	Title         string `json:"title" validate:"required,max=500"`
	Author        string `json:"author" validate:"required,max=300"`
	YearPublished int    `json:"year_published" validate:"gte=0,lte=9999"`
	Category      string `json:"category,omitempty" validate:"omitempty,category"`
	BookType      int    `json:"book_type,omitempty" validate:"omitempty,booktype"`
	Description   string `json:"description,omitempty" validate:"max=20000"`
}

// BookView is a book with its derived lending state.
type BookView struct {
	domain.Book
	BookType     int                      `json:"book_type"`
	Availability *domain.BookAvailability `json:"availability"`
}

// BookService manages the catalog.
type BookService struct {
	books    store.Books
	loans    *LoanService
	index    *search.Index
	covers   *images.Storage
	emitter  store.EventEmitter
	validate *validation.Validator
	now      func() time.Time
	logger   *slog.Logger
}

// NewBookService creates the catalog service. index and covers may be nil to disable search and uploads.
func NewBookService(
	books store.Books,
	loans *LoanService,
	index *search.Index,
	covers *images.Storage,
	emitter store.EventEmitter,
	validate *validation.Validator,
	logger *slog.Logger,
) *BookService {
	if emitter == nil {
		emitter = store.NoopEmitter{}
	}
	return &BookService{
		books:    books,
		loans:    loans,
		index:    index,
		covers:   covers,
		emitter:  emitter,
		validate: validate,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// CreateBook adds a book to the catalog.
func (s *BookService) CreateBook(ctx context.Context, req BookRequest) (*BookView, error) {
	book := &domain.Book{}
	if err := s.apply(book, req); err != nil {
		return nil, err
	}

	bookID, err := id.Generate("book")
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}
	book.ID = bookID
	book.InitTimestamps(s.now())

	if err := s.books.CreateBook(ctx, book); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, apperrors.AlreadyExists("book already exists").WithCause(err)
		}
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.reindex(book)
	s.emitter.Emit(sse.NewBookCreatedEvent(book))
	s.logger.Info("book created", "book_id", book.ID, "title", book.Title, "category", book.Category)

	return &BookView{
		Book:         *book,
		BookType:     book.Category.BookType(),
		Availability: &domain.BookAvailability{BookID: book.ID, Available: true},
	}, nil
}

// GetBook returns one book with its availability.
func (s *BookService) GetBook(ctx context.Context, bookID string) (*BookView, error) {
	book, err := s.get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, book)
}

// UpdateBook replaces a book's descriptive fields. Cover and lending state are untouched.
func (s *BookService) UpdateBook(ctx context.Context, bookID string, req BookRequest) (*BookView, error) {
	book, err := s.get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(book, req); err != nil {
		return nil, err
	}
	book.Touch(s.now())

	if err := s.books.UpdateBook(ctx, book); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFoundf("book %s not found", bookID)
		}
		return nil, fmt.Errorf("update book: %w", err)
	}

	v, err := s.view(ctx, book)
	if err != nil {
		return nil, err
	}
	s.reindex(book)
	s.emitter.Emit(sse.NewBookUpdatedEvent(book, v.Availability.Available))
	s.logger.Info("book updated", "book_id", book.ID)
	return v, nil
}

// DeleteBook removes a book from the catalog. A book on loan cannot be deleted.
func (s *BookService) DeleteBook(ctx context.Context, bookID string) error {
	if _, err := s.get(ctx, bookID); err != nil {
		return err
	}

	at := s.now()
	err := s.loans.WhileAvailable(ctx, bookID, func() error {
		return s.books.DeleteBook(ctx, bookID, at)
	})
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFoundf("book %s not found", bookID)
	}
	if err != nil {
		return err
	}

	if s.index != nil {
		if err := s.index.DeleteBook(bookID); err != nil {
			s.logger.Warn("failed to remove book from search index", "book_id", bookID, "error", err)
		}
	}
	if s.covers != nil {
		if err := s.covers.Delete(bookID); err != nil {
			s.logger.Warn("failed to delete cover", "book_id", bookID, "error", err)
		}
	}
	s.emitter.Emit(sse.NewBookDeletedEvent(bookID, at))
	s.logger.Info("book deleted", "book_id", bookID)
	return nil
}

// ListBooks returns one page of the catalog in title order.
func (s *BookService) ListBooks(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[*BookView], error) {
	page, err := s.books.ListBooks(ctx, params)
	if err != nil {
		if errors.Is(err, store.ErrInvalidInput) {
			return nil, apperrors.Validation("invalid cursor").WithCause(err)
		}
		return nil, fmt.Errorf("list books: %w", err)
	}

	out := &store.PaginatedResult[*BookView]{
		Items:      make([]*BookView, 0, len(page.Items)),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
		Total:      page.Total,
	}
	for _, book := range page.Items {
		v, err := s.view(ctx, book)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, v)
	}
	return out, nil
}

// SetCover stores an uploaded cover image for a book and records its metadata.
func (s *BookService) SetCover(ctx context.Context, bookID string, data []byte) (*BookView, error) {
	if s.covers == nil {
		return nil, apperrors.Forbidden("cover uploads are disabled")
	}
	book, err := s.get(ctx, bookID)
	if err != nil {
		return nil, err
	}

	saved, err := s.covers.Save(bookID, data)
	switch {
	case errors.Is(err, images.ErrTooLarge):
		return nil, apperrors.Validation("cover image is too large").WithCause(err)
	case errors.Is(err, images.ErrUnsupportedFormat):
		return nil, apperrors.Validation("cover must be a PNG, JPEG, GIF, or WebP image").WithCause(err)
	case err != nil:
		return nil, fmt.Errorf("save cover: %w", err)
	}

	book.CoverImage = &domain.ImageFileInfo{
		Path:     saved.Filename,
		Filename: saved.Filename,
		Format:   saved.Format,
		Size:     saved.Size,
		Hash:     saved.Hash,
		BlurHash: saved.BlurHash,
	}
	book.Touch(s.now())
	if err := s.books.UpdateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("record cover: %w", err)
	}

	v, err := s.view(ctx, book)
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(sse.NewBookUpdatedEvent(book, v.Availability.Available))
	s.logger.Info("cover uploaded", "book_id", bookID, "format", saved.Format, "size", saved.Size)
	return v, nil
}

// OpenCover returns the stored cover of a book. The caller closes the file.
func (s *BookService) OpenCover(ctx context.Context, bookID string) (*os.File, *domain.ImageFileInfo, error) {
	book, err := s.get(ctx, bookID)
	if err != nil {
		return nil, nil, err
	}
	if !book.HasCover() || s.covers == nil {
		return nil, nil, apperrors.NotFoundf("book %s has no cover", bookID)
	}
	f, err := s.covers.Open(bookID)
	if errors.Is(err, images.ErrNotFound) {
		return nil, nil, apperrors.NotFoundf("book %s has no cover", bookID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open cover: %w", err)
	}
	return f, book.CoverImage, nil
}

// Search runs a full-text query over the catalog.
func (s *BookService) Search(ctx context.Context, params search.Params) (*search.Result, error) {
	if s.index == nil {
		return &search.Result{Query: params.Query, Hits: []search.Hit{}}, nil
	}
	if params.Category != "" && !params.Category.Valid() {
		return nil, apperrors.Validationf("unknown category %q", params.Category)
	}
	res, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}
	return res, nil
}

// Reindex rebuilds the search index from the catalog.
func (s *BookService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	var all []*domain.Book
	for book, err := range s.books.AllBooks(ctx) {
		if err != nil {
			return 0, fmt.Errorf("read catalog: %w", err)
		}
		all = append(all, book)
	}
	if err := s.index.Rebuild(all); err != nil {
		return 0, fmt.Errorf("rebuild search index: %w", err)
	}
	return len(all), nil
}

// apply validates req and copies it onto book, filling the derived fields.
func (s *BookService) apply(book *domain.Book, req BookRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	if err := s.validate.Validate(req); err != nil {
		return err
	}

	category, err := resolveCategory(req.Category, req.BookType)
	if err != nil {
		return err
	}

	book.Title = req.Title
	book.Author = req.Author
	book.YearPublished = req.YearPublished
	book.Category = category
	book.Description = normalize.Description(req.Description)
	book.SortTitle = normalize.SortTitle(req.Title)
	book.SortAuthor = normalize.SortAuthor(req.Author)
	return nil
}

func resolveCategory(name string, bookType int) (domain.Category, error) {
	var byName, byType domain.Category
	if name != "" {
		c, err := domain.ParseCategory(name)
		if err != nil {
			return "", apperrors.ValidationWithDetails("validation failed", map[string]string{"category": err.Error()})
		}
		byName = c
	}
	if bookType != 0 {
		c, err := domain.CategoryFromBookType(bookType)
		if err != nil {
			return "", apperrors.ValidationWithDetails("validation failed", map[string]string{"book_type": err.Error()})
		}
		byType = c
	}

	switch {
	case byName != "" && byType != "" && byName != byType:
		return "", apperrors.ValidationWithDetails("validation failed", map[string]string{
			"book_type": fmt.Sprintf("%d does not match category %s", bookType, byName),
		})
	case byName != "":
		return byName, nil
	case byType != "":
		return byType, nil
	default:
		return "", apperrors.ValidationWithDetails("validation failed", map[string]string{"category": "category or book_type is required"})
	}
}

func (s *BookService) get(ctx context.Context, bookID string) (*domain.Book, error) {
	book, err := s.books.GetBook(ctx, bookID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFoundf("book %s not found", bookID).WithCause(err)
	}
	if err != nil {
		return nil, fmt.Errorf("get book %s: %w", bookID, err)
	}
	return book, nil
}

func (s *BookService) view(ctx context.Context, book *domain.Book) (*BookView, error) {
	state, err := s.loans.availability.State(ctx, book.ID)
	if err != nil {
		return nil, err
	}
	return &BookView{Book: *book, BookType: book.Category.BookType(), Availability: state}, nil
}

func (s *BookService) reindex(book *domain.Book) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexBook(book); err != nil {
		s.logger.Warn("failed to index book", "book_id", book.ID, "error", err)
	}
}
