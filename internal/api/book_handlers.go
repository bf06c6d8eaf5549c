package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/service"
	"github.com/almogrr/projectTrainigLibary/internal/store"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns one page of the catalog ordered by title, each book with its current availability",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBookAvailability",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/availability",
		Summary:     "Book availability",
		Description: "Whether the book can be borrowed right now, and by whom it is held otherwise",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetBookAvailability)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createBook",
		Method:        http.MethodPost,
		Path:          "/api/v1/books",
		Summary:       "Create book",
		Description:   "Adds a book to the catalog. Give either category or book_type (1 standard, 2 extended, 3 short). Librarians only.",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBook",
		Method:      http.MethodPut,
		Path:        "/api/v1/books/{id}",
		Summary:     "Update book",
		Description: "Replaces a book's metadata. Librarians only.",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBook",
		Method:      http.MethodDelete,
		Path:        "/api/v1/books/{id}",
		Summary:     "Delete book",
		Description: "Removes a book from the catalog. Refused while the book is on loan. Librarians only.",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteBook)
}

// ListBooksInput pages through the catalog.
type ListBooksInput struct {
	Limit  int    `query:"limit" minimum:"0" maximum:"500" doc:"Page size (default 50)"`
	Cursor string `query:"cursor" doc:"next_cursor from the previous page"`
}

// BookIDInput addresses one book.
type BookIDInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// CreateBookInput wraps a new book.
type CreateBookInput struct {
	Body service.BookRequest
}

// UpdateBookInput wraps a book update.
type UpdateBookInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body service.BookRequest
}

// BookOutput wraps one book.
type BookOutput struct {
	Body *service.BookView
}

// BookListOutput wraps a page of books.
type BookListOutput struct {
	Body *store.PaginatedResult[*service.BookView]
}

// AvailabilityOutput wraps a book's availability.
type AvailabilityOutput struct {
	Body *domain.BookAvailability
}

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*BookListOutput, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	page, err := s.services.Book.ListBooks(ctx, store.PaginationParams{Limit: input.Limit, Cursor: input.Cursor})
	if err != nil {
		return nil, err
	}
	return &BookListOutput{Body: page}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *BookIDInput) (*BookOutput, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	book, err := s.services.Book.GetBook(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}

func (s *Server) handleGetBookAvailability(ctx context.Context, input *BookIDInput) (*AvailabilityOutput, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	// Going through the catalog makes an unknown ID a 404 rather than "available".
	book, err := s.services.Book.GetBook(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &AvailabilityOutput{Body: book.Availability}, nil
}

func (s *Server) handleCreateBook(ctx context.Context, input *CreateBookInput) (*BookOutput, error) {
	if _, err := requireLibrarian(ctx); err != nil {
		return nil, err
	}
	book, err := s.services.Book.CreateBook(ctx, input.Body)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}

func (s *Server) handleUpdateBook(ctx context.Context, input *UpdateBookInput) (*BookOutput, error) {
	if _, err := requireLibrarian(ctx); err != nil {
		return nil, err
	}
	book, err := s.services.Book.UpdateBook(ctx, input.ID, input.Body)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *BookIDInput) (*struct{}, error) {
	if _, err := requireLibrarian(ctx); err != nil {
		return nil, err
	}
	if err := s.services.Book.DeleteBook(ctx, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}
