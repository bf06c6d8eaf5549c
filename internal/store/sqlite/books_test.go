package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/store"
)

func makeTestBook(id, title string, category domain.Category) *domain.Book {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.Book{
		Syncable: domain.Syncable{
			ID:        id,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Title:         title,
		SortTitle:     strings.ToLower(title),
		Author:        "Ursula K. Le Guin",
		SortAuthor:    "le guin ursula k",
		YearPublished: 1969,
		Category:      category,
	}
}

func mustCreateBook(t *testing.T, s *Store, id, title string) *domain.Book {
	t.Helper()
	b := makeTestBook(id, title, domain.CategoryStandard)
	if err := s.CreateBook(context.Background(), b); err != nil {
		t.Fatalf("CreateBook(%s): %v", id, err)
	}
	return b
}

func TestCreateAndGetBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := makeTestBook("book-1", "The Left Hand of Darkness", domain.CategoryExtended)
	b.Description = "A **classic**."
	b.CoverImage = &domain.ImageFileInfo{
		Path:     "covers/book-1.png",
		Filename: "cover.png",
		Format:   "png",
		Size:     2048,
		Hash:     "abc123",
		BlurHash: "LEHV6nWB2yk8pyo0adR*.7kCMdnj",
	}
	if err := s.CreateBook(ctx, b); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	got, err := s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.Title != b.Title || got.Author != b.Author || got.YearPublished != 1969 {
		t.Errorf("unexpected book: %+v", got)
	}
	if got.Category != domain.CategoryExtended {
		t.Errorf("Category = %q", got.Category)
	}
	if got.SortTitle != "the left hand of darkness" {
		t.Errorf("SortTitle = %q", got.SortTitle)
	}
	if !got.HasCover() || got.CoverImage.BlurHash != b.CoverImage.BlurHash || got.CoverImage.Size != 2048 {
		t.Errorf("cover not persisted: %+v", got.CoverImage)
	}
}

func TestGetBook_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetBook(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateBook_Duplicate(t *testing.T) {
	s := newTestStore(t)
	mustCreateBook(t, s, "book-1", "Dune")

	err := s.CreateBook(context.Background(), makeTestBook("book-1", "Dune", domain.CategoryShort))
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreateBook_RejectsUnknownCategory(t *testing.T) {
	s := newTestStore(t)

	err := s.CreateBook(context.Background(), makeTestBook("book-1", "Dune", domain.Category("rare")))
	if err == nil {
		t.Error("expected CHECK constraint failure")
	}
}

func TestUpdateBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b := mustCreateBook(t, s, "book-1", "Dune")

	b.Category = domain.CategoryShort
	b.CoverImage = nil
	b.UpdatedAt = b.UpdatedAt.Add(time.Minute)
	if err := s.UpdateBook(ctx, b); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}

	got, err := s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.Category != domain.CategoryShort {
		t.Errorf("Category = %q", got.Category)
	}
	if got.HasCover() {
		t.Error("expected no cover")
	}
}

func TestUpdateBook_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateBook(context.Background(), makeTestBook("ghost", "Ghost", domain.CategoryStandard))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateBook(t, s, "book-1", "Dune")

	if err := s.DeleteBook(ctx, "book-1", time.Now()); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}
	if _, err := s.GetBook(ctx, "book-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("deleted book still visible: %v", err)
	}
	if err := s.DeleteBook(ctx, "book-1", time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestListBooks_Pagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := range 7 {
		mustCreateBook(t, s, fmt.Sprintf("book-%d", i), fmt.Sprintf("Title %02d", 6-i))
	}
	if err := s.DeleteBook(ctx, "book-0", time.Now()); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}

	var titles []string
	params := store.PaginationParams{Limit: 4}
	pages := 0
	for {
		page, err := s.ListBooks(ctx, params)
		if err != nil {
			t.Fatalf("ListBooks: %v", err)
		}
		pages++
		if page.Total != 6 {
			t.Errorf("Total = %d, want 6", page.Total)
		}
		for _, b := range page.Items {
			titles = append(titles, b.Title)
		}
		if !page.HasMore {
			break
		}
		params.Cursor = page.NextCursor
	}

	if pages != 2 {
		t.Errorf("pages = %d, want 2", pages)
	}
	want := []string{"Title 00", "Title 01", "Title 02", "Title 03", "Title 04", "Title 05"}
	if strings.Join(titles, ",") != strings.Join(want, ",") {
		t.Errorf("titles = %v, want %v", titles, want)
	}
}

func TestListBooks_BadCursor(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ListBooks(context.Background(), store.PaginationParams{Cursor: "%%%"})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAllBooks(t *testing.T) {
	s := newTestStore(t)
	for i := range 3 {
		mustCreateBook(t, s, fmt.Sprintf("book-%d", i), fmt.Sprintf("T%d", i))
	}

	count := 0
	for b, err := range s.AllBooks(context.Background()) {
		if err != nil {
			t.Fatalf("AllBooks: %v", err)
		}
		if b.ID == "" {
			t.Error("empty id")
		}
		count++
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}
