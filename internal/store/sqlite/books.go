package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/store"
)

// bookColumns must match the scan order in scanBook.
const bookColumns = `id, created_at, updated_at, deleted_at, title, sort_title, author, sort_author,
	year_published, category, description,
	cover_path, cover_filename, cover_format, cover_size, cover_hash, cover_blurhash`

func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var (
		b             domain.Book
		createdAt     string
		updatedAt     string
		deletedAt     sql.NullString
		category      string
		coverPath     sql.NullString
		coverFilename sql.NullString
		coverFormat   sql.NullString
		coverSize     sql.NullInt64
		coverHash     sql.NullString
		coverBlurHash sql.NullString
	)

	err := scanner.Scan(
		&b.ID,
		&createdAt,
		&updatedAt,
		&deletedAt,
		&b.Title,
		&b.SortTitle,
		&b.Author,
		&b.SortAuthor,
		&b.YearPublished,
		&category,
		&b.Description,
		&coverPath,
		&coverFilename,
		&coverFormat,
		&coverSize,
		&coverHash,
		&coverBlurHash,
	)
	if err != nil {
		return nil, err
	}

	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if b.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, err
	}
	b.Category = domain.Category(category)

	if coverPath.Valid {
		b.CoverImage = &domain.ImageFileInfo{
			Path:     coverPath.String,
			Filename: coverFilename.String,
			Format:   coverFormat.String,
			Size:     coverSize.Int64,
			Hash:     coverHash.String,
			BlurHash: coverBlurHash.String,
		}
	}

	return &b, nil
}

type coverColumns struct {
	path, filename, format, hash, blurHash sql.NullString
	size                                   sql.NullInt64
}

func coverArgs(img *domain.ImageFileInfo) coverColumns {
	if img == nil {
		return coverColumns{}
	}
	return coverColumns{
		path:     sql.NullString{String: img.Path, Valid: true},
		filename: sql.NullString{String: img.Filename, Valid: true},
		format:   sql.NullString{String: img.Format, Valid: true},
		hash:     sql.NullString{String: img.Hash, Valid: true},
		blurHash: nullString(img.BlurHash),
		size:     sql.NullInt64{Int64: img.Size, Valid: true},
	}
}

// CreateBook inserts a book. Returns store.ErrAlreadyExists on a duplicate ID.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	c := coverArgs(book.CoverImage)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (`+bookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID,
		formatTime(book.CreatedAt),
		formatTime(book.UpdatedAt),
		nullTimeString(book.DeletedAt),
		book.Title,
		book.SortTitle,
		book.Author,
		book.SortAuthor,
		book.YearPublished,
		string(book.Category),
		book.Description,
		c.path, c.filename, c.format, c.size, c.hash, c.blurHash,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// GetBook retrieves a book by ID, excluding soft-deleted records.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ? AND deleted_at IS NULL`, id)

	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return b, err
}

// UpdateBook replaces the mutable columns of an active book.
func (s *Store) UpdateBook(ctx context.Context, book *domain.Book) error {
	c := coverArgs(book.CoverImage)
	result, err := s.db.ExecContext(ctx, `
		UPDATE books SET
			updated_at = ?, title = ?, sort_title = ?, author = ?, sort_author = ?,
			year_published = ?, category = ?, description = ?,
			cover_path = ?, cover_filename = ?, cover_format = ?, cover_size = ?,
			cover_hash = ?, cover_blurhash = ?
		WHERE id = ? AND deleted_at IS NULL`,
		formatTime(book.UpdatedAt),
		book.Title,
		book.SortTitle,
		book.Author,
		book.SortAuthor,
		book.YearPublished,
		string(book.Category),
		book.Description,
		c.path, c.filename, c.format, c.size, c.hash, c.blurHash,
		book.ID,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteBook soft-deletes a book. Its loans stay in the ledger.
func (s *Store) DeleteBook(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE books SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		formatTime(at), formatTime(at), id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListBooks returns one page of active books ordered by sort title.
// The cursor is "sort_title|id" of the last book on the previous page.
func (s *Store) ListBooks(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[*domain.Book], error) {
	params.Normalize()

	cursorTitle, cursorID, err := store.DecodeCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM books WHERE deleted_at IS NULL`).Scan(&total); err != nil {
		return nil, err
	}

	// Fetch one extra row to learn whether another page exists.
	var rows *sql.Rows
	if cursorID == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+bookColumns+` FROM books
			WHERE deleted_at IS NULL
			ORDER BY sort_title ASC, id ASC
			LIMIT ?`, params.Limit+1)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+bookColumns+` FROM books
			WHERE deleted_at IS NULL
			AND (sort_title > ? OR (sort_title = ? AND id > ?))
			ORDER BY sort_title ASC, id ASC
			LIMIT ?`, cursorTitle, cursorTitle, cursorID, params.Limit+1)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := make([]*domain.Book, 0, params.Limit+1)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &store.PaginatedResult[*domain.Book]{Total: total}
	if len(books) > params.Limit {
		books = books[:params.Limit]
		last := books[len(books)-1]
		result.HasMore = true
		result.NextCursor = store.EncodeCursor(last.SortTitle, last.ID)
	}
	result.Items = books
	return result, nil
}

// AllBooks iterates every active book in pages, without holding a connection between pages.
func (s *Store) AllBooks(ctx context.Context) iter.Seq2[*domain.Book, error] {
	return func(yield func(*domain.Book, error) bool) {
		params := store.PaginationParams{Limit: 200}
		for {
			page, err := s.ListBooks(ctx, params)
			if err != nil {
				yield(nil, fmt.Errorf("list books: %w", err))
				return
			}
			for _, b := range page.Items {
				if !yield(b, nil) {
					return
				}
			}
			if !page.HasMore {
				return
			}
			params.Cursor = page.NextCursor
		}
	}
}
