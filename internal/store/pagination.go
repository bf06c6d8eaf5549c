package store

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// PaginationParams selects one page of a keyset-paginated listing.
type PaginationParams struct {
	Limit  int    // page size, defaults to 50, capped at 500
	Cursor string // opaque cursor from the previous page, empty for the first page
}

// PaginatedResult is one page of items.
type PaginatedResult[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
	Total      int    `json:"total"`
}

// Normalize clamps Limit into range.
func (p *PaginationParams) Normalize() {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
}

// EncodeCursor packs the sort key and id of the last item on a page.
func EncodeCursor(sortKey, id string) string {
	if id == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(sortKey + "|" + id))
}

// DecodeCursor unpacks a cursor made by EncodeCursor. An empty cursor yields empty parts.
func DecodeCursor(cursor string) (sortKey, id string, err error) {
	if cursor == "" {
		return "", "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", "", fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	sortKey, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return "", "", fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	return sortKey, id, nil
}
