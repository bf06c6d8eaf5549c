package domain

import (
	"fmt"
	"strings"
)

// Category classifies a book for lending purposes. It decides the maximum loan duration.
type Category string

// The closed set of lending categories.
const (
	CategoryStandard Category = "standard"
	CategoryExtended Category = "extended"
	CategoryShort    Category = "short"
)

// Categories lists every known category in book_type order.
func Categories() []Category {
	return []Category{CategoryStandard, CategoryExtended, CategoryShort}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryStandard, CategoryExtended, CategoryShort:
		return true
	default:
		return false
	}
}

// BookType returns the legacy integer code (1, 2, 3) for c, or 0 when c is unknown.
func (c Category) BookType() int {
	switch c {
	case CategoryStandard:
		return 1
	case CategoryExtended:
		return 2
	case CategoryShort:
		return 3
	default:
		return 0
	}
}

// CategoryFromBookType maps a legacy book_type code to a category.
func CategoryFromBookType(bookType int) (Category, error) {
	switch bookType {
	case 1:
		return CategoryStandard, nil
	case 2:
		return CategoryExtended, nil
	case 3:
		return CategoryShort, nil
	default:
		return "", fmt.Errorf("unknown book type %d", bookType)
	}
}

// ParseCategory accepts a category name in any case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}
