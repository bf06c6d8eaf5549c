// Package policy holds the lending policy: how long each book category may stay on loan.
package policy

import (
	"fmt"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	apperrors "github.com/almogrr/projectTrainigLibary/internal/errors"
)

// Day is one calendar day of loan time.
const Day = 24 * time.Hour

// Durations maps a category to its maximum loan duration.
type Durations map[domain.Category]time.Duration

// Default returns the stock policy: standard 10 days, extended 5 days, short 2 days.
func Default() Durations {
	return Durations{
		domain.CategoryStandard: 10 * Day,
		domain.CategoryExtended: 5 * Day,
		domain.CategoryShort:    2 * Day,
	}
}

// Validate rejects unknown categories and non-positive durations.
// A category may be left out; loans in it then fail with UnknownCategoryError.
func (d Durations) Validate() error {
	if len(d) == 0 {
		return fmt.Errorf("policy defines no categories")
	}
	for c, dur := range d {
		if !c.Valid() {
			return fmt.Errorf("policy: unknown category %q", c)
		}
		if dur <= 0 {
			return fmt.Errorf("policy: category %q must have a positive duration, got %s", c, dur)
		}
	}
	return nil
}

// UnknownCategoryError is returned when a category has no configured duration.
// It unwraps to the coded UNKNOWN_CATEGORY error so API callers get a 422.
type UnknownCategoryError struct {
	Category domain.Category
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("no loan policy for category %q", string(e.Category))
}

func (e *UnknownCategoryError) Unwrap() error {
	return apperrors.UnknownCategory(string(e.Category))
}

// Table is the live policy. Lookups are lock-free; Replace swaps the whole table at once.
type Table struct {
	current atomic.Pointer[Durations]
}

// New creates a table from d after validating it.
func New(d Durations) (*Table, error) {
	t := &Table{}
	if err := t.Replace(d); err != nil {
		return nil, err
	}
	return t, nil
}

// MustNew is New for static tables in tests and defaults.
func MustNew(d Durations) *Table {
	t, err := New(d)
	if err != nil {
		panic(err)
	}
	return t
}

// MaxDuration returns the maximum loan duration for category.
// There is no fallback: an unconfigured category is an error.
func (t *Table) MaxDuration(category domain.Category) (time.Duration, error) {
	d := *t.current.Load()
	dur, ok := d[category]
	if !ok {
		return 0, &UnknownCategoryError{Category: category}
	}
	return dur, nil
}

// ExpectedReturn returns loanTime plus the category's maximum duration.
func (t *Table) ExpectedReturn(category domain.Category, loanTime time.Time) (time.Time, error) {
	dur, err := t.MaxDuration(category)
	if err != nil {
		return time.Time{}, err
	}
	return loanTime.Add(dur), nil
}

// Replace validates d and installs a copy of it.
func (t *Table) Replace(d Durations) error {
	if err := d.Validate(); err != nil {
		return err
	}
	c := maps.Clone(d)
	t.current.Store(&c)
	return nil
}

// Snapshot returns a copy of the active durations.
func (t *Table) Snapshot() Durations {
	return maps.Clone(*t.current.Load())
}

// Entry is one row of the policy as shown to clients.
type Entry struct {
	Category domain.Category `json:"category"`
	BookType int             `json:"book_type"`
	Days     float64         `json:"days"`
	Duration string          `json:"duration"`
}

// Entries returns the active policy ordered by book_type.
func (t *Table) Entries() []Entry {
	d := t.Snapshot()
	out := make([]Entry, 0, len(d))
	for c, dur := range d {
		out = append(out, Entry{Category: c, BookType: c.BookType(), Days: dur.Hours() / 24, Duration: dur.String()})
	}
	slices.SortFunc(out, func(a, b Entry) int { return a.BookType - b.BookType })
	return out
}
