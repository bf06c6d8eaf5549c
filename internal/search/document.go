package search

import "github.com/almogrr/projectTrainigLibary/internal/domain"

const (
	fieldTitle       = "title"
	fieldAuthor      = "author"
	fieldDescription = "description"
	fieldCategory    = "category"
	fieldSortTitle   = "sort_title"
	fieldSortAuthor  = "sort_author"
	fieldYear        = "year_published"
	fieldCreatedAt   = "created_at"
)

// documentFor flattens a book into the field map indexed by bleve.
// Field names must match buildIndexMapping.
func documentFor(b *domain.Book) map[string]any {
	return map[string]any{
		fieldTitle:       b.Title,
		fieldAuthor:      b.Author,
		fieldDescription: b.Description,
		fieldCategory:    string(b.Category),
		fieldSortTitle:   b.SortTitle,
		fieldSortAuthor:  b.SortAuthor,
		fieldYear:        float64(b.YearPublished),
		fieldCreatedAt:   float64(b.CreatedAt.UnixMilli()),
	}
}
