// Package domain contains the entities of the lending server: the catalog, accounts, and the loan ledger.
package domain

// Book is a single lendable title in the catalog.
// Whether it is on loan is not stored here; see BookAvailability.
type Book struct {
	Syncable
	Title         string         `json:"title"`
	Author        string         `json:"author"`
	YearPublished int            `json:"year_published"`
	Category      Category       `json:"category"`
	Description   string         `json:"description,omitempty"`
	CoverImage    *ImageFileInfo `json:"cover_image,omitempty"`
	// SortTitle and SortAuthor are folded forms used for ordering and search.
	SortTitle  string `json:"-"`
	SortAuthor string `json:"-"`
}

// ImageFileInfo describes an uploaded cover image.
type ImageFileInfo struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Size     int64  `json:"size"`
	Hash     string `json:"hash"`
	BlurHash string `json:"blur_hash,omitempty"`
}

// HasCover reports whether a cover image has been uploaded.
func (b *Book) HasCover() bool {
	return b.CoverImage != nil && b.CoverImage.Path != ""
}

// BookAvailability is the lending state of a book, derived from its open loan.
type BookAvailability struct {
	BookID    string `json:"book_id"`
	Available bool   `json:"available"`
	HolderID  string `json:"holder_id,omitempty"`
	LoanID    string `json:"loan_id,omitempty"`
}
