package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoan_OpenAndClose(t *testing.T) {
	loanedAt := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	l := &Loan{ID: "loan-1", BookID: "book-1", BorrowerID: "user-1", LoanTime: loanedAt}

	assert.True(t, l.IsOpen())

	l.Close(loanedAt.Add(48 * time.Hour))
	assert.False(t, l.IsOpen())
	require.NotNil(t, l.ReturnTime)
	assert.Equal(t, loanedAt.Add(48*time.Hour), *l.ReturnTime)
}

func TestCategory_BookTypeRoundTrip(t *testing.T) {
	for _, c := range Categories() {
		t.Run(string(c), func(t *testing.T) {
			got, err := CategoryFromBookType(c.BookType())
			require.NoError(t, err)
			assert.Equal(t, c, got)
		})
	}
}

func TestCategoryFromBookType(t *testing.T) {
	tests := []struct {
		bookType int
		want     Category
		wantErr  bool
	}{
		{1, CategoryStandard, false},
		{2, CategoryExtended, false},
		{3, CategoryShort, false},
		{0, "", true},
		{4, "", true},
	}

	for _, tt := range tests {
		got, err := CategoryFromBookType(tt.bookType)
		if tt.wantErr {
			assert.Error(t, err, "book_type %d", tt.bookType)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Extended ")
	require.NoError(t, err)
	assert.Equal(t, CategoryExtended, c)

	_, err = ParseCategory("reference")
	assert.Error(t, err)

	assert.Equal(t, 0, Category("reference").BookType())
	assert.False(t, Category("").Valid())
}

func TestSyncable_Lifecycle(t *testing.T) {
	created := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	var s Syncable

	s.InitTimestamps(created)
	assert.Equal(t, created, s.CreatedAt)
	assert.Equal(t, created, s.UpdatedAt)
	assert.Nil(t, s.DeletedAt)

	s.Touch(created.Add(time.Hour))
	assert.Equal(t, created.Add(time.Hour), s.UpdatedAt)
}
