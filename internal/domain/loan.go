package domain

import "time"

// Loan is one entry in the loan ledger. BookID, BorrowerID and LoanTime never change;
// ReturnTime is set exactly once when the book comes back.
type Loan struct {
	ID         string     `json:"id"`
	BookID     string     `json:"book_id"`
	BorrowerID string     `json:"borrower_id"`
	LoanTime   time.Time  `json:"loan_time"`
	ReturnTime *time.Time `json:"return_time,omitempty"`
}

// IsOpen reports whether the book is still checked out under this loan.
func (l *Loan) IsOpen() bool {
	return l.ReturnTime == nil
}

// Close sets the return time. Callers must check IsOpen first.
func (l *Loan) Close(at time.Time) {
	l.ReturnTime = &at
}

// LoanView is a loan annotated for display with its book and computed due time.
type LoanView struct {
	Loan               *Loan     `json:"loan"`
	Book               *Book     `json:"book,omitempty"`
	ExpectedReturnTime time.Time `json:"expected_return_time,omitzero"`
	Overdue            bool      `json:"overdue"`
}
