package domain

import "time"

type LoanState string

const (
	LoanActive   LoanState = "active"
	LoanOverdue  LoanState = "overdue"
	LoanReturned LoanState = "returned"
	LoanLost     LoanState = "lost"
)

// Open reports whether the loan still holds its copy. Returned and Lost
// are terminal.
func (s LoanState) Open() bool {
	return s == LoanActive || s == LoanOverdue
}

// Loan is one lending transaction: a copy held by a borrower for a
// bounded period.
type Loan struct {
	ID         string     `db:"id"`
	BorrowerID string     `db:"borrower_id"`
	CopyID     string     `db:"copy_id"`
	ItemID     string     `db:"item_id"`
	LoanDate   time.Time  `db:"loan_date"`
	DueDate    time.Time  `db:"due_date"`
	ReturnDate *time.Time `db:"return_date"`
	State      LoanState  `db:"state"`
}

// DaysLate returns the number of whole days asOf falls after due, at day
// granularity in UTC. Zero when asOf is on or before the due date.
func DaysLate(due, asOf time.Time) int64 {
	d := truncateToDay(asOf).Sub(truncateToDay(due))
	if d <= 0 {
		return 0
	}
	return int64(d / (24 * time.Hour))
}

// LateFee computes the fee in cents for a copy returned after its due
// date. Zero for on-time or early returns.
func LateFee(due, returned time.Time, dailyRateCents int64) int64 {
	return DaysLate(due, returned) * dailyRateCents
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
