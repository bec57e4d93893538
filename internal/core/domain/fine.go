package domain

import "time"

type FineKind string

const (
	FineLate FineKind = "late"
	FineLost FineKind = "lost"
)

type FineStatus string

const (
	FinePending FineStatus = "pending"
	FinePaid    FineStatus = "paid"
	FineWaived  FineStatus = "waived"
)

// Settled reports whether the status is terminal. Settlement never
// reverses.
func (s FineStatus) Settled() bool {
	return s == FinePaid || s == FineWaived
}

// Fine is a monetary obligation tied to a loan. Amounts are integer
// cents.
type Fine struct {
	ID          string     `db:"id"`
	LoanID      string     `db:"loan_id"`
	BorrowerID  string     `db:"borrower_id"`
	Kind        FineKind   `db:"kind"`
	AmountCents int64      `db:"amount_cents"`
	Status      FineStatus `db:"status"`
	Note        string     `db:"note"`
	CreatedAt   time.Time  `db:"created_at"`
	SettledAt   *time.Time `db:"settled_at"`
}
