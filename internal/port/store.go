package port

import (
	"context"
	"time"

	"github.com/opencirc/circulation/internal/core/domain"
)

// CopyStore persists physical copies. Single-copy state changes are
// atomic conditional updates: the bool result reports whether the
// precondition held, so the caller can distinguish a state conflict
// from a storage failure.
type CopyStore interface {
	// AddCopies inserts new Available copies.
	AddCopies(ctx context.Context, copies []domain.Copy) error

	// RemoveAvailable deletes up to n Available copies of the item,
	// lowest identifiers first, and returns how many were removed.
	RemoveAvailable(ctx context.Context, itemID string, n int) (int, error)

	// GetCopy returns the copy, or nil when it does not exist.
	GetCopy(ctx context.Context, copyID string) (*domain.Copy, error)

	// ListCopies returns every copy of the item ordered by identifier.
	ListCopies(ctx context.Context, itemID string) ([]domain.Copy, error)

	// CountStock returns the per-state breakdown for the item.
	CountStock(ctx context.Context, itemID string) (domain.Stock, error)

	// ReserveAvailable atomically marks the lowest-identifier Available
	// copy of the item Loaned and returns it, or nil when none exists.
	ReserveAvailable(ctx context.Context, itemID string) (*domain.Copy, error)

	// ReleaseCopy marks a Loaned copy Available. False when the copy is
	// not currently Loaned.
	ReleaseCopy(ctx context.Context, copyID string) (bool, error)

	// MarkCopyLost marks a copy Lost. False when the copy is already
	// Lost or does not exist.
	MarkCopyLost(ctx context.Context, copyID string) (bool, error)
}

// LoanStore persists loans. The multi-row operations (create, close,
// lose) each run as a single transaction so the copy, loan and fine
// rows change together or not at all.
//
// CloseLoan and LoseLoan insert their fine row directly instead of
// going through FineStore: the closure must commit atomically, and the
// open-state check on the loan row means a loan closes at most once,
// so no duplicate fine can be written on this path.
type LoanStore interface {
	// CreateLoan reserves the lowest-identifier Available copy of
	// loan.ItemID and inserts the loan row referencing it, atomically.
	// Returns the reserved copy ID, or "" when no copy is available.
	CreateLoan(ctx context.Context, loan domain.Loan) (string, error)

	// GetLoan returns the loan, or nil when it does not exist.
	GetLoan(ctx context.Context, loanID string) (*domain.Loan, error)

	// ListLoansByBorrower returns the borrower's loans, newest first.
	ListLoansByBorrower(ctx context.Context, borrowerID string) ([]domain.Loan, error)

	// ListOpenLoans returns every Active or Overdue loan.
	ListOpenLoans(ctx context.Context) ([]domain.Loan, error)

	// CountOpenByBorrower counts the borrower's Active/Overdue loans.
	CountOpenByBorrower(ctx context.Context, borrowerID string) (int, error)

	// MarkOverdue transitions every Active loan due strictly before the
	// cutoff to Overdue and returns how many changed.
	MarkOverdue(ctx context.Context, before time.Time) (int64, error)

	// CloseLoan transitions an open loan to Returned, releases its copy
	// and, when fine is non-nil, records the fine — one transaction.
	// False when the loan is missing or already resolved.
	CloseLoan(ctx context.Context, loanID string, returnDate time.Time, fine *domain.Fine) (bool, error)

	// LoseLoan transitions an open loan to Lost, marks its copy Lost
	// and records the fine — one transaction. False when the loan is
	// missing or already resolved.
	LoseLoan(ctx context.Context, loanID string, asOf time.Time, fine domain.Fine) (bool, error)
}

// FineStore persists fines.
type FineStore interface {
	// CreateFine inserts a Pending fine.
	CreateFine(ctx context.Context, fine domain.Fine) error

	// GetFine returns the fine, or nil when it does not exist.
	GetFine(ctx context.Context, fineID string) (*domain.Fine, error)

	// SettleFine transitions a Pending fine to the given terminal
	// status. False when the fine is missing or already settled.
	SettleFine(ctx context.Context, fineID string, status domain.FineStatus, at time.Time) (bool, error)

	ListFinesByLoan(ctx context.Context, loanID string) ([]domain.Fine, error)
	ListFinesByBorrower(ctx context.Context, borrowerID string) ([]domain.Fine, error)
	ListPendingFines(ctx context.Context) ([]domain.Fine, error)
	ListSettledFines(ctx context.Context) ([]domain.Fine, error)

	// SumPending totals the borrower's Pending fine amounts in cents.
	SumPending(ctx context.Context, borrowerID string) (int64, error)

	// CountPending counts the borrower's Pending fines.
	CountPending(ctx context.Context, borrowerID string) (int, error)
}

// RateStore persists numeric rate settings with last-write-wins
// semantics.
type RateStore interface {
	// GetRate returns the value in cents and whether the key is set.
	GetRate(ctx context.Context, key string) (int64, bool, error)

	// SetRate upserts the value for the key.
	SetRate(ctx context.Context, key string, cents int64) error
}
