package service

import "errors"

// Kind classifies an operation failure so callers can branch on the
// class of error without enumerating sentinels.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindPersistence
)

var (
	// Validation: the caller must fix its input.
	ErrInvalidDateRange = errors.New("due date before loan date")
	ErrInvalidQuantity  = errors.New("quantity must not be negative")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidRateKey   = errors.New("unknown rate key")

	// Not found: a referenced entity does not exist.
	ErrBorrowerNotFound = errors.New("borrower not found")
	ErrItemNotFound     = errors.New("item not found")
	ErrLoanNotFound     = errors.New("loan not found")
	ErrCopyNotFound     = errors.New("copy not found")
	ErrFineNotFound     = errors.New("fine not found")

	// Conflict: the operation violates a state invariant.
	ErrNoCopyAvailable = errors.New("no copy available")
	ErrNotEligible     = errors.New("borrower not eligible to loan")
	ErrLoanAlreadyHeld = errors.New("borrower already holds an open loan")
	ErrLoanResolved    = errors.New("loan already returned or lost")
	ErrCopyNotLoaned   = errors.New("copy is not loaned")
	ErrFineSettled     = errors.New("fine already settled")
	ErrDuplicateFine   = errors.New("unresolved fine of this kind already exists for loan")
)

var errKinds = map[error]Kind{
	ErrInvalidDateRange: KindValidation,
	ErrInvalidQuantity:  KindValidation,
	ErrInvalidAmount:    KindValidation,
	ErrInvalidRateKey:   KindValidation,
	ErrBorrowerNotFound: KindNotFound,
	ErrItemNotFound:     KindNotFound,
	ErrLoanNotFound:     KindNotFound,
	ErrCopyNotFound:     KindNotFound,
	ErrFineNotFound:     KindNotFound,
	ErrNoCopyAvailable:  KindConflict,
	ErrNotEligible:      KindConflict,
	ErrLoanAlreadyHeld:  KindConflict,
	ErrLoanResolved:     KindConflict,
	ErrCopyNotLoaned:    KindConflict,
	ErrFineSettled:      KindConflict,
	ErrDuplicateFine:    KindConflict,
}

// KindOf maps an error returned by any service operation to its Kind.
// Errors that are not part of the service vocabulary are storage or
// transaction failures, which the adapters guarantee rolled back fully.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for sentinel, kind := range errKinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindPersistence
}
