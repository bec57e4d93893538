package port

import (
	"context"
	"time"
)

// Receipt describes a completed business event for best-effort
// delivery. Delivery failures never roll back the event that produced
// the receipt.
type Receipt struct {
	Event       string    `json:"event"` // loan.opened, loan.returned, loan.lost, fine.paid, fine.waived
	LoanID      string    `json:"loan_id,omitempty"`
	FineID      string    `json:"fine_id,omitempty"`
	BorrowerID  string    `json:"borrower_id"`
	ItemID      string    `json:"item_id,omitempty"`
	CopyID      string    `json:"copy_id,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	At          time.Time `json:"at"`
}

// Notifier dispatches receipts.
type Notifier interface {
	Publish(ctx context.Context, r Receipt) error
}
