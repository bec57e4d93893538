package domain

import "time"

type CopyState string

const (
	CopyAvailable CopyState = "available"
	CopyLoaned    CopyState = "loaned"
	CopyLost      CopyState = "lost"
)

// Copy is one physical lendable unit of a catalog item.
type Copy struct {
	ID        string    `db:"id"`
	ItemID    string    `db:"item_id"`
	Barcode   string    `db:"barcode"` // optional, empty when unassigned
	State     CopyState `db:"state"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Stock is the per-item availability breakdown. Available always equals
// Total() minus Loaned minus Lost.
type Stock struct {
	Available int
	Loaned    int
	Lost      int
}

func (s Stock) Total() int {
	return s.Available + s.Loaned + s.Lost
}
