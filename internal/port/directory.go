package port

import "context"

// Person is the slice of the person directory the engine needs.
type Person struct {
	ID    string `db:"id"`
	Role  string `db:"role"`
	Email string `db:"email"`
	Name  string `db:"name"`
}

// Item is the slice of the catalog the engine needs. The catalog's
// subtype hierarchy is invisible here; an item is an opaque reference
// with a copy count.
type Item struct {
	ID          string `db:"id"`
	Title       string `db:"title"`
	TotalCopies int    `db:"total_copies"`
}

// PersonDirectory looks up borrowers.
type PersonDirectory interface {
	// FindPerson returns the person, or nil when unknown.
	FindPerson(ctx context.Context, id string) (*Person, error)
}

// CatalogDirectory looks up catalog items.
type CatalogDirectory interface {
	// FindItem returns the item, or nil when unknown.
	FindItem(ctx context.Context, id string) (*Item, error)

	// UpdateTotalCopies records a copy-count change after grow/shrink.
	UpdateTotalCopies(ctx context.Context, itemID string, total int) error
}
