package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/opencirc/circulation/internal/adapter/memory"
	"github.com/opencirc/circulation/internal/core/service"
	"github.com/opencirc/circulation/internal/port"
)

const (
	borrowerID = "borrower-1"
	adminID    = "admin-1"
	itemID     = "item-10"
)

type testEnv struct {
	store     *memory.Store
	notifier  *memory.RecordingNotifier
	loans     *service.LoanService
	inventory *service.InventoryService
	fines     *service.FineService
	rates     *service.RateService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	store.PutPerson(port.Person{ID: borrowerID, Role: "member", Name: "Ada", Email: "ada@example.com"})
	store.PutPerson(port.Person{ID: "borrower-2", Role: "member", Name: "Ben"})
	store.PutPerson(port.Person{ID: adminID, Role: "admin", Name: "Root"})
	store.PutItem(port.Item{ID: itemID, Title: "The Go Programming Language"})
	store.PutItem(port.Item{ID: "item-20", Title: "Database Internals"})

	notifier := &memory.RecordingNotifier{}
	logger := zerolog.Nop()

	return &testEnv{
		store:     store,
		notifier:  notifier,
		loans:     service.NewLoanService(store, store, store, notifier, logger),
		inventory: service.NewInventoryService(store, store, logger),
		fines:     service.NewFineService(store, store, notifier, logger),
		rates:     service.NewRateService(store),
	}
}

// stock seeds n available copies of the item.
func (e *testEnv) stock(t *testing.T, item string, n int) {
	t.Helper()
	_, err := e.inventory.GrowTo(context.Background(), item, n)
	require.NoError(t, err)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
