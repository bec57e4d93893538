package storage

import (
	"context"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencirc/circulation/internal/core/domain"
)

func getStore(t *testing.T) *MySQLStore {
	t.Helper()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/circulation?parseTime=true"
	}

	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewMySQLStore(db)
	require.NoError(t, store.InitSchema(context.Background()))
	return store
}

func seedCopies(t *testing.T, store *MySQLStore, itemID string, n int) []domain.Copy {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	copies := make([]domain.Copy, 0, n)
	for i := 0; i < n; i++ {
		copies = append(copies, domain.Copy{
			ID:        uuid.NewString(),
			ItemID:    itemID,
			State:     domain.CopyAvailable,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	require.NoError(t, store.AddCopies(context.Background(), copies))
	return copies
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateLoan_ReservesCopyAtomically(t *testing.T) {
	store := getStore(t)
	ctx := context.Background()
	itemID := "it-" + uuid.NewString()
	seedCopies(t, store, itemID, 1)

	loan := domain.Loan{
		ID:         uuid.NewString(),
		BorrowerID: "b-" + uuid.NewString(),
		ItemID:     itemID,
		LoanDate:   day(2024, 1, 1),
		DueDate:    day(2024, 1, 10),
		State:      domain.LoanActive,
	}
	copyID, err := store.CreateLoan(ctx, loan)
	require.NoError(t, err)
	require.NotEmpty(t, copyID)

	c, err := store.GetCopy(ctx, copyID)
	require.NoError(t, err)
	assert.Equal(t, domain.CopyLoaned, c.State)

	got, err := store.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, copyID, got.CopyID)
	assert.Equal(t, domain.LoanActive, got.State)

	// No second copy exists; the next reservation finds nothing and the
	// loan row is not inserted.
	second := loan
	second.ID = uuid.NewString()
	copyID, err = store.CreateLoan(ctx, second)
	require.NoError(t, err)
	assert.Empty(t, copyID)

	missing, err := store.GetLoan(ctx, second.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateLoan_PicksLowestCopyID(t *testing.T) {
	store := getStore(t)
	ctx := context.Background()
	itemID := "it-" + uuid.NewString()
	copies := seedCopies(t, store, itemID, 3)

	lowest := copies[0].ID
	for _, c := range copies[1:] {
		if c.ID < lowest {
			lowest = c.ID
		}
	}

	loan := domain.Loan{
		ID:         uuid.NewString(),
		BorrowerID: "b-" + uuid.NewString(),
		ItemID:     itemID,
		LoanDate:   day(2024, 1, 1),
		DueDate:    day(2024, 1, 10),
		State:      domain.LoanActive,
	}
	copyID, err := store.CreateLoan(ctx, loan)
	require.NoError(t, err)
	assert.Equal(t, lowest, copyID)
}

func TestCloseLoan_ReleasesCopyAndRecordsFine(t *testing.T) {
	store := getStore(t)
	ctx := context.Background()
	itemID := "it-" + uuid.NewString()
	seedCopies(t, store, itemID, 1)
	borrower := "b-" + uuid.NewString()

	loan := domain.Loan{
		ID:         uuid.NewString(),
		BorrowerID: borrower,
		ItemID:     itemID,
		LoanDate:   day(2024, 1, 1),
		DueDate:    day(2024, 1, 10),
		State:      domain.LoanActive,
	}
	copyID, err := store.CreateLoan(ctx, loan)
	require.NoError(t, err)

	fine := domain.Fine{
		ID:          uuid.NewString(),
		LoanID:      loan.ID,
		BorrowerID:  borrower,
		Kind:        domain.FineLate,
		AmountCents: 250,
		Status:      domain.FinePending,
		Note:        "returned 5 day(s) late",
		CreatedAt:   day(2024, 1, 15),
	}
	closed, err := store.CloseLoan(ctx, loan.ID, day(2024, 1, 15), &fine)
	require.NoError(t, err)
	assert.True(t, closed)

	c, err := store.GetCopy(ctx, copyID)
	require.NoError(t, err)
	assert.Equal(t, domain.CopyAvailable, c.State)

	got, err := store.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanReturned, got.State)
	require.NotNil(t, got.ReturnDate)

	fines, err := store.ListFinesByLoan(ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, fines, 1)
	assert.Equal(t, int64(250), fines[0].AmountCents)

	// Closing again finds no open loan.
	closed, err = store.CloseLoan(ctx, loan.ID, day(2024, 1, 16), nil)
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestLoseLoan_CopyStaysLost(t *testing.T) {
	store := getStore(t)
	ctx := context.Background()
	itemID := "it-" + uuid.NewString()
	seedCopies(t, store, itemID, 1)
	borrower := "b-" + uuid.NewString()

	loan := domain.Loan{
		ID:         uuid.NewString(),
		BorrowerID: borrower,
		ItemID:     itemID,
		LoanDate:   day(2024, 1, 1),
		DueDate:    day(2024, 1, 10),
		State:      domain.LoanActive,
	}
	copyID, err := store.CreateLoan(ctx, loan)
	require.NoError(t, err)

	fine := domain.Fine{
		ID:          uuid.NewString(),
		LoanID:      loan.ID,
		BorrowerID:  borrower,
		Kind:        domain.FineLost,
		AmountCents: 2000,
		Status:      domain.FinePending,
		Note:        "copy reported lost",
		CreatedAt:   day(2024, 1, 20),
	}
	lost, err := store.LoseLoan(ctx, loan.ID, day(2024, 1, 20), fine)
	require.NoError(t, err)
	assert.True(t, lost)

	c, err := store.GetCopy(ctx, copyID)
	require.NoError(t, err)
	assert.Equal(t, domain.CopyLost, c.State)

	stock, err := store.CountStock(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, domain.Stock{Lost: 1}, stock)
}

func TestMarkOverdue_OnlyPastDueActiveLoans(t *testing.T) {
	store := getStore(t)
	ctx := context.Background()
	itemID := "it-" + uuid.NewString()
	seedCopies(t, store, itemID, 2)

	early := domain.Loan{
		ID: uuid.NewString(), BorrowerID: "b-" + uuid.NewString(), ItemID: itemID,
		LoanDate: day(2024, 1, 1), DueDate: day(2024, 1, 10), State: domain.LoanActive,
	}
	late := domain.Loan{
		ID: uuid.NewString(), BorrowerID: "b-" + uuid.NewString(), ItemID: itemID,
		LoanDate: day(2024, 1, 1), DueDate: day(2024, 1, 5), State: domain.LoanActive,
	}
	_, err := store.CreateLoan(ctx, early)
	require.NoError(t, err)
	_, err = store.CreateLoan(ctx, late)
	require.NoError(t, err)

	// Cutoff is exclusive: a loan due exactly on the cutoff stays Active.
	n, err := store.MarkOverdue(ctx, day(2024, 1, 10))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	gotLate, err := store.GetLoan(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanOverdue, gotLate.State)

	gotEarly, err := store.GetLoan(ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanActive, gotEarly.State)
}

func TestSettleFine_SingleWinner(t *testing.T) {
	store := getStore(t)
	ctx := context.Background()

	fine := domain.Fine{
		ID:          uuid.NewString(),
		LoanID:      uuid.NewString(),
		BorrowerID:  "b-" + uuid.NewString(),
		Kind:        domain.FineLate,
		AmountCents: 100,
		Status:      domain.FinePending,
		CreatedAt:   day(2024, 1, 1),
	}
	require.NoError(t, store.CreateFine(ctx, fine))

	ok, err := store.SettleFine(ctx, fine.ID, domain.FinePaid, day(2024, 1, 2))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.SettleFine(ctx, fine.ID, domain.FineWaived, day(2024, 1, 3))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.GetFine(ctx, fine.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FinePaid, got.Status)
}

func TestRemoveAvailable_NeverTouchesLoaned(t *testing.T) {
	store := getStore(t)
	ctx := context.Background()
	itemID := "it-" + uuid.NewString()
	seedCopies(t, store, itemID, 3)

	loan := domain.Loan{
		ID: uuid.NewString(), BorrowerID: "b-" + uuid.NewString(), ItemID: itemID,
		LoanDate: day(2024, 1, 1), DueDate: day(2024, 1, 10), State: domain.LoanActive,
	}
	_, err := store.CreateLoan(ctx, loan)
	require.NoError(t, err)

	removed, err := store.RemoveAvailable(ctx, itemID, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	stock, err := store.CountStock(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, domain.Stock{Loaned: 1}, stock)
}

func TestRates_Upsert(t *testing.T) {
	store := getStore(t)
	ctx := context.Background()
	key := "late_fee_per_day"

	require.NoError(t, store.SetRate(ctx, key, 50))
	require.NoError(t, store.SetRate(ctx, key, 80))

	cents, ok, err := store.GetRate(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(80), cents)

	_, ok, err = store.GetRate(ctx, "rate-"+uuid.NewString())
	require.NoError(t, err)
	assert.False(t, ok)
}
