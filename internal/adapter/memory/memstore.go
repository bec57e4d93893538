package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/opencirc/circulation/internal/core/domain"
	"github.com/opencirc/circulation/internal/port"
)

// Store is an in-memory implementation of every persistence port, with
// the same semantics as the MySQL adapter: conditional state
// transitions and all-or-nothing composite operations. It backs the
// service and handler tests.
type Store struct {
	mu      sync.Mutex
	copies  map[string]domain.Copy
	loans   map[string]domain.Loan
	fines   map[string]domain.Fine
	rates   map[string]int64
	persons map[string]port.Person
	items   map[string]port.Item
}

func NewStore() *Store {
	return &Store{
		copies:  make(map[string]domain.Copy),
		loans:   make(map[string]domain.Loan),
		fines:   make(map[string]domain.Fine),
		rates:   make(map[string]int64),
		persons: make(map[string]port.Person),
		items:   make(map[string]port.Item),
	}
}

// PutPerson seeds a directory entry.
func (s *Store) PutPerson(p port.Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persons[p.ID] = p
}

// PutItem seeds a catalog entry.
func (s *Store) PutItem(it port.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[it.ID] = it
}

// firstAvailable returns the lowest-identifier Available copy of the
// item, or "".
func (s *Store) firstAvailable(itemID string) string {
	var ids []string
	for id, c := range s.copies {
		if c.ItemID == itemID && c.State == domain.CopyAvailable {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Strings(ids)
	return ids[0]
}

// CopyStore

func (s *Store) AddCopies(_ context.Context, copies []domain.Copy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range copies {
		s.copies[c.ID] = c
	}
	return nil
}

func (s *Store) RemoveAvailable(_ context.Context, itemID string, n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, c := range s.copies {
		if c.ItemID == itemID && c.State == domain.CopyAvailable {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if n > len(ids) {
		n = len(ids)
	}
	for _, id := range ids[:n] {
		delete(s.copies, id)
	}
	return n, nil
}

func (s *Store) GetCopy(_ context.Context, copyID string) (*domain.Copy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.copies[copyID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) ListCopies(_ context.Context, itemID string) ([]domain.Copy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Copy
	for _, c := range s.copies {
		if c.ItemID == itemID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CountStock(_ context.Context, itemID string) (domain.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stock domain.Stock
	for _, c := range s.copies {
		if c.ItemID != itemID {
			continue
		}
		switch c.State {
		case domain.CopyAvailable:
			stock.Available++
		case domain.CopyLoaned:
			stock.Loaned++
		case domain.CopyLost:
			stock.Lost++
		}
	}
	return stock, nil
}

func (s *Store) ReserveAvailable(_ context.Context, itemID string) (*domain.Copy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.firstAvailable(itemID)
	if id == "" {
		return nil, nil
	}
	c := s.copies[id]
	c.State = domain.CopyLoaned
	s.copies[id] = c
	return &c, nil
}

func (s *Store) ReleaseCopy(_ context.Context, copyID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.copies[copyID]
	if !ok || c.State != domain.CopyLoaned {
		return false, nil
	}
	c.State = domain.CopyAvailable
	s.copies[copyID] = c
	return true, nil
}

func (s *Store) MarkCopyLost(_ context.Context, copyID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.copies[copyID]
	if !ok || c.State == domain.CopyLost {
		return false, nil
	}
	c.State = domain.CopyLost
	s.copies[copyID] = c
	return true, nil
}

// LoanStore

func (s *Store) CreateLoan(_ context.Context, loan domain.Loan) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyID := s.firstAvailable(loan.ItemID)
	if copyID == "" {
		return "", nil
	}
	c := s.copies[copyID]
	c.State = domain.CopyLoaned
	s.copies[copyID] = c
	loan.CopyID = copyID
	s.loans[loan.ID] = loan
	return copyID, nil
}

func (s *Store) GetLoan(_ context.Context, loanID string) (*domain.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[loanID]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (s *Store) ListLoansByBorrower(_ context.Context, borrowerID string) ([]domain.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Loan
	for _, l := range s.loans {
		if l.BorrowerID == borrowerID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LoanDate.Equal(out[j].LoanDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].LoanDate.After(out[j].LoanDate)
	})
	return out, nil
}

func (s *Store) ListOpenLoans(_ context.Context) ([]domain.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Loan
	for _, l := range s.loans {
		if l.State.Open() {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].DueDate.Before(out[j].DueDate)
	})
	return out, nil
}

func (s *Store) CountOpenByBorrower(_ context.Context, borrowerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.loans {
		if l.BorrowerID == borrowerID && l.State.Open() {
			n++
		}
	}
	return n, nil
}

func (s *Store) MarkOverdue(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, l := range s.loans {
		if l.State == domain.LoanActive && l.DueDate.Before(before) {
			l.State = domain.LoanOverdue
			s.loans[id] = l
			n++
		}
	}
	return n, nil
}

func (s *Store) CloseLoan(_ context.Context, loanID string, returnDate time.Time, fine *domain.Fine) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[loanID]
	if !ok || !l.State.Open() {
		return false, nil
	}
	l.State = domain.LoanReturned
	l.ReturnDate = &returnDate
	s.loans[loanID] = l

	c := s.copies[l.CopyID]
	c.State = domain.CopyAvailable
	s.copies[l.CopyID] = c

	if fine != nil {
		s.fines[fine.ID] = *fine
	}
	return true, nil
}

func (s *Store) LoseLoan(_ context.Context, loanID string, asOf time.Time, fine domain.Fine) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[loanID]
	if !ok || !l.State.Open() {
		return false, nil
	}
	l.State = domain.LoanLost
	l.ReturnDate = &asOf
	s.loans[loanID] = l

	c := s.copies[l.CopyID]
	c.State = domain.CopyLost
	s.copies[l.CopyID] = c

	s.fines[fine.ID] = fine
	return true, nil
}

// FineStore

func (s *Store) CreateFine(_ context.Context, fine domain.Fine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fines[fine.ID] = fine
	return nil
}

func (s *Store) GetFine(_ context.Context, fineID string) (*domain.Fine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fines[fineID]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (s *Store) SettleFine(_ context.Context, fineID string, status domain.FineStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fines[fineID]
	if !ok || f.Status != domain.FinePending {
		return false, nil
	}
	f.Status = status
	f.SettledAt = &at
	s.fines[fineID] = f
	return true, nil
}

func (s *Store) ListFinesByLoan(_ context.Context, loanID string) ([]domain.Fine, error) {
	return s.listFines(func(f domain.Fine) bool { return f.LoanID == loanID })
}

func (s *Store) ListFinesByBorrower(_ context.Context, borrowerID string) ([]domain.Fine, error) {
	return s.listFines(func(f domain.Fine) bool { return f.BorrowerID == borrowerID })
}

func (s *Store) ListPendingFines(context.Context) ([]domain.Fine, error) {
	return s.listFines(func(f domain.Fine) bool { return f.Status == domain.FinePending })
}

func (s *Store) ListSettledFines(context.Context) ([]domain.Fine, error) {
	return s.listFines(func(f domain.Fine) bool { return f.Status.Settled() })
}

func (s *Store) listFines(keep func(domain.Fine) bool) ([]domain.Fine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Fine
	for _, f := range s.fines {
		if keep(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) SumPending(_ context.Context, borrowerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, f := range s.fines {
		if f.BorrowerID == borrowerID && f.Status == domain.FinePending {
			total += f.AmountCents
		}
	}
	return total, nil
}

func (s *Store) CountPending(_ context.Context, borrowerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.fines {
		if f.BorrowerID == borrowerID && f.Status == domain.FinePending {
			n++
		}
	}
	return n, nil
}

// RateStore

func (s *Store) GetRate(_ context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cents, ok := s.rates[key]
	return cents, ok, nil
}

func (s *Store) SetRate(_ context.Context, key string, cents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[key] = cents
	return nil
}

// Directories

func (s *Store) FindPerson(_ context.Context, id string) (*port.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) FindItem(_ context.Context, id string) (*port.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (s *Store) UpdateTotalCopies(_ context.Context, itemID string, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[itemID]
	if !ok {
		return nil
	}
	it.TotalCopies = total
	s.items[itemID] = it
	return nil
}

// RecordingNotifier captures published receipts for assertions.
type RecordingNotifier struct {
	mu       sync.Mutex
	receipts []port.Receipt
}

func (n *RecordingNotifier) Publish(_ context.Context, r port.Receipt) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts = append(n.receipts, r)
	return nil
}

func (n *RecordingNotifier) Receipts() []port.Receipt {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]port.Receipt, len(n.receipts))
	copy(out, n.receipts)
	return out
}
