package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"financeiro/internal/core"
	"financeiro/internal/gateway"
)

var (
	_ gateway.Gateway      = (*Store)(nil)
	_ gateway.MirrorSource = (*Store)(nil)
)

// Store is a process-local gateway used for development and tests.
type Store struct {
	mu       sync.Mutex
	nextID   int64
	expenses []core.Expense
	incomes  []core.Income
	limits   map[core.UserID]core.Money
	mirrored map[int64]bool
	attempts map[int64]int
	now      func() time.Time
}

func New() *Store {
	return &Store{
		limits:   make(map[core.UserID]core.Money),
		mirrored: make(map[int64]bool),
		attempts: make(map[int64]int),
		now:      time.Now,
	}
}

// InsertExpense stores the expense and assigns a sequential ID.
func (s *Store) InsertExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if e.UserID.IsZero() {
		return core.Expense{}, core.ErrUnauthenticated
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	e.Month = core.CanonicalMonth(e.Month.Time)
	e.CreatedAt = s.now().UTC()
	s.expenses = append(s.expenses, e)
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, user core.UserID, month core.Month) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if e.UserID == user && e.Month.Equal(month) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) ListExpensesBetween(_ context.Context, user core.UserID, after, until core.Month, method core.PaymentMethod) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if e.UserID != user {
			continue
		}
		if method != "" && e.PaymentMethod != method {
			continue
		}
		if e.Month.After(after) && !e.Month.After(until) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) InsertIncome(_ context.Context, in core.Income) (core.Income, error) {
	if in.UserID.IsZero() {
		return core.Income{}, core.ErrUnauthenticated
	}
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	in.ID = s.nextID
	in.Month = core.CanonicalMonth(in.Month.Time)
	in.CreatedAt = s.now().UTC()
	s.incomes = append(s.incomes, in)
	return in, nil
}

func (s *Store) ListIncome(_ context.Context, user core.UserID, month core.Month) ([]core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Income
	for _, in := range s.incomes {
		if in.UserID == user && in.Month.Equal(month) {
			out = append(out, in)
		}
	}
	return out, nil
}

func (s *Store) GetCardLimit(_ context.Context, user core.UserID) (core.Money, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limits[user]
	return l, ok, nil
}

func (s *Store) UpsertCardLimit(_ context.Context, l core.CreditCardLimit) error {
	if err := l.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits[l.UserID] = l.CardLimit
	return nil
}

// GetExpense looks up a stored expense by ID regardless of owner.
func (s *Store) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.expenses {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, gateway.ErrNotFound
}

// ListUnmirroredExpenses returns up to limit expenses not yet marked as
// mirrored, fewest failed attempts first, then oldest first.
func (s *Store) ListUnmirroredExpenses(_ context.Context, limit int) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if !s.mirrored[e.ID] {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return s.attempts[out[i].ID] < s.attempts[out[j].ID]
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkExpenseMirrored(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.expenses {
		if e.ID == id {
			s.mirrored[id] = true
			return nil
		}
	}
	return gateway.ErrNotFound
}

func (s *Store) RecordMirrorFailure(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.expenses {
		if e.ID == id {
			s.attempts[id]++
			return nil
		}
	}
	return gateway.ErrNotFound
}
