package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"financeiro/internal/amqp"
	"financeiro/internal/auth"
	"financeiro/internal/core"
	"financeiro/internal/gateway/memory"
)

// flakyStore fails inserts of the listed installment numbers.
type flakyStore struct {
	*memory.Store
	failOn  map[int]bool
	listErr error
}

func (f *flakyStore) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if f.failOn[e.CurrentInstallment] {
		return core.Expense{}, errors.New("disk full")
	}
	return f.Store.InsertExpense(ctx, e)
}

func (f *flakyStore) ListIncome(ctx context.Context, user core.UserID, month core.Month) ([]core.Income, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Store.ListIncome(ctx, user, month)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ExpenseRecordedMessage
	err  error
}

func (p *recordingPublisher) PublishExpenseRecorded(_ context.Context, msg *amqp.ExpenseRecordedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func userCtx(user core.UserID) context.Context {
	return auth.WithUser(context.Background(), user)
}

func purchase(total int64, n int, method core.PaymentMethod, start core.Month) core.InstallmentRequest {
	return core.InstallmentRequest{
		Total:         core.Money{Cents: total},
		Description:   "Geladeira",
		Category:      core.Moradia,
		PaymentMethod: method,
		Installments:  n,
		StartMonth:    start,
	}
}

func TestAddExpenseStoresEveryInstallment(t *testing.T) {
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewBudgetService(store, pub)
	ctx := userCtx("alice")
	start := core.NewMonth(2025, 11)

	rows, err := svc.AddExpense(ctx, purchase(120000, 3, core.PaymentCreditCard, start))
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, e := range rows {
		if e.UserID != "alice" || e.ID == 0 {
			t.Errorf("row %d not stamped: %+v", i, e)
		}
		if e.Value.Cents != 40000 {
			t.Errorf("row %d value = %s", i, e.Value)
		}
		if !e.Month.Equal(start.AddMonths(i)) {
			t.Errorf("row %d month = %s", i, e.Month)
		}
	}
	if rows[2].Month.String() != "2026-01-01" {
		t.Errorf("expected the batch to cross the year, got %s", rows[2].Month)
	}
	if len(pub.msgs) != 3 {
		t.Fatalf("expected one message per row, got %d", len(pub.msgs))
	}

	jan, _ := store.ListExpenses(context.Background(), "alice", core.NewMonth(2026, 1))
	if len(jan) != 1 || jan[0].Description != "Geladeira (3/3)" {
		t.Fatalf("unexpected January rows %+v", jan)
	}
}

func TestAddExpenseRequiresUser(t *testing.T) {
	svc := NewBudgetService(memory.New(), nil)
	_, err := svc.AddExpense(context.Background(), purchase(100, 1, core.PaymentPix, core.NewMonth(2025, 1)))
	if !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAddExpenseValidationStoresNothing(t *testing.T) {
	store := memory.New()
	svc := NewBudgetService(store, nil)
	ctx := userCtx("alice")

	tests := []struct {
		name string
		req  core.InstallmentRequest
	}{
		{"zero value", purchase(0, 1, core.PaymentPix, core.NewMonth(2025, 1))},
		{"too many installments", purchase(1000, 13, core.PaymentCreditCard, core.NewMonth(2025, 1))},
		{"unknown method", purchase(1000, 1, "cheque", core.NewMonth(2025, 1))},
		{"no month", purchase(1000, 1, core.PaymentPix, core.Month{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.AddExpense(ctx, tt.req); !core.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	pending, _ := store.ListUnmirroredExpenses(context.Background(), 100)
	if len(pending) != 0 {
		t.Fatalf("expected nothing stored, got %d rows", len(pending))
	}
}

func TestAddExpensePartialBatch(t *testing.T) {
	store := &flakyStore{Store: memory.New(), failOn: map[int]bool{2: true, 5: true}}
	pub := &recordingPublisher{}
	svc := NewBudgetService(store, pub)
	ctx := userCtx("alice")

	rows, err := svc.AddExpense(ctx, purchase(60000, 6, core.PaymentCreditCard, core.NewMonth(2025, 1)))
	var pbe *core.PartialBatchError
	if !errors.As(err, &pbe) {
		t.Fatalf("expected PartialBatchError, got %v", err)
	}
	if pbe.Attempted != 6 || pbe.Failed != 2 || len(pbe.Inserted) != 4 {
		t.Fatalf("unexpected batch error %+v", pbe)
	}
	var perr *core.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected the first failure to be a PersistenceError, got %v", pbe.First)
	}
	if len(rows) != 4 {
		t.Fatalf("expected inserted rows to be returned, got %d", len(rows))
	}
	for _, e := range rows {
		if e.CurrentInstallment == 2 || e.CurrentInstallment == 5 {
			t.Fatalf("failed installment reported as inserted: %+v", e)
		}
	}

	// stored rows stay in place
	pending, _ := store.ListUnmirroredExpenses(context.Background(), 100)
	if len(pending) != 4 {
		t.Fatalf("expected 4 stored rows, got %d", len(pending))
	}
	if len(pub.msgs) != 4 {
		t.Fatalf("expected a message per stored row, got %d", len(pub.msgs))
	}
}

func TestAddExpenseNothingStored(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		failOn map[int]bool
	}{
		{"single payment", 1, map[int]bool{1: true}},
		{"every installment", 3, map[int]bool{1: true, 2: true, 3: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &flakyStore{Store: memory.New(), failOn: tt.failOn}
			pub := &recordingPublisher{}
			svc := NewBudgetService(store, pub)

			rows, err := svc.AddExpense(userCtx("alice"), purchase(10000, tt.n, core.PaymentMoney, core.NewMonth(2025, 1)))
			var pbe *core.PartialBatchError
			if errors.As(err, &pbe) {
				t.Fatalf("expected a persistence error when nothing was stored, got %+v", pbe)
			}
			var perr *core.PersistenceError
			if !errors.As(err, &perr) || perr.Op != "insert expense" {
				t.Fatalf("expected PersistenceError, got %v", err)
			}
			if len(rows) != 0 || len(pub.msgs) != 0 {
				t.Fatalf("expected no rows and no messages, got %d rows %d messages", len(rows), len(pub.msgs))
			}
		})
	}
}

func TestAddExpensePublishFailureIsIgnored(t *testing.T) {
	pub := &recordingPublisher{err: amqp.ErrCircuitOpen}
	svc := NewBudgetService(memory.New(), pub)

	rows, err := svc.AddExpense(userCtx("bob"), purchase(999, 1, core.PaymentPix, core.NewMonth(2025, 4)))
	if err != nil {
		t.Fatalf("publish errors must not fail the request: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
}

func TestAddIncomeAndCardLimit(t *testing.T) {
	svc := NewBudgetService(memory.New(), nil)
	ctx := userCtx("alice")
	m := core.NewMonth(2025, 2)

	in, err := svc.AddIncome(ctx, core.Money{Cents: 500000}, "", m)
	if err != nil {
		t.Fatalf("AddIncome: %v", err)
	}
	if in.ID == 0 || in.UserID != "alice" {
		t.Fatalf("unexpected income %+v", in)
	}
	if _, err := svc.AddIncome(ctx, core.Money{Cents: -1}, "x", m); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.AddIncome(context.Background(), core.Money{Cents: 1}, "x", m); !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	if _, ok, err := svc.CardLimit(ctx); ok || err != nil {
		t.Fatalf("expected no limit yet, ok=%v err=%v", ok, err)
	}
	if err := svc.SetCardLimit(ctx, core.Money{Cents: 150000}); err != nil {
		t.Fatalf("SetCardLimit: %v", err)
	}
	if err := svc.SetCardLimit(ctx, core.Money{Cents: -5}); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	limit, ok, err := svc.CardLimit(ctx)
	if err != nil || !ok || limit.Cents != 150000 {
		t.Fatalf("expected limit 1500.00, got %s ok=%v err=%v", limit, ok, err)
	}
}

func TestMonthSummary(t *testing.T) {
	svc := NewBudgetService(memory.New(), nil)
	ctx := userCtx("alice")
	ref := core.NewMonth(2025, 3)

	if _, err := svc.AddIncome(ctx, core.Money{Cents: 300000}, "Salario", ref); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddExpense(ctx, purchase(120000, 12, core.PaymentCreditCard, ref)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddExpense(ctx, purchase(5000, 1, core.PaymentPix, ref)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddExpense(userCtx("bob"), purchase(999999, 1, core.PaymentCreditCard, ref)); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetCardLimit(ctx, core.Money{Cents: 5000}); err != nil {
		t.Fatal(err)
	}

	s, err := svc.MonthSummary(ctx, ref)
	if err != nil {
		t.Fatalf("MonthSummary: %v", err)
	}
	if s.TotalIncome.Cents != 300000 {
		t.Errorf("income = %s", s.TotalIncome)
	}
	if s.TotalExpenses.Cents != 15000 {
		t.Errorf("expenses = %s", s.TotalExpenses)
	}
	if s.CreditCardExpenses.Cents != 10000 {
		t.Errorf("credit card = %s", s.CreditCardExpenses)
	}
	if s.Balance.Cents != 285000 {
		t.Errorf("balance = %s", s.Balance)
	}
	if !s.HasCardLimit || s.Available.Cents != -5000 || !s.OverLimit {
		t.Errorf("expected over limit by 50.00, got available=%s over=%v", s.Available, s.OverLimit)
	}
	// installments 2..12 fall inside the next twelve months
	if s.FutureInstallments.Cents != 110000 {
		t.Errorf("future installments = %s", s.FutureInstallments)
	}
	if len(s.Expenses) != 2 || len(s.Income) != 1 {
		t.Errorf("unexpected records: %d expenses, %d income", len(s.Expenses), len(s.Income))
	}
}

func TestMonthSummaryEmpty(t *testing.T) {
	svc := NewBudgetService(memory.New(), nil)
	s, err := svc.MonthSummary(userCtx("nobody"), core.NewMonth(2030, 1))
	if err != nil {
		t.Fatalf("MonthSummary: %v", err)
	}
	if s.HasCardLimit || s.OverLimit || s.Balance.Cents != 0 {
		t.Fatalf("expected empty summary, got %+v", s)
	}
	if s.Expenses == nil || s.Income == nil {
		t.Fatal("expected empty slices, not nil")
	}
}

func TestMonthSummaryWrapsStoreErrors(t *testing.T) {
	store := &flakyStore{Store: memory.New(), listErr: errors.New("connection reset")}
	svc := NewBudgetService(store, nil)

	_, err := svc.MonthSummary(userCtx("alice"), core.NewMonth(2025, 1))
	var perr *core.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if perr.Op != "list income" {
		t.Fatalf("unexpected op %q", perr.Op)
	}
}
