package memory

import (
	"context"
	"errors"
	"testing"

	"financeiro/internal/core"
	"financeiro/internal/gateway"
)

func expense(user core.UserID, month core.Month, method core.PaymentMethod, cents int64) core.Expense {
	return core.Expense{
		UserID:             user,
		Description:        "t",
		Value:              core.Money{Cents: cents},
		Category:           core.Outros,
		PaymentMethod:      method,
		Month:              month,
		Installments:       1,
		CurrentInstallment: 1,
	}
}

func TestInsertAndListExpenses(t *testing.T) {
	ctx := context.Background()
	s := New()
	jan := core.NewMonth(2025, 1)

	got, err := s.InsertExpense(ctx, expense("alice", jan, core.PaymentPix, 123))
	if err != nil || got.ID != 1 {
		t.Fatalf("unexpected insert: id=%d err=%v", got.ID, err)
	}
	if _, err := s.InsertExpense(ctx, expense("bob", jan, core.PaymentPix, 50)); err != nil {
		t.Fatalf("insert bob: %v", err)
	}
	if _, err := s.InsertExpense(ctx, expense("alice", jan.AddMonths(1), core.PaymentPix, 70)); err != nil {
		t.Fatalf("insert alice feb: %v", err)
	}

	list, err := s.ListExpenses(ctx, "alice", jan)
	if err != nil || len(list) != 1 || list[0].Value.Cents != 123 {
		t.Fatalf("expected alice's january expense only, got %+v (err=%v)", list, err)
	}
}

func TestInsertExpenseRequiresUserAndValidRecord(t *testing.T) {
	s := New()
	if _, err := s.InsertExpense(context.Background(), expense("", core.NewMonth(2025, 1), core.PaymentPix, 1)); !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := s.InsertExpense(context.Background(), expense("u", core.NewMonth(2025, 1), core.PaymentPix, 0)); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListExpensesBetween(t *testing.T) {
	ctx := context.Background()
	s := New()
	ref := core.NewMonth(2025, 3)
	for i := 0; i <= 13; i++ {
		if _, err := s.InsertExpense(ctx, expense("u", ref.AddMonths(i), core.PaymentCreditCard, 1)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if _, err := s.InsertExpense(ctx, expense("u", ref.AddMonths(2), core.PaymentMoney, 1)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.ListExpensesBetween(ctx, "u", ref, ref.AddMonths(12), core.PaymentCreditCard)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 12 {
		t.Fatalf("expected 12 credit card rows in (ref, ref+12], got %d", len(got))
	}
	all, _ := s.ListExpensesBetween(ctx, "u", ref, ref.AddMonths(12), "")
	if len(all) != 13 {
		t.Fatalf("expected 13 rows for any method, got %d", len(all))
	}
}

func TestIncomeAndLimit(t *testing.T) {
	ctx := context.Background()
	s := New()
	m := core.NewMonth(2025, 6)
	if _, err := s.InsertIncome(ctx, core.Income{UserID: "u", Value: core.Money{Cents: 500000}, Month: m}); err != nil {
		t.Fatalf("insert income: %v", err)
	}
	incomes, _ := s.ListIncome(ctx, "u", m)
	if len(incomes) != 1 {
		t.Fatalf("expected 1 income, got %d", len(incomes))
	}

	if _, ok, _ := s.GetCardLimit(ctx, "u"); ok {
		t.Fatalf("expected no limit before upsert")
	}
	for _, cents := range []int64{100000, 250000} {
		if err := s.UpsertCardLimit(ctx, core.CreditCardLimit{UserID: "u", CardLimit: core.Money{Cents: cents}}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	l, ok, err := s.GetCardLimit(ctx, "u")
	if err != nil || !ok || l.Cents != 250000 {
		t.Fatalf("expected replaced limit 2500.00, got %s ok=%v err=%v", l, ok, err)
	}
}

func TestMirrorBookkeeping(t *testing.T) {
	ctx := context.Background()
	s := New()
	m := core.NewMonth(2025, 1)
	for i := 0; i < 3; i++ {
		if _, err := s.InsertExpense(ctx, expense("u", m, core.PaymentPix, 10)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := s.MarkExpenseMirrored(ctx, 2); err != nil {
		t.Fatalf("mark: %v", err)
	}
	pending, _ := s.ListUnmirroredExpenses(ctx, 10)
	if len(pending) != 2 || pending[0].ID != 1 || pending[1].ID != 3 {
		t.Fatalf("expected ids 1 and 3 pending, got %+v", pending)
	}
	if _, err := s.GetExpense(ctx, 99); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.MarkExpenseMirrored(ctx, 99); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordMirrorFailureReordersPending(t *testing.T) {
	ctx := context.Background()
	s := New()
	m := core.NewMonth(2025, 1)
	for i := 0; i < 3; i++ {
		if _, err := s.InsertExpense(ctx, expense("u", m, core.PaymentPix, 10)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := s.RecordMirrorFailure(ctx, 1); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	pending, _ := s.ListUnmirroredExpenses(ctx, 2)
	if len(pending) != 2 || pending[0].ID != 2 || pending[1].ID != 3 {
		t.Fatalf("expected ids 2 and 3 ahead of the failing row, got %+v", pending)
	}
	if err := s.RecordMirrorFailure(ctx, 99); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
