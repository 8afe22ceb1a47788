package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"financeiro/internal/core"
	"financeiro/internal/gateway"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "financeiro.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleExpense(user core.UserID, month core.Month, method core.PaymentMethod, cents int64, group string, current int) core.Expense {
	return core.Expense{
		UserID:             user,
		Description:        "Mercado",
		Value:              core.Money{Cents: cents},
		Category:           core.Alimentacao,
		PaymentMethod:      method,
		Month:              month,
		Installments:       12,
		CurrentInstallment: current,
		InstallmentGroup:   group,
	}
}

func TestMigrationsApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	if err := RunMigrations(path); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second run should be a no-op: %v", err)
	}
	v, dirty, err := MigrationVersion(path)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 3 || dirty {
		t.Fatalf("expected clean version 3, got %d dirty=%v", v, dirty)
	}
}

func TestExpenseRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	march := core.NewMonth(2025, 3)

	saved, err := repo.InsertExpense(ctx, sampleExpense("alice", march, core.PaymentCreditCard, 40000, "g1", 1))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if saved.ID == 0 || saved.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be assigned, got %+v", saved)
	}
	if !saved.Month.Equal(march) || saved.Value.Cents != 40000 {
		t.Fatalf("unexpected saved expense %+v", saved)
	}

	if _, err := repo.InsertExpense(ctx, sampleExpense("bob", march, core.PaymentPix, 100, "g2", 1)); err != nil {
		t.Fatalf("insert bob: %v", err)
	}

	list, err := repo.ListExpenses(ctx, "alice", march)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].InstallmentGroup != "g1" {
		t.Fatalf("expected only alice's expense, got %+v", list)
	}

	got, err := repo.GetExpense(ctx, saved.ID)
	if err != nil || got.Description != "Mercado" {
		t.Fatalf("get expense: %+v err=%v", got, err)
	}
	if _, err := repo.GetExpense(ctx, 9999); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertExpenseRejectsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	m := core.NewMonth(2025, 1)

	if _, err := repo.InsertExpense(ctx, sampleExpense("", m, core.PaymentPix, 1, "g", 1)); !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := repo.InsertExpense(ctx, sampleExpense("u", m, "cheque", 1, "g", 1)); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDuplicateInstallmentRejected(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	m := core.NewMonth(2025, 1)

	if _, err := repo.InsertExpense(ctx, sampleExpense("u", m, core.PaymentPix, 10, "g", 1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := repo.InsertExpense(ctx, sampleExpense("u", m, core.PaymentPix, 10, "g", 1)); err == nil {
		t.Fatalf("expected unique constraint violation")
	}
}

func TestListExpensesBetween(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	ref := core.NewMonth(2025, 3)

	for i := 0; i <= 12; i++ {
		e := sampleExpense("u", ref.AddMonths(i), core.PaymentCreditCard, 10, "cc", i%12+1)
		if i == 12 {
			e.InstallmentGroup = "cc-next"
		}
		if _, err := repo.InsertExpense(ctx, e); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if _, err := repo.InsertExpense(ctx, sampleExpense("u", ref.AddMonths(13), core.PaymentCreditCard, 10, "late", 1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := repo.InsertExpense(ctx, sampleExpense("u", ref.AddMonths(1), core.PaymentMoney, 10, "cash", 1)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	cc, err := repo.ListExpensesBetween(ctx, "u", ref, ref.AddMonths(core.FutureWindow), core.PaymentCreditCard)
	if err != nil {
		t.Fatalf("between: %v", err)
	}
	if len(cc) != 12 {
		t.Fatalf("expected 12 credit card rows in (ref, ref+12], got %d", len(cc))
	}
	if got := core.FutureInstallments(cc, ref); got.Cents != 120 {
		t.Fatalf("expected 1.20 future installments, got %s", got)
	}

	all, err := repo.ListExpensesBetween(ctx, "u", ref, ref.AddMonths(core.FutureWindow), "")
	if err != nil {
		t.Fatalf("between: %v", err)
	}
	if len(all) != 13 {
		t.Fatalf("expected 13 rows for any method, got %d", len(all))
	}
}

func TestConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	m := core.NewMonth(2025, 5)

	var wg sync.WaitGroup
	errs := make(chan error, core.MaxInstallments)
	for i := 1; i <= core.MaxInstallments; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.InsertExpense(ctx, sampleExpense("u", m.AddMonths(i-1), core.PaymentCreditCard, 100, "batch", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent insert: %v", err)
		}
	}

	all, err := repo.ListExpensesBetween(ctx, "u", m.AddMonths(-1), m.AddMonths(11), "")
	if err != nil || len(all) != core.MaxInstallments {
		t.Fatalf("expected %d rows, got %d (err=%v)", core.MaxInstallments, len(all), err)
	}
}

func TestIncomeAndCardLimit(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	m := core.NewMonth(2025, 6)

	in, err := repo.InsertIncome(ctx, core.Income{UserID: "u", Value: core.Money{Cents: 500000}, Month: m, Description: "Salario"})
	if err != nil {
		t.Fatalf("insert income: %v", err)
	}
	if in.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}
	incomes, err := repo.ListIncome(ctx, "u", m)
	if err != nil || len(incomes) != 1 || incomes[0].Description != "Salario" {
		t.Fatalf("unexpected incomes %+v err=%v", incomes, err)
	}
	others, _ := repo.ListIncome(ctx, "other", m)
	if len(others) != 0 {
		t.Fatalf("expected income to be user scoped, got %+v", others)
	}

	if _, ok, err := repo.GetCardLimit(ctx, "u"); ok || err != nil {
		t.Fatalf("expected no limit, got ok=%v err=%v", ok, err)
	}
	for _, cents := range []int64{100000, 0, 300000} {
		if err := repo.UpsertCardLimit(ctx, core.CreditCardLimit{UserID: "u", CardLimit: core.Money{Cents: cents}}); err != nil {
			t.Fatalf("upsert %d: %v", cents, err)
		}
	}
	l, ok, err := repo.GetCardLimit(ctx, "u")
	if err != nil || !ok || l.Cents != 300000 {
		t.Fatalf("expected limit 3000.00, got %s ok=%v err=%v", l, ok, err)
	}
	if err := repo.UpsertCardLimit(ctx, core.CreditCardLimit{UserID: "u", CardLimit: core.Money{Cents: -1}}); !core.IsValidation(err) {
		t.Fatalf("expected validation error for negative limit, got %v", err)
	}
}

func TestMirrorBookkeeping(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	m := core.NewMonth(2025, 1)

	var ids []int64
	for i := 1; i <= 3; i++ {
		e, err := repo.InsertExpense(ctx, sampleExpense("u", m, core.PaymentPix, 10, "mirror", i))
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		ids = append(ids, e.ID)
	}
	if err := repo.MarkExpenseMirrored(ctx, ids[1]); err != nil {
		t.Fatalf("mark: %v", err)
	}

	pending, err := repo.ListUnmirroredExpenses(ctx, 10)
	if err != nil {
		t.Fatalf("unmirrored: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != ids[0] || pending[1].ID != ids[2] {
		t.Fatalf("expected first and third pending, got %+v", pending)
	}
	limited, _ := repo.ListUnmirroredExpenses(ctx, 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestFailingMirrorRowsMoveBehind(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	m := core.NewMonth(2025, 1)

	var ids []int64
	for i := 1; i <= 3; i++ {
		e, err := repo.InsertExpense(ctx, sampleExpense("u", m, core.PaymentPix, 10, "retry", i))
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		ids = append(ids, e.ID)
	}
	for i := 0; i < 2; i++ {
		if err := repo.RecordMirrorFailure(ctx, ids[0]); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	if err := repo.RecordMirrorFailure(ctx, ids[1]); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	pending, err := repo.ListUnmirroredExpenses(ctx, 10)
	if err != nil {
		t.Fatalf("unmirrored: %v", err)
	}
	if len(pending) != 3 || pending[0].ID != ids[2] || pending[1].ID != ids[1] || pending[2].ID != ids[0] {
		t.Fatalf("expected rows ordered by failed attempts, got %+v", pending)
	}
	first, _ := repo.ListUnmirroredExpenses(ctx, 1)
	if len(first) != 1 || first[0].ID != ids[2] {
		t.Fatalf("expected the never-failed row first, got %+v", first)
	}
}
