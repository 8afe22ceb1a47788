package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"financeiro/internal/core"
	"financeiro/internal/gateway"

	_ "modernc.org/sqlite"
)

var (
	_ gateway.Gateway      = (*SQLiteRepository)(nil)
	_ gateway.MirrorSource = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// one writer at a time; concurrent installment inserts queue here
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable. Used by readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.UserID.IsZero() {
		return core.Expense{}, core.ErrUnauthenticated
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	row, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		UserID:             string(e.UserID),
		Description:        e.Description,
		ValueCents:         e.Value.Cents,
		Category:           string(e.Category),
		PaymentMethod:      string(e.PaymentMethod),
		Month:              e.Month.String(),
		Installments:       int64(e.Installments),
		CurrentInstallment: int64(e.CurrentInstallment),
		InstallmentGroup:   e.InstallmentGroup,
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", row.ID,
		"installment_group", row.InstallmentGroup,
		"installment", row.CurrentInstallment,
		"month", row.Month)

	return toCoreExpense(row)
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, user core.UserID, month core.Month) ([]core.Expense, error) {
	rows, err := r.queries.GetExpensesByMonth(ctx, GetExpensesByMonthParams{
		UserID: string(user),
		Month:  month.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("get expenses by month: %w", err)
	}
	return toCoreExpenses(rows)
}

func (r *SQLiteRepository) ListExpensesBetween(ctx context.Context, user core.UserID, after, until core.Month, method core.PaymentMethod) ([]core.Expense, error) {
	rows, err := r.queries.GetExpensesBetween(ctx, GetExpensesBetweenParams{
		UserID:        string(user),
		After:         after.String(),
		Until:         until.String(),
		PaymentMethod: string(method),
	})
	if err != nil {
		return nil, fmt.Errorf("get expenses between %s and %s: %w", after, until, err)
	}
	return toCoreExpenses(rows)
}

func (r *SQLiteRepository) InsertIncome(ctx context.Context, in core.Income) (core.Income, error) {
	if in.UserID.IsZero() {
		return core.Income{}, core.ErrUnauthenticated
	}
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}

	row, err := r.queries.CreateIncome(ctx, CreateIncomeParams{
		UserID:      string(in.UserID),
		ValueCents:  in.Value.Cents,
		Month:       in.Month.String(),
		Description: in.Description,
	})
	if err != nil {
		return core.Income{}, fmt.Errorf("create income: %w", err)
	}
	return toCoreIncome(row)
}

func (r *SQLiteRepository) ListIncome(ctx context.Context, user core.UserID, month core.Month) ([]core.Income, error) {
	rows, err := r.queries.GetIncomeByMonth(ctx, GetIncomeByMonthParams{
		UserID: string(user),
		Month:  month.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("get income by month: %w", err)
	}
	out := make([]core.Income, 0, len(rows))
	for _, row := range rows {
		in, err := toCoreIncome(row)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func (r *SQLiteRepository) GetCardLimit(ctx context.Context, user core.UserID) (core.Money, bool, error) {
	cents, err := r.queries.GetCardLimit(ctx, string(user))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, false, nil
	}
	if err != nil {
		return core.Money{}, false, fmt.Errorf("get card limit: %w", err)
	}
	return core.Money{Cents: cents}, true, nil
}

func (r *SQLiteRepository) UpsertCardLimit(ctx context.Context, l core.CreditCardLimit) error {
	if err := l.Validate(); err != nil {
		return err
	}
	err := r.queries.UpsertCardLimit(ctx, UpsertCardLimitParams{
		UserID:         string(l.UserID),
		CardLimitCents: l.CardLimit.Cents,
	})
	if err != nil {
		return fmt.Errorf("upsert card limit: %w", err)
	}
	return nil
}

// GetExpense retrieves a single expense by ID regardless of owner.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row, err := r.queries.GetExpense(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, gateway.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	return toCoreExpense(row)
}

func (r *SQLiteRepository) ListUnmirroredExpenses(ctx context.Context, limit int) ([]core.Expense, error) {
	rows, err := r.queries.GetUnmirroredExpenses(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get unmirrored expenses: %w", err)
	}
	return toCoreExpenses(rows)
}

func (r *SQLiteRepository) MarkExpenseMirrored(ctx context.Context, id int64) error {
	if err := r.queries.MarkExpenseMirrored(ctx, id); err != nil {
		return fmt.Errorf("mark expense mirrored: %w", err)
	}
	return nil
}

// RecordMirrorFailure counts a failed mirror attempt. Rows with more
// failures are listed after newer rows by ListUnmirroredExpenses.
func (r *SQLiteRepository) RecordMirrorFailure(ctx context.Context, id int64) error {
	if err := r.queries.RecordMirrorFailure(ctx, id); err != nil {
		return fmt.Errorf("record mirror failure: %w", err)
	}
	return nil
}

func toCoreExpense(row Expense) (core.Expense, error) {
	month, err := core.ParseMonth(row.Month)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: %w", row.ID, err)
	}
	return core.Expense{
		ID:                 row.ID,
		UserID:             core.UserID(row.UserID),
		Description:        row.Description,
		Value:              core.Money{Cents: row.ValueCents},
		Category:           core.Category(row.Category),
		PaymentMethod:      core.PaymentMethod(row.PaymentMethod),
		Month:              month,
		Installments:       int(row.Installments),
		CurrentInstallment: int(row.CurrentInstallment),
		InstallmentGroup:   row.InstallmentGroup,
		CreatedAt:          row.CreatedAt,
	}, nil
}

func toCoreExpenses(rows []Expense) ([]core.Expense, error) {
	out := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := toCoreExpense(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func toCoreIncome(row Income) (core.Income, error) {
	month, err := core.ParseMonth(row.Month)
	if err != nil {
		return core.Income{}, fmt.Errorf("income %d: %w", row.ID, err)
	}
	return core.Income{
		ID:          row.ID,
		UserID:      core.UserID(row.UserID),
		Value:       core.Money{Cents: row.ValueCents},
		Month:       month,
		Description: row.Description,
		CreatedAt:   row.CreatedAt,
	}, nil
}
