package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Expense is a row of the expenses table.
type Expense struct {
	ID                 int64
	UserID             string
	Description        string
	ValueCents         int64
	Category           string
	PaymentMethod      string
	Month              string
	Installments       int64
	CurrentInstallment int64
	InstallmentGroup   string
	CreatedAt          time.Time
	MirroredAt         sql.NullTime
}

// Income is a row of the income table.
type Income struct {
	ID          int64
	UserID      string
	ValueCents  int64
	Month       string
	Description string
	CreatedAt   time.Time
}

const expenseColumns = `id, user_id, description, value_cents, category, payment_method, month,
       installments, current_installment, installment_group, created_at, mirrored_at`

func scanExpense(row interface{ Scan(...any) error }) (Expense, error) {
	var e Expense
	var createdAt, mirroredAt any
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Description,
		&e.ValueCents,
		&e.Category,
		&e.PaymentMethod,
		&e.Month,
		&e.Installments,
		&e.CurrentInstallment,
		&e.InstallmentGroup,
		&createdAt,
		&mirroredAt,
	)
	if err != nil {
		return e, err
	}
	e.CreatedAt = scanTime(createdAt)
	if mirroredAt != nil {
		e.MirroredAt = sql.NullTime{Time: scanTime(mirroredAt), Valid: true}
	}
	return e, nil
}

const createExpense = `-- name: CreateExpense :one
INSERT INTO expenses (
    user_id, description, value_cents, category, payment_method, month,
    installments, current_installment, installment_group
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + expenseColumns

type CreateExpenseParams struct {
	UserID             string
	Description        string
	ValueCents         int64
	Category           string
	PaymentMethod      string
	Month              string
	Installments       int64
	CurrentInstallment int64
	InstallmentGroup   string
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, createExpense,
		arg.UserID,
		arg.Description,
		arg.ValueCents,
		arg.Category,
		arg.PaymentMethod,
		arg.Month,
		arg.Installments,
		arg.CurrentInstallment,
		arg.InstallmentGroup,
	)
	return scanExpense(row)
}

const getExpense = `-- name: GetExpense :one
SELECT ` + expenseColumns + `
FROM expenses
WHERE id = ?`

func (q *Queries) GetExpense(ctx context.Context, id int64) (Expense, error) {
	return scanExpense(q.db.QueryRowContext(ctx, getExpense, id))
}

const getExpensesByMonth = `-- name: GetExpensesByMonth :many
SELECT ` + expenseColumns + `
FROM expenses
WHERE user_id = ? AND month = ?
ORDER BY id`

type GetExpensesByMonthParams struct {
	UserID string
	Month  string
}

func (q *Queries) GetExpensesByMonth(ctx context.Context, arg GetExpensesByMonthParams) ([]Expense, error) {
	return q.queryExpenses(ctx, getExpensesByMonth, arg.UserID, arg.Month)
}

const getExpensesBetween = `-- name: GetExpensesBetween :many
SELECT ` + expenseColumns + `
FROM expenses
WHERE user_id = ?
  AND month > ?
  AND month <= ?
  AND (? = '' OR payment_method = ?)
ORDER BY month, id`

type GetExpensesBetweenParams struct {
	UserID        string
	After         string
	Until         string
	PaymentMethod string
}

func (q *Queries) GetExpensesBetween(ctx context.Context, arg GetExpensesBetweenParams) ([]Expense, error) {
	return q.queryExpenses(ctx, getExpensesBetween,
		arg.UserID, arg.After, arg.Until, arg.PaymentMethod, arg.PaymentMethod)
}

const getUnmirroredExpenses = `-- name: GetUnmirroredExpenses :many
SELECT ` + expenseColumns + `
FROM expenses
WHERE mirrored_at IS NULL
ORDER BY mirror_attempts, id
LIMIT ?`

func (q *Queries) GetUnmirroredExpenses(ctx context.Context, limit int64) ([]Expense, error) {
	return q.queryExpenses(ctx, getUnmirroredExpenses, limit)
}

const markExpenseMirrored = `-- name: MarkExpenseMirrored :exec
UPDATE expenses SET mirrored_at = CURRENT_TIMESTAMP WHERE id = ?`

func (q *Queries) MarkExpenseMirrored(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markExpenseMirrored, id)
	return err
}

const recordMirrorFailure = `-- name: RecordMirrorFailure :exec
UPDATE expenses SET mirror_attempts = mirror_attempts + 1 WHERE id = ? AND mirrored_at IS NULL`

func (q *Queries) RecordMirrorFailure(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, recordMirrorFailure, id)
	return err
}

func (q *Queries) queryExpenses(ctx context.Context, query string, args ...interface{}) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createIncome = `-- name: CreateIncome :one
INSERT INTO income (user_id, value_cents, month, description)
VALUES (?, ?, ?, ?)
RETURNING id, user_id, value_cents, month, description, created_at`

type CreateIncomeParams struct {
	UserID      string
	ValueCents  int64
	Month       string
	Description string
}

func (q *Queries) CreateIncome(ctx context.Context, arg CreateIncomeParams) (Income, error) {
	row := q.db.QueryRowContext(ctx, createIncome, arg.UserID, arg.ValueCents, arg.Month, arg.Description)
	var i Income
	var createdAt any
	err := row.Scan(&i.ID, &i.UserID, &i.ValueCents, &i.Month, &i.Description, &createdAt)
	i.CreatedAt = scanTime(createdAt)
	return i, err
}

const getIncomeByMonth = `-- name: GetIncomeByMonth :many
SELECT id, user_id, value_cents, month, description, created_at
FROM income
WHERE user_id = ? AND month = ?
ORDER BY id`

type GetIncomeByMonthParams struct {
	UserID string
	Month  string
}

func (q *Queries) GetIncomeByMonth(ctx context.Context, arg GetIncomeByMonthParams) ([]Income, error) {
	rows, err := q.db.QueryContext(ctx, getIncomeByMonth, arg.UserID, arg.Month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Income
	for rows.Next() {
		var i Income
		var createdAt any
		if err := rows.Scan(&i.ID, &i.UserID, &i.ValueCents, &i.Month, &i.Description, &createdAt); err != nil {
			return nil, err
		}
		i.CreatedAt = scanTime(createdAt)
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCardLimit = `-- name: GetCardLimit :one
SELECT card_limit_cents FROM credit_card_limits WHERE user_id = ?`

func (q *Queries) GetCardLimit(ctx context.Context, userID string) (int64, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx, getCardLimit, userID).Scan(&cents)
	return cents, err
}

const upsertCardLimit = `-- name: UpsertCardLimit :exec
INSERT INTO credit_card_limits (user_id, card_limit_cents, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (user_id) DO UPDATE SET
    card_limit_cents = excluded.card_limit_cents,
    updated_at = CURRENT_TIMESTAMP`

type UpsertCardLimitParams struct {
	UserID         string
	CardLimitCents int64
}

func (q *Queries) UpsertCardLimit(ctx context.Context, arg UpsertCardLimitParams) error {
	_, err := q.db.ExecContext(ctx, upsertCardLimit, arg.UserID, arg.CardLimitCents)
	return err
}

// scanTime accepts both driver representations of a DATETIME column.
func scanTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, "2006-01-02T15:04:05Z"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC()
			}
		}
	case []byte:
		return scanTime(string(t))
	}
	return time.Time{}
}
