// Package gateway declares the persistence ports the budget service talks
// to. Every call is scoped by the owning user; implementations enforce that
// scoping at the storage boundary.
package gateway

import (
	"context"
	"errors"

	"financeiro/internal/core"
)

// ErrNotFound is returned when a looked up record does not exist.
var ErrNotFound = errors.New("record not found")

type (
	ExpenseWriter interface {
		// InsertExpense stores e and returns it with its assigned ID.
		InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	}

	ExpenseLister interface {
		// ListExpenses returns the user's expenses dated in month.
		ListExpenses(ctx context.Context, user core.UserID, month core.Month) ([]core.Expense, error)
		// ListExpensesBetween returns the user's expenses paid with method
		// whose month is in (after, until]. An empty method matches all.
		ListExpensesBetween(ctx context.Context, user core.UserID, after, until core.Month, method core.PaymentMethod) ([]core.Expense, error)
	}

	IncomeWriter interface {
		InsertIncome(ctx context.Context, in core.Income) (core.Income, error)
	}

	IncomeLister interface {
		ListIncome(ctx context.Context, user core.UserID, month core.Month) ([]core.Income, error)
	}

	LimitStore interface {
		// GetCardLimit reports false when the user never set a limit.
		GetCardLimit(ctx context.Context, user core.UserID) (core.Money, bool, error)
		// UpsertCardLimit creates or replaces the user's single limit row.
		UpsertCardLimit(ctx context.Context, l core.CreditCardLimit) error
	}

	// Gateway is the full persistence surface used by the budget service.
	Gateway interface {
		ExpenseWriter
		ExpenseLister
		IncomeWriter
		IncomeLister
		LimitStore
	}

	// MirrorSource feeds the spreadsheet mirror. Lookups here are not user
	// scoped; only the worker uses them.
	MirrorSource interface {
		GetExpense(ctx context.Context, id int64) (core.Expense, error)
		ListUnmirroredExpenses(ctx context.Context, limit int) ([]core.Expense, error)
		MarkExpenseMirrored(ctx context.Context, id int64) error
		// RecordMirrorFailure moves a row behind rows with fewer failed
		// attempts in ListUnmirroredExpenses.
		RecordMirrorFailure(ctx context.Context, id int64) error
	}
)
