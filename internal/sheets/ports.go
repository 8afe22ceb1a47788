// Package sheets declares the spreadsheet mirror port. Rows are a read-only
// copy of stored expenses for people who prefer a spreadsheet view.
package sheets

import (
	"context"
	"errors"

	"financeiro/internal/core"
)

// ErrAlreadyMirrored is returned when the expense row is already present.
var ErrAlreadyMirrored = errors.New("expense already mirrored")

type (
	ExpenseMirror interface {
		// AppendExpense writes one row for e and returns the written range.
		AppendExpense(ctx context.Context, e core.Expense) (rowRef string, err error)
	}
)
