package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"financeiro/internal/amqp"
	"financeiro/internal/core"
	"financeiro/internal/gateway"
	"financeiro/internal/log"
	"financeiro/internal/sheets"
)

// MirrorWorker copies stored expenses into the spreadsheet mirror.
type MirrorWorker struct {
	source    gateway.MirrorSource
	mirror    sheets.ExpenseMirror
	batchSize int
}

func NewMirrorWorker(source gateway.MirrorSource, mirror sheets.ExpenseMirror, batchSize int) *MirrorWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &MirrorWorker{
		source:    source,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleRecorded processes one expense.recorded message. A returned error
// asks the broker to redeliver.
func (w *MirrorWorker) HandleRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error {
	slog.InfoContext(ctx, "Processing expense recorded message",
		log.FieldExpenseID, msg.ExpenseID,
		log.FieldInstallmentGroup, msg.InstallmentGroup)

	e, err := w.source.GetExpense(ctx, msg.ExpenseID)
	if errors.Is(err, gateway.ErrNotFound) {
		// nothing to mirror; redelivery would not change that
		slog.WarnContext(ctx, "Dropping message for unknown expense", log.FieldExpenseID, msg.ExpenseID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	if err := w.mirrorExpense(ctx, e); err != nil {
		w.recordFailure(ctx, e.ID)
		return fmt.Errorf("mirror expense: %w", err)
	}
	return nil
}

// ProcessPending mirrors one batch of rows that were never marked as
// mirrored. It covers messages lost while the broker was unreachable.
func (w *MirrorWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupCheck runs a larger catch-up batch when the worker starts.
func (w *MirrorWorker) StartupCheck(ctx context.Context) error {
	n, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup mirror check: %w", err)
	}
	if n == 0 {
		slog.InfoContext(ctx, "No pending expenses found on startup")
	}
	return nil
}

func (w *MirrorWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.source.ListUnmirroredExpenses(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list unmirrored expenses: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending expenses", "count", len(pending))

	mirrored, failed := 0, 0
	for _, e := range pending {
		if ctx.Err() != nil {
			return mirrored, ctx.Err()
		}
		if err := w.mirrorExpense(ctx, e); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror expense",
				log.FieldExpenseID, e.ID,
				log.FieldError, err.Error())
			w.recordFailure(ctx, e.ID)
			failed++
			continue
		}
		mirrored++
	}

	slog.InfoContext(ctx, "Pending expenses processed",
		"total", len(pending),
		"mirrored", mirrored,
		"errors", failed)
	return mirrored, nil
}

func (w *MirrorWorker) mirrorExpense(ctx context.Context, e core.Expense) error {
	ref, err := w.mirror.AppendExpense(ctx, e)
	switch {
	case errors.Is(err, sheets.ErrAlreadyMirrored):
		slog.DebugContext(ctx, "Expense already present in mirror", log.FieldExpenseID, e.ID)
	case err != nil:
		return fmt.Errorf("append to sheets: %w", err)
	}

	if err := w.source.MarkExpenseMirrored(ctx, e.ID); err != nil {
		// the row exists in the sheet; the next append is skipped as a duplicate
		slog.ErrorContext(ctx, "Failed to mark expense as mirrored",
			log.FieldExpenseID, e.ID,
			log.FieldError, err.Error())
		return nil
	}

	if ref != "" {
		slog.InfoContext(ctx, "Mirrored expense",
			log.FieldExpenseID, e.ID,
			log.FieldSheetsRange, ref,
			log.FieldAmountCents, e.Value.Cents)
	}
	return nil
}

// recordFailure pushes a row behind the other pending rows so one row that
// keeps failing does not hold back the rest of the backlog.
func (w *MirrorWorker) recordFailure(ctx context.Context, id int64) {
	if err := w.source.RecordMirrorFailure(ctx, id); err != nil {
		slog.WarnContext(ctx, "Failed to record mirror failure",
			log.FieldExpenseID, id,
			log.FieldError, err.Error())
	}
}
