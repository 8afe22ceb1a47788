package services

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"financeiro/internal/amqp"
	"financeiro/internal/auth"
	"financeiro/internal/core"
	"financeiro/internal/gateway"
	"financeiro/internal/log"
)

// Publisher announces stored expenses to the mirror worker.
type Publisher interface {
	PublishExpenseRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error
}

// Summary is everything the dashboard shows for one month.
type Summary struct {
	core.Totals
	Balance            core.Money     `json:"balance"`
	CardLimit          core.Money     `json:"card_limit"`
	HasCardLimit       bool           `json:"has_card_limit"`
	Available          core.Money     `json:"available"`
	OverLimit          bool           `json:"over_limit"`
	FutureInstallments core.Money     `json:"future_installments"`
	Expenses           []core.Expense `json:"expenses"`
	Income             []core.Income  `json:"income"`
}

// BudgetService runs the user-facing operations against the gateway. The
// user always comes from ctx.
type BudgetService struct {
	store     gateway.Gateway
	publisher Publisher
	logger    *log.StructuredLogger
}

// NewBudgetService wires the service. publisher may be nil, in which case
// no events are sent.
func NewBudgetService(store gateway.Gateway, publisher Publisher) *BudgetService {
	return &BudgetService{
		store:     store,
		publisher: publisher,
		logger:    log.NewStructuredLogger(log.New(log.DefaultConfig()).WithComponent(log.ComponentBudget)),
	}
}

// WithLogger replaces the service logger.
func (s *BudgetService) WithLogger(l *log.Logger) *BudgetService {
	s.logger = log.NewStructuredLogger(l.WithComponent(log.ComponentBudget))
	return s
}

// AddExpense splits the purchase into installments and stores them
// concurrently. Every insert runs to completion; when some fail after others
// succeeded the stored rows stay in place and a *core.PartialBatchError lists
// them. When nothing was stored the error is a *core.PersistenceError.
func (s *BudgetService) AddExpense(ctx context.Context, req core.InstallmentRequest) ([]core.Expense, error) {
	user, err := auth.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := core.GenerateInstallments(req)
	if err != nil {
		return nil, err
	}

	saved := make([]core.Expense, len(rows))
	failed := make([]bool, len(rows))
	var g errgroup.Group
	for i := range rows {
		i := i
		rows[i].UserID = user
		g.Go(func() error {
			e, err := s.store.InsertExpense(ctx, rows[i])
			if err != nil {
				failed[i] = true
				return err
			}
			saved[i] = e
			return nil
		})
	}
	first := g.Wait()

	inserted := make([]core.Expense, 0, len(rows))
	for i, e := range saved {
		if !failed[i] {
			inserted = append(inserted, e)
		}
	}
	s.publish(ctx, inserted)

	group := rows[0].InstallmentGroup
	if first != nil && len(inserted) == 0 {
		err := persistenceErr("insert expense", first)
		s.logger.LogError(ctx, "Expense not stored", err, log.ComponentBudget, log.OpCreate,
			log.NewFields().WithUser(string(user)).WithInstallmentGroup(group).WithError(err, log.ErrorTypeDatabase))
		return nil, err
	}
	if first != nil {
		perr := &core.PartialBatchError{
			Group:     group,
			Attempted: len(rows),
			Failed:    len(rows) - len(inserted),
			Inserted:  inserted,
			First:     persistenceErr("insert expense", first),
		}
		s.logger.LogError(ctx, "Installment batch incomplete", perr, log.ComponentBudget, log.OpCreate,
			log.NewFields().WithUser(string(user)).WithInstallmentGroup(group).WithError(perr, log.ErrorTypePartialBatch))
		return inserted, perr
	}

	s.logger.LogExpenseRecorded(ctx, string(user), req.Description, req.Total.Cents,
		string(req.Category), string(req.PaymentMethod), req.Installments, group)
	return inserted, nil
}

// publish announces each stored row. Failures are logged and dropped; the
// mirror worker's catch-up scan picks those rows up later.
func (s *BudgetService) publish(ctx context.Context, rows []core.Expense) {
	if s.publisher == nil {
		return
	}
	for _, e := range rows {
		msg := amqp.NewExpenseRecordedMessage(e.ID, e.InstallmentGroup, e.Month.String())
		if err := s.publisher.PublishExpenseRecorded(ctx, msg); err != nil {
			slog.WarnContext(ctx, "Failed to publish expense recorded message",
				log.FieldExpenseID, e.ID,
				log.FieldError, err.Error())
		}
	}
}

// AddIncome records one income entry for month.
func (s *BudgetService) AddIncome(ctx context.Context, value core.Money, description string, month core.Month) (core.Income, error) {
	user, err := auth.UserFromContext(ctx)
	if err != nil {
		return core.Income{}, err
	}
	in := core.Income{
		UserID:      user,
		Value:       value,
		Month:       core.CanonicalMonth(month.Time),
		Description: description,
	}
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	saved, err := s.store.InsertIncome(ctx, in)
	if err != nil {
		return core.Income{}, persistenceErr("insert income", err)
	}
	return saved, nil
}

// SetCardLimit creates or replaces the user's credit card limit.
func (s *BudgetService) SetCardLimit(ctx context.Context, limit core.Money) error {
	user, err := auth.UserFromContext(ctx)
	if err != nil {
		return err
	}
	l := core.CreditCardLimit{UserID: user, CardLimit: limit}
	if err := l.Validate(); err != nil {
		return err
	}
	if err := s.store.UpsertCardLimit(ctx, l); err != nil {
		return persistenceErr("upsert card limit", err)
	}
	return nil
}

// CardLimit returns the user's limit and whether one was ever set.
func (s *BudgetService) CardLimit(ctx context.Context) (core.Money, bool, error) {
	user, err := auth.UserFromContext(ctx)
	if err != nil {
		return core.Money{}, false, err
	}
	limit, ok, err := s.store.GetCardLimit(ctx, user)
	if err != nil {
		return core.Money{}, false, persistenceErr("get card limit", err)
	}
	return limit, ok, nil
}

// ListExpenses returns the user's expenses of month.
func (s *BudgetService) ListExpenses(ctx context.Context, month core.Month) ([]core.Expense, error) {
	user, err := auth.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.store.ListExpenses(ctx, user, core.CanonicalMonth(month.Time))
	if err != nil {
		return nil, persistenceErr("list expenses", err)
	}
	return out, nil
}

// ListIncome returns the user's income entries of month.
func (s *BudgetService) ListIncome(ctx context.Context, month core.Month) ([]core.Income, error) {
	user, err := auth.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.store.ListIncome(ctx, user, core.CanonicalMonth(month.Time))
	if err != nil {
		return nil, persistenceErr("list income", err)
	}
	return out, nil
}

// MonthSummary loads the month's records, the next twelve months of credit
// card installments and the limit, then aggregates them. The four reads run
// concurrently; the first failure cancels the rest.
func (s *BudgetService) MonthSummary(ctx context.Context, month core.Month) (Summary, error) {
	user, err := auth.UserFromContext(ctx)
	if err != nil {
		return Summary{}, err
	}
	ref := core.CanonicalMonth(month.Time)

	var (
		expenses []core.Expense
		incomes  []core.Income
		future   []core.Expense
		limit    core.Money
		hasLimit bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = s.store.ListExpenses(gctx, user, ref)
		return persistenceErr("list expenses", err)
	})
	g.Go(func() error {
		var err error
		incomes, err = s.store.ListIncome(gctx, user, ref)
		return persistenceErr("list income", err)
	})
	g.Go(func() error {
		var err error
		future, err = s.store.ListExpensesBetween(gctx, user, ref, ref.AddMonths(core.FutureWindow), core.PaymentCreditCard)
		return persistenceErr("list future installments", err)
	})
	g.Go(func() error {
		var err error
		limit, hasLimit, err = s.store.GetCardLimit(gctx, user)
		return persistenceErr("get card limit", err)
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	totals := core.Aggregate(expenses, incomes, ref)
	available := totals.Available(limit)
	return Summary{
		Totals:             totals,
		Balance:            totals.Balance(),
		CardLimit:          limit,
		HasCardLimit:       hasLimit,
		Available:          available,
		OverLimit:          available.Cents < 0,
		FutureInstallments: core.FutureInstallments(future, ref),
		Expenses:           nonNilExpenses(expenses),
		Income:             nonNilIncome(incomes),
	}, nil
}

// persistenceErr wraps gateway failures. Input and identity errors raised by
// the gateway pass through unchanged.
func persistenceErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if core.IsValidation(err) || errors.Is(err, core.ErrUnauthenticated) {
		return err
	}
	var pe *core.PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &core.PersistenceError{Op: op, Err: err}
}

func nonNilExpenses(in []core.Expense) []core.Expense {
	if in == nil {
		return []core.Expense{}
	}
	return in
}

func nonNilIncome(in []core.Income) []core.Income {
	if in == nil {
		return []core.Income{}
	}
	return in
}
