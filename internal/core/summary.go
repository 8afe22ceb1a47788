package core

import "sort"

// FutureWindow is how many months ahead future installments are counted.
const FutureWindow = 12

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// Totals is the aggregate of one user's month.
type Totals struct {
	Month              Month            `json:"month"`
	TotalIncome        Money            `json:"total_income"`
	TotalExpenses      Money            `json:"total_expenses"`
	CreditCardExpenses Money            `json:"credit_card_expenses"`
	ByCategory         []CategoryAmount `json:"by_category"`
	ByPaymentMethod    []CategoryAmount `json:"by_payment_method"`
}

// Balance is income minus expenses for the month.
func (t Totals) Balance() Money {
	return t.TotalIncome.Sub(t.TotalExpenses)
}

// Available is the card limit minus this month's credit-card spending. It
// may be negative.
func (t Totals) Available(limit Money) Money {
	return limit.Sub(t.CreditCardExpenses)
}

// Aggregate folds the records of ref's month into totals. Records of other
// months are ignored, and input order never affects the result.
func Aggregate(expenses []Expense, incomes []Income, ref Month) Totals {
	ref = CanonicalMonth(ref.Time)
	t := Totals{Month: ref}

	byCat := map[string]int64{}
	byMethod := map[string]int64{}
	for _, e := range expenses {
		if !e.Month.Equal(ref) {
			continue
		}
		t.TotalExpenses = t.TotalExpenses.Add(e.Value)
		if e.PaymentMethod == PaymentCreditCard {
			t.CreditCardExpenses = t.CreditCardExpenses.Add(e.Value)
		}
		byCat[string(e.Category)] += e.Value.Cents
		byMethod[string(e.PaymentMethod)] += e.Value.Cents
	}
	for _, in := range incomes {
		if !in.Month.Equal(ref) {
			continue
		}
		t.TotalIncome = t.TotalIncome.Add(in.Value)
	}

	t.ByCategory = sortedAmounts(byCat)
	t.ByPaymentMethod = sortedAmounts(byMethod)
	return t
}

// FutureInstallments sums credit-card expenses dated strictly after ref and
// up to and including ref+12 months.
func FutureInstallments(expenses []Expense, ref Month) Money {
	from := CanonicalMonth(ref.Time)
	to := from.AddMonths(FutureWindow)
	var sum Money
	for _, e := range expenses {
		if e.PaymentMethod != PaymentCreditCard {
			continue
		}
		if e.Month.After(from) && !e.Month.After(to) {
			sum = sum.Add(e.Value)
		}
	}
	return sum
}

// sortedAmounts orders by amount descending, then by name, so equal inputs
// always render identically.
func sortedAmounts(m map[string]int64) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(m))
	for name, cents := range m {
		out = append(out, CategoryAmount{Name: name, Amount: Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}
