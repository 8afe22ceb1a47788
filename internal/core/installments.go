package core

import (
	"fmt"

	"github.com/google/uuid"
)

// InstallmentRequest describes one purchase as entered on the expense form.
type InstallmentRequest struct {
	Total         Money
	Description   string
	Category      Category
	PaymentMethod PaymentMethod
	Installments  int
	StartMonth    Month
}

// Validate checks the form preconditions. The first failing field is reported.
func (r InstallmentRequest) Validate() error {
	if err := validateDescription(r.Description, maxDescriptionLen); err != nil {
		return err
	}
	if err := r.Total.Validate(); err != nil {
		return &ValidationError{Field: "value", Reason: "must be greater than zero", Err: err}
	}
	if r.Category == "" {
		return &ValidationError{Field: "category", Reason: "must be selected", Err: ErrInvalidCategory}
	}
	if !r.Category.IsValid() {
		return &ValidationError{Field: "category", Reason: "unknown category " + quote(string(r.Category)), Err: ErrInvalidCategory}
	}
	if !r.PaymentMethod.IsValid() {
		return &ValidationError{Field: "payment_method", Reason: "unknown payment method " + quote(string(r.PaymentMethod)), Err: ErrInvalidPaymentMethod}
	}
	if r.Installments < 1 || r.Installments > MaxInstallments {
		return &ValidationError{Field: "installments", Reason: fmt.Sprintf("must be between 1 and %d", MaxInstallments), Err: ErrInvalidInstallments}
	}
	if r.StartMonth.IsZero() {
		return &ValidationError{Field: "month", Reason: "month is required", Err: ErrInvalidMonth}
	}
	return nil
}

// GenerateInstallments splits a purchase into one expense per month.
//
// Every record gets Total/Installments (rounded to the cent, remainder not
// redistributed, never below one cent), the month StartMonth+i, and a shared
// installment group.
// Descriptions carry a " (i/N)" suffix only when N > 1. UserID is left for
// the caller to stamp.
func GenerateInstallments(r InstallmentRequest) ([]Expense, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	group := uuid.NewString()
	start := CanonicalMonth(r.StartMonth.Time)
	part := r.Total.Divide(r.Installments)
	if part.Cents < 1 {
		part = Money{Cents: 1}
	}

	out := make([]Expense, 0, r.Installments)
	for i := 0; i < r.Installments; i++ {
		desc := r.Description
		if r.Installments > 1 {
			desc = fmt.Sprintf("%s (%d/%d)", r.Description, i+1, r.Installments)
		}
		out = append(out, Expense{
			Description:        desc,
			Value:              part,
			Category:           r.Category,
			PaymentMethod:      r.PaymentMethod,
			Month:              start.AddMonths(i),
			Installments:       r.Installments,
			CurrentInstallment: i + 1,
			InstallmentGroup:   group,
		})
	}
	return out, nil
}
