package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	PaymentMoney      PaymentMethod = "money"
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentDebitCard  PaymentMethod = "debit_card"
	PaymentPix        PaymentMethod = "pix"
)

const (
	Alimentacao Category = "alimentacao"
	Transporte  Category = "transporte"
	Moradia     Category = "moradia"
	Saude       Category = "saude"
	Educacao    Category = "educacao"
	Lazer       Category = "lazer"
	Vestuario   Category = "vestuario"
	Outros      Category = "outros"
)

// MaxInstallments is the largest purchase split the expense form offers.
const MaxInstallments = 12

const (
	maxDescriptionLen = 200
	// stored descriptions may carry an installment suffix such as " (12/12)"
	maxStoredDescriptionLen = 255
)

type (
	PaymentMethod string

	Category string

	// UserID is the opaque subject identifier issued by the identity provider.
	UserID string

	Money struct {
		Cents int64
	}

	Expense struct {
		ID                 int64         `json:"id"`
		UserID             UserID        `json:"user_id"`
		Description        string        `json:"description"`
		Value              Money         `json:"value"`
		Category           Category      `json:"category"`
		PaymentMethod      PaymentMethod `json:"payment_method"`
		Month              Month         `json:"month"`
		Installments       int           `json:"installments"`
		CurrentInstallment int           `json:"current_installment"`
		InstallmentGroup   string        `json:"installment_group"`
		CreatedAt          time.Time     `json:"created_at"`
	}

	Income struct {
		ID          int64     `json:"id"`
		UserID      UserID    `json:"user_id"`
		Value       Money     `json:"value"`
		Month       Month     `json:"month"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"created_at"`
	}

	CreditCardLimit struct {
		UserID    UserID
		CardLimit Money
	}
)

// PaymentMethods lists the accepted payment methods in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentMoney, PaymentCreditCard, PaymentDebitCard, PaymentPix}
}

// Categories lists the accepted expense categories in display order.
func Categories() []Category {
	return []Category{Alimentacao, Transporte, Moradia, Saude, Educacao, Lazer, Vestuario, Outros}
}

func (p PaymentMethod) IsValid() bool {
	switch p {
	case PaymentMoney, PaymentCreditCard, PaymentDebitCard, PaymentPix:
		return true
	default:
		return false
	}
}

func (p PaymentMethod) String() string {
	return string(p)
}

func (c Category) IsValid() bool {
	switch c {
	case Alimentacao, Transporte, Moradia, Saude, Educacao, Lazer, Vestuario, Outros:
		return true
	default:
		return false
	}
}

func (c Category) String() string {
	return string(c)
}

func (u UserID) IsZero() bool {
	return strings.TrimSpace(string(u)) == ""
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

func (e Expense) Validate() error {
	if err := validateDescription(e.Description, maxStoredDescriptionLen); err != nil {
		return err
	}
	if err := e.Value.Validate(); err != nil {
		return &ValidationError{Field: "value", Reason: "must be greater than zero", Err: err}
	}
	if !e.Category.IsValid() {
		return &ValidationError{Field: "category", Reason: "unknown category " + quote(string(e.Category)), Err: ErrInvalidCategory}
	}
	if !e.PaymentMethod.IsValid() {
		return &ValidationError{Field: "payment_method", Reason: "unknown payment method " + quote(string(e.PaymentMethod)), Err: ErrInvalidPaymentMethod}
	}
	if e.Month.IsZero() {
		return &ValidationError{Field: "month", Reason: "month is required", Err: ErrInvalidMonth}
	}
	if e.Installments < 1 || e.Installments > MaxInstallments {
		return &ValidationError{Field: "installments", Reason: "must be between 1 and 12", Err: ErrInvalidInstallments}
	}
	if e.CurrentInstallment < 1 || e.CurrentInstallment > e.Installments {
		return &ValidationError{Field: "current_installment", Reason: "out of range", Err: ErrInvalidInstallments}
	}
	return nil
}

func (i Income) Validate() error {
	if err := i.Value.Validate(); err != nil {
		return &ValidationError{Field: "value", Reason: "must be greater than zero", Err: err}
	}
	if i.Month.IsZero() {
		return &ValidationError{Field: "month", Reason: "month is required", Err: ErrInvalidMonth}
	}
	if len(i.Description) > maxDescriptionLen {
		return &ValidationError{Field: "description", Reason: "too long (max 200 characters)", Err: ErrDescriptionTooLong}
	}
	return nil
}

func (l CreditCardLimit) Validate() error {
	if l.UserID.IsZero() {
		return ErrUnauthenticated
	}
	if l.CardLimit.Cents < 0 {
		return &ValidationError{Field: "card_limit", Reason: "must not be negative", Err: ErrInvalidAmount}
	}
	return nil
}

func validateDescription(desc string, max int) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return &ValidationError{Field: "description", Reason: "must not be empty", Err: ErrEmptyDescription}
	}
	if len(desc) > max {
		return &ValidationError{Field: "description", Reason: fmt.Sprintf("too long (max %d characters)", max), Err: ErrDescriptionTooLong}
	}
	return nil
}

func quote(s string) string {
	return `"` + s + `"`
}
