package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"financeiro/internal/core"
)

const maxBodyBytes = 64 << 10

// amountField accepts a JSON number or a string such as "12,50".
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a number or a string")
	}
	*a = amountField(n.String())
	return nil
}

type expenseRequest struct {
	Description   string      `json:"description"`
	Value         amountField `json:"value"`
	Category      string      `json:"category"`
	PaymentMethod string      `json:"payment_method"`
	Installments  *int        `json:"installments"`
	Month         string      `json:"month"`
}

type incomeRequest struct {
	Value       amountField `json:"value"`
	Description string      `json:"description"`
	Month       string      `json:"month"`
}

type cardLimitRequest struct {
	CardLimit amountField `json:"card_limit"`
}

// decodeJSON reads a single JSON object into dst. Unknown fields and
// trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %s", errBadRequest, describeDecodeError(err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must contain a single JSON object", errBadRequest)
	}
	return nil
}

func describeDecodeError(err error) string {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.Is(err, io.EOF):
		return "body must not be empty"
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "malformed JSON: unexpected end of body"
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return fmt.Sprintf("field %q has the wrong type", typeErr.Field)
	case errors.As(err, &maxErr):
		return fmt.Sprintf("body must not exceed %d bytes", maxErr.Limit)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return "unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field ")
	default:
		return err.Error()
	}
}

// toInstallmentRequest converts the form fields. Omitted installments mean a
// single payment and an omitted month means the current one.
func (req expenseRequest) toInstallmentRequest(now time.Time) (core.InstallmentRequest, error) {
	value, err := parseAmount("value", string(req.Value))
	if err != nil {
		return core.InstallmentRequest{}, err
	}
	month, err := parseMonthField(req.Month, now)
	if err != nil {
		return core.InstallmentRequest{}, err
	}
	n := 1
	if req.Installments != nil {
		n = *req.Installments
	}
	return core.InstallmentRequest{
		Total:         value,
		Description:   sanitizeInput(req.Description),
		Category:      core.Category(strings.ToLower(sanitizeInput(req.Category))),
		PaymentMethod: core.PaymentMethod(strings.ToLower(sanitizeInput(req.PaymentMethod))),
		Installments:  n,
		StartMonth:    month,
	}, nil
}

// parseAmount accepts positive decimals with a dot or comma separator.
func parseAmount(field, raw string) (core.Money, error) {
	m, err := core.ParseMoney(raw)
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: field, Reason: "must be a positive amount", Err: err}
	}
	return m, nil
}

// parseLimit is parseAmount that also accepts zero.
func parseLimit(raw string) (core.Money, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if d, err := decimal.NewFromString(s); err == nil && d.IsZero() && !strings.ContainsAny(s, "+-eE") {
		return core.Money{}, nil
	}
	m, err := core.ParseMoney(raw)
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: "card_limit", Reason: "must be a non-negative amount", Err: err}
	}
	return m, nil
}

func parseMonthField(raw string, now time.Time) (core.Month, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return core.CanonicalMonth(now), nil
	}
	m, err := core.ParseMonth(raw)
	if err != nil {
		return core.Month{}, &core.ValidationError{Field: "month", Reason: "expected YYYY-MM", Err: err}
	}
	return m, nil
}

// monthParam reads ?month=, defaulting to the current month.
func (s *Server) monthParam(r *http.Request) (core.Month, error) {
	return parseMonthField(r.URL.Query().Get("month"), s.now())
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, then trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
