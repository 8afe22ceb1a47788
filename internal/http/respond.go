package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"financeiro/internal/core"
	"financeiro/internal/log"
)

// errBadRequest marks bodies that could not be decoded at all.
var errBadRequest = errors.New("malformed request body")

type errorBody struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type partialBatchBody struct {
	errorBody
	Attempted int            `json:"attempted"`
	Failed    int            `json:"failed"`
	Inserted  []core.Expense `json:"inserted"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto status codes. A partial batch is
// matched first since it wraps the failure of its first insert. Storage
// details never reach the client; they are logged with the request id
// instead.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	var (
		ve  *core.ValidationError
		pbe *core.PartialBatchError
		pe  *core.PersistenceError
	)
	switch {
	case errors.As(err, &pbe):
		logger.ErrorContext(ctx, "Installment batch incomplete",
			log.FieldInstallmentGroup, pbe.Group,
			log.FieldError, err.Error())
		inserted := pbe.Inserted
		if inserted == nil {
			inserted = []core.Expense{}
		}
		writeJSON(w, http.StatusInternalServerError, partialBatchBody{
			errorBody: errorBody{
				Error:   "partial_batch",
				Message: "some installments could not be saved",
			},
			Attempted: pbe.Attempted,
			Failed:    pbe.Failed,
			Inserted:  inserted,
		})
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error:   "validation",
			Field:   ve.Field,
			Message: ve.Error(),
		})
	case errors.Is(err, core.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody{
			Error:   "unauthenticated",
			Message: "a valid bearer token is required",
		})
	case errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   "bad_request",
			Message: err.Error(),
		})
	case errors.As(err, &pe):
		logger.ErrorContext(ctx, "Persistence failure",
			log.FieldOperation, pe.Op,
			log.FieldError, err.Error())
		writeJSON(w, http.StatusBadGateway, errorBody{
			Error:   "persistence",
			Message: "storage is unavailable, try again later",
		})
	default:
		logger.ErrorContext(ctx, "Unhandled error", log.FieldError, err.Error())
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "internal",
			Message: "internal error",
		})
	}
}
