package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"financeiro/internal/log"
)

// Middleware rejects requests without a valid bearer token and stores the
// token's subject in the request context.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _, err := v.Verify(bearerToken(r))
			if err != nil {
				log.FromContext(r.Context()).WarnContext(r.Context(), "Rejected request",
					log.FieldPath, r.URL.Path,
					log.FieldError, err.Error())
				unauthorized(w)
				return
			}

			ctx := WithUser(r.Context(), user)
			ctx = log.WithLogger(ctx, log.FromContext(ctx).With(log.FieldUserID, string(user)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="financeiro"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthenticated",
		"message": "a valid bearer token is required",
	})
}
