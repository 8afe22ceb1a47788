package auth

import (
	"context"

	"financeiro/internal/core"
)

type contextKey struct{}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user core.UserID) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the authenticated user, or core.ErrUnauthenticated
// when the context carries none.
func UserFromContext(ctx context.Context) (core.UserID, error) {
	user, ok := ctx.Value(contextKey{}).(core.UserID)
	if !ok || user.IsZero() {
		return "", core.ErrUnauthenticated
	}
	return user, nil
}
