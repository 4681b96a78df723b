package context

import (
	"context"
)

// UserContext identifies the bearer of a validated API token.
type UserContext struct {
	Subject string
	Scopes  []string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetSubject returns the token subject from context or empty string.
func GetSubject(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.Subject
	}
	return ""
}
