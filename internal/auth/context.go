package auth

import "context"

type contextKey struct{}

// ContextWithClaims stores verified token claims in ctx.
func ContextWithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// ContextClaims returns the claims stored by the authentication middleware.
func ContextClaims(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(contextKey{}).(*Claims)
	return c, ok && c != nil
}
