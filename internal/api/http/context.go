package http

import (
	"context"

	"coreshare-backend/internal/security"
	"coreshare-backend/internal/service"
)

type contextKey int

const claimsKey contextKey = iota

func withClaims(ctx context.Context, claims *security.UserClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the caller set by the auth middleware.
func ClaimsFromContext(ctx context.Context) (*security.UserClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*security.UserClaims)
	return claims, ok && claims != nil
}

// GetUserIDFromContext extracts the authenticated user id.
func GetUserIDFromContext(ctx context.Context) (int32, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.UserID == 0 {
		return 0, service.ErrUnauthenticated
	}
	return claims.UserID, nil
}
