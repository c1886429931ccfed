package common

import "context"

type ctxKey string

const (
	userIDKey    ctxKey = "auth/user-id"
	userRoleKey  ctxKey = "auth/user-role"
	userEmailKey ctxKey = "auth/user-email"
)

// WithUserID stores the authenticated user identifier on the provided context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated user identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// WithUserRole stores the authenticated user's role title on the context.
func WithUserRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, userRoleKey, role)
}

// UserRole extracts the role title from the context if present.
func UserRole(ctx context.Context) (string, bool) {
	v := ctx.Value(userRoleKey)
	if v == nil {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}

// WithUserEmail stores the verified email address on the context.
func WithUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, userEmailKey, email)
}

// UserEmail extracts the verified email address from the context if present.
func UserEmail(ctx context.Context) (string, bool) {
	v := ctx.Value(userEmailKey)
	if v == nil {
		return "", false
	}
	email, ok := v.(string)
	return email, ok
}
