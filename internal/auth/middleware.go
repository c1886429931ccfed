package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/illusia-ry-organization/illusia-ry/internal/common"
)

var errNoToken = errors.New("auth: token missing")

// RoleSource resolves a user's effective role and whether the account may
// act at all. The users package backs this with the database so that role
// changes and deactivations take effect without waiting for token expiry.
type RoleSource interface {
	RoleFor(ctx context.Context, userID string) (role string, active bool, err error)
}

// Middleware wires authentication context into HTTP handlers.
type Middleware struct {
	Verifier Verifier
	// Roles is optional; when nil the token's role claim is trusted as-is.
	Roles RoleSource
}

// Authenticate attaches identity context when a valid token is present but
// lets anonymous requests through.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth enforces a valid token before executing the next handler.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			var appErr *common.AppError
			if errors.As(err, &appErr) {
				common.WriteError(w, appErr)
				return
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole enforces that the authenticated caller holds one of the given
// roles. It must be mounted inside RequireAuth.
func (m Middleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := common.UserRole(r.Context())
			if !ok {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
				return
			}
			if _, ok := allowed[role]; !ok {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) authenticateRequest(r *http.Request) (context.Context, error) {
	token := extractToken(r)
	if token == "" {
		return r.Context(), errNoToken
	}
	claims, err := m.Verifier.Parse(token)
	if err != nil {
		return r.Context(), err
	}

	role := claims.Role
	if m.Roles != nil {
		dbRole, active, err := m.Roles.RoleFor(r.Context(), claims.UserID)
		if err == nil {
			if !active {
				return r.Context(), common.ForbiddenError("account is not active")
			}
			role = dbRole
		}
	}

	ctx := common.WithUserID(r.Context(), claims.UserID)
	if claims.Email != "" {
		ctx = common.WithUserEmail(ctx, claims.Email)
	}
	if role != "" {
		ctx = common.WithUserRole(ctx, role)
	}
	return ctx, nil
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
