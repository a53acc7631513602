package handler

import (
	"context"
	"net/http"
	"strings"

	"eventsite-service/internal/model"
	"eventsite-service/internal/service"
	"eventsite-service/internal/token"
	"eventsite-service/internal/util"
)

type contextKey string

const claimsContextKey contextKey = "session_claims"

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// RevocationChecker reports whether a session id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RoleChecker re-checks role membership against the database on every
// privileged request.
type RoleChecker interface {
	HasRole(ctx context.Context, id string, role model.Role) (bool, error)
}

// AuthMiddleware parses and verifies the bearer token, rejects revoked
// sessions, and stores claims in the request context.
type AuthMiddleware struct {
	tokens      TokenVerifier
	revocations RevocationChecker
	roles       RoleChecker
}

func NewAuthMiddleware(tokens TokenVerifier, revocations RevocationChecker, roles RoleChecker) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:      tokens,
		revocations: revocations,
		roles:       roles,
	}
}

// Authenticate requires a valid bearer token.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			respondWithError(w, http.StatusUnauthorized, service.ErrUnauthorized, "Missing bearer token")
			return
		}

		claims, err := m.tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, service.ErrInvalidToken, "Invalid or expired token")
			return
		}

		if m.revocations != nil && claims.SessionID != "" {
			revoked, err := m.revocations.IsRevoked(r.Context(), claims.SessionID)
			if err != nil {
				util.Warn("revocation check failed, denying request", util.ErrorField(err))
				respondWithError(w, http.StatusUnauthorized, service.ErrUnauthorized, "Session check failed")
				return
			}
			if revoked {
				respondWithError(w, http.StatusUnauthorized, service.ErrUnauthorized, "Session revoked")
				return
			}
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole is the single role gate for every privileged route. The token
// role is a hint only; membership is confirmed against the database so a
// demoted account loses access immediately.
func (m *AuthMiddleware) RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				respondWithError(w, http.StatusUnauthorized, service.ErrUnauthorized, "Authentication required")
				return
			}
			if claims.Role != role {
				respondWithError(w, http.StatusForbidden, service.ErrForbidden, "Insufficient privileges")
				return
			}
			ok, err := m.roles.HasRole(r.Context(), claims.UserID, role)
			if err != nil {
				util.Warn("role check failed, denying request", util.ErrorField(err))
				respondWithError(w, http.StatusForbidden, service.ErrForbidden, "Role check failed")
				return
			}
			if !ok {
				respondWithError(w, http.StatusForbidden, service.ErrForbidden, "Insufficient privileges")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext returns the verified claims, or nil outside an
// authenticated request.
func ClaimsFromContext(ctx context.Context) *token.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*token.Claims)
	return claims
}
