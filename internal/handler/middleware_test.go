package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"eventsite-service/internal/model"
	"eventsite-service/internal/token"
)

type stubVerifier struct {
	claims *token.Claims
	err    error
}

func (s *stubVerifier) Verify(string) (*token.Claims, error) {
	return s.claims, s.err
}

type stubRevocations struct {
	revoked bool
	err     error
}

func (s *stubRevocations) IsRevoked(context.Context, string) (bool, error) {
	return s.revoked, s.err
}

type stubRoles struct {
	hasRole bool
	err     error
}

func (s *stubRoles) HasRole(context.Context, string, model.Role) (bool, error) {
	return s.hasRole, s.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func adminClaims() *token.Claims {
	return &token.Claims{UserID: "admin-1", Role: model.RoleAdmin, SessionID: "jti-1"}
}

func TestAuthenticate_MissingOrMalformedHeader(t *testing.T) {
	m := NewAuthMiddleware(&stubVerifier{claims: adminClaims()}, &stubRevocations{}, &stubRoles{})
	h := m.Authenticate(okHandler())

	for _, header := range []string{"", "Basic abc", "bearer lowercase-prefix"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	m := NewAuthMiddleware(&stubVerifier{err: errors.New("bad signature")}, &stubRevocations{}, &stubRoles{})
	h := m.Authenticate(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_RevokedSession(t *testing.T) {
	m := NewAuthMiddleware(&stubVerifier{claims: adminClaims()}, &stubRevocations{revoked: true}, &stubRoles{})
	h := m.Authenticate(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_StoresClaims(t *testing.T) {
	m := NewAuthMiddleware(&stubVerifier{claims: adminClaims()}, &stubRevocations{}, &stubRoles{})

	var got *token.Claims
	h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClaimsFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotNil(t, got)
	assert.Equal(t, "admin-1", got.UserID)
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name     string
		claims   *token.Claims
		roles    *stubRoles
		wantCode int
	}{
		{"admin with db confirmation", adminClaims(), &stubRoles{hasRole: true}, http.StatusOK},
		{"token says admin but db disagrees", adminClaims(), &stubRoles{hasRole: false}, http.StatusForbidden},
		{"role check error denies", adminClaims(), &stubRoles{err: errors.New("db down")}, http.StatusForbidden},
		{"user token on admin route", &token.Claims{UserID: "user-1", Role: model.RoleUser}, &stubRoles{hasRole: true}, http.StatusForbidden},
		{"no claims at all", nil, &stubRoles{hasRole: true}, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewAuthMiddleware(&stubVerifier{}, &stubRevocations{}, tc.roles)
			h := m.RequireRole(model.RoleAdmin)(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.claims != nil {
				req = req.WithContext(context.WithValue(req.Context(), claimsContextKey, tc.claims))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.wantCode, rec.Code)
		})
	}
}
