package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"identity-server/internal/model"
)

type stubValidator struct {
	claims *model.AuthClaims
	err    error
}

func (s *stubValidator) Validate(string) (*model.AuthClaims, error) {
	return s.claims, s.err
}

func claimsEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	auth := NewAuthMiddleware(&stubValidator{claims: &model.AuthClaims{}})
	handler := auth.RequireAuth(claimsEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/api/user/alice", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthRejectsNonBearerScheme(t *testing.T) {
	auth := NewAuthMiddleware(&stubValidator{claims: &model.AuthClaims{}})
	handler := auth.RequireAuth(claimsEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/api/user/alice", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthRejectsInvalidToken(t *testing.T) {
	auth := NewAuthMiddleware(&stubValidator{err: errors.New("bad token")})
	handler := auth.RequireAuth(claimsEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/api/user/alice", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthPutsClaimsInContext(t *testing.T) {
	auth := NewAuthMiddleware(&stubValidator{claims: &model.AuthClaims{Username: "alice"}})
	handler := auth.RequireAuth(claimsEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/api/user/alice", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoles(t *testing.T) {
	claims := &model.AuthClaims{Username: "alice", Roles: []string{"User"}}
	auth := NewAuthMiddleware(&stubValidator{claims: claims})

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	adminOnly := auth.RequireAuth(auth.RequireRoles("Admin")(ok))
	userOrAdmin := auth.RequireAuth(auth.RequireRoles("Admin", "user")(ok))

	req := httptest.NewRequest(http.MethodGet, "/api/role/", nil)
	req.Header.Set("Authorization", "Bearer some-token")

	rec := httptest.NewRecorder()
	adminOnly.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Role membership compares case-insensitively.
	rec = httptest.NewRecorder()
	userOrAdmin.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
