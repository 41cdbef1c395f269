//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"identity-server/internal/model"
)

func TestRegisterLoginAndProfile(t *testing.T) {
	h := newHarness(t)

	pair := h.register(t, model.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Name:     "Alice Example",
		Phone:    "+12025550123",
		Password: "correct horse battery",
		Role:     "User",
	})
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	resp := h.do(t, http.MethodPost, "/api/user/login", "", model.LoginRequest{
		Username: "alice",
		Password: "correct horse battery",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var loggedIn model.TokenPair
	decodeData(t, resp.Body, &loggedIn)

	resp = h.do(t, http.MethodGet, "/api/user/alice", loggedIn.AccessToken, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var profile model.Profile
	decodeData(t, resp.Body, &profile)
	require.Equal(t, "alice", profile.Username)
	require.Equal(t, []string{"User"}, profile.Roles)
}

func TestRegisterValidationErrorsAggregate(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/api/user/register", "", model.RegisterRequest{
		Username: "al",
		Email:    "nope",
		Password: "short",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	apiErr := decodeError(t, resp.Body)
	require.Equal(t, "VALIDATION_FAILED", apiErr.Code)
	require.GreaterOrEqual(t, len(apiErr.Messages), 5)
}

func TestRegisterUnknownRoleFails(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/api/user/register", "", model.RegisterRequest{
		Username: "bob",
		Email:    "bob@example.com",
		Name:     "Bob Example",
		Password: "bob-password-1",
		Role:     "Wizard",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	apiErr := decodeError(t, resp.Body)
	require.Equal(t, "VALIDATION_FAILED", apiErr.Code)
}

func TestLoginFailureIsGeneric(t *testing.T) {
	h := newHarness(t)

	for _, creds := range []model.LoginRequest{
		{Username: "root", Password: "wrong-password"},
		{Username: "nobody", Password: "wrong-password"},
	} {
		resp := h.do(t, http.MethodPost, "/api/user/login", "", creds)
		apiErr := decodeError(t, resp.Body)
		resp.Body.Close()

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, "UNAUTHORIZED", apiErr.Code)
		require.Equal(t, "Invalid credentials", apiErr.Message)
	}
}

func TestRefreshFlow(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/api/user/refresh", "", model.RefreshRequest{
		AccessToken:  h.admin.AccessToken,
		RefreshToken: h.admin.RefreshToken,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rotated model.TokenPair
	decodeData(t, resp.Body, &rotated)
	require.NotEqual(t, h.admin.RefreshToken, rotated.RefreshToken)

	// Replaying the consumed refresh token fails.
	resp = h.do(t, http.MethodPost, "/api/user/refresh", "", model.RefreshRequest{
		AccessToken:  h.admin.AccessToken,
		RefreshToken: h.admin.RefreshToken,
	})
	apiErr := decodeError(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_TOKEN", apiErr.Code)
}

func TestRefreshRequiresBothTokens(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/api/user/refresh", "", model.RefreshRequest{
		AccessToken: h.admin.AccessToken,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProfileRequiresAuth(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/api/user/root", "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProfileUnknownUser(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/api/user/nobody", h.admin.AccessToken, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateProfile(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPut, "/api/user/update", h.admin.AccessToken, model.UpdateUserRequest{
		Username: "root",
		Email:    "root.new@example.com",
		Name:     "Renamed Root",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/user/root", h.admin.AccessToken, nil)
	defer resp.Body.Close()

	var profile model.Profile
	decodeData(t, resp.Body, &profile)
	require.Equal(t, "root.new@example.com", profile.Email)
	require.Equal(t, "Renamed Root", profile.DisplayName)
}

func TestDeleteUserRequiresAdmin(t *testing.T) {
	h := newHarness(t)

	user := h.register(t, model.RegisterRequest{
		Username: "carol",
		Email:    "carol@example.com",
		Name:     "Carol Example",
		Password: "carol-password-1",
		Role:     "User",
	})

	resp := h.do(t, http.MethodDelete, "/api/user/remove/root", user.AccessToken, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = h.do(t, http.MethodDelete, "/api/user/remove/carol", h.admin.AccessToken, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/user/carol", h.admin.AccessToken, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
