//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"identity-server/internal/config"
	"identity-server/internal/handler"
	"identity-server/internal/middleware"
	"identity-server/internal/model"
	"identity-server/internal/repository"
	"identity-server/internal/router"
	"identity-server/internal/service"
)

// harness runs the full HTTP stack over the in-memory store: router,
// middleware and handlers are the real thing, only PostgreSQL is
// replaced.
type harness struct {
	server *httptest.Server
	store  *repository.Memory
	admin  model.TokenPair
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := repository.NewMemory()
	ctx := context.Background()

	for _, name := range []string{"Admin", "User"} {
		_, err := store.CreateRole(ctx, name)
		require.NoError(t, err)
	}

	tokens, err := service.NewTokenService(service.TokenConfig{
		SigningKey: []byte("integration-test-signing-key"),
		Issuer:     "identity-server-test",
		Audience:   "identity-clients",
		AccessTTL:  15 * time.Minute,
	})
	require.NoError(t, err)

	users := service.NewUserService(store, store, tokens, 7*24*time.Hour)
	roles := service.NewRoleService(store)

	cfg := &config.Config{
		RequestTimeout:   30 * time.Second,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     10000,
		AuthRateLimitRPM: 10000,
	}

	auth := middleware.NewAuthMiddleware(tokens)
	mux := router.New(cfg, auth, handler.NewUserHandler(users), handler.NewRoleHandler(roles))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	h := &harness{server: srv, store: store}

	h.admin = h.register(t, model.RegisterRequest{
		Username: "root",
		Email:    "root@example.com",
		Name:     "Root Admin",
		Password: "root-password-1",
		Role:     "Admin",
	})

	return h
}

func (h *harness) register(t *testing.T, req model.RegisterRequest) model.TokenPair {
	t.Helper()

	resp := h.do(t, http.MethodPost, "/api/user/register", "", req)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pair model.TokenPair
	decodeData(t, resp.Body, &pair)
	return pair
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, h.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// decodeData unwraps the response envelope and decodes the data field.
func decodeData(t *testing.T, body io.Reader, out any) {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&envelope))
	require.True(t, envelope.Success)
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func decodeError(t *testing.T, body io.Reader) model.APIError {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Error   *model.APIError `json:"error"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&envelope))
	require.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
	return *envelope.Error
}
