package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/session"
	"github.com/iudanet/gophauth/internal/server/token"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func testPair(userID string) *session.TokenPair {
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	chain := token.ChainClaims{
		Subject:       userID,
		SessionRootID: "root-1",
		LinkID:        "link-1",
		IssuedAt:      issued,
	}
	access := chain
	access.ExpiresAt = issued.Add(15 * time.Minute)
	refresh := chain
	refresh.ExpiresAt = issued.Add(24 * time.Hour)

	return &session.TokenPair{
		Access:       token.AccessClaims{ChainClaims: access},
		Refresh:      token.RefreshClaims{ChainClaims: refresh},
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
	}
}

// mockAuthService - mock implementation of AuthService
type mockAuthService struct {
	err       error
	user      *models.User
	signedOut []token.AccessClaims
	refreshed []token.RefreshClaims
	lastEmail string
	lastPass  string
}

func (m *mockAuthService) Signup(_ context.Context, email, password string) (*models.User, *session.TokenPair, error) {
	m.lastEmail, m.lastPass = email, password
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.user, testPair(m.user.ID), nil
}

func (m *mockAuthService) Signin(_ context.Context, email, password string) (*models.User, *session.TokenPair, error) {
	m.lastEmail, m.lastPass = email, password
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.user, testPair(m.user.ID), nil
}

func (m *mockAuthService) Signout(_ context.Context, claims token.AccessClaims) error {
	if m.err != nil {
		return m.err
	}
	m.signedOut = append(m.signedOut, claims)
	return nil
}

func (m *mockAuthService) Refresh(_ context.Context, claims token.RefreshClaims) (*session.TokenPair, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.refreshed = append(m.refreshed, claims)
	return testPair(claims.Subject), nil
}

func (m *mockAuthService) CurrentUser(_ context.Context, _ token.AccessClaims) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error {
	return m.err
}

var errDatabase = errors.New("database is locked")

func newRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != nil {
		r = jsonBody(t, body)
	}
	return httptest.NewRequest(method, path, r)
}
