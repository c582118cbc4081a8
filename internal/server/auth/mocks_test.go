package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/session"
	"github.com/iudanet/gophauth/internal/server/storage"
	"github.com/iudanet/gophauth/internal/server/token"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockUserStorage - mock implementation of storage.UserStorage
type mockUserStorage struct {
	getErr    error
	createErr error
	users     map[string]*models.User
	mu        sync.Mutex
}

func newMockUserStorage() *mockUserStorage {
	return &mockUserStorage{users: make(map[string]*models.User)}
}

func (m *mockUserStorage) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return storage.ErrUserAlreadyExists
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserStorage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStorage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return u, nil
}

// mockHasher хранит пароль с префиксом вместо argon2
type mockHasher struct {
	verifyCalls int
	mu          sync.Mutex
}

func (h *mockHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (h *mockHasher) Verify(password, encoded string) (bool, error) {
	h.mu.Lock()
	h.verifyCalls++
	h.mu.Unlock()
	if !strings.HasPrefix(encoded, "hashed:") {
		return false, errors.New("invalid hash")
	}
	return encoded == "hashed:"+password, nil
}

// mockSessions - mock implementation of Sessions
type mockSessions struct {
	issueErr error
	ended    []string
	rotated  []token.RefreshClaims
	issued   []string
	seq      int
	mu       sync.Mutex
}

func (m *mockSessions) Issue(_ context.Context, userID string) (*session.TokenPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.issueErr != nil {
		return nil, m.issueErr
	}
	m.seq++
	m.issued = append(m.issued, userID)
	chain := token.ChainClaims{
		Subject:       userID,
		SessionRootID: fmt.Sprintf("root-%d", m.seq),
		LinkID:        fmt.Sprintf("link-%d", m.seq),
	}
	return &session.TokenPair{
		Access:       token.AccessClaims{ChainClaims: chain},
		Refresh:      token.RefreshClaims{ChainClaims: chain},
		AccessToken:  fmt.Sprintf("access-%d", m.seq),
		RefreshToken: fmt.Sprintf("refresh-%d", m.seq),
	}, nil
}

func (m *mockSessions) Rotate(_ context.Context, claims token.RefreshClaims) (*session.TokenPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.rotated = append(m.rotated, claims)
	chain := claims.ChainClaims
	chain.LinkID = fmt.Sprintf("link-%d", m.seq)
	return &session.TokenPair{
		Access:       token.AccessClaims{ChainClaims: chain},
		Refresh:      token.RefreshClaims{ChainClaims: chain},
		AccessToken:  fmt.Sprintf("access-%d", m.seq),
		RefreshToken: fmt.Sprintf("refresh-%d", m.seq),
	}, nil
}

func (m *mockSessions) EndSession(_ context.Context, rootID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended = append(m.ended, rootID)
	return nil
}

type mockRecorder struct {
	attempts map[string]int
}

func (r *mockRecorder) AuthAttempt(op, result string) {
	r.attempts[op+":"+result]++
}
