package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/storage/sqlite"
	"github.com/iudanet/gophauth/internal/server/token"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestCodec(t *testing.T) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec(token.Config{
		Issuer:   "gophauth-test",
		Audience: "gophauth-api",
		Access: token.KeyConfig{
			Secret: []byte("access-secret-access-secret-0123"),
			TTL:    15 * time.Minute,
		},
		Refresh: token.KeyConfig{
			Secret: []byte("refresh-secret-refresh-secret-01"),
			TTL:    24 * time.Hour,
		},
	})
	require.NoError(t, err)
	return codec
}

type testEnv struct {
	engine  *Engine
	revoker *Revoker
	store   *sqlite.Storage
	userID  string
}

// setupTestEnv собирает engine поверх sqlite :memory:.
// Воркеры revoker не запущены: тест сам решает, когда вызвать Start.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)

	logger := setupTestLogger()
	revoker := NewRevoker(store, logger, RevokerConfig{QueueSize: 16, Workers: 2, Timeout: time.Second})

	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = revoker.Stop(stopCtx)
		_ = store.Close()
	})

	env := &testEnv{
		engine:  NewEngine(newTestCodec(t), store, revoker, logger),
		revoker: revoker,
		store:   store,
	}
	env.userID = env.createUser(t)

	return env
}

func (env *testEnv) createUser(t *testing.T) string {
	t.Helper()
	id := uuid.NewString()
	err := env.store.CreateUser(context.Background(), &models.User{
		ID:           id,
		Email:        id[:8] + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	})
	require.NoError(t, err)
	return id
}

func (env *testEnv) flush(t *testing.T) {
	t.Helper()
	env.revoker.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, env.revoker.Flush(ctx))
}
