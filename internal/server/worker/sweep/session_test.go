package sweep

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/session"
	"github.com/iudanet/gophauth/internal/server/storage"
	"github.com/iudanet/gophauth/internal/server/storage/boltdb"
	"github.com/iudanet/gophauth/internal/server/storage/sqlite"
	"github.com/iudanet/gophauth/internal/server/token"
)

const refreshTTL = 24 * time.Hour

// testClock общие часы для codec, ledger и sweep
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sessionEnv struct {
	engine  *session.Engine
	revoker *session.Revoker
	job     *Job
	ledger  storage.ChainLedger
	clock   *testClock
	userID  string
}

func newSessionEnv(t *testing.T, backend string) *sessionEnv {
	t.Helper()
	ctx := context.Background()
	clock := &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}

	codec, err := token.NewCodec(token.Config{
		Issuer:   "gophauth-test",
		Audience: "gophauth-api",
		Access: token.KeyConfig{
			Secret: []byte("access-secret-access-secret-0123"),
			TTL:    15 * time.Minute,
		},
		Refresh: token.KeyConfig{
			Secret: []byte("refresh-secret-refresh-secret-01"),
			TTL:    refreshTTL,
		},
	}, token.WithClock(clock.Now))
	require.NoError(t, err)

	env := &sessionEnv{clock: clock, userID: "user-1"}
	logger := setupTestLogger()

	switch backend {
	case "sqlite":
		store, err := sqlite.New(ctx, ":memory:", sqlite.WithClock(clock.Now))
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		require.NoError(t, store.CreateUser(ctx, &models.User{
			ID:           env.userID,
			Email:        "user@example.com",
			PasswordHash: "hash",
			CreatedAt:    clock.Now(),
		}))
		env.ledger = store
		env.revoker = session.NewRevoker(store, logger, session.RevokerConfig{QueueSize: 16, Workers: 1, Timeout: time.Second})
		env.engine = session.NewEngine(codec, store, env.revoker, logger)
		env.job = NewJob(store, logger, WithClock(clock.Now))
	case "boltdb":
		store, err := boltdb.New(ctx, filepath.Join(t.TempDir(), "ledger.db"), boltdb.WithClock(clock.Now))
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		env.ledger = store
		env.revoker = session.NewRevoker(store, logger, session.RevokerConfig{QueueSize: 16, Workers: 1, Timeout: time.Second})
		env.engine = session.NewEngine(codec, store, env.revoker, logger)
		env.job = NewJob(store, logger, WithClock(clock.Now))
	default:
		t.Fatalf("unknown backend %q", backend)
	}

	env.revoker.Start()
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.revoker.Stop(stopCtx)
	})

	return env
}

// rotateNearExpiry выдает сессию и ротирует ее за час до истечения корня.
// Возвращает первую и вторую пары.
func (env *sessionEnv) rotateNearExpiry(t *testing.T) (*session.TokenPair, *session.TokenPair) {
	t.Helper()
	ctx := context.Background()

	first, err := env.engine.Issue(ctx, env.userID)
	require.NoError(t, err)

	env.clock.Advance(refreshTTL - time.Hour)

	claims, err := env.engine.VerifyRefresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	second, err := env.engine.Rotate(ctx, claims)
	require.NoError(t, err)

	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, env.revoker.Flush(flushCtx))

	return first, second
}

var backends = []string{"sqlite", "boltdb"}

func TestSweep_EndedSessionStaysEnded(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			env := newSessionEnv(t, backend)

			first, second := env.rotateNearExpiry(t)
			rootID := second.Refresh.SessionRootID

			require.NoError(t, env.engine.EndSession(ctx, rootID))
			_, err := env.engine.VerifyRefresh(ctx, second.RefreshToken)
			require.ErrorIs(t, err, session.ErrUnauthorized)

			// Корень и первый link истекли, второй link еще жив
			env.clock.Advance(2 * time.Hour)

			count, err := env.job.Run(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, count)

			_, err = env.ledger.GetNode(ctx, first.Refresh.LinkID)
			require.Error(t, err)

			root, err := env.ledger.GetNode(ctx, rootID)
			require.NoError(t, err)
			assert.True(t, root.Revoked)
			assert.True(t, root.Expired(env.clock.Now()))

			_, err = env.engine.VerifyRefresh(ctx, second.RefreshToken)
			assert.ErrorIs(t, err, session.ErrUnauthorized)
		})
	}
}

func TestSweep_EndSessionAfterRootExpiry(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			env := newSessionEnv(t, backend)

			_, second := env.rotateNearExpiry(t)
			rootID := second.Refresh.SessionRootID

			env.clock.Advance(2 * time.Hour)

			count, err := env.job.Run(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, count)

			// Сессия жива до выхода
			claims, err := env.engine.VerifyRefresh(ctx, second.RefreshToken)
			require.NoError(t, err)
			assert.Equal(t, rootID, claims.SessionRootID)

			require.NoError(t, env.engine.EndSession(ctx, rootID))

			root, err := env.ledger.GetNode(ctx, rootID)
			require.NoError(t, err)
			assert.True(t, root.Revoked)

			_, err = env.engine.VerifyRefresh(ctx, second.RefreshToken)
			assert.ErrorIs(t, err, session.ErrUnauthorized)
		})
	}
}

func TestSweep_KeepsLinkWithinGrace(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			env := newSessionEnv(t, backend)

			_, second := env.rotateNearExpiry(t)
			linkID := second.Refresh.LinkID

			// Второй link истекает через refreshTTL после ротации
			env.clock.Advance(refreshTTL + DefaultGrace/2)
			_, err := env.job.Run(ctx)
			require.NoError(t, err)
			_, err = env.ledger.GetNode(ctx, linkID)
			require.NoError(t, err)

			env.clock.Advance(DefaultGrace)
			_, err = env.job.Run(ctx)
			require.NoError(t, err)
			_, err = env.ledger.GetNode(ctx, linkID)
			assert.Error(t, err)
		})
	}
}
