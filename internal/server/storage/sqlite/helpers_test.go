package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophauth/internal/models"
)

func setupTestStorage(t *testing.T, opts ...Option) (*Storage, func()) {
	ctx := context.Background()

	// Используем in-memory database для тестов
	storage, err := New(ctx, ":memory:", opts...)
	require.NoError(t, err)

	cleanup := func() {
		_ = storage.Close()
	}

	return storage, cleanup
}

func createTestUser(t *testing.T, ctx context.Context, s *Storage) string {
	userID := uuid.New().String()
	user := &models.User{
		ID:           userID,
		Email:        "user_" + userID[:8] + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	}

	err := s.CreateUser(ctx, user)
	require.NoError(t, err)

	return userID
}
