package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Дешевые параметры, чтобы тесты не тратили 64MB на хеш
var testParams = Params{Memory: 1024, Time: 1, Threads: 1}

func newTestHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(testParams)
	require.NoError(t, err)
	return h
}

func TestNewPasswordHasher(t *testing.T) {
	h, err := NewPasswordHasher(Params{})
	require.NoError(t, err)
	assert.Equal(t, DefaultParams(), h.params)

	_, err = NewPasswordHasher(Params{Memory: 8, Time: 1, Threads: 4})
	assert.Error(t, err)
}

func TestPasswordHasher_HashFormat(t *testing.T) {
	h := newTestHasher(t)

	encoded, err := h.Hash("correct horse battery")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"), encoded)
	assert.Len(t, strings.Split(encoded, "$"), 6)
}

func TestPasswordHasher_SaltedHashes(t *testing.T) {
	h := newTestHasher(t)

	first, err := h.Hash("same-password")
	require.NoError(t, err)
	second, err := h.Hash("same-password")
	require.NoError(t, err)

	// Одинаковый пароль дает разные хеши из-за соли
	assert.NotEqual(t, first, second)
}

func TestPasswordHasher_Verify(t *testing.T) {
	h := newTestHasher(t)

	encoded, err := h.Hash("correct horse battery")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{name: "correct password", password: "correct horse battery", want: true},
		{name: "wrong password", password: "correct horse battery!", want: false},
		{name: "empty password", password: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Verify(tt.password, encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestPasswordHasher_VerifyUsesStoredParams(t *testing.T) {
	old := newTestHasher(t)
	encoded, err := old.Hash("password123")
	require.NoError(t, err)

	stronger, err := NewPasswordHasher(Params{Memory: 2048, Time: 2, Threads: 2})
	require.NoError(t, err)

	ok, err := stronger.Verify("password123", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPasswordHasher_HashEmpty(t *testing.T) {
	h := newTestHasher(t)

	_, err := h.Hash("")
	assert.Error(t, err)
}

func TestPasswordHasher_VerifyInvalidHash(t *testing.T) {
	h := newTestHasher(t)

	tests := []struct {
		wantErr error
		name    string
		encoded string
	}{
		{name: "empty", encoded: "", wantErr: ErrInvalidHash},
		{name: "bcrypt hash", encoded: "$2a$10$abcdefghijklmnopqrstuu", wantErr: ErrInvalidHash},
		{name: "argon2i variant", encoded: "$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$a2V5", wantErr: ErrInvalidHash},
		{name: "other version", encoded: "$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$a2V5", wantErr: ErrIncompatibleVersion},
		{name: "bad params", encoded: "$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5", wantErr: ErrInvalidHash},
		{name: "bad salt encoding", encoded: "$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5", wantErr: ErrInvalidHash},
		{name: "empty key", encoded: "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$", wantErr: ErrInvalidHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Verify("password", tt.encoded)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, ok)
		})
	}
}
