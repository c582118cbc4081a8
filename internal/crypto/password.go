// Package crypto hashes user passwords with Argon2id.
//
// Hashes are stored as PHC strings:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
//
// so the parameters travel with each hash and can be raised without
// invalidating existing users.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Параметры Argon2id по умолчанию
const (
	// Argon2Time - количество итераций (time cost)
	Argon2Time = 1
	// Argon2Memory - объем памяти в KB (64MB = 64*1024 KB)
	Argon2Memory = 64 * 1024
	// Argon2Threads - количество параллельных потоков
	Argon2Threads = 4
	// Argon2KeyLen - длина выходного ключа в байтах
	Argon2KeyLen = 32
	// SaltSize - размер соли в байтах
	SaltSize = 16
)

var (
	// ErrInvalidHash is returned when a stored hash is not a PHC argon2id string.
	ErrInvalidHash = errors.New("invalid password hash format")
	// ErrIncompatibleVersion is returned for hashes made by another argon2 version.
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

// Params holds the Argon2id cost parameters.
type Params struct {
	Memory  uint32 // KB
	Time    uint32
	Threads uint8
}

// DefaultParams returns the production cost parameters.
func DefaultParams() Params {
	return Params{
		Memory:  Argon2Memory,
		Time:    Argon2Time,
		Threads: Argon2Threads,
	}
}

// PasswordHasher hashes passwords with Argon2id.
type PasswordHasher struct {
	params Params
}

// NewPasswordHasher creates a hasher. Zero fields of p fall back to DefaultParams.
func NewPasswordHasher(p Params) (*PasswordHasher, error) {
	def := DefaultParams()
	if p.Memory == 0 {
		p.Memory = def.Memory
	}
	if p.Time == 0 {
		p.Time = def.Time
	}
	if p.Threads == 0 {
		p.Threads = def.Threads
	}

	// argon2 требует минимум 8 KB памяти на поток
	if p.Memory < 8*uint32(p.Threads) {
		return nil, fmt.Errorf("argon2 memory must be at least %d KB for %d threads", 8*uint32(p.Threads), p.Threads)
	}

	return &PasswordHasher{params: p}, nil
}

// GenerateSalt генерирует криптографически случайную соль
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// Hash returns the PHC-encoded Argon2id hash of password with a fresh salt.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, Argon2KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches the encoded hash.
// A mismatch is (false, nil); an unparsable hash is an error.
func (h *PasswordHasher) Verify(password, encoded string) (bool, error) {
	p, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	// Параметры берем из самого хеша, а не из текущей конфигурации
	computed := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(key)))

	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

func decodeHash(encoded string) (Params, []byte, []byte, error) {
	var p Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	if version != argon2.Version {
		return p, nil, nil, ErrIncompatibleVersion
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	if p.Time == 0 || p.Threads == 0 {
		return p, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, ErrInvalidHash
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, ErrInvalidHash
	}

	return p, salt, key, nil
}
