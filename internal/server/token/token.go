// Package token signs and verifies the access and refresh tokens of a session chain.
//
// Tokens are HS256 JWTs. Each kind has its own secret and lifetime, and the
// payload carries the kind in the "typ" claim, so an access token is never
// accepted where a refresh token is expected and vice versa, even if both
// kinds are configured with the same secret.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// KeyConfig holds the signing secret and token lifetime of one kind.
type KeyConfig struct {
	Secret []byte
	TTL    time.Duration
}

// Config содержит конфигурацию для подписи токенов
type Config struct {
	Issuer   string
	Audience string
	Access   KeyConfig
	Refresh  KeyConfig
}

// Codec signs and verifies tokens of both kinds.
type Codec struct {
	now      func() time.Time
	keys     map[Kind]KeyConfig
	issuer   string
	audience string
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for iat/exp and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec creates a codec. It fails with ErrSignerMisconfigured when a kind
// has no secret or no positive lifetime, or issuer/audience are empty.
func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, fmt.Errorf("%w: issuer and audience are required", ErrSignerMisconfigured)
	}

	keys := map[Kind]KeyConfig{
		KindAccess:  cfg.Access,
		KindRefresh: cfg.Refresh,
	}
	for kind, key := range keys {
		if len(key.Secret) == 0 {
			return nil, fmt.Errorf("%w: empty %s secret", ErrSignerMisconfigured, kind)
		}
		if key.TTL <= 0 {
			return nil, fmt.Errorf("%w: non-positive %s ttl", ErrSignerMisconfigured, kind)
		}
	}

	c := &Codec{
		now:      time.Now,
		keys:     keys,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// TTL returns the configured token lifetime of kind.
func (c *Codec) TTL(kind Kind) time.Duration {
	return c.keys[kind].TTL
}

// Sign creates a token of the given kind for the binding, using the secret and
// lifetime bound to that kind. The returned claims describe the signed token.
func (c *Codec) Sign(kind Kind, b Binding) (string, Claims, error) {
	key, ok := c.keys[kind]
	if !ok {
		return "", nil, fmt.Errorf("%w: unknown kind %q", ErrSignerMisconfigured, kind)
	}

	now := c.now()
	expiresAt := now.Add(key.TTL)

	p := payload{
		SessionRootID: b.SessionRootID,
		LinkID:        b.LinkID,
		Kind:          kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   b.Subject,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, p).SignedString(key.Secret)
	if err != nil {
		return "", nil, fmt.Errorf("%w: failed to sign %s token: %v", ErrSignerMisconfigured, kind, err)
	}

	claims, err := claimsOf(kind, p.chain())
	if err != nil {
		return "", nil, err
	}

	return signed, claims, nil
}

// Verify checks the token against the secret of the expected kind.
//
// It fails with ErrKindMismatch when the typ claim names another kind (checked
// before the signature, so a token of the other kind is reported as a kind
// mismatch rather than a bad signature), ErrInvalidSignature, ErrExpired,
// ErrMalformed or ErrInvalidClaims.
func (c *Codec) Verify(tokenString string, expected Kind) (Claims, error) {
	key, ok := c.keys[expected]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrSignerMisconfigured, expected)
	}

	// Смотрим typ до проверки подписи
	var peek payload
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &peek); err != nil {
		return nil, ErrMalformed
	}
	if peek.Kind != expected {
		return nil, ErrKindMismatch
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	var p payload
	_, err := parser.ParseWithClaims(tokenString, &p, func(*jwt.Token) (any, error) {
		return key.Secret, nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	// Повторная проверка после верификации подписи
	if p.Kind != expected {
		return nil, ErrKindMismatch
	}
	if p.Subject == "" || p.SessionRootID == "" || p.LinkID == "" {
		return nil, ErrInvalidClaims
	}

	return claimsOf(expected, p.chain())
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
}
