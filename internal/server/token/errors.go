package token

import "errors"

// Ошибки верификации и подписи токенов
var (
	// ErrInvalidSignature indicates the signature does not match the secret of the expected kind
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrExpired indicates the token is past its exp claim
	ErrExpired = errors.New("token expired")

	// ErrKindMismatch indicates the typ claim differs from the expected kind
	ErrKindMismatch = errors.New("token kind mismatch")

	// ErrMalformed indicates the token is not a three-part signed string with a decodable payload
	ErrMalformed = errors.New("malformed token")

	// ErrInvalidClaims indicates issuer, audience or chain ids are missing or wrong
	ErrInvalidClaims = errors.New("invalid token claims")

	// ErrSignerMisconfigured indicates a missing secret or lifetime for a kind
	ErrSignerMisconfigured = errors.New("token signer misconfigured")
)
