package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind is the token kind discriminant carried in the "typ" claim.
type Kind string

const (
	// KindAccess is a short-lived token presented on every authenticated request.
	KindAccess Kind = "access"
	// KindRefresh is a long-lived token presented only to rotate the pair.
	KindRefresh Kind = "refresh"
)

func (k Kind) String() string { return string(k) }

// Binding is the part of the claims chosen by the caller when signing.
type Binding struct {
	Subject       string // ID пользователя
	SessionRootID string // корень цепочки (создается при входе)
	LinkID        string // звено ротации
}

// ChainClaims is the decoded payload shared by both token kinds.
type ChainClaims struct {
	IssuedAt      time.Time
	ExpiresAt     time.Time
	ID            string
	Subject       string
	SessionRootID string
	LinkID        string
	Issuer        string
	Audience      string
}

// Claims is a verified token payload: either AccessClaims or RefreshClaims.
//
// Callers switch on the concrete type instead of inspecting the kind string.
type Claims interface {
	Kind() Kind
	Chain() ChainClaims
	isClaims()
}

// AccessClaims are the claims of a verified access token.
type AccessClaims struct {
	ChainClaims
}

// Kind implements Claims.
func (AccessClaims) Kind() Kind { return KindAccess }

// Chain implements Claims.
func (c AccessClaims) Chain() ChainClaims { return c.ChainClaims }

func (AccessClaims) isClaims() {}

// RefreshClaims are the claims of a verified refresh token.
// Only a RefreshClaims value can be handed to a rotation.
type RefreshClaims struct {
	ChainClaims
}

// Kind implements Claims.
func (RefreshClaims) Kind() Kind { return KindRefresh }

// Chain implements Claims.
func (c RefreshClaims) Chain() ChainClaims { return c.ChainClaims }

func (RefreshClaims) isClaims() {}

// payload is the wire shape of both token kinds.
// shi/chi/typ keep the short claim names used by existing clients.
type payload struct {
	SessionRootID string `json:"shi"`
	LinkID        string `json:"chi"`
	Kind          Kind   `json:"typ"`
	jwt.RegisteredClaims
}

func (p *payload) chain() ChainClaims {
	c := ChainClaims{
		ID:            p.ID,
		Subject:       p.Subject,
		SessionRootID: p.SessionRootID,
		LinkID:        p.LinkID,
		Issuer:        p.Issuer,
	}
	if len(p.Audience) > 0 {
		c.Audience = p.Audience[0]
	}
	if p.IssuedAt != nil {
		c.IssuedAt = p.IssuedAt.Time
	}
	if p.ExpiresAt != nil {
		c.ExpiresAt = p.ExpiresAt.Time
	}
	return c
}

// claimsOf wraps decoded chain claims into the variant matching kind.
func claimsOf(kind Kind, c ChainClaims) (Claims, error) {
	switch kind {
	case KindAccess:
		return AccessClaims{ChainClaims: c}, nil
	case KindRefresh:
		return RefreshClaims{ChainClaims: c}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrSignerMisconfigured, kind)
	}
}
