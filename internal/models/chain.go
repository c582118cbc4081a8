package models

import (
	"fmt"
	"time"
)

// NodeKind discriminates the two kinds of revocable chain nodes.
type NodeKind string

const (
	// NodeSessionRoot is created once per sign-in; revoking it ends the whole session.
	NodeSessionRoot NodeKind = "session"
	// NodeRotationLink is created on every refresh rotation.
	NodeRotationLink NodeKind = "link"
)

// Valid reports whether k is one of the known node kinds.
func (k NodeKind) Valid() bool {
	return k == NodeSessionRoot || k == NodeRotationLink
}

// ParseNodeKind converts a stored kind value back into a NodeKind.
func ParseNodeKind(s string) (NodeKind, error) {
	k := NodeKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown chain node kind %q", s)
	}
	return k, nil
}

// ChainNode is one row of the revocation ledger.
//
// The ledger keeps no parent pointer: the root/link relationship lives only
// inside issued tokens. Revoked only ever flips false -> true and ExpiresAt
// is fixed at creation.
type ChainNode struct {
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	Kind      NodeKind  `json:"kind"`
	UserID    string    `json:"user_id"`
	Revoked   bool      `json:"revoked"`
}

// Expired reports whether the node is past its expiry at the given instant.
func (n *ChainNode) Expired(now time.Time) bool {
	return !n.ExpiresAt.After(now)
}
