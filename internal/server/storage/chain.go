package storage

import (
	"context"
	"time"

	"github.com/iudanet/gophauth/internal/models"
)

// ChainLedger defines interface for the revocation ledger of session chains.
//
// The ledger is a flat id -> revoked table. It has no parent pointers and no
// delete operation; membership of a link in a session is carried by tokens.
type ChainLedger interface {
	// CreateRoot creates a session root node expiring at now+ttl
	CreateRoot(ctx context.Context, userID string, ttl time.Duration) (*models.ChainNode, error)

	// CreateLink creates a rotation link node expiring at now+ttl
	CreateLink(ctx context.Context, userID string, ttl time.Duration) (*models.ChainNode, error)

	// CreateSession creates a session root and its initial link in one
	// all-or-nothing write
	CreateSession(ctx context.Context, userID string, ttl time.Duration) (root, link *models.ChainNode, err error)

	// IsAnyRevoked reports whether any of the given ids is revoked.
	// Unknown ids count as not revoked
	IsAnyRevoked(ctx context.Context, ids ...string) (bool, error)

	// Revoke marks the node as revoked. Idempotent, unknown ids are a no-op
	Revoke(ctx context.Context, id string) error

	// RevokeKind revokes the node only if it has the given kind.
	// Returns true if a matching node exists
	RevokeKind(ctx context.Context, id string, kind models.NodeKind) (bool, error)

	// GetNode retrieves a node by ID
	// Returns ErrNodeNotFound if node doesn't exist
	GetNode(ctx context.Context, id string) (*models.ChainNode, error)
}

// ExpiredNodeSweeper removes rotation links past their expiry.
// It lives outside ChainLedger: sweeping is an out-of-band maintenance job.
// Session roots are kept for good: a missing root would read as not revoked
// while links under it are still valid.
type ExpiredNodeSweeper interface {
	// DeleteExpiredLinks removes rotation links that expired at or before the given time
	// Returns number of deleted links
	DeleteExpiredLinks(ctx context.Context, before time.Time) (int, error)
}
