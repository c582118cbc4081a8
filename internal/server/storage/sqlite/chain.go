package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/storage"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Storage) newNode(userID string, kind models.NodeKind, ttl time.Duration) *models.ChainNode {
	now := s.now().UTC()
	return &models.ChainNode{
		ID:        uuid.NewString(),
		Kind:      kind,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func insertNode(ctx context.Context, db execer, node *models.ChainNode) error {
	query := `
		INSERT INTO chain_nodes (id, kind, user_id, expires_at, created_at, revoked)
		VALUES (?, ?, ?, ?, ?, 0)
	`

	_, err := db.ExecContext(ctx, query,
		node.ID,
		string(node.Kind),
		node.UserID,
		node.ExpiresAt.UnixMilli(),
		node.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s node: %w", node.Kind, err)
	}

	return nil
}

// CreateRoot creates a session root node
func (s *Storage) CreateRoot(ctx context.Context, userID string, ttl time.Duration) (*models.ChainNode, error) {
	node := s.newNode(userID, models.NodeSessionRoot, ttl)
	if err := insertNode(ctx, s.db, node); err != nil {
		return nil, err
	}
	return node, nil
}

// CreateLink creates a rotation link node
func (s *Storage) CreateLink(ctx context.Context, userID string, ttl time.Duration) (*models.ChainNode, error) {
	node := s.newNode(userID, models.NodeRotationLink, ttl)
	if err := insertNode(ctx, s.db, node); err != nil {
		return nil, err
	}
	return node, nil
}

// CreateSession creates a session root and its initial link in one transaction
func (s *Storage) CreateSession(ctx context.Context, userID string, ttl time.Duration) (*models.ChainNode, *models.ChainNode, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	root := s.newNode(userID, models.NodeSessionRoot, ttl)
	if err := insertNode(ctx, tx, root); err != nil {
		return nil, nil, err
	}

	link := s.newNode(userID, models.NodeRotationLink, ttl)
	if err := insertNode(ctx, tx, link); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit session: %w", err)
	}

	return root, link, nil
}

// IsAnyRevoked reports whether any of the ids is revoked
func (s *Storage) IsAnyRevoked(ctx context.Context, ids ...string) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `SELECT EXISTS (SELECT 1 FROM chain_nodes WHERE revoked = 1 AND id IN (` + placeholders + `))`

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}

	return exists, nil
}

// Revoke marks the node as revoked (idempotent)
func (s *Storage) Revoke(ctx context.Context, id string) error {
	query := `UPDATE chain_nodes SET revoked = 1 WHERE id = ?`

	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to revoke node: %w", err)
	}

	return nil
}

// RevokeKind revokes the node only if it is of the given kind
func (s *Storage) RevokeKind(ctx context.Context, id string, kind models.NodeKind) (bool, error) {
	// Без условия на revoked: повторный вызов тоже находит строку
	query := `UPDATE chain_nodes SET revoked = 1 WHERE id = ? AND kind = ?`

	result, err := s.db.ExecContext(ctx, query, id, string(kind))
	if err != nil {
		return false, fmt.Errorf("failed to revoke %s node: %w", kind, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// GetNode retrieves a chain node by ID
func (s *Storage) GetNode(ctx context.Context, id string) (*models.ChainNode, error) {
	query := `
		SELECT id, kind, user_id, expires_at, created_at, revoked
		FROM chain_nodes
		WHERE id = ?
	`

	var (
		node      models.ChainNode
		kind      string
		expiresAt int64
		createdAt int64
	)

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&node.ID,
		&kind,
		&node.UserID,
		&expiresAt,
		&createdAt,
		&node.Revoked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNodeNotFound
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	node.Kind, err = models.ParseNodeKind(kind)
	if err != nil {
		return nil, err
	}
	node.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	node.CreatedAt = time.UnixMilli(createdAt).UTC()

	return &node, nil
}

// DeleteExpiredLinks removes rotation links that expired at or before the given time.
// Session roots are never removed.
func (s *Storage) DeleteExpiredLinks(ctx context.Context, before time.Time) (int, error) {
	query := `DELETE FROM chain_nodes WHERE kind = ? AND expires_at <= ?`

	result, err := s.db.ExecContext(ctx, query, string(models.NodeRotationLink), before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired links: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}
