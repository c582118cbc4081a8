package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/storage"
)

var errBucketNotFound = errors.New("chain_nodes bucket not found")

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

func putNode(tx *bbolt.Tx, node *models.ChainNode) error {
	bucket := tx.Bucket(bucketNodes)
	if bucket == nil {
		return errBucketNotFound
	}

	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to marshal %s node: %w", node.Kind, err)
	}

	if err := bucket.Put([]byte(node.ID), data); err != nil {
		return fmt.Errorf("failed to save %s node: %w", node.Kind, err)
	}

	return nil
}

// getNode возвращает nil, nil если узла нет
func getNode(tx *bbolt.Tx, id string) (*models.ChainNode, error) {
	bucket := tx.Bucket(bucketNodes)
	if bucket == nil {
		return nil, errBucketNotFound
	}

	data := bucket.Get([]byte(id))
	if data == nil {
		return nil, nil
	}

	node := &models.ChainNode{}
	if err := json.Unmarshal(data, node); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node: %w", err)
	}

	return node, nil
}

func (s *Storage) createNode(ctx context.Context, userID string, kind models.NodeKind, ttl time.Duration) (*models.ChainNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	node := s.newNode(userID, kind, ttl)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return putNode(tx, node)
	})
	if err != nil {
		return nil, err
	}

	return node, nil
}

// CreateRoot creates a session root node
func (s *Storage) CreateRoot(ctx context.Context, userID string, ttl time.Duration) (*models.ChainNode, error) {
	return s.createNode(ctx, userID, models.NodeSessionRoot, ttl)
}

// CreateLink creates a rotation link node
func (s *Storage) CreateLink(ctx context.Context, userID string, ttl time.Duration) (*models.ChainNode, error) {
	return s.createNode(ctx, userID, models.NodeRotationLink, ttl)
}

// CreateSession creates a session root and its initial link in one transaction
func (s *Storage) CreateSession(ctx context.Context, userID string, ttl time.Duration) (*models.ChainNode, *models.ChainNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	root := s.newNode(userID, models.NodeSessionRoot, ttl)
	link := s.newNode(userID, models.NodeRotationLink, ttl)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := putNode(tx, root); err != nil {
			return err
		}
		return putNode(tx, link)
	})
	if err != nil {
		return nil, nil, err
	}

	return root, link, nil
}

// IsAnyRevoked reports whether any of the ids is revoked
func (s *Storage) IsAnyRevoked(ctx context.Context, ids ...string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var revoked bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		for _, id := range ids {
			node, err := getNode(tx, id)
			if err != nil {
				return err
			}
			if node != nil && node.Revoked {
				revoked = true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}

	return revoked, nil
}

// revoke помечает узел отозванным; kind == "" означает любой тип
func (s *Storage) revoke(ctx context.Context, id string, kind models.NodeKind) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var found bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		node, err := getNode(tx, id)
		if err != nil || node == nil {
			return err
		}
		if kind != "" && node.Kind != kind {
			return nil
		}

		found = true
		if node.Revoked {
			return nil
		}
		node.Revoked = true
		return putNode(tx, node)
	})
	if err != nil {
		return false, fmt.Errorf("failed to revoke node: %w", err)
	}

	return found, nil
}

// Revoke marks the node as revoked (idempotent)
func (s *Storage) Revoke(ctx context.Context, id string) error {
	_, err := s.revoke(ctx, id, "")
	return err
}

// RevokeKind revokes the node only if it is of the given kind
func (s *Storage) RevokeKind(ctx context.Context, id string, kind models.NodeKind) (bool, error) {
	return s.revoke(ctx, id, kind)
}

// GetNode retrieves a chain node by ID
func (s *Storage) GetNode(ctx context.Context, id string) (*models.ChainNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var node *models.ChainNode
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		node, err = getNode(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, storage.ErrNodeNotFound
	}

	return node, nil
}

// DeleteExpiredLinks removes rotation links that expired at or before the given time.
// Session roots are never removed.
func (s *Storage) DeleteExpiredLinks(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var deleted int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketNodes)
		if bucket == nil {
			return errBucketNotFound
		}

		// Удалять внутри ForEach нельзя, поэтому сначала собираем ключи
		var expired [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			node := &models.ChainNode{}
			if err := json.Unmarshal(v, node); err != nil {
				return fmt.Errorf("failed to unmarshal node: %w", err)
			}
			// корни не удаляем: отсутствующий корень читается как неотозванный
			if node.Kind == models.NodeRotationLink && node.Expired(before) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("failed to delete node: %w", err)
			}
		}
		deleted = len(expired)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired links: %w", err)
	}

	return deleted, nil
}
