package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/storage"
)

// mockLedger - in-memory ledger с инъекцией ошибок
type mockLedger struct {
	createErr error
	checkErr  error
	revokeErr error
	nodes     map[string]*models.ChainNode
	seq       int
	mu        sync.Mutex
}

func newMockLedger() *mockLedger {
	return &mockLedger{nodes: make(map[string]*models.ChainNode)}
}

func (m *mockLedger) newNode(userID string, kind models.NodeKind, ttl time.Duration) *models.ChainNode {
	m.seq++
	now := time.Now()
	node := &models.ChainNode{
		ID:        fmt.Sprintf("%s-%d", kind, m.seq),
		Kind:      kind,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	m.nodes[node.ID] = node
	return node
}

func (m *mockLedger) CreateRoot(_ context.Context, userID string, ttl time.Duration) (*models.ChainNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.newNode(userID, models.NodeSessionRoot, ttl), nil
}

func (m *mockLedger) CreateLink(_ context.Context, userID string, ttl time.Duration) (*models.ChainNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.newNode(userID, models.NodeRotationLink, ttl), nil
}

func (m *mockLedger) CreateSession(_ context.Context, userID string, ttl time.Duration) (*models.ChainNode, *models.ChainNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, nil, m.createErr
	}
	return m.newNode(userID, models.NodeSessionRoot, ttl), m.newNode(userID, models.NodeRotationLink, ttl), nil
}

func (m *mockLedger) IsAnyRevoked(_ context.Context, ids ...string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checkErr != nil {
		return false, m.checkErr
	}
	for _, id := range ids {
		if node, ok := m.nodes[id]; ok && node.Revoked {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLedger) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revokeErr != nil {
		return m.revokeErr
	}
	if node, ok := m.nodes[id]; ok {
		node.Revoked = true
	}
	return nil
}

func (m *mockLedger) RevokeKind(_ context.Context, id string, kind models.NodeKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revokeErr != nil {
		return false, m.revokeErr
	}
	node, ok := m.nodes[id]
	if !ok || node.Kind != kind {
		return false, nil
	}
	node.Revoked = true
	return true, nil
}

func (m *mockLedger) GetNode(_ context.Context, id string) (*models.ChainNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	node, ok := m.nodes[id]
	if !ok {
		return nil, storage.ErrNodeNotFound
	}
	cp := *node
	return &cp, nil
}

// blockingRevoker держит RevokeKind до закрытия release
type blockingRevoker struct {
	release chan struct{}
	calls   chan string
}

func newBlockingRevoker() *blockingRevoker {
	return &blockingRevoker{
		release: make(chan struct{}),
		calls:   make(chan string, 64),
	}
}

func (b *blockingRevoker) RevokeKind(ctx context.Context, id string, _ models.NodeKind) (bool, error) {
	b.calls <- id
	select {
	case <-b.release:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

type mockRecorder struct {
	events map[string]int
	depth  int
	mu     sync.Mutex
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{events: make(map[string]int)}
}

func (r *mockRecorder) inc(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[key]++
}

func (r *mockRecorder) SessionIssued()  { r.inc("issued") }
func (r *mockRecorder) SessionRotated() { r.inc("rotated") }
func (r *mockRecorder) SessionEnded()   { r.inc("ended") }

func (r *mockRecorder) TokenVerified(kind, outcome string) {
	r.inc("verify:" + kind + ":" + outcome)
}

func (r *mockRecorder) RevokeFinished(outcome string) {
	r.inc("revoke:" + outcome)
}

func (r *mockRecorder) SetRevokeQueueDepth(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.depth = n
}
