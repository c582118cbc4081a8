package boltdb

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gophauth/internal/server/storage"
)

var (
	// BoltDB bucket names
	bucketNodes = []byte("chain_nodes")
)

var (
	_ storage.ChainLedger        = (*Storage)(nil)
	_ storage.ExpiredNodeSweeper = (*Storage)(nil)
)

// Storage represents BoltDB implementation of the chain ledger
type Storage struct {
	db  *bbolt.DB
	now func() time.Time
}

// Option configures a Storage.
type Option func(*Storage)

// WithClock overrides the time source used for node expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		s.now = now
	}
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string, opts ...Option) (*Storage, error) {
	// Открываем BoltDB; таймаут не даёт зависнуть на чужом file lock
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	// Инициализируем buckets
	if err := s.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Ping checks that the database is open and the ledger bucket exists
func (s *Storage) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketNodes) == nil {
			return errBucketNotFound
		}
		return nil
	})
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketNodes); err != nil {
			return fmt.Errorf("failed to create chain_nodes bucket: %w", err)
		}
		return nil
	})
}
