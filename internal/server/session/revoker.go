package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/gophauth/internal/models"
)

// LinkRevoker is the part of the chain ledger the background revoker needs.
type LinkRevoker interface {
	RevokeKind(ctx context.Context, id string, kind models.NodeKind) (bool, error)
}

// RevokerConfig configures the background revoke queue.
type RevokerConfig struct {
	QueueSize int
	Workers   int
	// Timeout bounds one revoke; the caller's context is never used
	Timeout time.Duration
}

// DefaultRevokerConfig returns the defaults used by the server.
func DefaultRevokerConfig() RevokerConfig {
	return RevokerConfig{
		QueueSize: 1024,
		Workers:   2,
		Timeout:   5 * time.Second,
	}
}

// Task is one queued revoke of a superseded rotation link.
type Task struct {
	err    error
	done   chan struct{}
	LinkID string
}

func newTask(linkID string) *Task {
	return &Task{LinkID: linkID, done: make(chan struct{})}
}

func (t *Task) finish(err error) {
	t.err = err
	close(t.done)
}

// Done is closed when the task has been processed or dropped.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task result. Only valid after Done is closed.
func (t *Task) Err() error {
	return t.err
}

// Revoker revokes superseded rotation links in the background.
//
// Enqueue never blocks: when the queue is full the task is dropped and logged,
// and the old link stays usable until it expires. Tasks are not retried.
// Flush waits until every accepted task has been processed.
type Revoker struct {
	ledger   LinkRevoker
	logger   *slog.Logger
	recorder Recorder
	queue    chan *Task
	idle     chan struct{}
	workers  sync.WaitGroup
	cfg      RevokerConfig
	mu       sync.Mutex
	pending  int
	started  bool
	stopped  bool
}

// RevokerOption configures a Revoker.
type RevokerOption func(*Revoker)

// WithRevokerRecorder sets the metrics recorder.
func WithRevokerRecorder(rec Recorder) RevokerOption {
	return func(r *Revoker) {
		r.recorder = rec
	}
}

// NewRevoker creates a revoker. Workers are not running until Start.
func NewRevoker(ledger LinkRevoker, logger *slog.Logger, cfg RevokerConfig, opts ...RevokerOption) *Revoker {
	def := DefaultRevokerConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	idle := make(chan struct{})
	close(idle)

	r := &Revoker{
		ledger:   ledger,
		logger:   logger,
		recorder: nopRecorder{},
		queue:    make(chan *Task, cfg.QueueSize),
		idle:     idle,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Start launches the workers. Calling it again is a no-op.
func (r *Revoker) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return
	}
	r.started = true
	r.spawn()
}

func (r *Revoker) spawn() {
	for range r.cfg.Workers {
		r.workers.Add(1)
		go r.work()
	}
}

// Enqueue schedules the revoke of linkID and returns immediately.
func (r *Revoker) Enqueue(linkID string) *Task {
	task := newTask(linkID)

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		r.drop(task, ErrRevokerStopped)
		return task
	}

	select {
	case r.queue <- task:
		if r.pending == 0 {
			r.idle = make(chan struct{})
		}
		r.pending++
		r.recorder.SetRevokeQueueDepth(r.pending)
		r.mu.Unlock()
	default:
		r.mu.Unlock()
		r.drop(task, ErrQueueFull)
	}

	return task
}

func (r *Revoker) drop(task *Task, reason error) {
	r.logger.Warn("Link revoke dropped",
		slog.String("link_id", task.LinkID),
		slog.String("reason", reason.Error()))
	r.recorder.RevokeFinished("dropped")
	task.finish(reason)
}

// Pending returns the number of accepted tasks not yet processed.
func (r *Revoker) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// Flush blocks until all accepted tasks are processed or ctx is done.
// Workers must be running, otherwise Flush waits for ctx.
func (r *Revoker) Flush(ctx context.Context) error {
	r.mu.Lock()
	idle := r.idle
	r.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop refuses new tasks, drains the queue and waits for the workers.
// A revoker that was never started is drained by workers spawned here.
func (r *Revoker) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.queue)
	if !r.started {
		r.started = true
		r.spawn()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Revoker) work() {
	defer r.workers.Done()

	for task := range r.queue {
		err := r.revoke(task.LinkID)
		task.finish(err)

		r.mu.Lock()
		r.pending--
		r.recorder.SetRevokeQueueDepth(r.pending)
		if r.pending == 0 {
			close(r.idle)
		}
		r.mu.Unlock()
	}
}

func (r *Revoker) revoke(linkID string) error {
	// Отзыв отвязан от запроса, который его породил
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()

	found, err := r.ledger.RevokeKind(ctx, linkID, models.NodeRotationLink)
	if err != nil {
		r.logger.Error("Failed to revoke superseded link",
			slog.String("link_id", linkID),
			slog.String("error", err.Error()))
		r.recorder.RevokeFinished("error")
		return err
	}

	if !found {
		r.logger.Warn("Superseded link not found",
			slog.String("link_id", linkID))
		r.recorder.RevokeFinished("not_found")
		return nil
	}

	r.logger.Debug("Superseded link revoked",
		slog.String("link_id", linkID))
	r.recorder.RevokeFinished("ok")
	return nil
}
