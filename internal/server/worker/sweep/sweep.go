// Package sweep periodically deletes rotation links whose expiry has passed.
//
// A link expires together with the refresh token that carries it, so once the
// cutoff is behind its expiry nothing can present it again. Session roots are
// never swept: later links keep a root in use long after the root's own expiry,
// and a missing root would read as not revoked.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/gophauth/internal/server/storage"
)

// Recorder receives the number of nodes removed by each run.
type Recorder interface {
	NodesSwept(count int)
}

type nopRecorder struct{}

func (nopRecorder) NodesSwept(int) {}

// DefaultGrace is subtracted from the clock before sweeping, so links near
// their expiry survive clock skew between the ledger and the token signer.
const DefaultGrace = time.Minute

// Job deletes expired rotation links.
type Job struct {
	sweeper  storage.ExpiredNodeSweeper
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
	grace    time.Duration
}

// Option configures a Job.
type Option func(*Job)

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(j *Job) {
		j.recorder = rec
	}
}

// WithClock overrides the time source used as the expiry cutoff.
func WithClock(now func() time.Time) Option {
	return func(j *Job) {
		j.now = now
	}
}

// WithGrace overrides DefaultGrace. Negative values are treated as zero.
func WithGrace(d time.Duration) Option {
	return func(j *Job) {
		j.grace = max(d, 0)
	}
}

// NewJob creates a sweep job.
func NewJob(sweeper storage.ExpiredNodeSweeper, logger *slog.Logger, opts ...Option) *Job {
	j := &Job{
		sweeper:  sweeper,
		logger:   logger,
		recorder: nopRecorder{},
		now:      time.Now,
		grace:    DefaultGrace,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Cutoff returns the instant links must have expired by to be swept.
func (j *Job) Cutoff() time.Time {
	return j.now().Add(-j.grace)
}

// Run deletes links that expired by Cutoff. Idempotent.
func (j *Job) Run(ctx context.Context) (int, error) {
	start := time.Now()

	deleted, err := j.sweeper.DeleteExpiredLinks(ctx, j.Cutoff())
	if err != nil {
		j.logger.ErrorContext(ctx, "Expired link sweep failed", slog.Any("error", err))
		return 0, fmt.Errorf("failed to sweep expired links: %w", err)
	}

	j.recorder.NodesSwept(deleted)
	j.logger.InfoContext(ctx, "Expired link sweep completed",
		slog.Int("deleted_count", deleted),
		slog.Duration("duration", time.Since(start)))

	return deleted, nil
}

// Start runs the job every interval until ctx is canceled. Blocks.
// A non-positive interval disables the sweep.
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		j.logger.InfoContext(ctx, "Expired link sweep disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// ошибка уже залогирована, следующий тик повторит попытку
			_, _ = j.Run(ctx)
		}
	}
}
