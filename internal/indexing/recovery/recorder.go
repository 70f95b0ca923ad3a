package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/infra/storage"
)

// Recorder logs failed iterations of the master block currently being
// retried and returns how long to wait before the next attempt.
type Recorder struct {
	repo     storage.FailedBlockRepository
	strategy RetryStrategy
	network  string
	current  *domain.FailedBlock
	log      *slog.Logger
}

// NewRecorder creates a new failed block recorder.
func NewRecorder(repo storage.FailedBlockRepository, strategy RetryStrategy, network string) *Recorder {
	if strategy == nil {
		strategy = DefaultBackoff()
	}
	return &Recorder{
		repo:     repo,
		strategy: strategy,
		network:  network,
		log:      slog.Default().With("component", "recovery", "network", network),
	}
}

// HandleFailure is called by the main indexer loop when a block fails.
// Repeated failures of the same block bump its retry count.
func (r *Recorder) HandleFailure(ctx context.Context, masterSeqNo uint64, cause error) (time.Duration, error) {
	if r.current != nil && r.current.MasterSeqNo == masterSeqNo {
		r.current.RetryCount++
		r.current.Error = cause.Error()
		delay := r.strategy.GetDelay(r.current.RetryCount)
		if err := r.repo.IncrementRetry(ctx, r.current.ID, cause.Error()); err != nil {
			return delay, fmt.Errorf("failed to increment retry: %w", err)
		}
		return delay, nil
	}

	now := uint64(time.Now().Unix())
	fb := &domain.FailedBlock{
		ID:          uuid.New().String(),
		Network:     r.network,
		MasterSeqNo: masterSeqNo,
		FailureType: Classify(cause),
		Error:       cause.Error(),
		RetryCount:  0,
		Status:      domain.BlockStatusPending,
		LastAttempt: now,
		CreatedAt:   now,
	}
	r.current = fb

	delay := r.strategy.GetDelay(0)
	if err := r.repo.Add(ctx, fb); err != nil {
		return delay, fmt.Errorf("failed to add failed block: %w", err)
	}
	return delay, nil
}

// HandleSuccess resolves the pending entry once its block commits.
func (r *Recorder) HandleSuccess(ctx context.Context, masterSeqNo uint64) error {
	if r.current == nil || r.current.MasterSeqNo != masterSeqNo {
		return nil
	}
	fb := r.current
	r.current = nil

	r.log.Info("Failed block recovered", "master", masterSeqNo, "retries", fb.RetryCount)
	if err := r.repo.MarkResolved(ctx, fb.ID); err != nil {
		return fmt.Errorf("failed to resolve block %s: %w", fb.ID, err)
	}
	return nil
}

// Pending returns the block currently being retried, if any.
func (r *Recorder) Pending() *domain.FailedBlock {
	if r.current == nil {
		return nil
	}
	fb := *r.current
	return &fb
}
