package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/infra/storage"
)

// FailedBlockRepo implements storage.FailedBlockRepository using PostgreSQL.
type FailedBlockRepo struct {
	db *DB
}

var _ storage.FailedBlockRepository = (*FailedBlockRepo)(nil)

// NewFailedBlockRepo creates a new PostgreSQL failed block repository.
func NewFailedBlockRepo(db *DB) *FailedBlockRepo {
	return &FailedBlockRepo{db: db}
}

type failedRow struct {
	ID          string    `db:"id"`
	Network     string    `db:"network"`
	MasterSeqNo uint64    `db:"master_seqno"`
	FailureType string    `db:"failure_type"`
	ErrorMsg    string    `db:"error_msg"`
	RetryCount  int       `db:"retry_count"`
	Status      string    `db:"status"`
	LastAttempt time.Time `db:"last_attempt"`
	CreatedAt   time.Time `db:"created_at"`
}

// Add adds a failed block.
func (r *FailedBlockRepo) Add(ctx context.Context, fb *domain.FailedBlock) error {
	query := `
		INSERT INTO failed_blocks (id, network, master_seqno, failure_type, error_msg, retry_count, status, last_attempt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`
	status := fb.Status
	if status == "" {
		status = domain.BlockStatusPending
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		fb.ID,
		fb.Network,
		fb.MasterSeqNo,
		string(fb.FailureType),
		fb.Error,
		fb.RetryCount,
		string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to add failed block: %w", err)
	}
	return nil
}

// IncrementRetry increments retry count and updates timestamp.
func (r *FailedBlockRepo) IncrementRetry(ctx context.Context, id string, errMsg string) error {
	query := `
		UPDATE failed_blocks
		SET retry_count = retry_count + 1, error_msg = $2, last_attempt = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, errMsg)
	return err
}

// MarkResolved marks a failed block as resolved.
func (r *FailedBlockRepo) MarkResolved(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE failed_blocks SET status = 'resolved' WHERE id = $1`, id)
	return err
}

// GetAll returns all failed blocks (for debugging/monitoring).
func (r *FailedBlockRepo) GetAll(ctx context.Context, network string) ([]*domain.FailedBlock, error) {
	query := `
		SELECT id, network, master_seqno, failure_type, error_msg, retry_count, status, last_attempt, created_at
		FROM failed_blocks
		WHERE network = $1
		ORDER BY created_at DESC
	`

	var rows []failedRow
	if err := r.db.SelectContext(ctx, &rows, query, network); err != nil {
		return nil, fmt.Errorf("failed to get all failed blocks: %w", err)
	}

	blocks := make([]*domain.FailedBlock, 0, len(rows))
	for _, row := range rows {
		blocks = append(blocks, &domain.FailedBlock{
			ID:          row.ID,
			Network:     row.Network,
			MasterSeqNo: row.MasterSeqNo,
			FailureType: domain.FailureType(row.FailureType),
			Error:       row.ErrorMsg,
			RetryCount:  row.RetryCount,
			Status:      domain.BlockStatus(row.Status),
			LastAttempt: uint64(row.LastAttempt.Unix()),
			CreatedAt:   uint64(row.CreatedAt.Unix()),
		})
	}
	return blocks, nil
}

// Count returns the number of pending failed blocks.
func (r *FailedBlockRepo) Count(ctx context.Context, network string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM failed_blocks
		WHERE network = $1 AND status = 'pending'
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, network); err != nil {
		return 0, fmt.Errorf("failed to count failed blocks: %w", err)
	}
	return count, nil
}
