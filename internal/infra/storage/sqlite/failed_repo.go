package sqlite

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/infra/storage"
)

// FailedRepo implements storage.FailedBlockRepository on SQLite.
type FailedRepo struct {
	db *gorm.DB
}

var _ storage.FailedBlockRepository = (*FailedRepo)(nil)

func NewFailedRepo(s *Storage) *FailedRepo {
	return &FailedRepo{db: s.db}
}

func (r *FailedRepo) Add(ctx context.Context, fb *domain.FailedBlock) error {
	status := fb.Status
	if status == "" {
		status = domain.BlockStatusPending
	}
	now := time.Now()
	row := failedRow{
		ID:          fb.ID,
		Network:     fb.Network,
		MasterSeqNo: fb.MasterSeqNo,
		FailureType: string(fb.FailureType),
		ErrorMsg:    fb.Error,
		RetryCount:  fb.RetryCount,
		Status:      string(status),
		LastAttempt: now,
		CreatedAt:   now,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to add failed block: %w", err)
	}
	return nil
}

func (r *FailedRepo) IncrementRetry(ctx context.Context, id string, errMsg string) error {
	res := r.db.WithContext(ctx).Model(&failedRow{}).Where("id = ?", id).Updates(map[string]any{
		"retry_count":  gorm.Expr("retry_count + 1"),
		"error_msg":    errMsg,
		"last_attempt": time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *FailedRepo) MarkResolved(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&failedRow{}).Where("id = ?", id).
		Update("status", string(domain.BlockStatusResolved))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *FailedRepo) GetAll(ctx context.Context, network string) ([]*domain.FailedBlock, error) {
	var rows []failedRow
	err := r.db.WithContext(ctx).Where("network = ?", network).Order("created_at DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get all failed blocks: %w", err)
	}
	blocks := make([]*domain.FailedBlock, 0, len(rows))
	for _, row := range rows {
		blocks = append(blocks, row.toDomain())
	}
	return blocks, nil
}

func (r *FailedRepo) Count(ctx context.Context, network string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&failedRow{}).
		Where("network = ? AND status = ?", network, string(domain.BlockStatusPending)).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count failed blocks: %w", err)
	}
	return int(count), nil
}
