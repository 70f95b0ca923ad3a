package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/infra/storage"
)

const failedBlockTTL = 24 * time.Hour

// FailedBlockRepo implements storage.FailedBlockRepository using Redis.
// Pending entries live in a sorted set scored by master seqno; every entry's
// JSON is kept under its own key until it expires.
type FailedBlockRepo struct {
	rdb *redis.Client
}

var _ storage.FailedBlockRepository = (*FailedBlockRepo)(nil)

// NewFailedBlockRepo creates a new Redis-backed failed block repository.
func NewFailedBlockRepo(client *Client) *FailedBlockRepo {
	return &FailedBlockRepo{rdb: client.rdb}
}

// Key helpers
func queueKey(network string) string {
	return fmt.Sprintf("failed_blocks:%s", network)
}

func indexKey(network string) string {
	return fmt.Sprintf("failed_blocks_all:%s", network)
}

func blockKey(id string) string {
	return fmt.Sprintf("failed_block:%s", id)
}

// Add adds a failed block to the queue.
func (r *FailedBlockRepo) Add(ctx context.Context, fb *domain.FailedBlock) error {
	stored := *fb
	if stored.Status == "" {
		stored.Status = domain.BlockStatusPending
	}
	now := uint64(time.Now().Unix())
	stored.CreatedAt = now
	stored.LastAttempt = now

	if err := r.save(ctx, &stored); err != nil {
		return err
	}

	member := redis.Z{Score: float64(fb.MasterSeqNo), Member: fb.ID}
	pipe := r.rdb.TxPipeline()
	pipe.ZAdd(ctx, queueKey(fb.Network), member)
	pipe.ZAdd(ctx, indexKey(fb.Network), member)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add to queue: %w", err)
	}
	return nil
}

// IncrementRetry increments retry count and updates last attempt.
func (r *FailedBlockRepo) IncrementRetry(ctx context.Context, id string, errMsg string) error {
	fb, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	fb.RetryCount++
	fb.Error = errMsg
	fb.LastAttempt = uint64(time.Now().Unix())
	return r.save(ctx, fb)
}

// MarkResolved removes a failed block from the pending queue.
func (r *FailedBlockRepo) MarkResolved(ctx context.Context, id string) error {
	fb, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	fb.Status = domain.BlockStatusResolved
	if err := r.save(ctx, fb); err != nil {
		return err
	}
	if err := r.rdb.ZRem(ctx, queueKey(fb.Network), id).Err(); err != nil {
		return fmt.Errorf("failed to remove from queue: %w", err)
	}
	return nil
}

// GetAll retrieves all failed blocks that have not expired.
func (r *FailedBlockRepo) GetAll(ctx context.Context, network string) ([]*domain.FailedBlock, error) {
	ids, err := r.rdb.ZRange(ctx, indexKey(network), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	blocks := make([]*domain.FailedBlock, 0, len(ids))
	for _, id := range ids {
		fb, err := r.load(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			// Data expired but ID still indexed
			r.rdb.ZRem(ctx, indexKey(network), id)
			r.rdb.ZRem(ctx, queueKey(network), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, fb)
	}
	return blocks, nil
}

// Count returns the count of pending failed blocks.
func (r *FailedBlockRepo) Count(ctx context.Context, network string) (int, error) {
	count, err := r.rdb.ZCard(ctx, queueKey(network)).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}

func (r *FailedBlockRepo) load(ctx context.Context, id string) (*domain.FailedBlock, error) {
	data, err := r.rdb.Get(ctx, blockKey(id)).Bytes()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get failed block: %w", err)
	}

	var fb domain.FailedBlock
	if err := json.Unmarshal(data, &fb); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failed block: %w", err)
	}
	return &fb, nil
}

func (r *FailedBlockRepo) save(ctx context.Context, fb *domain.FailedBlock) error {
	data, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("failed to marshal failed block: %w", err)
	}
	if err := r.rdb.Set(ctx, blockKey(fb.ID), data, failedBlockTTL).Err(); err != nil {
		return fmt.Errorf("failed to set failed block: %w", err)
	}
	return nil
}
