// Package checkpoint tracks how far the indexer has processed the chain.
//
// The checkpoint remembers the last fully processed master block and, per
// shard, the last fully processed shard seqno. It only moves forward, and
// only through Commit, which the orchestration loop calls after every
// deferred action of a block has executed.
//
//	cp := checkpoint.New()
//	cp.InitMaster(tip.SeqNo)
//
//	// after a block's actions succeeded
//	cp.Commit(1001, map[domain.ShardID]uint64{shard: 42}) // ✓ OK
//	cp.Commit(1005, nil)                                  // ✗ ErrBlockGap
package checkpoint

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/vietddude/poolwatch/internal/core/domain"
)

var (
	// ErrBlockGap is returned when a commit skips master blocks.
	ErrBlockGap = errors.New("block gap detected")

	// ErrRegression is returned when a commit would move a shard backwards.
	ErrRegression = errors.New("checkpoint regression")

	// ErrNotInitialized is returned when committing before InitMaster.
	ErrNotInitialized = errors.New("checkpoint not initialized")
)

// Reader is the read-only view handed to the shard fetcher.
type Reader interface {
	Master() (uint64, bool)
	Shard(id domain.ShardID) (uint64, bool)
}

// Checkpoint is the in-memory processing position.
type Checkpoint struct {
	mu        sync.RWMutex
	master    *uint64
	updatedAt time.Time
	shards    *xsync.Map[domain.ShardID, uint64]
}

// Snapshot is a point-in-time copy used by the status endpoint.
type Snapshot struct {
	Master    *uint64                   `json:"master"`
	Shards    map[string]uint64         `json:"shards"`
	UpdatedAt time.Time                 `json:"updated_at"`
	ShardByID map[domain.ShardID]uint64 `json:"-"`
}

func New() *Checkpoint {
	return &Checkpoint{
		shards: xsync.NewMap[domain.ShardID, uint64](),
	}
}

// Master returns the last processed master seqno.
func (c *Checkpoint) Master() (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.master == nil {
		return 0, false
	}
	return *c.master, true
}

// InitMaster sets the starting master seqno. It is a no-op once set.
func (c *Checkpoint) InitMaster(seqNo uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.master != nil {
		return false
	}
	c.master = &seqNo
	c.updatedAt = time.Now()
	return true
}

// Shard returns the last processed seqno of a shard.
func (c *Checkpoint) Shard(id domain.ShardID) (uint64, bool) {
	return c.shards.Load(id)
}

// Commit records a fully processed master block and the shard seqnos it covered.
// Nothing is written unless every check passes.
func (c *Checkpoint) Commit(master uint64, shards map[domain.ShardID]uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.master == nil {
		return ErrNotInitialized
	}

	expected := *c.master + 1
	if master != expected {
		return fmt.Errorf("%w: expected master %d, got %d", ErrBlockGap, expected, master)
	}

	for id, seqNo := range shards {
		if current, ok := c.shards.Load(id); ok && seqNo < current {
			return fmt.Errorf("%w: shard %s at %d, got %d", ErrRegression, id, current, seqNo)
		}
	}

	for id, seqNo := range shards {
		c.shards.Store(id, seqNo)
	}
	c.master = &master
	c.updatedAt = time.Now()
	return nil
}

// Snapshot copies the current state.
func (c *Checkpoint) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		Shards:    make(map[string]uint64, c.shards.Size()),
		ShardByID: make(map[domain.ShardID]uint64, c.shards.Size()),
		UpdatedAt: c.updatedAt,
	}
	if c.master != nil {
		m := *c.master
		snap.Master = &m
	}
	c.shards.Range(func(id domain.ShardID, seqNo uint64) bool {
		snap.Shards[id.String()] = seqNo
		snap.ShardByID[id] = seqNo
		return true
	})
	return snap
}

// Lag returns how many master blocks the checkpoint is behind tip.
func (c *Checkpoint) Lag(tip uint64) int64 {
	master, ok := c.Master()
	if !ok {
		return 0
	}
	return int64(tip) - int64(master)
}

// CloneShards returns a plain copy of the shard map.
func (s Snapshot) CloneShards() map[domain.ShardID]uint64 {
	return maps.Clone(s.ShardByID)
}
