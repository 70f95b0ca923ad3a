package domain

import "fmt"

const (
	// MasterchainID is the workchain id of the masterchain.
	MasterchainID int32 = -1

	// ShardAll is the shard prefix covering the whole workchain.
	ShardAll int64 = -9223372036854775808 // 0x8000000000000000
)

// ShardID identifies a shard chain by workchain and shard prefix.
type ShardID struct {
	Workchain int32
	Shard     int64
}

func (s ShardID) String() string {
	return fmt.Sprintf("%d:%016x", s.Workchain, uint64(s.Shard))
}

// BlockRef points at a single block of the master or a shard chain.
type BlockRef struct {
	Workchain int32
	Shard     int64
	SeqNo     uint32
	RootHash  []byte
	FileHash  []byte
}

// ShardID returns the shard the block belongs to.
func (b *BlockRef) ShardID() ShardID {
	return ShardID{Workchain: b.Workchain, Shard: b.Shard}
}

func (b *BlockRef) String() string {
	return fmt.Sprintf("(%d,%016x,%d)", b.Workchain, uint64(b.Shard), b.SeqNo)
}
