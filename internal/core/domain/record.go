package domain

// RecordTag is the routing key of a record variant.
type RecordTag string

const (
	TagPoolCreated        RecordTag = "pool_created"
	TagTradingStatUpdated RecordTag = "trading_stat_updated"
)

// Record is a fact extracted from a transaction by a protocol parser.
// Protocol packages may add their own variants with new tags.
type Record interface {
	Tag() RecordTag
}

// PoolCreated reports a pool seen for the first time.
type PoolCreated struct {
	Pool LiquidityPool
}

func (PoolCreated) Tag() RecordTag { return TagPoolCreated }

// TradingStatUpdated carries a trading-volume increment for a pool.
type TradingStatUpdated struct {
	Stat PoolStatsTradingVolume
}

func (TradingStatUpdated) Tag() RecordTag { return TagTradingStatUpdated }
