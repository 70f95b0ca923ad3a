package domain

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Protocol names a supported DeFi protocol.
type Protocol string

const (
	ProtocolStonfiV1 Protocol = "stonfi_v1"
)

// ErrUnknownProtocol is returned when a protocol name is not registered.
var ErrUnknownProtocol = errors.New("unknown protocol")

// KnownProtocols lists every protocol the service understands.
var KnownProtocols = []Protocol{ProtocolStonfiV1}

// ParseProtocol resolves a stored protocol name.
func ParseProtocol(s string) (Protocol, error) {
	for _, p := range KnownProtocols {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownProtocol, s)
}

// MaxValidTill marks a pool that has no known end of life.
const MaxValidTill int64 = math.MaxInt64

// LiquidityPool is unique by (Protocol, PoolAddress).
type LiquidityPool struct {
	Protocol            Protocol `json:"protocol"             db:"protocol"`
	PoolAddress         string   `json:"pool_address"         db:"pool_address"`
	ValidFromUtcSeconds int64    `json:"valid_from_utc_seconds" db:"valid_from_utc_seconds"`
	ValidTillUtcSeconds int64    `json:"valid_till_utc_seconds" db:"valid_till_utc_seconds"`
	ExtraData           string   `json:"extra_data"           db:"extra_data"`
}

// PoolStatsTradingVolume is unique by (Protocol, PoolAddress, TradingDate).
// Writes for an existing key add to the stored volume and interaction count.
type PoolStatsTradingVolume struct {
	Protocol         Protocol        `json:"protocol"          db:"protocol"`
	PoolAddress      string          `json:"pool_address"      db:"pool_address"`
	TradingDate      int64           `json:"trading_date"      db:"trading_date"`
	UsdVolumeAmount  decimal.Decimal `json:"usd_volume_amount" db:"usd_volume_amount"`
	InteractionCount int             `json:"interaction_count" db:"interaction_count"`
	ExtraData        string          `json:"extra_data"        db:"extra_data"`
}

// TradingDate buckets t (UTC) into an hour key of the form YYYYMMDDHH.
func TradingDate(t time.Time) int64 {
	t = t.UTC()
	return int64(t.Year())*1_000_000 + int64(t.Month())*10_000 + int64(t.Day())*100 + int64(t.Hour())
}

// PoolFieldsDex is the extra data stored for two-asset DEX pools.
type PoolFieldsDex struct {
	Type        string `json:"@type"`
	FirstAsset  string `json:"firstAsset"`
	SecondAsset string `json:"secondAsset"`
}

// NewPoolFieldsDex fills the type discriminator.
func NewPoolFieldsDex(first, second string) PoolFieldsDex {
	return PoolFieldsDex{Type: "dex", FirstAsset: first, SecondAsset: second}
}
