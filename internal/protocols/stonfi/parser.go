// Package stonfi recognises STON.fi v1 swaps.
package stonfi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xssnick/tonutils-go/address"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/indexing/decoder"
	"github.com/vietddude/poolwatch/internal/indexing/parser"
	"github.com/vietddude/poolwatch/internal/infra/chain"
)

// SwapOpCode is the router-to-pool swap message.
const SwapOpCode uint32 = 0x25938561

// swapVolume is the USD volume booked per swap until swap amounts are decoded.
var swapVolume = decimal.NewFromInt(100)

// MethodRunner runs contract get-methods.
type MethodRunner interface {
	RunGetMethod(ctx context.Context, address string, method string, args ...any) (*chain.ExecutionResult, error)
}

// Converter prices token amounts.
type Converter interface {
	UsdAmount(token string, amount decimal.Decimal) decimal.Decimal
}

// Parser emits pool and trading records for STON.fi v1 swaps.
type Parser struct {
	runner MethodRunner
	conv   Converter
	now    func() time.Time
}

var _ parser.Parser = (*Parser)(nil)

func NewParser(runner MethodRunner, conv Converter) *Parser {
	return &Parser{runner: runner, conv: conv, now: time.Now}
}

// WithClock overrides the clock used to bucket trading stats.
func (p *Parser) WithClock(now func() time.Time) *Parser {
	p.now = now
	return p
}

func (p *Parser) Name() string { return string(domain.ProtocolStonfiV1) }

func (p *Parser) BelongsTo(_ *parser.Context, in *decoder.Input) bool {
	return in.OpCode == SwapOpCode
}

// Parse books a swap on the destination pool. The first swap seen on a pool
// also resolves its assets and emits PoolCreated.
func (p *Parser) Parse(ctx context.Context, pc *parser.Context, in *decoder.Input) ([]domain.Record, error) {
	if in.Tx.InMsg == nil || in.Tx.InMsg.Destination == "" {
		return nil, errors.New("swap without destination")
	}
	pool := in.Tx.InMsg.Destination
	known := pc.Known(domain.ProtocolStonfiV1)

	var records []domain.Record
	if !known.Contains(pool) {
		first, second, err := p.poolAssets(ctx, pool)
		if err != nil {
			return nil, err
		}
		extra, err := json.Marshal(domain.NewPoolFieldsDex(first, second))
		if err != nil {
			return nil, fmt.Errorf("marshal pool fields: %w", err)
		}
		records = append(records, domain.PoolCreated{Pool: domain.LiquidityPool{
			Protocol:            domain.ProtocolStonfiV1,
			PoolAddress:         pool,
			ValidFromUtcSeconds: 0,
			ValidTillUtcSeconds: domain.MaxValidTill,
			ExtraData:           string(extra),
		}})
		known.Add(pool)
	}

	records = append(records, domain.TradingStatUpdated{Stat: domain.PoolStatsTradingVolume{
		Protocol:         domain.ProtocolStonfiV1,
		PoolAddress:      pool,
		TradingDate:      domain.TradingDate(p.now()),
		UsdVolumeAmount:  p.conv.UsdAmount("", swapVolume),
		InteractionCount: 1,
	}})
	return records, nil
}

// poolAssets returns the jetton masters of both pool tokens.
func (p *Parser) poolAssets(ctx context.Context, pool string) (string, string, error) {
	res, err := p.runner.RunGetMethod(ctx, pool, "get_pool_data")
	if err != nil {
		return "", "", fmt.Errorf("get pool data for %s: %w", pool, err)
	}

	var masters [2]string
	for i, idx := range []int{2, 3} {
		wallet, err := stackAddress(res, idx)
		if err != nil {
			return "", "", fmt.Errorf("pool %s token %d wallet: %w", pool, i, err)
		}
		masters[i], err = p.jettonMaster(ctx, wallet)
		if err != nil {
			return "", "", err
		}
	}
	return masters[0], masters[1], nil
}

func (p *Parser) jettonMaster(ctx context.Context, wallet *address.Address) (string, error) {
	res, err := p.runner.RunGetMethod(ctx, wallet.String(), "get_wallet_data")
	if err != nil {
		return "", fmt.Errorf("get wallet data for %s: %w", wallet, err)
	}
	master, err := stackAddress(res, 2)
	if err != nil {
		return "", fmt.Errorf("wallet %s master: %w", wallet, err)
	}
	return RawAddress(master), nil
}

// RawAddress renders a in the raw workchain:hex form.
func RawAddress(a *address.Address) string {
	return fmt.Sprintf("%d:%x", a.Workchain(), a.Data())
}

func stackAddress(res *chain.ExecutionResult, i int) (*address.Address, error) {
	s, err := res.Slice(i)
	if err != nil {
		return nil, err
	}
	return s.LoadAddr()
}
