package parser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/indexing/metrics"
)

// PoolLister loads the pools already known to storage.
type PoolLister interface {
	SelectLiquidityPoolsByProtocols(ctx context.Context, protocols []domain.Protocol) ([]*domain.LiquidityPool, error)
}

// Context is the mutable state shared by parsers across transactions.
// It is owned by the orchestration loop and is not safe for concurrent use.
type Context struct {
	known   map[domain.Protocol]map[string]struct{}
	pending []pendingAdd
}

type pendingAdd struct {
	protocol domain.Protocol
	address  string
}

func NewContext() *Context {
	return &Context{known: make(map[domain.Protocol]map[string]struct{})}
}

// Seed loads the known pools of the given protocols from storage.
func (c *Context) Seed(ctx context.Context, repo PoolLister, protocols []domain.Protocol) error {
	pools, err := repo.SelectLiquidityPoolsByProtocols(ctx, protocols)
	if err != nil {
		return fmt.Errorf("failed to load known pools: %w", err)
	}
	for _, p := range pools {
		c.set(p.Protocol)[p.PoolAddress] = struct{}{}
	}
	for _, p := range protocols {
		metrics.KnownPools.WithLabelValues(string(p)).Set(float64(len(c.set(p))))
	}
	slog.Info("Parse context seeded", "protocols", protocols, "pools", len(pools))
	return nil
}

// Known returns the known-address set of a protocol.
func (c *Context) Known(protocol domain.Protocol) KnownSet {
	return KnownSet{ctx: c, protocol: protocol}
}

// Commit keeps the additions made since the last Commit or Rollback.
func (c *Context) Commit() {
	touched := make(map[domain.Protocol]struct{})
	for _, p := range c.pending {
		touched[p.protocol] = struct{}{}
	}
	for p := range touched {
		metrics.KnownPools.WithLabelValues(string(p)).Set(float64(len(c.set(p))))
	}
	c.pending = c.pending[:0]
}

// Rollback forgets the additions made since the last Commit or Rollback.
func (c *Context) Rollback() {
	for i := len(c.pending) - 1; i >= 0; i-- {
		p := c.pending[i]
		delete(c.set(p.protocol), p.address)
	}
	c.pending = c.pending[:0]
}

// Pending returns the number of uncommitted additions.
func (c *Context) Pending() int {
	return len(c.pending)
}

func (c *Context) set(protocol domain.Protocol) map[string]struct{} {
	s, ok := c.known[protocol]
	if !ok {
		s = make(map[string]struct{})
		c.known[protocol] = s
	}
	return s
}

// KnownSet is a protocol-scoped view over the parse context.
type KnownSet struct {
	ctx      *Context
	protocol domain.Protocol
}

func (k KnownSet) Contains(address string) bool {
	_, ok := k.ctx.known[k.protocol][address]
	return ok
}

// Add inserts address and reports whether it was new.
func (k KnownSet) Add(address string) bool {
	s := k.ctx.set(k.protocol)
	if _, ok := s[address]; ok {
		return false
	}
	s[address] = struct{}{}
	k.ctx.pending = append(k.ctx.pending, pendingAdd{protocol: k.protocol, address: address})
	return true
}

func (k KnownSet) Len() int {
	return len(k.ctx.known[k.protocol])
}
