// Package parser turns decoded transactions into domain records.
package parser

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/indexing/decoder"
	"github.com/vietddude/poolwatch/internal/indexing/metrics"
)

// Parser recognises the transactions of one protocol.
type Parser interface {
	Name() string
	// BelongsTo reports whether the parser handles in. It must not do I/O.
	BelongsTo(pc *Context, in *decoder.Input) bool
	Parse(ctx context.Context, pc *Context, in *decoder.Input) ([]domain.Record, error)
}

// Registry holds parsers in registration order.
type Registry struct {
	parsers []Parser
	log     *slog.Logger
}

func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{
		parsers: parsers,
		log:     slog.Default().With("component", "parser"),
	}
}

// Register appends a parser. Registration happens before the loop starts.
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
}

func (r *Registry) Parsers() []Parser {
	return r.parsers
}

// Dispatch runs every matching parser on every input. A parser that fails
// or panics contributes no records for that input; processing continues.
func (r *Registry) Dispatch(ctx context.Context, pc *Context, inputs []*decoder.Input) ([]domain.Record, error) {
	var records []domain.Record
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, p := range r.parsers {
			out, matched, err := r.safeParse(ctx, p, pc, in.Clone())
			if !matched {
				continue
			}
			if err != nil {
				// cancellation is not a parser fault
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				metrics.ParserErrorsTotal.WithLabelValues(p.Name()).Inc()
				r.log.Error("Parser failed",
					"parser", p.Name(),
					"tx", in.Tx.ID(),
					"account", in.Tx.Account,
					"op", fmt.Sprintf("0x%08x", in.OpCode),
					"error", err,
				)
				continue
			}
			for _, rec := range out {
				metrics.RecordsProduced.WithLabelValues(string(rec.Tag())).Inc()
			}
			records = append(records, out...)
		}
	}
	return records, nil
}

// safeParse runs the match check and Parse of p on its own copy of in. A
// panic in either is returned as an error of a matched parser.
func (r *Registry) safeParse(
	ctx context.Context,
	p Parser,
	pc *Context,
	in *decoder.Input,
) (records []domain.Record, matched bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Debug("Parser panic", "parser", p.Name(), "stack", string(debug.Stack()))
			records, matched, err = nil, true, fmt.Errorf("panic: %v", rec)
		}
	}()
	if !p.BelongsTo(pc, in) {
		return nil, false, nil
	}
	records, err = p.Parse(ctx, pc, in)
	return records, true, err
}
