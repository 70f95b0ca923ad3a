// Package handler turns grouped records into deferred storage actions.
package handler

import (
	"fmt"
	"log/slog"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/indexing/deferred"
	"github.com/vietddude/poolwatch/internal/indexing/metrics"
)

// Handler builds actions for every record of one tag. It must not perform
// side effects itself.
type Handler interface {
	Tag() domain.RecordTag
	Handle(records []domain.Record) ([]deferred.Action, error)
}

// Unhandled reports records whose tag has no handler.
type Unhandled struct {
	Tag   domain.RecordTag
	Count int
}

// Routing is the outcome of routing one block's records.
type Routing struct {
	Actions   []deferred.Action
	Unhandled []Unhandled
}

// Registry maps record tags to handlers.
type Registry struct {
	handlers map[domain.RecordTag][]Handler
	log      *slog.Logger
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{
		handlers: make(map[domain.RecordTag][]Handler),
		log:      slog.Default().With("component", "handler"),
	}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Register adds h after any handler already registered for its tag.
func (r *Registry) Register(h Handler) {
	r.handlers[h.Tag()] = append(r.handlers[h.Tag()], h)
}

// Route groups records by tag in first-occurrence order and collects the
// actions of every handler of each group, in registration order.
func (r *Registry) Route(records []domain.Record) (*Routing, error) {
	var order []domain.RecordTag
	groups := make(map[domain.RecordTag][]domain.Record)
	for _, rec := range records {
		tag := rec.Tag()
		if _, ok := groups[tag]; !ok {
			order = append(order, tag)
		}
		groups[tag] = append(groups[tag], rec)
	}

	routing := &Routing{}
	for _, tag := range order {
		group := groups[tag]
		handlers := r.handlers[tag]
		if len(handlers) == 0 {
			metrics.UnhandledRecordsTotal.WithLabelValues(string(tag)).Add(float64(len(group)))
			r.log.Warn("No handler for records", "tag", tag, "count", len(group))
			routing.Unhandled = append(routing.Unhandled, Unhandled{Tag: tag, Count: len(group)})
			continue
		}
		for _, h := range handlers {
			actions, err := h.Handle(group)
			if err != nil {
				return nil, fmt.Errorf("handler for %s failed: %w", tag, err)
			}
			routing.Actions = append(routing.Actions, actions...)
		}
	}
	return routing, nil
}

// records casts a group to its concrete variant.
func records[T domain.Record](group []domain.Record) ([]T, error) {
	out := make([]T, 0, len(group))
	for _, rec := range group {
		v, ok := rec.(T)
		if !ok {
			var want T
			return nil, fmt.Errorf("unexpected record %T, want %T", rec, want)
		}
		out = append(out, v)
	}
	return out, nil
}
