// Package deferred applies side effects produced by handlers in a fixed order.
package deferred

import "context"

// Action is a side effect queued while processing a block.
type Action interface {
	Execute(ctx context.Context) error
	// Rollback undoes Execute. Called best effort when a later action fails.
	Rollback(ctx context.Context) error
}

type funcAction struct {
	name     string
	exec     func(ctx context.Context) error
	rollback func(ctx context.Context) error
}

func (a *funcAction) Execute(ctx context.Context) error { return a.exec(ctx) }

func (a *funcAction) Rollback(ctx context.Context) error {
	if a.rollback == nil {
		return nil
	}
	return a.rollback(ctx)
}

func (a *funcAction) String() string { return a.name }

// Func builds an action without a rollback.
func Func(name string, exec func(ctx context.Context) error) Action {
	return &funcAction{name: name, exec: exec}
}

// WithRollback builds an action with a compensating rollback.
func WithRollback(name string, exec, rollback func(ctx context.Context) error) Action {
	return &funcAction{name: name, exec: exec, rollback: rollback}
}
