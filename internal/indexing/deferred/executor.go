package deferred

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/poolwatch/internal/indexing/metrics"
)

// ExecError reports the action that stopped a run.
type ExecError struct {
	Index       int
	Action      string
	Err         error
	RollbackErr error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("action %d (%s) failed: %v", e.Index, e.Action, e.Err)
	if e.RollbackErr != nil {
		msg += fmt.Sprintf("; rollback: %v", e.RollbackErr)
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

// Executor runs actions sequentially.
type Executor struct {
	log *slog.Logger
}

func NewExecutor() *Executor {
	return &Executor{log: slog.Default().With("component", "executor")}
}

// Run executes actions in order. On the first failure it rolls back the
// already executed actions in reverse order and returns an *ExecError.
// Rollback failures are logged and joined into the error, never retried.
func (e *Executor) Run(ctx context.Context, actions []Action) error {
	for i, action := range actions {
		if err := ctx.Err(); err != nil {
			return e.abort(ctx, actions[:i], i, "<cancelled>", err)
		}
		if err := action.Execute(ctx); err != nil {
			metrics.ActionsExecuted.WithLabelValues("failed").Inc()
			return e.abort(ctx, actions[:i], i, name(action), err)
		}
		metrics.ActionsExecuted.WithLabelValues("ok").Inc()
	}
	return nil
}

func (e *Executor) abort(ctx context.Context, done []Action, index int, actionName string, cause error) error {
	// rollbacks must run even when ctx was cancelled
	rbCtx := context.WithoutCancel(ctx)

	var rbErrs []error
	for i := len(done) - 1; i >= 0; i-- {
		if err := done[i].Rollback(rbCtx); err != nil {
			e.log.Warn("Rollback failed", "index", i, "action", name(done[i]), "error", err)
			metrics.ActionsExecuted.WithLabelValues("rollback_failed").Inc()
			rbErrs = append(rbErrs, fmt.Errorf("action %d: %w", i, err))
			continue
		}
		metrics.ActionsExecuted.WithLabelValues("rolled_back").Inc()
	}

	return &ExecError{
		Index:       index,
		Action:      actionName,
		Err:         cause,
		RollbackErr: errors.Join(rbErrs...),
	}
}

func name(a Action) string {
	if s, ok := a.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", a)
}
