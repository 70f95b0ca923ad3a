// Package worker holds background jobs that run beside the indexer.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vietddude/poolwatch/internal/core/domain"
)

// StatsDeleter removes trading stat rows before a trading date.
type StatsDeleter interface {
	DeleteStatsOlderThan(ctx context.Context, tradingDate int64) (int64, error)
}

// Pruner deletes old trading stats based on retention policy.
type Pruner struct {
	repo     StatsDeleter
	period   time.Duration
	schedule string
	timeout  time.Duration
	now      func() time.Time
	cron     *cron.Cron
	log      *slog.Logger
}

// NewPruner creates a new Pruner worker. A zero period disables it.
func NewPruner(repo StatsDeleter, period time.Duration, schedule string) *Pruner {
	return &Pruner{
		repo:     repo,
		period:   period,
		schedule: schedule,
		timeout:  time.Minute,
		now:      time.Now,
		log:      slog.Default().With("component", "pruner"),
	}
}

// Start schedules pruning and runs it once immediately.
func (p *Pruner) Start(ctx context.Context) error {
	if p.period <= 0 {
		p.log.Info("Retention disabled, stats are kept forever")
		return nil
	}

	logger := cronLogger{p.log}
	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	p.cron = cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(logger)))

	run := func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		if _, err := p.Prune(rctx); err != nil {
			p.log.Error("Failed to prune trading stats", "error", err)
		}
	}
	if _, err := p.cron.AddFunc(p.schedule, run); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", p.schedule, err)
	}

	run()
	p.cron.Start()
	p.log.Info("Pruner started", "retention", p.period, "schedule", p.schedule)
	return nil
}

// Stop waits for a running prune to finish.
func (p *Pruner) Stop() {
	if p.cron == nil {
		return
	}
	<-p.cron.Stop().Done()
}

// Prune deletes stats older than the retention period.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	cutoff := domain.TradingDate(p.now().Add(-p.period))
	n, err := p.repo.DeleteStatsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stats before %d: %w", cutoff, err)
	}
	if n > 0 {
		p.log.Info("Pruned trading stats", "rows", n, "before", cutoff)
	}
	return n, nil
}

// cronLogger routes cron's logs to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
