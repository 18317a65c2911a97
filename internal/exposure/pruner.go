// Package exposure removes stale draw records. Exposures are written each
// time an article is served for cleaning and cleared when the reviewer
// reacts; rows left behind by abandoned sessions are pruned here.
package exposure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kalambet/curate/internal/metrics"
)

// Store abstracts the exposure cleanup operation.
type Store interface {
	PruneExposures(ctx context.Context, before time.Time) (int64, error)
}

// Pruner deletes exposures older than the retention window on a cron schedule.
type Pruner struct {
	store     Store
	schedule  string
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Pruner.
type Option func(*Pruner)

func WithLogger(l *slog.Logger) Option { return func(p *Pruner) { p.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(p *Pruner) { p.metrics = m } }

func WithClock(now func() time.Time) Option { return func(p *Pruner) { p.now = now } }

// NewPruner creates a Pruner. schedule accepts standard five-field cron
// expressions and descriptors such as "@daily". If retention is <= 0, it
// defaults to 30 days.
func NewPruner(store Store, schedule string, retention time.Duration, opts ...Option) (*Pruner, error) {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if schedule == "" {
		schedule = "@daily"
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	p := &Pruner{
		store:     store,
		schedule:  schedule,
		retention: retention,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// RunOnce deletes every exposure shown before now minus the retention window.
func (p *Pruner) RunOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.store.PruneExposures(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning exposures: %w", err)
	}
	p.metrics.AddPruned(n)
	if n > 0 {
		p.logger.Info("exposures pruned", "count", n, "before", cutoff.Format(time.RFC3339))
	}
	return n, nil
}

// Run schedules RunOnce and blocks until ctx is cancelled. A run still in
// flight when ctx ends is allowed to finish.
func (p *Pruner) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{p.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{p.logger})),
	)
	if _, err := c.AddFunc(p.schedule, func() {
		if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("exposure prune failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("scheduling pruner: %w", err)
	}

	c.Start()
	p.logger.Debug("exposure pruner started", "schedule", p.schedule, "retention", p.retention)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
