// Package review decides what a reviewer sees next and records what they did
// with it.
//
// A session loops: ActiveSource picks the quota source still below its weekly
// target, NextArticle draws an unreviewed article from it, and the reviewer's
// reaction, classification or note is applied through the state machine.
package review

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/kalambet/curate/internal/metrics"
	"github.com/kalambet/curate/internal/storage"
)

// Store defines the persistence operations the Engine needs.
// Implemented by storage.Store.
type Store interface {
	WithTx(ctx context.Context, fn func(tx *storage.Tx) error) error
	GetSource(ctx context.Context, id int64) (storage.Source, error)
	GetQuota(ctx context.Context, reviewerID string, mode storage.Mode, sourceID int64) (storage.Quota, error)
	ListQuotas(ctx context.Context, reviewerID string, mode storage.Mode) ([]storage.Quota, error)
	CountCompleted(ctx context.Context, reviewerID string, mode storage.Mode, sourceID int64, since time.Time) (int, error)
	ListNotes(ctx context.Context, reviewerID string, articleID int64) ([]storage.Note, error)
	GetReviewState(ctx context.Context, reviewerID string, articleID int64) (storage.ReviewState, error)
}

// TagValidator reports which tag ids are not in the catalog.
// Implemented by taxonomy.Catalog.
type TagValidator interface {
	Unknown(ctx context.Context, ids []string) ([]string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// AnchorFunc picks the scan start for a draw, uniformly in [lo, hi].
type AnchorFunc func(lo, hi int64) int64

func uniformAnchor(lo, hi int64) int64 {
	return lo + rand.Int64N(hi-lo+1)
}

// Engine implements the review queue and training-state operations.
type Engine struct {
	store   Store
	tags    TagValidator
	clock   Clock
	anchor  AnchorFunc
	week    WeekPolicy
	wrap    bool
	logger  *slog.Logger
	metrics *metrics.Metrics
	newID   func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

// WithAnchor overrides the random scan anchor.
func WithAnchor(f AnchorFunc) Option { return func(e *Engine) { e.anchor = f } }

// WithWeekPolicy sets the progress week boundary.
func WithWeekPolicy(p WeekPolicy) Option { return func(e *Engine) { e.week = p } }

// WithWrapScan makes a draw that runs off the end of the ID range continue
// once from the smallest ID. Off by default: a draw past the last candidate
// reports no work even if lower IDs remain.
func WithWrapScan(wrap bool) Option { return func(e *Engine) { e.wrap = wrap } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithIDGenerator overrides exposure id generation.
func WithIDGenerator(f func() string) Option { return func(e *Engine) { e.newID = f } }

// New creates an Engine. tags may be nil, in which case every tag id is accepted.
func New(store Store, tags TagValidator, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		tags:   tags,
		clock:  realClock{},
		anchor: uniformAnchor,
		week:   DefaultWeekPolicy(),
		logger: slog.Default(),
		newID:  newExposureID,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "review")
	return e
}

// WeekStart returns the start of the current progress week.
func (e *Engine) WeekStart() time.Time {
	return e.week.StartOf(e.clock.Now())
}

func (e *Engine) now() time.Time {
	return e.clock.Now().UTC()
}
