package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/curate/internal/storage"
)

// Progress is weekly throughput against a target.
type Progress struct {
	Completed int `json:"completed"`
	Target    int `json:"target"`
}

// Met reports whether the target has been reached.
func (p Progress) Met() bool {
	return p.Completed >= p.Target
}

// SourceProgress is the weekly progress for one quota source.
type SourceProgress struct {
	SourceID   int64  `json:"source_id"`
	SourceName string `json:"source_name"`
	Progress
}

// Summary aggregates a reviewer's weekly progress over every quota source of
// a mode.
type Summary struct {
	Mode      storage.Mode     `json:"mode"`
	WeekStart time.Time        `json:"week_start"`
	Sources   []SourceProgress `json:"sources"`
	Progress
}

// WeeklyProgress returns completed/target for one source in the current week.
// The target is zero when the reviewer has no quota for the source.
func (e *Engine) WeeklyProgress(ctx context.Context, reviewerID string, mode storage.Mode, sourceID int64) (Progress, error) {
	if reviewerID == "" {
		return Progress{}, ErrUnauthorized
	}
	if !mode.Valid() {
		return Progress{}, &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", mode)}
	}

	var p Progress
	q, err := e.store.GetQuota(ctx, reviewerID, mode, sourceID)
	switch {
	case err == nil:
		p.Target = q.WeeklyTarget
	case errors.Is(err, storage.ErrNotFound):
	default:
		return Progress{}, storeError("reading quota", err)
	}

	if p.Completed, err = e.store.CountCompleted(ctx, reviewerID, mode, sourceID, e.WeekStart()); err != nil {
		return Progress{}, storeError("counting progress", err)
	}
	return p, nil
}

// WeeklySummary returns per-source progress for every quota of the mode and
// the totals across them. Sources are ordered by ascending ID.
func (e *Engine) WeeklySummary(ctx context.Context, reviewerID string, mode storage.Mode) (Summary, error) {
	if reviewerID == "" {
		return Summary{}, ErrUnauthorized
	}
	if !mode.Valid() {
		return Summary{}, &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", mode)}
	}

	s := Summary{Mode: mode, WeekStart: e.WeekStart(), Sources: []SourceProgress{}}
	quotas, err := e.store.ListQuotas(ctx, reviewerID, mode)
	if err != nil {
		return Summary{}, storeError("listing quotas", err)
	}
	for _, q := range quotas {
		done, err := e.store.CountCompleted(ctx, reviewerID, mode, q.SourceID, s.WeekStart)
		if err != nil {
			return Summary{}, storeError("counting progress", err)
		}
		sp := SourceProgress{
			SourceID:   q.SourceID,
			SourceName: q.SourceName,
			Progress:   Progress{Completed: done, Target: q.WeeklyTarget},
		}
		s.Sources = append(s.Sources, sp)
		s.Completed += done
		s.Target += q.WeeklyTarget
	}
	return s, nil
}
