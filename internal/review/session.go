package review

import (
	"context"
	"errors"
	"time"

	"github.com/kalambet/curate/internal/storage"
)

// SourceRef is the source a reviewer is currently drawing from.
type SourceRef struct {
	SourceID     int64  `json:"source_id"`
	SourceName   string `json:"source_name"`
	WeeklyTarget int    `json:"weekly_target"`
	Completed    int    `json:"completed"`
}

// ActiveSource picks the reviewer's quota source for mode whose weekly
// progress is still below target, preferring the lowest source ID. It returns
// nil, nil when the reviewer has no quotas or every quota is met.
func (e *Engine) ActiveSource(ctx context.Context, reviewerID string, mode storage.Mode) (*SourceRef, error) {
	summary, err := e.WeeklySummary(ctx, reviewerID, mode)
	if err != nil {
		return nil, err
	}
	for _, sp := range summary.Sources {
		if !sp.Met() {
			return &SourceRef{
				SourceID:     sp.SourceID,
				SourceName:   sp.SourceName,
				WeeklyTarget: sp.Target,
				Completed:    sp.Completed,
			}, nil
		}
	}
	return nil, nil
}

// Next is the result of GetNextArticle.
type Next struct {
	Source SourceRef
	Draw
}

// GetNextArticle selects the active source and draws from it. It returns
// nil, nil when there is nothing to review: no quota is open, or the open
// source's queue is exhausted.
func (e *Engine) GetNextArticle(ctx context.Context, reviewerID string, mode storage.Mode) (*Next, error) {
	defer e.metrics.ObserveSince("next_article", time.Now())

	src, err := e.ActiveSource(ctx, reviewerID, mode)
	if err != nil {
		e.metrics.RecordDraw(string(mode), "error")
		return nil, err
	}
	if src == nil {
		e.metrics.RecordDraw(string(mode), "idle")
		return nil, nil
	}

	d, err := e.NextArticle(ctx, reviewerID, mode, src.SourceID)
	if err != nil {
		e.metrics.RecordDraw(string(mode), "error")
		if IsRetryable(err) {
			e.logger.Warn("draw failed", "reviewer", reviewerID, "mode", mode, "error", err)
		}
		return nil, err
	}
	if d == nil {
		e.metrics.RecordDraw(string(mode), "exhausted")
		return nil, nil
	}
	e.metrics.RecordDraw(string(mode), "served")
	return &Next{Source: *src, Draw: *d}, nil
}

// SubmitReaction applies a reaction and records the outcome.
func (e *Engine) SubmitReaction(ctx context.Context, in ReactionInput) (storage.ReviewState, error) {
	defer e.metrics.ObserveSince("submit_reaction", time.Now())
	st, err := e.ApplyReaction(ctx, in)
	e.recordSubmission("reaction", err)
	return st, err
}

// SubmitClassification applies a classification and records the outcome.
func (e *Engine) SubmitClassification(ctx context.Context, in ClassificationInput) (storage.ReviewState, error) {
	defer e.metrics.ObserveSince("submit_classification", time.Now())
	st, err := e.ApplyClassification(ctx, in)
	e.recordSubmission("classification", err)
	return st, err
}

// SubmitNote appends a note and records the outcome.
func (e *Engine) SubmitNote(ctx context.Context, reviewerID string, articleID int64, text string) (storage.Note, error) {
	defer e.metrics.ObserveSince("submit_note", time.Now())
	n, err := e.AppendNote(ctx, reviewerID, articleID, text)
	e.recordSubmission("note", err)
	return n, err
}

// GetWeeklyProgress returns the reviewer's weekly totals across all quota
// sources of the mode, with the per-source breakdown.
func (e *Engine) GetWeeklyProgress(ctx context.Context, reviewerID string, mode storage.Mode) (Summary, error) {
	return e.WeeklySummary(ctx, reviewerID, mode)
}

func (e *Engine) recordSubmission(kind string, err error) {
	e.metrics.RecordSubmission(kind, outcome(err))
	if IsRetryable(err) {
		e.logger.Warn("submission failed", "kind", kind, "error", err)
	}
}

func outcome(err error) string {
	var v *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.As(err, &v):
		return "validation"
	case IsRetryable(err):
		return "retryable"
	}
	return "error"
}
