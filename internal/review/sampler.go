package review

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kalambet/curate/internal/storage"
)

// Draw is an article handed to a reviewer.
type Draw struct {
	Article  storage.Article
	SourceID int64
	Mode     storage.Mode
	// IsNeverClassified is set in classifying mode when the reviewer has not
	// yet re-confirmed a reaction for this article from the classifying
	// workflow. Callers ask for that reaction before accepting tags.
	IsNeverClassified bool
}

func newExposureID() string {
	return uuid.NewString()
}

// NextArticle draws the next unreviewed article of sourceID for the reviewer.
// It returns nil, nil when the source has nothing left to review.
//
// The draw picks an anchor uniformly in the candidate ID range and takes the
// first candidate at or above it. Candidates that follow a long run of
// reviewed IDs are therefore picked more often; the bias is accepted.
func (e *Engine) NextArticle(ctx context.Context, reviewerID string, mode storage.Mode, sourceID int64) (*Draw, error) {
	if reviewerID == "" {
		return nil, ErrUnauthorized
	}
	if !mode.Valid() {
		return nil, &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", mode)}
	}

	q := storage.CandidateQuery{ReviewerID: reviewerID, Mode: mode, SourceID: sourceID}
	var draw *Draw
	err := e.store.WithTx(ctx, func(tx *storage.Tx) error {
		lo, hi, ok, err := tx.CandidateRange(ctx, q)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		anchor := e.anchor(lo, hi)
		anchor = max(lo, min(anchor, hi))

		a, found, err := tx.FirstCandidate(ctx, q, anchor, 0)
		if err != nil {
			return err
		}
		if !found && e.wrap && anchor > lo {
			if a, found, err = tx.FirstCandidate(ctx, q, lo, anchor); err != nil {
				return err
			}
		}
		if !found {
			return nil
		}

		d := &Draw{Article: a, SourceID: sourceID, Mode: mode}
		switch mode {
		case storage.ModeCleaning:
			if err := tx.RecordExposure(ctx, storage.Exposure{
				ID:         e.newID(),
				ReviewerID: reviewerID,
				ArticleID:  a.ID,
				Mode:       mode,
				ShownAt:    e.now(),
			}); err != nil {
				return err
			}
		case storage.ModeClassifying:
			st, err := tx.ReviewState(ctx, reviewerID, a.ID)
			if err != nil {
				return fmt.Errorf("reading state of article %d: %w", a.ID, err)
			}
			d.IsNeverClassified = st.ClassifyConfirmedAt == nil
		}
		draw = d
		return nil
	})
	if err != nil {
		return nil, storeError("drawing article", err)
	}

	if draw == nil {
		e.logger.Debug("queue exhausted", "reviewer", reviewerID, "mode", mode, "source_id", sourceID)
	}
	return draw, nil
}
