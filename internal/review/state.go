package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/curate/internal/storage"
)

// ReactionInput is a reviewer's verdict on an article. Mode is the workflow
// the reaction was given from; a reaction from classifying mode confirms the
// article for classification.
type ReactionInput struct {
	ReviewerID string
	ArticleID  int64
	Reaction   storage.Reaction
	Mode       storage.Mode
}

// ClassificationPolicy is a caller-owned rule over the submitted tags, such
// as which families are required. It is consulted only once the pair is
// known to be classifiable, and never inside a store transaction.
type ClassificationPolicy func(ctx context.Context, ids, extras []string) error

// ClassificationInput assigns catalog tags, plus optional free-text extras,
// to a liked article.
type ClassificationInput struct {
	ReviewerID string
	ArticleID  int64
	TagIDs     []string
	Extras     []string
	Policy     ClassificationPolicy
}

// ApplyReaction records the reaction for the pair, creating its state on
// first contact, and clears the pair's pending exposures in the same
// transaction. Resubmitting overwrites the previous reaction.
func (e *Engine) ApplyReaction(ctx context.Context, in ReactionInput) (storage.ReviewState, error) {
	if in.ReviewerID == "" {
		return storage.ReviewState{}, ErrUnauthorized
	}
	switch in.Reaction {
	case storage.ReactionLike, storage.ReactionDislike, storage.ReactionUnsure:
	default:
		return storage.ReviewState{}, &ValidationError{Field: "reaction", Reason: fmt.Sprintf("unsupported reaction %d", in.Reaction)}
	}
	if in.Mode == "" {
		in.Mode = storage.ModeCleaning
	}
	if !in.Mode.Valid() {
		return storage.ReviewState{}, &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", in.Mode)}
	}

	var out storage.ReviewState
	err := e.store.WithTx(ctx, func(tx *storage.Tx) error {
		st, err := e.loadState(ctx, tx, in.ReviewerID, in.ArticleID)
		if err != nil {
			return err
		}

		now := e.now()
		st.Reaction = in.Reaction
		st.ReactedAt = &now
		st.UpdatedAt = now
		if in.Mode == storage.ModeClassifying {
			st.ClassifyConfirmedAt = &now
		}
		if err := tx.SaveReviewState(ctx, st); err != nil {
			return err
		}
		if _, err := tx.ClearExposures(ctx, in.ReviewerID, in.ArticleID); err != nil {
			return err
		}
		out = st
		return nil
	})
	if err != nil {
		return storage.ReviewState{}, storeError("applying reaction", err)
	}

	e.logger.Debug("reaction applied", "reviewer", in.ReviewerID, "article_id", in.ArticleID, "reaction", in.Reaction.String(), "mode", in.Mode)
	return out, nil
}

// ApplyClassification stores the tags for a liked, unclassified article.
// Resubmitting the identical tag set succeeds without changes; a different
// set for an already classified article is an invalid state. The pair's
// state is checked before tag ids and in.Policy, so an article that cannot
// be classified reports ErrInvalidState whatever the tags are.
func (e *Engine) ApplyClassification(ctx context.Context, in ClassificationInput) (storage.ReviewState, error) {
	if in.ReviewerID == "" {
		return storage.ReviewState{}, ErrUnauthorized
	}

	ids := sortedClean(in.TagIDs)
	extras := sortedClean(in.Extras)
	if len(ids)+len(extras) == 0 {
		return storage.ReviewState{}, &ValidationError{Field: "tag_ids", Reason: "at least one tag is required"}
	}
	for _, x := range extras {
		if strings.Contains(x, ",") {
			return storage.ReviewState{}, &ValidationError{Field: "extras", Reason: fmt.Sprintf("%q must not contain commas", x)}
		}
	}
	encoded := EncodeTags(ids, extras)

	current, err := e.store.GetReviewState(ctx, in.ReviewerID, in.ArticleID)
	done, err := classifiable(current, err, in.ArticleID, encoded)
	if err != nil {
		return storage.ReviewState{}, storeError("applying classification", err)
	}
	if done {
		return current, nil
	}

	if e.tags != nil && len(ids) > 0 {
		unknown, err := e.tags.Unknown(ctx, ids)
		if err != nil {
			return storage.ReviewState{}, storeError("validating tags", err)
		}
		if len(unknown) > 0 {
			return storage.ReviewState{}, &ValidationError{Field: "tag_ids", Unknown: unknown}
		}
	}
	if in.Policy != nil {
		if err := in.Policy(ctx, ids, extras); err != nil {
			return storage.ReviewState{}, err
		}
	}

	var out storage.ReviewState
	err = e.store.WithTx(ctx, func(tx *storage.Tx) error {
		st, err := tx.ReviewState(ctx, in.ReviewerID, in.ArticleID)
		done, err := classifiable(st, err, in.ArticleID, encoded)
		if err != nil || done {
			out = st
			return err
		}

		now := e.now()
		st.ClassificationTags = &encoded
		st.ClassifiedAt = &now
		st.UpdatedAt = now
		if err := tx.SaveReviewState(ctx, st); err != nil {
			return err
		}
		out = st
		return nil
	})
	if err != nil {
		return storage.ReviewState{}, storeError("applying classification", err)
	}

	e.logger.Debug("classification applied", "reviewer", in.ReviewerID, "article_id", in.ArticleID, "tags", encoded)
	return out, nil
}

// AppendNote adds a note to the pair's log. Earlier notes are kept.
func (e *Engine) AppendNote(ctx context.Context, reviewerID string, articleID int64, text string) (storage.Note, error) {
	if reviewerID == "" {
		return storage.Note{}, ErrUnauthorized
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return storage.Note{}, &ValidationError{Field: "text", Reason: "note is empty"}
	}

	var note storage.Note
	err := e.store.WithTx(ctx, func(tx *storage.Tx) error {
		if _, err := tx.GetArticle(ctx, articleID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%w: %d", ErrUnknownArticle, articleID)
			}
			return err
		}
		n, err := tx.AppendNote(ctx, storage.Note{ReviewerID: reviewerID, ArticleID: articleID, Body: text, CreatedAt: e.now()})
		if err != nil {
			return err
		}
		note = n
		return nil
	})
	if err != nil {
		return storage.Note{}, storeError("appending note", err)
	}
	return note, nil
}

// Notes returns the pair's notes oldest first.
func (e *Engine) Notes(ctx context.Context, reviewerID string, articleID int64) ([]storage.Note, error) {
	if reviewerID == "" {
		return nil, ErrUnauthorized
	}
	notes, err := e.store.ListNotes(ctx, reviewerID, articleID)
	if err != nil {
		return nil, storeError("listing notes", err)
	}
	return notes, nil
}

// classifiable checks that st, as read with err, may take the encoded tags.
// done is set when st already carries exactly those tags.
func classifiable(st storage.ReviewState, err error, articleID int64, encoded string) (done bool, _ error) {
	if errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("%w: article %d has no reaction", ErrInvalidState, articleID)
	}
	if err != nil {
		return false, err
	}
	if st.Reaction != storage.ReactionLike {
		return false, fmt.Errorf("%w: article %d is %s, not liked", ErrInvalidState, articleID, st.Reaction)
	}
	if st.ClassificationTags != nil {
		if *st.ClassificationTags == encoded {
			return true, nil
		}
		return false, fmt.Errorf("%w: article %d is already classified", ErrInvalidState, articleID)
	}
	return false, nil
}

// loadState returns the pair's state, or a fresh one when the reviewer has
// never touched the article. The article must exist.
func (e *Engine) loadState(ctx context.Context, tx *storage.Tx, reviewerID string, articleID int64) (storage.ReviewState, error) {
	st, err := tx.ReviewState(ctx, reviewerID, articleID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.ReviewState{}, err
	}
	if _, err := tx.GetArticle(ctx, articleID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.ReviewState{}, fmt.Errorf("%w: %d", ErrUnknownArticle, articleID)
		}
		return storage.ReviewState{}, err
	}
	return storage.ReviewState{ReviewerID: reviewerID, ArticleID: articleID, CreatedAt: e.now()}, nil
}
