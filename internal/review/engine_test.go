package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/curate/internal/storage"
)

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixedTags map[string]bool

func (f fixedTags) Unknown(_ context.Context, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		if !f[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *storage.Store
	clock  *mockClock
	engine *Engine
	anchor int64 // 0 picks lo
}

// Wednesday 2025-01-08 12:00 UTC; the week starts Monday 2025-01-06.
var wednesday = time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	s, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	f := &fixture{t: t, ctx: context.Background(), store: s, clock: &mockClock{now: wednesday}}
	s.SetClock(f.clock.Now)

	tags := fixedTags{"cat-1": true, "cat-2": true, "cty-de": true, "ind-1": true}
	base := []Option{
		WithClock(f.clock),
		WithAnchor(func(lo, hi int64) int64 {
			if f.anchor == 0 {
				return lo
			}
			return f.anchor
		}),
	}
	f.engine = New(s, tags, append(base, opts...)...)
	return f
}

func (f *fixture) source(name string, from, to int64) int64 {
	f.t.Helper()
	id, err := f.store.SaveSource(f.ctx, storage.Source{Name: name})
	require.NoError(f.t, err)
	for i := from; i <= to; i++ {
		_, err := f.store.SaveArticle(f.ctx, storage.Article{ID: i, SourceID: id, Title: fmt.Sprintf("%s-%d", name, i), Valid: true, ClassificationEligible: true})
		require.NoError(f.t, err)
	}
	return id
}

func (f *fixture) quota(reviewer string, mode storage.Mode, source int64, target int) {
	f.t.Helper()
	require.NoError(f.t, f.store.SetQuota(f.ctx, storage.Quota{ReviewerID: reviewer, Mode: mode, SourceID: source, WeeklyTarget: target}))
}

func (f *fixture) react(reviewer string, article int64, r storage.Reaction) {
	f.t.Helper()
	_, err := f.engine.ApplyReaction(f.ctx, ReactionInput{ReviewerID: reviewer, ArticleID: article, Reaction: r})
	require.NoError(f.t, err)
}

func TestNextArticle_ScanFromAnchor(t *testing.T) {
	f := newFixture(t)
	src := f.source("feed", 1, 100)
	for i := int64(1); i <= 50; i++ {
		f.react("r1", i, storage.ReactionDislike)
	}

	for _, anchor := range []int64{1, 10, 50} {
		f.anchor = anchor
		d, err := f.engine.NextArticle(f.ctx, "r1", storage.ModeCleaning, src)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, int64(51), d.Article.ID, "anchor %d", anchor)
	}

	f.anchor = 75
	d, err := f.engine.NextArticle(f.ctx, "r1", storage.ModeCleaning, src)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, int64(75), d.Article.ID)
	assert.False(t, d.IsNeverClassified)
}

func TestNextArticle_RecordsExposure(t *testing.T) {
	f := newFixture(t, WithIDGenerator(func() string { return "exp-1" }))
	src := f.source("feed", 1, 3)

	d, err := f.engine.NextArticle(f.ctx, "r1", storage.ModeCleaning, src)
	require.NoError(t, err)
	require.NotNil(t, d)

	exps, err := f.store.ListExposures(f.ctx, "r1", d.Article.ID)
	require.NoError(t, err)
	require.Len(t, exps, 1)
	assert.Equal(t, "exp-1", exps[0].ID)
	assert.Equal(t, storage.ModeCleaning, exps[0].Mode)
	assert.True(t, exps[0].ShownAt.Equal(wednesday))

	f.react("r1", d.Article.ID, storage.ReactionLike)
	exps, err = f.store.ListExposures(f.ctx, "r1", d.Article.ID)
	require.NoError(t, err)
	assert.Empty(t, exps, "reaction should clear the pair's exposures")
}

func TestNextArticle_NoRepeatExposure(t *testing.T) {
	f := newFixture(t, WithAnchor(uniformAnchor), WithWrapScan(true))
	src := f.source("feed", 1, 40)

	seen := map[int64]bool{}
	for {
		d, err := f.engine.NextArticle(f.ctx, "r1", storage.ModeCleaning, src)
		require.NoError(t, err)
		if d == nil {
			break
		}
		require.False(t, seen[d.Article.ID], "article %d served twice", d.Article.ID)
		seen[d.Article.ID] = true
		f.react("r1", d.Article.ID, storage.ReactionUnsure)
	}
	assert.Len(t, seen, 40)
}

func TestNextArticle_ExhaustionWithoutWrap(t *testing.T) {
	f := newFixture(t)
	src := f.source("feed", 1, 100)
	for i := int64(60); i <= 100; i++ {
		f.react("r1", i, storage.ReactionDislike)
	}

	f.anchor = 70
	d, err := f.engine.NextArticle(f.ctx, "r1", storage.ModeCleaning, src)
	require.NoError(t, err)
	assert.Nil(t, d, "scan past the last candidate reports no work")

	wrapping := New(f.store, nil, WithClock(f.clock), WithAnchor(func(int64, int64) int64 { return 70 }), WithWrapScan(true))
	d, err = wrapping.NextArticle(f.ctx, "r1", storage.ModeCleaning, src)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, int64(1), d.Article.ID)
}

func TestNextArticle_EmptyAndInvalidSources(t *testing.T) {
	f := newFixture(t)
	empty, err := f.store.SaveSource(f.ctx, storage.Source{Name: "empty"})
	require.NoError(t, err)

	d, err := f.engine.NextArticle(f.ctx, "r1", storage.ModeCleaning, empty)
	require.NoError(t, err)
	assert.Nil(t, d)

	src := f.source("feed", 1, 2)
	_, err = f.store.SaveArticle(f.ctx, storage.Article{ID: 2, SourceID: src, Valid: false})
	require.NoError(t, err)
	f.react("r1", 1, storage.ReactionLike)

	d, err = f.engine.NextArticle(f.ctx, "r1", storage.ModeCleaning, src)
	require.NoError(t, err)
	assert.Nil(t, d, "invalid articles are never served")
}

func TestNextArticle_Unauthorized(t *testing.T) {
	f := newFixture(t)
	src := f.source("feed", 1, 2)

	_, err := f.engine.NextArticle(f.ctx, "", storage.ModeCleaning, src)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.engine.GetNextArticle(f.ctx, "", storage.ModeCleaning)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.engine.GetWeeklyProgress(f.ctx, "", storage.ModeCleaning)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClassifying_CandidatesAndNeverClassified(t *testing.T) {
	f := newFixture(t)
	src := f.source("feed", 1, 10)
	f.react("r1", 2, storage.ReactionLike)
	f.react("r1", 4, storage.ReactionDislike)
	f.react("r1", 6, storage.ReactionUnsure)

	d, err := f.engine.NextArticle(f.ctx, "r1", storage.ModeClassifying, src)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, int64(2), d.Article.ID)
	assert.True(t, d.IsNeverClassified)

	_, err = f.engine.ApplyReaction(f.ctx, ReactionInput{ReviewerID: "r1", ArticleID: 2, Reaction: storage.ReactionLike, Mode: storage.ModeClassifying})
	require.NoError(t, err)

	d, err = f.engine.NextArticle(f.ctx, "r1", storage.ModeClassifying, src)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.False(t, d.IsNeverClassified)

	// Another reviewer has no liked articles.
	d, err = f.engine.NextArticle(f.ctx, "r2", storage.ModeClassifying, src)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestClassifying_IneligibleArticlesSkipped(t *testing.T) {
	f := newFixture(t)
	src := f.source("feed", 1, 3)
	_, err := f.store.SaveArticle(f.ctx, storage.Article{ID: 3, SourceID: src, Valid: true, ClassificationEligible: false})
	require.NoError(t, err)
	f.react("r1", 3, storage.ReactionLike)

	d, err := f.engine.NextArticle(f.ctx, "r1", storage.ModeClassifying, src)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestApplyClassification_Gating(t *testing.T) {
	f := newFixture(t)
	src := f.source("feed", 1, 5)
	f.react("r1", 1, storage.ReactionDislike)
	f.react("r1", 2, storage.ReactionLike)

	_, err := f.engine.ApplyClassification(f.ctx, ClassificationInput{ReviewerID: "r1", ArticleID: 1, TagIDs: []string{"cat-1"}})
	assert.ErrorIs(t, err, ErrInvalidState, "disliked article")

	_, err = f.engine.ApplyClassification(f.ctx, ClassificationInput{ReviewerID: "r1", ArticleID: 3, TagIDs: []string{"cat-1"}})
	assert.ErrorIs(t, err, ErrInvalidState, "unreacted article")

	st, err := f.engine.ApplyClassification(f.ctx, ClassificationInput{
		ReviewerID: "r1", ArticleID: 2,
		TagIDs: []string{"cty-de", "cat-2", "cat-1", "cat-2"},
		Extras: []string{"shipping"},
	})
	require.NoError(t, err)
	require.NotNil(t, st.ClassificationTags)
	assert.Equal(t, "cat-1,cat-2,cty-de,shipping", *st.ClassificationTags)

	// Same set in a different order is an idempotent success.
	_, err = f.engine.ApplyClassification(f.ctx, ClassificationInput{
		ReviewerID: "r1", ArticleID: 2,
		TagIDs: []string{"cat-1", "cty-de", "cat-2"},
		Extras: []string{"shipping"},
	})
	assert.NoError(t, err)

	_, err = f.engine.ApplyClassification(f.ctx, ClassificationInput{ReviewerID: "r1", ArticleID: 2, TagIDs: []string{"cat-1"}})
	assert.ErrorIs(t, err, ErrInvalidState, "reclassification with a different set")

	d, err := f.engine.NextArticle(f.ctx, "r1", storage.ModeClassifying, src)
	require.NoError(t, err)
	assert.Nil(t, d, "classified article leaves the pool")
}

func TestApplyClassification_PolicyAfterStateCheck(t *testing.T) {
	f := newFixture(t)
	f.source("feed", 1, 3)
	f.react("r1", 1, storage.ReactionDislike)
	f.react("r1", 2, storage.ReactionLike)

	errMissing := &ValidationError{Field: "tag_ids", Reason: "missing required families"}
	var calls []int64
	policy := func(id int64) ClassificationPolicy {
		return func(_ context.Context, ids, _ []string) error {
			calls = append(calls, id)
			if len(ids) < 2 {
				return errMissing
			}
			return nil
		}
	}
	classify := func(id int64, tags ...string) error {
		_, err := f.engine.ApplyClassification(f.ctx, ClassificationInput{ReviewerID: "r1", ArticleID: id, TagIDs: tags, Policy: policy(id)})
		return err
	}

	assert.ErrorIs(t, classify(1, "cat-1"), ErrInvalidState)
	assert.ErrorIs(t, classify(3, "cat-1"), ErrInvalidState)
	assert.Empty(t, calls, "policy is not consulted for unclassifiable pairs")

	var v *ValidationError
	require.ErrorAs(t, classify(2, "cat-1"), &v)
	assert.Same(t, errMissing, v)

	require.NoError(t, classify(2, "cat-1", "cty-de"))
	assert.Equal(t, []int64{2, 2}, calls)

	// An identical resubmission is settled before the policy runs.
	require.NoError(t, classify(2, "cty-de", "cat-1"))
	assert.Len(t, calls, 2)
}

func TestApplyClassification_Validation(t *testing.T) {
	f := newFixture(t)
	f.source("feed", 1, 1)
	f.react("r1", 1, storage.ReactionLike)

	_, err := f.engine.ApplyClassification(f.ctx, ClassificationInput{ReviewerID: "r1", ArticleID: 1, TagIDs: []string{"cat-1", "bogus"}})
	var v *ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, []string{"bogus"}, v.Unknown)

	_, err = f.engine.ApplyClassification(f.ctx, ClassificationInput{ReviewerID: "r1", ArticleID: 1, TagIDs: []string{" "}})
	require.ErrorAs(t, err, &v)

	_, err = f.engine.ApplyClassification(f.ctx, ClassificationInput{ReviewerID: "r1", ArticleID: 1, TagIDs: []string{"cat-1"}, Extras: []string{"a,b"}})
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "extras", v.Field)

	st, err := f.store.GetReviewState(f.ctx, "r1", 1)
	require.NoError(t, err)
	assert.Nil(t, st.ClassificationTags, "failed validation must not write")
}

func TestApplyReaction_Upsert(t *testing.T) {
	f := newFixture(t)
	f.source("feed", 1, 1)

	f.react("r1", 1, storage.ReactionLike)
	first, err := f.store.GetReviewState(f.ctx, "r1", 1)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	f.react("r1", 1, storage.ReactionUnsure)
	second, err := f.store.GetReviewState(f.ctx, "r1", 1)
	require.NoError(t, err)

	assert.Equal(t, storage.ReactionUnsure, second.Reaction)
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.Nil(t, second.ClassifyConfirmedAt)
}

func TestApplyReaction_Errors(t *testing.T) {
	f := newFixture(t)
	f.source("feed", 1, 1)

	_, err := f.engine.ApplyReaction(f.ctx, ReactionInput{ReviewerID: "r1", ArticleID: 99, Reaction: storage.ReactionLike})
	assert.ErrorIs(t, err, ErrUnknownArticle)

	var v *ValidationError
	_, err = f.engine.ApplyReaction(f.ctx, ReactionInput{ReviewerID: "r1", ArticleID: 1, Reaction: storage.ReactionNone})
	assert.ErrorAs(t, err, &v)

	_, err = f.engine.ApplyReaction(f.ctx, ReactionInput{ReviewerID: "r1", ArticleID: 1, Reaction: storage.ReactionLike, Mode: "sorting"})
	assert.ErrorAs(t, err, &v)

	_, err = f.engine.ApplyReaction(f.ctx, ReactionInput{ArticleID: 1, Reaction: storage.ReactionLike})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNotes_AppendOnlyInOrder(t *testing.T) {
	f := newFixture(t)
	f.source("feed", 1, 1)

	for i, text := range []string{"looks off-topic", "actually fine", "  second look  "} {
		f.clock.Advance(time.Duration(i) * time.Second)
		_, err := f.engine.SubmitNote(f.ctx, "r1", 1, text)
		require.NoError(t, err)
	}

	notes, err := f.engine.Notes(f.ctx, "r1", 1)
	require.NoError(t, err)
	require.Len(t, notes, 3)
	assert.Equal(t, "looks off-topic", notes[0].Body)
	assert.Equal(t, "actually fine", notes[1].Body)
	assert.Equal(t, "second look", notes[2].Body)

	var v *ValidationError
	_, err = f.engine.SubmitNote(f.ctx, "r1", 1, "   ")
	assert.ErrorAs(t, err, &v)

	_, err = f.engine.SubmitNote(f.ctx, "r1", 42, "missing")
	assert.ErrorIs(t, err, ErrUnknownArticle)
}

func TestWeeklyProgress_MonotonicAndResets(t *testing.T) {
	f := newFixture(t)
	src := f.source("feed", 1, 10)
	f.quota("r1", storage.ModeCleaning, src, 5)

	last := 0
	for i := int64(1); i <= 3; i++ {
		f.react("r1", i, storage.ReactionDislike)
		p, err := f.engine.WeeklyProgress(f.ctx, "r1", storage.ModeCleaning, src)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p.Completed, last)
		last = p.Completed
		assert.Equal(t, 5, p.Target)
	}
	assert.Equal(t, 3, last)

	// Re-reacting to an already counted article does not double count.
	f.react("r1", 1, storage.ReactionLike)
	p, err := f.engine.WeeklyProgress(f.ctx, "r1", storage.ModeCleaning, src)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Completed)

	// Next Monday 00:00 starts a new week.
	f.clock.now = time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)
	p, err = f.engine.WeeklyProgress(f.ctx, "r1", storage.ModeCleaning, src)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Completed)

	// No quota means a zero target.
	p, err = f.engine.WeeklyProgress(f.ctx, "r1", storage.ModeClassifying, src)
	require.NoError(t, err)
	assert.Equal(t, Progress{}, p)
}

func TestWeeklyProgress_Classifying(t *testing.T) {
	f := newFixture(t)
	src := f.source("feed", 1, 5)
	f.quota("r1", storage.ModeClassifying, src, 2)
	f.react("r1", 1, storage.ReactionLike)
	f.react("r1", 2, storage.ReactionLike)

	p, err := f.engine.WeeklyProgress(f.ctx, "r1", storage.ModeClassifying, src)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Completed, "likes alone do not count")

	_, err = f.engine.ApplyClassification(f.ctx, ClassificationInput{ReviewerID: "r1", ArticleID: 1, TagIDs: []string{"cat-1"}})
	require.NoError(t, err)
	p, err = f.engine.WeeklyProgress(f.ctx, "r1", storage.ModeClassifying, src)
	require.NoError(t, err)
	assert.Equal(t, Progress{Completed: 1, Target: 2}, p)
}

func TestWeeklyProgress_CountsLastUpdate(t *testing.T) {
	f := newFixture(t)
	src := f.source("feed", 1, 5)
	f.quota("r1", storage.ModeCleaning, src, 3)
	f.react("r1", 1, storage.ReactionLike)

	// The like is from last week; classifying it this week refreshes the record.
	f.clock.Advance(7 * 24 * time.Hour)
	p, err := f.engine.WeeklyProgress(f.ctx, "r1", storage.ModeCleaning, src)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Completed)

	_, err = f.engine.ApplyClassification(f.ctx, ClassificationInput{ReviewerID: "r1", ArticleID: 1, TagIDs: []string{"cat-1"}})
	require.NoError(t, err)

	p, err = f.engine.WeeklyProgress(f.ctx, "r1", storage.ModeCleaning, src)
	require.NoError(t, err)
	assert.Equal(t, Progress{Completed: 1, Target: 3}, p)

	p, err = f.engine.WeeklyProgress(f.ctx, "r1", storage.ModeClassifying, src)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Completed)
}

func TestClassifying_NonLikeReactionLeavesPool(t *testing.T) {
	f := newFixture(t)
	src := f.source("feed", 1, 5)
	f.react("r1", 3, storage.ReactionLike)

	d, err := f.engine.NextArticle(f.ctx, "r1", storage.ModeClassifying, src)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, int64(3), d.Article.ID)

	_, err = f.engine.ApplyReaction(f.ctx, ReactionInput{ReviewerID: "r1", ArticleID: 3, Reaction: storage.ReactionDislike, Mode: storage.ModeClassifying})
	require.NoError(t, err)

	d, err = f.engine.NextArticle(f.ctx, "r1", storage.ModeClassifying, src)
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = f.engine.ApplyClassification(f.ctx, ClassificationInput{ReviewerID: "r1", ArticleID: 3, TagIDs: []string{"cat-1"}})
	assert.ErrorIs(t, err, ErrInvalidState)

	// Still gone a week later.
	f.clock.Advance(7 * 24 * time.Hour)
	d, err = f.engine.NextArticle(f.ctx, "r1", storage.ModeClassifying, src)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestActiveSource_MovesOnWhenQuotaMet(t *testing.T) {
	f := newFixture(t)
	a := f.source("a", 1, 30)
	b := f.source("b", 31, 40)
	f.quota("r1", storage.ModeCleaning, b, 5)
	f.quota("r1", storage.ModeCleaning, a, 20)

	ref, err := f.engine.ActiveSource(f.ctx, "r1", storage.ModeCleaning)
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, a, ref.SourceID, "lowest source id wins")

	for i := int64(1); i <= 20; i++ {
		f.react("r1", i, storage.ReactionDislike)
	}
	ref, err = f.engine.ActiveSource(f.ctx, "r1", storage.ModeCleaning)
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, b, ref.SourceID)
	assert.Equal(t, "b", ref.SourceName)

	for i := int64(31); i <= 35; i++ {
		f.react("r1", i, storage.ReactionLike)
	}
	ref, err = f.engine.ActiveSource(f.ctx, "r1", storage.ModeCleaning)
	require.NoError(t, err)
	assert.Nil(t, ref, "all quotas met")

	next, err := f.engine.GetNextArticle(f.ctx, "r1", storage.ModeCleaning)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestActiveSource_NoQuotas(t *testing.T) {
	f := newFixture(t)
	f.source("a", 1, 3)

	ref, err := f.engine.ActiveSource(f.ctx, "r1", storage.ModeCleaning)
	require.NoError(t, err)
	assert.Nil(t, ref)
}

func TestGetNextArticle_UsesActiveSource(t *testing.T) {
	f := newFixture(t)
	a := f.source("a", 1, 3)
	b := f.source("b", 4, 6)
	f.quota("r1", storage.ModeCleaning, a, 0)
	f.quota("r1", storage.ModeCleaning, b, 10)

	next, err := f.engine.GetNextArticle(f.ctx, "r1", storage.ModeCleaning)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, b, next.Source.SourceID)
	assert.Equal(t, int64(4), next.Article.ID)
}

func TestGetWeeklyProgress_Summary(t *testing.T) {
	f := newFixture(t)
	a := f.source("a", 1, 5)
	b := f.source("b", 6, 10)
	f.quota("r1", storage.ModeCleaning, a, 3)
	f.quota("r1", storage.ModeCleaning, b, 4)
	f.react("r1", 1, storage.ReactionLike)
	f.react("r1", 6, storage.ReactionLike)
	f.react("r1", 7, storage.ReactionLike)

	s, err := f.engine.GetWeeklyProgress(f.ctx, "r1", storage.ModeCleaning)
	require.NoError(t, err)
	assert.Equal(t, Progress{Completed: 3, Target: 7}, s.Progress)
	require.Len(t, s.Sources, 2)
	assert.Equal(t, 1, s.Sources[0].Completed)
	assert.Equal(t, 2, s.Sources[1].Completed)
	assert.True(t, s.WeekStart.Equal(time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)))
}

func TestStoreFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	src := f.source("feed", 1, 3)
	require.NoError(t, f.store.Close())

	_, err := f.engine.NextArticle(f.ctx, "r1", storage.ModeCleaning, src)
	require.Error(t, err)
	assert.True(t, IsRetryable(err), "got %v", err)

	_, err = f.engine.ApplyReaction(f.ctx, ReactionInput{ReviewerID: "r1", ArticleID: 1, Reaction: storage.ReactionLike})
	var r *RetryableError
	require.ErrorAs(t, err, &r)
	assert.Equal(t, "applying reaction", r.Op)
}

func TestStoreError_PassesDomainErrors(t *testing.T) {
	assert.Nil(t, storeError("op", nil))
	assert.ErrorIs(t, storeError("op", ErrInvalidState), ErrInvalidState)
	assert.ErrorIs(t, storeError("op", context.Canceled), context.Canceled)
	assert.False(t, IsRetryable(storeError("op", storage.ErrNotFound)))
	assert.True(t, IsRetryable(storeError("op", errors.New("database is locked"))))
}

func TestOutcomeLabels(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "invalid_state", outcome(fmt.Errorf("wrap: %w", ErrInvalidState)))
	assert.Equal(t, "validation", outcome(&ValidationError{Field: "x"}))
	assert.Equal(t, "retryable", outcome(&RetryableError{Op: "x", Err: errors.New("y")}))
	assert.Equal(t, "error", outcome(ErrUnknownArticle))
}
