package exposure

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kalambet/curate/internal/metrics"
	"github.com/kalambet/curate/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func recordExposure(t *testing.T, s *storage.Store, id string, articleID int64, shownAt time.Time) {
	t.Helper()
	err := s.WithTx(context.Background(), func(tx *storage.Tx) error {
		return tx.RecordExposure(context.Background(), storage.Exposure{
			ID:         id,
			ReviewerID: "alice",
			ArticleID:  articleID,
			Mode:       storage.ModeCleaning,
			ShownAt:    shownAt,
		})
	})
	if err != nil {
		t.Fatalf("RecordExposure: %v", err)
	}
}

type countingStore struct {
	calls  atomic.Int32
	before time.Time
	err    error
}

func (c *countingStore) PruneExposures(_ context.Context, before time.Time) (int64, error) {
	c.calls.Add(1)
	c.before = before
	return 0, c.err
}

func TestRunOnce_DeletesOnlyExpired(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	srcID, err := s.SaveSource(ctx, storage.Source{Name: "wire"})
	if err != nil {
		t.Fatalf("SaveSource: %v", err)
	}
	if _, err := s.SaveArticle(ctx, storage.Article{ID: 1, SourceID: srcID, Title: "a", Valid: true}); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	recordExposure(t, s, "old", 1, now.Add(-48*time.Hour))
	recordExposure(t, s, "fresh", 1, now.Add(-time.Hour))

	m := metrics.New(prometheus.NewRegistry())
	p, err := NewPruner(s, "@daily", 24*time.Hour, WithClock(func() time.Time { return now }), WithMetrics(m))
	if err != nil {
		t.Fatalf("NewPruner: %v", err)
	}

	n, err := p.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned = %d, want 1", n)
	}

	left, err := s.ListExposures(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("ListExposures: %v", err)
	}
	if len(left) != 1 || left[0].ID != "fresh" {
		t.Fatalf("remaining exposures = %+v, want only fresh", left)
	}
	if got := testutil.ToFloat64(m.ExposuresPrunedTotal); got != 1 {
		t.Errorf("pruned counter = %v, want 1", got)
	}
}

func TestRunOnce_CutoffUsesRetention(t *testing.T) {
	store := &countingStore{}
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	p, err := NewPruner(store, "", 0, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewPruner: %v", err)
	}

	if _, err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if want := now.Add(-30 * 24 * time.Hour); !store.before.Equal(want) {
		t.Errorf("cutoff = %v, want %v", store.before, want)
	}
}

func TestRunOnce_StoreError(t *testing.T) {
	store := &countingStore{err: errors.New("disk full")}
	p, err := NewPruner(store, "@hourly", time.Hour)
	if err != nil {
		t.Fatalf("NewPruner: %v", err)
	}
	if _, err := p.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error from store")
	}
}

func TestNewPruner_InvalidSchedule(t *testing.T) {
	if _, err := NewPruner(&countingStore{}, "every tuesday", time.Hour); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := &countingStore{}
	p, err := NewPruner(store, "@every 1s", time.Hour)
	if err != nil {
		t.Fatalf("NewPruner: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for store.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.calls.Load() == 0 {
		t.Fatal("pruner never ran")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
