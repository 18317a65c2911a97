package main

import (
	"context"
	"strings"
	"testing"

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

const fixtureYAML = `
sources:
  - id: 1
    name: wire
  - id: 2
    name: blogs
articles:
  - id: 1001
    source: wire
    title: Chip plant opens
    published_at: 2025-01-02T10:00:00Z
  - id: 1002
    source_id: 2
    title: Draft post
    valid: false
    classification_eligible: false
tags:
  - {id: cat-tech, family: category, label: Technology}
  - {id: cty-de, family: country, label: Germany}
quotas:
  - {reviewer: alice, mode: cleaning, source: wire, weekly_target: 50}
  - {name: "target:training-classifying;user:alice;sourceid:2", weekly_target: 20}
`

func TestImportFixtures(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	stats, err := importFixtures(ctx, store, strings.NewReader(fixtureYAML))
	if err != nil {
		t.Fatalf("importFixtures: %v", err)
	}
	if stats.Sources != 2 || stats.Articles != 2 || stats.Tags != 2 || stats.Quotas != 2 {
		t.Fatalf("stats = %+v", stats)
	}

	a, err := store.GetArticle(ctx, 1001)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if a.SourceID != 1 || !a.Valid || !a.ClassificationEligible {
		t.Errorf("article 1001 = %+v, want source 1, valid and eligible by default", a)
	}
	if a.PublishedAt.IsZero() {
		t.Error("published_at not imported")
	}

	b, err := store.GetArticle(ctx, 1002)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if b.Valid || b.ClassificationEligible {
		t.Errorf("article 1002 = %+v, want invalid and ineligible", b)
	}

	q, err := store.GetQuota(ctx, "alice", storage.ModeClassifying, 2)
	if err != nil {
		t.Fatalf("legacy quota not imported: %v", err)
	}
	if q.WeeklyTarget != 20 {
		t.Errorf("legacy quota target = %d, want 20", q.WeeklyTarget)
	}

	// Re-import is an upsert.
	if _, err := importFixtures(ctx, store, strings.NewReader(fixtureYAML)); err != nil {
		t.Fatalf("second import: %v", err)
	}
	sources, _ := store.ListSources(ctx)
	if len(sources) != 2 {
		t.Errorf("sources after re-import = %d, want 2", len(sources))
	}
}

func TestImportFixtures_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown source":  "articles:\n  - {id: 1, source: nowhere, title: x}\n",
		"missing source":  "articles:\n  - {id: 1, source_id: 9, title: x}\n",
		"bad family":      "tags:\n  - {id: x, family: planet, label: X}\n",
		"bad legacy name": "quotas:\n  - {name: \"user:alice\", weekly_target: 1}\n",
		"bad mode":        "sources:\n  - {id: 1, name: wire}\nquotas:\n  - {reviewer: a, mode: sorting, source: wire, weekly_target: 1}\n",
		"unknown field":   "sources:\n  - {id: 1, name: wire, colour: red}\n",
	}
	for name, doc := range cases {
		store := openTestStore(t)
		if _, err := importFixtures(context.Background(), store, strings.NewReader(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestImportFixtures_Empty(t *testing.T) {
	store := openTestStore(t)
	stats, err := importFixtures(context.Background(), store, strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty import: %v", err)
	}
	if stats != (importStats{}) {
		t.Errorf("stats = %+v, want zero", stats)
	}
}
