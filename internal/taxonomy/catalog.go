// Package taxonomy serves the classification tag catalog with a short-lived
// in-memory cache.
package taxonomy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/curate/internal/storage"
)

// Tag families.
const (
	FamilyCategory = "category"
	FamilyIndustry = "industry"
	FamilyCountry  = "country"
	FamilyTag      = "tag"
)

// Families lists every known family in display order.
var Families = []string{FamilyCategory, FamilyIndustry, FamilyCountry, FamilyTag}

// ValidFamily reports whether f is a known family.
func ValidFamily(f string) bool {
	for _, known := range Families {
		if f == known {
			return true
		}
	}
	return false
}

// TagStore defines the storage operations the Catalog needs.
// Implemented by storage.Store.
type TagStore interface {
	ListTags(ctx context.Context) ([]storage.Tag, error)
	SaveTag(ctx context.Context, t storage.Tag) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Catalog provides cached lookups over the tag table.
type Catalog struct {
	store TagStore
	clock Clock
	ttl   time.Duration

	mu       sync.RWMutex
	cached   map[string]storage.Tag
	cachedAt time.Time
}

// NewCatalog creates a Catalog with a 60-second cache TTL.
func NewCatalog(store TagStore) *Catalog {
	return NewCatalogWithClock(store, realClock{}, 60*time.Second)
}

// NewCatalogWithTTL creates a Catalog whose cache expires after ttl.
func NewCatalogWithTTL(store TagStore, ttl time.Duration) *Catalog {
	return NewCatalogWithClock(store, realClock{}, ttl)
}

// NewCatalogWithClock creates a Catalog with a custom clock and TTL.
func NewCatalogWithClock(store TagStore, clock Clock, ttl time.Duration) *Catalog {
	return &Catalog{store: store, clock: clock, ttl: ttl}
}

func (c *Catalog) fresh() bool {
	return c.cached != nil && c.clock.Now().Before(c.cachedAt.Add(c.ttl))
}

func (c *Catalog) snapshot(ctx context.Context) (map[string]storage.Tag, error) {
	c.mu.RLock()
	if c.fresh() {
		m := c.cached
		c.mu.RUnlock()
		return m, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fresh() {
		return c.cached, nil
	}

	tags, err := c.store.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tags: %w", err)
	}
	m := make(map[string]storage.Tag, len(tags))
	for _, t := range tags {
		m[t.ID] = t
	}
	// The map is replaced, never mutated, so readers may keep a reference.
	c.cached = m
	c.cachedAt = c.clock.Now()
	return m, nil
}

// All returns every tag ordered by family then ID.
func (c *Catalog) All(ctx context.Context) ([]storage.Tag, error) {
	m, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]storage.Tag, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Family != out[j].Family {
			return out[i].Family < out[j].Family
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Resolve maps ids to catalog tags. IDs missing from the catalog are returned
// in unknown, in input order.
func (c *Catalog) Resolve(ctx context.Context, ids []string) (found []storage.Tag, unknown []string, err error) {
	m, err := c.snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range ids {
		t, ok := m[id]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		found = append(found, t)
	}
	return found, unknown, nil
}

// Unknown returns the ids that are not in the catalog.
func (c *Catalog) Unknown(ctx context.Context, ids []string) ([]string, error) {
	_, unknown, err := c.Resolve(ctx, ids)
	return unknown, err
}

// Save validates and persists a tag, then drops the cache.
func (c *Catalog) Save(ctx context.Context, t storage.Tag) error {
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		return fmt.Errorf("tag id is required")
	}
	if strings.Contains(t.ID, ",") {
		return fmt.Errorf("tag id %q must not contain commas", t.ID)
	}
	if !ValidFamily(t.Family) {
		return fmt.Errorf("unknown tag family %q", t.Family)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.SaveTag(ctx, t); err != nil {
		return fmt.Errorf("saving tag %q: %w", t.ID, err)
	}
	c.cached = nil
	return nil
}

// Invalidate drops the cached catalog.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}
