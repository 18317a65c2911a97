package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kalambet/curate/internal/config"
	"github.com/kalambet/curate/internal/storage"
	"github.com/kalambet/curate/internal/taxonomy"
)

// fixtureFile is the YAML layout accepted by `curate import`. Sources are
// referenced by name or ID from articles and quotas.
type fixtureFile struct {
	Sources []struct {
		ID   int64  `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"sources"`

	Articles []struct {
		ID                     int64     `yaml:"id"`
		Source                 string    `yaml:"source"`
		SourceID               int64     `yaml:"source_id"`
		Title                  string    `yaml:"title"`
		URL                    string    `yaml:"url"`
		Content                string    `yaml:"content"`
		PublishedAt            time.Time `yaml:"published_at"`
		Valid                  *bool     `yaml:"valid"`
		ClassificationEligible *bool     `yaml:"classification_eligible"`
	} `yaml:"articles"`

	Tags []struct {
		ID     string `yaml:"id"`
		Family string `yaml:"family"`
		Label  string `yaml:"label"`
	} `yaml:"tags"`

	Quotas []struct {
		// Name is the legacy composite key; when set it supplies reviewer,
		// mode and source.
		Name         string `yaml:"name"`
		Reviewer     string `yaml:"reviewer"`
		Mode         string `yaml:"mode"`
		Source       string `yaml:"source"`
		SourceID     int64  `yaml:"source_id"`
		WeeklyTarget int    `yaml:"weekly_target"`
	} `yaml:"quotas"`
}

type importStats struct {
	Sources, Articles, Tags, Quotas int
}

// importStore is the subset of storage.Store an import writes to.
type importStore interface {
	taxonomy.TagStore
	SaveSource(ctx context.Context, src storage.Source) (int64, error)
	GetSource(ctx context.Context, id int64) (storage.Source, error)
	SaveArticle(ctx context.Context, a storage.Article) (int64, error)
	SetQuota(ctx context.Context, q storage.Quota) error
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// importFixtures loads a fixture document into store. Rows are upserted, so
// re-importing the same file is harmless.
func importFixtures(ctx context.Context, store importStore, r io.Reader) (importStats, error) {
	var f fixtureFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return importStats{}, fmt.Errorf("parsing fixtures: %w", err)
	}

	var stats importStats
	byName := map[string]int64{}
	for _, s := range f.Sources {
		if s.Name == "" {
			return stats, fmt.Errorf("source %d has no name", s.ID)
		}
		id, err := store.SaveSource(ctx, storage.Source{ID: s.ID, Name: s.Name})
		if err != nil {
			return stats, err
		}
		byName[s.Name] = id
		stats.Sources++
	}

	resolve := func(name string, id int64) (int64, error) {
		if name != "" {
			if sid, ok := byName[name]; ok {
				return sid, nil
			}
			return 0, fmt.Errorf("unknown source %q", name)
		}
		if _, err := store.GetSource(ctx, id); err != nil {
			return 0, fmt.Errorf("source %d: %w", id, err)
		}
		return id, nil
	}

	for _, a := range f.Articles {
		sid, err := resolve(a.Source, a.SourceID)
		if err != nil {
			return stats, fmt.Errorf("article %d: %w", a.ID, err)
		}
		_, err = store.SaveArticle(ctx, storage.Article{
			ID:                     a.ID,
			SourceID:               sid,
			Title:                  a.Title,
			URL:                    a.URL,
			Content:                a.Content,
			PublishedAt:            a.PublishedAt,
			Valid:                  boolOr(a.Valid, true),
			ClassificationEligible: boolOr(a.ClassificationEligible, true),
		})
		if err != nil {
			return stats, err
		}
		stats.Articles++
	}

	catalog := taxonomy.NewCatalog(store)
	for _, t := range f.Tags {
		if err := catalog.Save(ctx, storage.Tag{ID: t.ID, Family: t.Family, Label: t.Label}); err != nil {
			return stats, fmt.Errorf("tag %q: %w", t.ID, err)
		}
		stats.Tags++
	}

	for i, q := range f.Quotas {
		quota := storage.Quota{WeeklyTarget: q.WeeklyTarget}
		if q.Name != "" {
			reviewer, mode, sid, err := storage.ParseLegacyQuotaName(q.Name)
			if err != nil {
				return stats, fmt.Errorf("quota %d: %w", i, err)
			}
			if _, err := resolve("", sid); err != nil {
				return stats, fmt.Errorf("quota %d: %w", i, err)
			}
			quota.ReviewerID, quota.Mode, quota.SourceID = reviewer, mode, sid
		} else {
			mode, err := storage.ParseMode(q.Mode)
			if err != nil {
				return stats, fmt.Errorf("quota %d: %w", i, err)
			}
			if q.Reviewer == "" {
				return stats, fmt.Errorf("quota %d: reviewer is required", i)
			}
			sid, err := resolve(q.Source, q.SourceID)
			if err != nil {
				return stats, fmt.Errorf("quota %d: %w", i, err)
			}
			quota.ReviewerID, quota.Mode, quota.SourceID = q.Reviewer, mode, sid
		}
		if quota.WeeklyTarget < 0 {
			return stats, fmt.Errorf("quota %d: weekly_target must not be negative", i)
		}
		if err := store.SetQuota(ctx, quota); err != nil {
			return stats, err
		}
		stats.Quotas++
	}
	return stats, nil
}

var importCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Load sources, articles, tags and quotas from a YAML file",
	Long: `Load sources, articles, tags and quotas from a YAML file into the
local database. Existing rows with the same ids are replaced.

Example:
  sources:
    - {id: 1, name: wire}
  articles:
    - {id: 1001, source: wire, title: "Chip plant opens", valid: true}
  tags:
    - {id: cty-de, family: country, label: Germany}
  quotas:
    - {reviewer: alice, mode: cleaning, source: wire, weekly_target: 50}
    - {name: "target:training-classifying;user:alice;sourceid:1", weekly_target: 20}`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening fixtures: %w", err)
		}
		defer file.Close()

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		printStep("Importing %s into %s", args[0], cfg.Storage.DataDir)
		stats, err := importFixtures(cmd.Context(), store, file)
		if err != nil {
			return err
		}
		printSuccess("Imported %d sources, %d articles, %d tags, %d quotas", stats.Sources, stats.Articles, stats.Tags, stats.Quotas)
		return nil
	},
}
