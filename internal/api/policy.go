package api

import (
	"context"
	"strings"

	"github.com/kalambet/curate/internal/review"
	"github.com/kalambet/curate/internal/taxonomy"
)

// classificationPolicy binds checkClassificationPolicy to the catalog for the
// engine, which applies it after the pair's state check.
func classificationPolicy(tags *taxonomy.Catalog) review.ClassificationPolicy {
	return func(ctx context.Context, ids, extras []string) error {
		return checkClassificationPolicy(ctx, tags, ids, extras)
	}
}

// checkClassificationPolicy enforces the reviewer-facing tagging rule: at
// least one category, at least one country, and an industry tag or a
// free-text industry extra. Unknown ids are left to the engine to report.
func checkClassificationPolicy(ctx context.Context, tags *taxonomy.Catalog, ids, extras []string) error {
	if tags == nil {
		return nil
	}
	found, unknown, err := tags.Resolve(ctx, ids)
	if err != nil {
		return &review.RetryableError{Op: "resolving tags", Err: err}
	}
	if len(unknown) > 0 {
		return nil
	}

	counts := map[string]int{}
	for _, t := range found {
		counts[t.Family]++
	}
	hasExtra := false
	for _, x := range extras {
		if strings.TrimSpace(x) != "" {
			hasExtra = true
			break
		}
	}

	var missing []string
	if counts[taxonomy.FamilyCategory] == 0 {
		missing = append(missing, taxonomy.FamilyCategory)
	}
	if counts[taxonomy.FamilyCountry] == 0 {
		missing = append(missing, taxonomy.FamilyCountry)
	}
	if counts[taxonomy.FamilyIndustry] == 0 && !hasExtra {
		missing = append(missing, taxonomy.FamilyIndustry)
	}
	if len(missing) > 0 {
		return &review.ValidationError{Field: "tag_ids", Reason: "missing required families: " + strings.Join(missing, ", ")}
	}
	return nil
}
