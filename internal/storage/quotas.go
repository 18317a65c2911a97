package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// SetQuota creates or replaces the weekly target for (reviewer, mode, source).
func (s *Store) SetQuota(ctx context.Context, q Quota) error {
	if !q.Mode.Valid() {
		return fmt.Errorf("invalid quota mode %q", q.Mode)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quotas (reviewer_id, mode, source_id, weekly_target, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(reviewer_id, mode, source_id) DO UPDATE SET
			weekly_target = excluded.weekly_target,
			updated_at = excluded.updated_at`,
		q.ReviewerID, string(q.Mode), q.SourceID, q.WeeklyTarget, s.stamp(),
	)
	if err != nil {
		return fmt.Errorf("saving quota: %w", err)
	}
	return nil
}

func (s *Store) DeleteQuota(ctx context.Context, reviewerID string, mode Mode, sourceID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM quotas WHERE reviewer_id = ? AND mode = ? AND source_id = ?`,
		reviewerID, string(mode), sourceID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetQuota returns the quota row or ErrNotFound.
func (s *Store) GetQuota(ctx context.Context, reviewerID string, mode Mode, sourceID int64) (Quota, error) {
	quotas, err := s.queryQuotas(ctx, sq.Eq{"q.reviewer_id": reviewerID, "q.mode": string(mode), "q.source_id": sourceID})
	if err != nil {
		return Quota{}, err
	}
	if len(quotas) == 0 {
		return Quota{}, ErrNotFound
	}
	return quotas[0], nil
}

// ListQuotas returns quotas ordered by reviewer, mode and ascending source ID.
// An empty reviewerID or mode matches all.
func (s *Store) ListQuotas(ctx context.Context, reviewerID string, mode Mode) ([]Quota, error) {
	where := sq.Eq{}
	if reviewerID != "" {
		where["q.reviewer_id"] = reviewerID
	}
	if mode != "" {
		where["q.mode"] = string(mode)
	}
	return s.queryQuotas(ctx, where)
}

func (s *Store) queryQuotas(ctx context.Context, where sq.Eq) ([]Quota, error) {
	b := sq.
		Select("q.reviewer_id", "q.mode", "q.source_id", "COALESCE(src.name, '')", "q.weekly_target", "q.updated_at").
		From("quotas q").
		LeftJoin("sources src ON src.id = q.source_id").
		OrderBy("q.reviewer_id ASC", "q.mode ASC", "q.source_id ASC")
	if len(where) > 0 {
		b = b.Where(where)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building quota query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Quota
	for rows.Next() {
		var q Quota
		var mode, updatedAt string
		if err := rows.Scan(&q.ReviewerID, &mode, &q.SourceID, &q.SourceName, &q.WeeklyTarget, &updatedAt); err != nil {
			return nil, err
		}
		q.Mode = Mode(mode)
		if q.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		results = append(results, q)
	}
	return results, rows.Err()
}

// ParseLegacyQuotaName decodes the key/value quota naming used by older
// deployments: "target:training-<mode>;user:<id>;sourceid:<sid>".
func ParseLegacyQuotaName(name string) (reviewerID string, mode Mode, sourceID int64, err error) {
	fields := map[string]string{}
	for _, part := range strings.Split(name, ";") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			return "", "", 0, fmt.Errorf("malformed quota name segment %q", part)
		}
		fields[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	target, ok := strings.CutPrefix(fields["target"], "training-")
	if !ok {
		return "", "", 0, fmt.Errorf("quota name %q has no training target", name)
	}
	if mode, err = ParseMode(target); err != nil {
		return "", "", 0, err
	}
	reviewerID = fields["user"]
	if reviewerID == "" {
		return "", "", 0, fmt.Errorf("quota name %q has no user", name)
	}
	if sourceID, err = strconv.ParseInt(fields["sourceid"], 10, 64); err != nil {
		return "", "", 0, fmt.Errorf("quota name %q has bad sourceid: %w", name, err)
	}
	return reviewerID, mode, sourceID, nil
}
