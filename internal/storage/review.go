package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Tx exposes the review operations that must share one transaction: drawing
// a candidate and logging its exposure, or upserting state and clearing the
// pair's exposures.
type Tx struct {
	tx  *sql.Tx
	now func() time.Time
}

// Now returns the store clock's current time.
func (t *Tx) Now() time.Time {
	return t.now()
}

// CandidateQuery identifies the pool an article is drawn from.
type CandidateQuery struct {
	ReviewerID string
	Mode       Mode
	SourceID   int64
}

// candidates builds the FROM/WHERE part shared by the range and scan queries.
//
// Cleaning: valid articles of the source the reviewer has not reacted to.
// Classifying: valid, classification-eligible articles of the source the
// reviewer liked and has not classified yet.
func candidates(q CandidateQuery, columns ...string) sq.SelectBuilder {
	b := sq.Select(columns...)
	switch q.Mode {
	case ModeClassifying:
		return b.From("review_states rs").
			Join("articles a ON a.id = rs.article_id").
			Where(sq.Eq{
				"rs.reviewer_id":            q.ReviewerID,
				"rs.reaction":               int(ReactionLike),
				"rs.classification_tags":    nil,
				"a.source_id":               q.SourceID,
				"a.valid":                   1,
				"a.classification_eligible": 1,
			})
	default:
		return b.From("articles a").
			LeftJoin("review_states rs ON rs.article_id = a.id AND rs.reviewer_id = ?", q.ReviewerID).
			Where(sq.Eq{
				"a.source_id": q.SourceID,
				"a.valid":     1,
				"rs.reaction": nil,
			})
	}
}

// CandidateRange returns the smallest and largest article IDs bounding the
// sampling space. For cleaning the bounds cover every valid article of the
// source; for classifying they cover the candidate set. ok is false when the
// space is empty.
func (t *Tx) CandidateRange(ctx context.Context, q CandidateQuery) (minID, maxID int64, ok bool, err error) {
	var b sq.SelectBuilder
	if q.Mode == ModeClassifying {
		b = candidates(q, "MIN(a.id)", "MAX(a.id)")
	} else {
		b = sq.Select("MIN(id)", "MAX(id)").From("articles").
			Where(sq.Eq{"source_id": q.SourceID, "valid": 1})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return 0, 0, false, fmt.Errorf("building range query: %w", err)
	}

	var lo, hi sql.NullInt64
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&lo, &hi); err != nil {
		return 0, 0, false, fmt.Errorf("querying candidate range: %w", err)
	}
	if !lo.Valid || !hi.Valid {
		return 0, 0, false, nil
	}
	return lo.Int64, hi.Int64, true, nil
}

// FirstCandidate returns the candidate with the smallest ID >= from. When
// before is positive only IDs < before are considered. ok is false when no
// candidate qualifies.
func (t *Tx) FirstCandidate(ctx context.Context, q CandidateQuery, from, before int64) (Article, bool, error) {
	b := candidates(q, prefixed("a", articleColumns)...).
		Where(sq.GtOrEq{"a.id": from}).
		OrderBy("a.id ASC").
		Limit(1)
	if before > 0 {
		b = b.Where(sq.Lt{"a.id": before})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return Article{}, false, fmt.Errorf("building candidate query: %w", err)
	}

	a, err := scanArticle(t.tx.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return Article{}, false, nil
	}
	if err != nil {
		return Article{}, false, fmt.Errorf("scanning candidate: %w", err)
	}
	return a, true, nil
}

func prefixed(alias, columns string) []string {
	parts := strings.Split(columns, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = alias + "." + strings.TrimSpace(p)
	}
	return out
}

// GetArticle reads an article inside the transaction.
func (t *Tx) GetArticle(ctx context.Context, id int64) (Article, error) {
	a, err := scanArticle(t.tx.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return Article{}, ErrNotFound
	}
	return a, err
}

// RecordExposure appends an exposure log entry.
func (t *Tx) RecordExposure(ctx context.Context, e Exposure) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO exposures (id, reviewer_id, article_id, mode, shown_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.ReviewerID, e.ArticleID, string(e.Mode), formatTime(e.ShownAt))
	if err != nil {
		return fmt.Errorf("recording exposure: %w", err)
	}
	return nil
}

// ClearExposures deletes every exposure row of the pair.
func (t *Tx) ClearExposures(ctx context.Context, reviewerID string, articleID int64) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM exposures WHERE reviewer_id = ? AND article_id = ?`, reviewerID, articleID)
	if err != nil {
		return 0, fmt.Errorf("clearing exposures: %w", err)
	}
	return res.RowsAffected()
}

const reviewStateColumns = `reviewer_id, article_id, reaction, classification_tags, reacted_at, classified_at, classify_confirmed_at, created_at, updated_at`

func scanReviewState(row rowScanner) (ReviewState, error) {
	var st ReviewState
	var reaction sql.NullInt64
	var tags, reactedAt, classifiedAt, confirmedAt sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&st.ReviewerID, &st.ArticleID, &reaction, &tags, &reactedAt, &classifiedAt, &confirmedAt, &createdAt, &updatedAt); err != nil {
		return ReviewState{}, err
	}
	if reaction.Valid {
		st.Reaction = Reaction(reaction.Int64)
	}
	if tags.Valid {
		st.ClassificationTags = &tags.String
	}

	var err error
	if st.ReactedAt, err = parseNullTime(reactedAt); err != nil {
		return ReviewState{}, fmt.Errorf("parsing reacted_at: %w", err)
	}
	if st.ClassifiedAt, err = parseNullTime(classifiedAt); err != nil {
		return ReviewState{}, fmt.Errorf("parsing classified_at: %w", err)
	}
	if st.ClassifyConfirmedAt, err = parseNullTime(confirmedAt); err != nil {
		return ReviewState{}, fmt.Errorf("parsing classify_confirmed_at: %w", err)
	}
	if st.CreatedAt, err = parseTime(createdAt); err != nil {
		return ReviewState{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if st.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return ReviewState{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return st, nil
}

// ReviewState reads the pair's state inside the transaction.
func (t *Tx) ReviewState(ctx context.Context, reviewerID string, articleID int64) (ReviewState, error) {
	st, err := scanReviewState(t.tx.QueryRowContext(ctx,
		`SELECT `+reviewStateColumns+` FROM review_states WHERE reviewer_id = ? AND article_id = ?`,
		reviewerID, articleID))
	if err == sql.ErrNoRows {
		return ReviewState{}, ErrNotFound
	}
	return st, err
}

// SaveReviewState upserts the pair's state. created_at is kept from the
// first insert.
func (t *Tx) SaveReviewState(ctx context.Context, st ReviewState) error {
	var reaction sql.NullInt64
	if st.Reaction != ReactionNone {
		reaction = sql.NullInt64{Int64: int64(st.Reaction), Valid: true}
	}
	var tags sql.NullString
	if st.ClassificationTags != nil {
		tags = sql.NullString{String: *st.ClassificationTags, Valid: true}
	}
	createdAt := st.CreatedAt
	if createdAt.IsZero() {
		createdAt = st.UpdatedAt
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO review_states (`+reviewStateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(reviewer_id, article_id) DO UPDATE SET
			reaction = excluded.reaction,
			classification_tags = excluded.classification_tags,
			reacted_at = excluded.reacted_at,
			classified_at = excluded.classified_at,
			classify_confirmed_at = excluded.classify_confirmed_at,
			updated_at = excluded.updated_at`,
		st.ReviewerID, st.ArticleID, reaction, tags,
		nullTime(st.ReactedAt), nullTime(st.ClassifiedAt), nullTime(st.ClassifyConfirmedAt),
		formatTime(createdAt), formatTime(st.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving review state: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// AppendNote adds a note to the pair's log. A zero CreatedAt is stamped with
// the store clock.
func (t *Tx) AppendNote(ctx context.Context, n Note) (Note, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = t.now()
	}
	n.CreatedAt = n.CreatedAt.UTC()
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO review_notes (reviewer_id, article_id, body, created_at) VALUES (?, ?, ?, ?)`,
		n.ReviewerID, n.ArticleID, n.Body, formatTime(n.CreatedAt))
	if err != nil {
		return Note{}, fmt.Errorf("appending note: %w", err)
	}
	if n.ID, err = res.LastInsertId(); err != nil {
		return Note{}, fmt.Errorf("reading note id: %w", err)
	}
	return n, nil
}

// --- Store-level reads ---

func (s *Store) GetReviewState(ctx context.Context, reviewerID string, articleID int64) (ReviewState, error) {
	st, err := scanReviewState(s.db.QueryRowContext(ctx,
		`SELECT `+reviewStateColumns+` FROM review_states WHERE reviewer_id = ? AND article_id = ?`,
		reviewerID, articleID))
	if err == sql.ErrNoRows {
		return ReviewState{}, ErrNotFound
	}
	return st, err
}

// CountCompleted counts the reviewer's records for articles of sourceID that
// were last updated at or after since and are complete in mode. A record is
// complete for cleaning once it has a reaction and for classifying once it
// has tags. Any update to the record moves it into the current week.
func (s *Store) CountCompleted(ctx context.Context, reviewerID string, mode Mode, sourceID int64, since time.Time) (int, error) {
	b := sq.Select("COUNT(*)").
		From("review_states rs").
		Join("articles a ON a.id = rs.article_id").
		Where(sq.Eq{"rs.reviewer_id": reviewerID, "a.source_id": sourceID}).
		Where(sq.GtOrEq{"rs.updated_at": formatTime(since)})
	switch mode {
	case ModeCleaning:
		b = b.Where(sq.NotEq{"rs.reaction": nil})
	case ModeClassifying:
		b = b.Where(sq.NotEq{"rs.classification_tags": nil})
	default:
		return 0, fmt.Errorf("invalid mode %q", mode)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting completed: %w", err)
	}
	return n, nil
}

// ListNotes returns the pair's notes oldest first.
func (s *Store) ListNotes(ctx context.Context, reviewerID string, articleID int64) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reviewer_id, article_id, body, created_at FROM review_notes
		WHERE reviewer_id = ? AND article_id = ?
		ORDER BY id ASC`, reviewerID, articleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Note
	for rows.Next() {
		var n Note
		var createdAt string
		if err := rows.Scan(&n.ID, &n.ReviewerID, &n.ArticleID, &n.Body, &createdAt); err != nil {
			return nil, err
		}
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, n)
	}
	return results, rows.Err()
}

// ListExposures returns the reviewer's exposure log in insertion time order.
// articleID 0 lists every article.
func (s *Store) ListExposures(ctx context.Context, reviewerID string, articleID int64) ([]Exposure, error) {
	where := sq.Eq{"reviewer_id": reviewerID}
	if articleID != 0 {
		where["article_id"] = articleID
	}
	query, args, err := sq.Select("id", "reviewer_id", "article_id", "mode", "shown_at").
		From("exposures").
		Where(where).
		OrderBy("shown_at ASC", "rowid ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building exposure query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Exposure
	for rows.Next() {
		var e Exposure
		var mode, shownAt string
		if err := rows.Scan(&e.ID, &e.ReviewerID, &e.ArticleID, &mode, &shownAt); err != nil {
			return nil, err
		}
		e.Mode = Mode(mode)
		if e.ShownAt, err = parseTime(shownAt); err != nil {
			return nil, fmt.Errorf("parsing shown_at: %w", err)
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// PruneExposures deletes exposure rows shown before the cutoff and returns
// how many were removed.
func (s *Store) PruneExposures(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exposures WHERE shown_at < ?`, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("pruning exposures: %w", err)
	}
	return res.RowsAffected()
}
