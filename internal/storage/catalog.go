package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// --- Sources ---

// SaveSource inserts or renames a source. A zero ID upserts by name; a
// non-zero ID upserts by ID. The stored ID is returned.
func (s *Store) SaveSource(ctx context.Context, src Source) (int64, error) {
	now := s.stamp()
	var id int64
	var err error
	if src.ID == 0 {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO sources (name, created_at) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET name = excluded.name
			RETURNING id`, src.Name, now,
		).Scan(&id)
	} else {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO sources (id, name, created_at) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name
			RETURNING id`, src.ID, src.Name, now,
		).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("saving source %q: %w", src.Name, err)
	}
	return id, nil
}

func (s *Store) GetSource(ctx context.Context, id int64) (Source, error) {
	var src Source
	var createdAt string
	err := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM sources WHERE id = ?`, id).
		Scan(&src.ID, &src.Name, &createdAt)
	if err == sql.ErrNoRows {
		return Source{}, ErrNotFound
	}
	if err != nil {
		return Source{}, err
	}
	if src.CreatedAt, err = parseTime(createdAt); err != nil {
		return Source{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return src, nil
}

func (s *Store) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM sources ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Source
	for rows.Next() {
		var src Source
		var createdAt string
		if err := rows.Scan(&src.ID, &src.Name, &createdAt); err != nil {
			return nil, err
		}
		if src.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, src)
	}
	return results, rows.Err()
}

// --- Articles ---

// SaveArticle inserts an article, or replaces it when a.ID is already taken.
// Article IDs define the sampling key space, so callers importing from an
// upstream system should keep its monotonic IDs.
func (s *Store) SaveArticle(ctx context.Context, a Article) (int64, error) {
	var published sql.NullString
	if !a.PublishedAt.IsZero() {
		published = sql.NullString{String: formatTime(a.PublishedAt), Valid: true}
	}
	var id sql.NullInt64
	if a.ID != 0 {
		id = sql.NullInt64{Int64: a.ID, Valid: true}
	}

	var out int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO articles (id, source_id, title, url, content, published_at, valid, classification_eligible, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			title = excluded.title,
			url = excluded.url,
			content = excluded.content,
			published_at = excluded.published_at,
			valid = excluded.valid,
			classification_eligible = excluded.classification_eligible
		RETURNING id`,
		id, a.SourceID, a.Title, a.URL, a.Content, published,
		boolInt(a.Valid), boolInt(a.ClassificationEligible), s.stamp(),
	).Scan(&out)
	if err != nil {
		return 0, fmt.Errorf("saving article: %w", err)
	}
	return out, nil
}

const articleColumns = `id, source_id, title, url, content, published_at, valid, classification_eligible, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (Article, error) {
	var a Article
	var published sql.NullString
	var createdAt string
	var valid, eligible int
	if err := row.Scan(&a.ID, &a.SourceID, &a.Title, &a.URL, &a.Content, &published, &valid, &eligible, &createdAt); err != nil {
		return Article{}, err
	}
	a.Valid = valid != 0
	a.ClassificationEligible = eligible != 0
	p, err := parseNullTime(published)
	if err != nil {
		return Article{}, fmt.Errorf("parsing published_at: %w", err)
	}
	if p != nil {
		a.PublishedAt = *p
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return Article{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return a, nil
}

func (s *Store) GetArticle(ctx context.Context, id int64) (Article, error) {
	a, err := scanArticle(s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return Article{}, ErrNotFound
	}
	return a, err
}

// ListArticles returns up to limit articles of a source in ascending ID order.
func (s *Store) ListArticles(ctx context.Context, sourceID int64, limit int) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE source_id = ? ORDER BY id ASC LIMIT ?`, sourceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// --- Tags ---

func (s *Store) SaveTag(ctx context.Context, t Tag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, family, label, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET family = excluded.family, label = excluded.label`,
		t.ID, t.Family, t.Label, s.stamp(),
	)
	if err != nil {
		return fmt.Errorf("saving tag %q: %w", t.ID, err)
	}
	return nil
}

func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, family, label, created_at FROM tags ORDER BY family ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Tag
	for rows.Next() {
		var t Tag
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Family, &t.Label, &createdAt); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, t)
	}
	return results, rows.Err()
}
