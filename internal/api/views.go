package api

import (
	"time"

	"github.com/kalambet/curate/internal/review"
	"github.com/kalambet/curate/internal/storage"
)

type healthView struct {
	Status        string `json:"status"`
	SchemaVersion int    `json:"schema_version,omitempty"`
}

type articleView struct {
	ID          int64      `json:"id"`
	SourceID    int64      `json:"source_id"`
	Title       string     `json:"title"`
	URL         string     `json:"url,omitempty"`
	Content     string     `json:"content,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

func toArticleView(a storage.Article) articleView {
	v := articleView{ID: a.ID, SourceID: a.SourceID, Title: a.Title, URL: a.URL, Content: a.Content}
	if !a.PublishedAt.IsZero() {
		p := a.PublishedAt
		v.PublishedAt = &p
	}
	return v
}

type nextView struct {
	Mode              storage.Mode     `json:"mode"`
	Source            review.SourceRef `json:"source"`
	Article           articleView      `json:"article"`
	IsNeverClassified bool             `json:"is_never_classified"`
}

type stateView struct {
	ArticleID          int64      `json:"article_id"`
	Reaction           string     `json:"reaction"`
	ClassificationTags []string   `json:"classification_tags"`
	ReactedAt          *time.Time `json:"reacted_at,omitempty"`
	ClassifiedAt       *time.Time `json:"classified_at,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toStateView(st storage.ReviewState) stateView {
	v := stateView{
		ArticleID:          st.ArticleID,
		Reaction:           st.Reaction.String(),
		ClassificationTags: []string{},
		ReactedAt:          st.ReactedAt,
		ClassifiedAt:       st.ClassifiedAt,
		UpdatedAt:          st.UpdatedAt,
	}
	if st.ClassificationTags != nil {
		v.ClassificationTags = review.DecodeTags(*st.ClassificationTags)
	}
	return v
}

type noteView struct {
	ID        int64     `json:"id"`
	ArticleID int64     `json:"article_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func toNoteView(n storage.Note) noteView {
	return noteView{ID: n.ID, ArticleID: n.ArticleID, Text: n.Body, CreatedAt: n.CreatedAt}
}

type quotaView struct {
	ReviewerID   string       `json:"reviewer_id"`
	Mode         storage.Mode `json:"mode"`
	SourceID     int64        `json:"source_id"`
	SourceName   string       `json:"source_name"`
	WeeklyTarget int          `json:"weekly_target"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func toQuotaView(q storage.Quota) quotaView {
	return quotaView{
		ReviewerID:   q.ReviewerID,
		Mode:         q.Mode,
		SourceID:     q.SourceID,
		SourceName:   q.SourceName,
		WeeklyTarget: q.WeeklyTarget,
		UpdatedAt:    q.UpdatedAt,
	}
}

type tagView struct {
	ID     string `json:"id"`
	Family string `json:"family"`
	Label  string `json:"label"`
}

// groupTags buckets tags by family. Every known family is present.
func groupTags(tags []storage.Tag, families []string) map[string][]tagView {
	out := make(map[string][]tagView, len(families))
	for _, f := range families {
		out[f] = []tagView{}
	}
	for _, t := range tags {
		out[t.Family] = append(out[t.Family], tagView{ID: t.ID, Family: t.Family, Label: t.Label})
	}
	return out
}
