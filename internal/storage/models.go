package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Mode is a review workflow.
type Mode string

const (
	ModeCleaning    Mode = "cleaning"
	ModeClassifying Mode = "classifying"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeCleaning || m == ModeClassifying
}

// ParseMode accepts "cleaning" or "classifying" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode %q", s)
	}
	return m, nil
}

// Reaction is a reviewer's verdict on an article. The numeric values are
// persisted and must not change.
type Reaction int

const (
	ReactionNone    Reaction = 0
	ReactionDislike Reaction = 1
	ReactionUnsure  Reaction = 2
	ReactionLike    Reaction = 3
)

func (r Reaction) String() string {
	switch r {
	case ReactionDislike:
		return "dislike"
	case ReactionUnsure:
		return "unsure"
	case ReactionLike:
		return "like"
	default:
		return "none"
	}
}

// ParseReaction maps "like", "dislike" and "unsure" to a Reaction.
func ParseReaction(s string) (Reaction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "like":
		return ReactionLike, nil
	case "dislike":
		return ReactionDislike, nil
	case "unsure", "notsure":
		return ReactionUnsure, nil
	}
	return ReactionNone, fmt.Errorf("unknown reaction %q", s)
}

type Source struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

type Article struct {
	ID                     int64
	SourceID               int64
	Title                  string
	URL                    string
	Content                string
	PublishedAt            time.Time // zero when unknown
	Valid                  bool
	ClassificationEligible bool
	CreatedAt              time.Time
}

// Tag is a catalog entry usable in a classification.
type Tag struct {
	ID        string
	Family    string // "category", "industry", "country", "tag"
	Label     string
	CreatedAt time.Time
}

type Quota struct {
	ReviewerID   string
	Mode         Mode
	SourceID     int64
	SourceName   string // populated by ListQuotas
	WeeklyTarget int
	UpdatedAt    time.Time
}

// ReviewState is the authoritative record for a (reviewer, article) pair.
type ReviewState struct {
	ReviewerID          string
	ArticleID           int64
	Reaction            Reaction
	ClassificationTags  *string // nil until classified
	ReactedAt           *time.Time
	ClassifiedAt        *time.Time
	ClassifyConfirmedAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Note is one free-text remark in a pair's append-only log.
type Note struct {
	ID         int64
	ReviewerID string
	ArticleID  int64
	Body       string
	CreatedAt  time.Time
}

// Exposure records that an article was handed to a reviewer.
type Exposure struct {
	ID         string
	ReviewerID string
	ArticleID  int64
	Mode       Mode
	ShownAt    time.Time
}
