package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/curate/internal/review"
	"github.com/kalambet/curate/internal/storage"
	"github.com/kalambet/curate/internal/taxonomy"
)

type reactionRequest struct {
	ArticleID int64  `json:"article_id" validate:"required,gt=0"`
	Reaction  string `json:"reaction" validate:"required,oneof=like dislike unsure"`
	Mode      string `json:"mode" validate:"omitempty,oneof=cleaning classifying"`
}

type classificationRequest struct {
	ArticleID int64    `json:"article_id" validate:"required,gt=0"`
	TagIDs    []string `json:"tag_ids" validate:"max=64,dive,required,max=64"`
	Extras    []string `json:"extras" validate:"max=16,dive,required,max=200"`
}

type noteRequest struct {
	ArticleID int64  `json:"article_id" validate:"required,gt=0"`
	Text      string `json:"text" validate:"required,max=8000"`
}

func modeParam(w http.ResponseWriter, r *http.Request) (storage.Mode, bool) {
	mode, err := storage.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return "", false
	}
	return mode, true
}

func handleActiveSource(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, ok := modeParam(w, r)
		if !ok {
			return
		}
		ref, err := deps.Engine.ActiveSource(r.Context(), ReviewerFrom(r.Context()), mode)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if ref == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, ref)
	}
}

func handleNextArticle(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, ok := modeParam(w, r)
		if !ok {
			return
		}
		next, err := deps.Engine.GetNextArticle(r.Context(), ReviewerFrom(r.Context()), mode)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if next == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, nextView{
			Mode:              mode,
			Source:            next.Source,
			Article:           toArticleView(next.Article),
			IsNeverClassified: next.IsNeverClassified,
		})
	}
}

func handleProgress(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, ok := modeParam(w, r)
		if !ok {
			return
		}
		reviewer := ReviewerFrom(r.Context())

		if s := r.URL.Query().Get("source_id"); s != "" {
			sourceID, ok := parseInt64Param(s)
			if !ok {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid source_id %q", s)
				return
			}
			p, err := deps.Engine.WeeklyProgress(r.Context(), reviewer, mode, sourceID)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, p)
			return
		}

		summary, err := deps.Engine.GetWeeklyProgress(r.Context(), reviewer, mode)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func handleReaction(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reactionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		reaction, err := storage.ParseReaction(req.Reaction)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		st, err := deps.Engine.SubmitReaction(r.Context(), review.ReactionInput{
			ReviewerID: ReviewerFrom(r.Context()),
			ArticleID:  req.ArticleID,
			Reaction:   reaction,
			Mode:       storage.Mode(req.Mode),
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toStateView(st))
	}
}

func handleClassification(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req classificationRequest
		if !decodeBody(w, r, &req) {
			return
		}
		st, err := deps.Engine.SubmitClassification(r.Context(), review.ClassificationInput{
			ReviewerID: ReviewerFrom(r.Context()),
			ArticleID:  req.ArticleID,
			TagIDs:     req.TagIDs,
			Extras:     req.Extras,
			Policy:     classificationPolicy(deps.Tags),
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toStateView(st))
	}
}

func handleNote(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req noteRequest
		if !decodeBody(w, r, &req) {
			return
		}
		n, err := deps.Engine.SubmitNote(r.Context(), ReviewerFrom(r.Context()), req.ArticleID, req.Text)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toNoteView(n))
	}
}

func handleListNotes(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		articleID, ok := parseInt64Param(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid article id")
			return
		}
		notes, err := deps.Engine.Notes(r.Context(), ReviewerFrom(r.Context()), articleID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		out := make([]noteView, len(notes))
		for i, n := range notes {
			out[i] = toNoteView(n)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleListTags(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := deps.Tags.All(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list tags: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, groupTags(tags, taxonomy.Families))
	}
}
