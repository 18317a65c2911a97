package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/kalambet/curate/internal/storage"
)

type quotaRequest struct {
	ReviewerID   string `json:"reviewer_id" validate:"required,max=128"`
	Mode         string `json:"mode" validate:"required,oneof=cleaning classifying"`
	SourceID     int64  `json:"source_id" validate:"required,gt=0"`
	WeeklyTarget int    `json:"weekly_target" validate:"gte=0"`
}

type tagRequest struct {
	ID     string `json:"id" validate:"required,max=64,excludesall=0x2C"`
	Family string `json:"family" validate:"required,oneof=category industry country tag"`
	Label  string `json:"label" validate:"required,max=200"`
}

type tokenRequest struct {
	ReviewerID string `json:"reviewer_id" validate:"required,max=128"`
}

func handleListQuotas(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var mode storage.Mode
		if s := q.Get("mode"); s != "" {
			m, err := storage.ParseMode(s)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			mode = m
		}

		quotas, err := deps.Store.ListQuotas(r.Context(), q.Get("reviewer_id"), mode)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list quotas: %v", err)
			return
		}
		out := make([]quotaView, len(quotas))
		for i, qt := range quotas {
			out[i] = toQuotaView(qt)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handlePutQuota(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req quotaRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if _, err := deps.Store.GetSource(r.Context(), req.SourceID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "source %d not found", req.SourceID)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read source: %v", err)
			return
		}

		q := storage.Quota{
			ReviewerID:   req.ReviewerID,
			Mode:         storage.Mode(req.Mode),
			SourceID:     req.SourceID,
			WeeklyTarget: req.WeeklyTarget,
		}
		if err := deps.Store.SetQuota(r.Context(), q); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save quota: %v", err)
			return
		}
		deps.Logger.Info("quota set", "reviewer", q.ReviewerID, "mode", q.Mode, "source_id", q.SourceID, "weekly_target", q.WeeklyTarget)
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func handleDeleteQuota(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mode, err := storage.ParseMode(q.Get("mode"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		sourceID, ok := parseInt64Param(q.Get("source_id"))
		reviewer := q.Get("reviewer_id")
		if !ok || reviewer == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reviewer_id and source_id are required")
			return
		}

		err = deps.Store.DeleteQuota(r.Context(), reviewer, mode, sourceID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "quota not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete quota: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handlePutTag(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tagRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := deps.Tags.Save(r.Context(), storage.Tag{ID: req.ID, Family: req.Family, Label: req.Label}); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save tag: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func handleIssueToken(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		if !decodeBody(w, r, &req) {
			return
		}
		token, err := IssueReviewerToken(deps.JWTSecret, deps.Issuer, req.ReviewerID, deps.TokenTTL, time.Now())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to issue token: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"reviewer_id": req.ReviewerID, "token": token})
	}
}
