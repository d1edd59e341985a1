package ticketapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/sift/internal/triage"
)

func (a *API) handleListReviews(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	reviews, err := a.svc.ListPendingReviews(r.Context(), limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list reviews")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if reviews == nil {
		reviews = []*triage.Review{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

type approveRequest struct {
	FinalReply string `json:"final_reply"`
}

func (a *API) handleApproveReview(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	a.resolveReview(w, r, func(id string) (*triage.Review, error) {
		return a.svc.ApproveReview(r.Context(), id, req.FinalReply)
	})
}

type rejectRequest struct {
	Notes string `json:"notes"`
}

func (a *API) handleRejectReview(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	a.resolveReview(w, r, func(id string) (*triage.Review, error) {
		return a.svc.RejectReview(r.Context(), id, req.Notes)
	})
}

func (a *API) resolveReview(w http.ResponseWriter, r *http.Request, resolve func(id string) (*triage.Review, error)) {
	id := chi.URLParam(r, "id")

	review, err := resolve(id)
	if errors.Is(err, triage.ErrReviewClosed) {
		http.Error(w, `{"error":"review is not pending"}`, http.StatusConflict)
		return
	}
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to resolve review", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if review == nil {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	a.logger.Info(r.Context(), "review resolved", "id", id, "status", review.Status)
	writeJSON(w, http.StatusOK, review)
}
