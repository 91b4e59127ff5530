package http

import (
	"net/http"

	"coreshare-backend/internal/service"
)

type ReviewHandler struct {
	reviewSvc service.ReviewService
}

func NewReviewHandler(reviewSvc service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewSvc: reviewSvc}
}

func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in service.ReviewInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	review, err := h.reviewSvc.CreateReview(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}
