package http

import (
	"net/http"
	"strconv"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/service"
)

type GpuHandler struct {
	gpuSvc    service.GpuService
	reviewSvc service.ReviewService
}

func NewGpuHandler(gpuSvc service.GpuService, reviewSvc service.ReviewService) *GpuHandler {
	return &GpuHandler{gpuSvc: gpuSvc, reviewSvc: reviewSvc}
}

func (h *GpuHandler) List(w http.ResponseWriter, r *http.Request) {
	var available *bool
	if raw := r.URL.Query().Get("available"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, &service.ValidationError{Fields: map[string]string{"available": "must be true or false"}})
			return
		}
		available = &v
	}
	gpus, err := h.gpuSvc.ListGpus(r.Context(), available)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(gpus))
}

func (h *GpuHandler) Popular(w http.ResponseWriter, r *http.Request) {
	gpus, err := h.gpuSvc.ListPopularGpus(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(gpus))
}

func (h *GpuHandler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	gpus, err := h.gpuSvc.ListMyGpus(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(gpus))
}

func (h *GpuHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	gpu, err := h.gpuSvc.GetGpu(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gpu)
}

func (h *GpuHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in service.GpuInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	gpu, err := h.gpuSvc.CreateGpu(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, gpu)
}

func (h *GpuHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, id, err := callerAndID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch domain.GpuPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	gpu, err := h.gpuSvc.UpdateGpu(r.Context(), userID, id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gpu)
}

func (h *GpuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, id, err := callerAndID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.gpuSvc.DeleteGpu(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GpuHandler) Rentals(w http.ResponseWriter, r *http.Request) {
	userID, id, err := callerAndID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rentals, err := h.gpuSvc.ListGpuRentals(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rentals))
}

func (h *GpuHandler) Reviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	reviews, err := h.reviewSvc.ListGpuReviews(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(reviews))
}

func callerAndID(r *http.Request) (int32, int32, error) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		return 0, 0, err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return 0, 0, err
	}
	return userID, id, nil
}

// nonNil keeps empty collections encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
