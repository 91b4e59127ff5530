package http

import (
	"net/http"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/service"
)

type NotificationHandler struct {
	noteSvc service.NotificationService
}

func NewNotificationHandler(noteSvc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{noteSvc: noteSvc}
}

type notificationPage struct {
	Notifications []domain.Notification `json:"notifications"`
	Total         int32                 `json:"total"`
	Page          int32                 `json:"page"`
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	page := queryInt32(r, "page")
	notes, total, err := h.noteSvc.GetNotifications(r.Context(), userID, page, queryInt32(r, "pageSize"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if page < 1 {
		page = 1
	}
	writeJSON(w, http.StatusOK, notificationPage{Notifications: nonNil(notes), Total: total, Page: page})
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	userID, id, err := callerAndID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.noteSvc.MarkAsRead(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
