package http

import (
	"net/http"

	"coreshare-backend/internal/service"

	"github.com/gorilla/mux"
)

type ChatHandler struct {
	chatSvc service.ChatService
}

func NewChatHandler(chatSvc service.ChatService) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc}
}

func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.chatSvc.CreateSession(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var msg service.ChatMessage
	if err := decodeJSON(r, &msg); err != nil {
		writeError(w, r, err)
		return
	}
	reply, err := h.chatSvc.SendMessage(r.Context(), userID, mux.Vars(r)["id"], msg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}
