package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

type Handlers struct {
	Auth          *AuthHandler
	Gpus          *GpuHandler
	Rentals       *RentalHandler
	Reviews       *ReviewHandler
	Notifications *NotificationHandler
	Chat          *ChatHandler
}

// NewRouter registers every API route. Route names key the security table in config.
func NewRouter(h Handlers, auth *AuthMiddleware) *mux.Router {
	r := mux.NewRouter()
	r.Use(Recoverer, RequestLogger)
	r.HandleFunc("/healthz", health).Methods(http.MethodGet).Name("health")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth.Handler)

	api.HandleFunc("/auth/register", h.Auth.Register).Methods(http.MethodPost).Name("auth.register")
	api.HandleFunc("/auth/login", h.Auth.Login).Methods(http.MethodPost).Name("auth.login")
	api.HandleFunc("/users/me", h.Auth.Me).Methods(http.MethodGet).Name("users.me")

	api.HandleFunc("/gpus", h.Gpus.List).Methods(http.MethodGet).Name("gpus.list")
	api.HandleFunc("/gpus", h.Gpus.Create).Methods(http.MethodPost).Name("gpus.create")
	api.HandleFunc("/gpus/popular", h.Gpus.Popular).Methods(http.MethodGet).Name("gpus.popular")
	api.HandleFunc("/gpus/mine", h.Gpus.Mine).Methods(http.MethodGet).Name("gpus.mine")
	api.HandleFunc("/gpus/{id:[0-9]+}", h.Gpus.Get).Methods(http.MethodGet).Name("gpus.get")
	api.HandleFunc("/gpus/{id:[0-9]+}", h.Gpus.Update).Methods(http.MethodPatch).Name("gpus.update")
	api.HandleFunc("/gpus/{id:[0-9]+}", h.Gpus.Delete).Methods(http.MethodDelete).Name("gpus.delete")
	api.HandleFunc("/gpus/{id:[0-9]+}/rentals", h.Gpus.Rentals).Methods(http.MethodGet).Name("gpus.rentals")
	api.HandleFunc("/gpus/{id:[0-9]+}/reviews", h.Gpus.Reviews).Methods(http.MethodGet).Name("gpus.reviews")

	api.HandleFunc("/rentals", h.Rentals.Create).Methods(http.MethodPost).Name("rentals.create")
	api.HandleFunc("/rentals", h.Rentals.List).Methods(http.MethodGet).Name("rentals.list")
	api.HandleFunc("/rentals/{id:[0-9]+}", h.Rentals.Get).Methods(http.MethodGet).Name("rentals.get")
	api.HandleFunc("/rentals/{id:[0-9]+}/approve", h.Rentals.Approve).Methods(http.MethodPatch).Name("rentals.approve")
	api.HandleFunc("/rentals/{id:[0-9]+}/reject", h.Rentals.Reject).Methods(http.MethodPatch).Name("rentals.reject")
	api.HandleFunc("/rentals/{id:[0-9]+}/cancel", h.Rentals.Cancel).Methods(http.MethodPatch).Name("rentals.cancel")
	api.HandleFunc("/rentals/{id:[0-9]+}/stop", h.Rentals.Stop).Methods(http.MethodPatch).Name("rentals.stop")
	api.HandleFunc("/rentals/{id:[0-9]+}/cost", h.Rentals.Cost).Methods(http.MethodGet).Name("rentals.cost")
	api.HandleFunc("/rentals/{id:[0-9]+}/payment", h.Rentals.InitiatePayment).Methods(http.MethodPost).Name("rentals.payment")
	api.HandleFunc("/rentals/{id:[0-9]+}/payment-status", h.Rentals.PaymentStatus).Methods(http.MethodGet).Name("rentals.payment_status")
	api.HandleFunc("/callback/payment", h.Rentals.PaymentCallback).Methods(http.MethodPost).Name("payments.callback")

	api.HandleFunc("/reviews", h.Reviews.Create).Methods(http.MethodPost).Name("reviews.create")

	api.HandleFunc("/notifications", h.Notifications.List).Methods(http.MethodGet).Name("notifications.list")
	api.HandleFunc("/notifications/{id:[0-9]+}/read", h.Notifications.MarkAsRead).Methods(http.MethodPatch).Name("notifications.read")

	api.HandleFunc("/chat/sessions", h.Chat.CreateSession).Methods(http.MethodPost).Name("chat.sessions.create")
	api.HandleFunc("/chat/sessions/{id}/messages", h.Chat.SendMessage).Methods(http.MethodPost).Name("chat.messages.send")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "route not found"})
	})
	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
