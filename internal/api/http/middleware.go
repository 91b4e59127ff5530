package http

import (
	"net/http"
	"strings"
	"time"

	"coreshare-backend/internal/config"
	"coreshare-backend/internal/logger"
	"coreshare-backend/internal/security"
	"coreshare-backend/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const requestIDHeader = "X-Request-ID"

type AuthMiddleware struct {
	tokenManager security.TokenManager
}

func NewAuthMiddleware(tm security.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm}
}

// Handler authenticates requests according to the security level of the matched route.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}
		if config.GetSecurityLevel(name) == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		if token == "" {
			writeError(w, r, service.ErrUnauthenticated)
			return
		}
		claims, err := m.tokenManager.ValidateToken(token)
		if err != nil {
			logger.Debug("Rejected token", "route", name, "error", err)
			writeError(w, r, service.ErrUnauthenticated)
			return
		}

		ctx := withClaims(r.Context(), claims)
		ctx = logger.WithRequest(ctx, requestID(r), claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLogger tags each request with an id and logs it once it has been served.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		ctx := logger.WithRequest(r.Context(), id, 0)
		r = r.WithContext(ctx)
		next.ServeHTTP(rec, r)
		logger.HTTPRequest(r.Context(), r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// Recoverer turns a handler panic into a 500.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logger.FromContext(r.Context()).Error("Panic serving request", "panic", p, "path", r.URL.Path)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func requestID(r *http.Request) string {
	return r.Header.Get(requestIDHeader)
}
