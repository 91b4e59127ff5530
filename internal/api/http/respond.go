package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"coreshare-backend/internal/logger"
	"coreshare-backend/internal/service"

	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

// writeError maps service errors onto HTTP statuses. Unexpected errors are logged and
// answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorStatus(err)
	if status == http.StatusInternalServerError && !errors.Is(err, service.ErrGateway) {
		logger.FromContext(r.Context()).Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}

func errorStatus(err error) (int, errorResponse) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorResponse{Error: "invalid input", Fields: verr.Fields}
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidState):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, errorResponse{Error: err.Error()}
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: err.Error()}
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: err.Error()}
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	case errors.Is(err, service.ErrGateway):
		return http.StatusInternalServerError, errorResponse{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed JSON body", service.ErrInvalidInput)
	}
	return nil
}

func pathID(r *http.Request, name string) (int32, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, &service.ValidationError{Fields: map[string]string{name: "must be a positive integer"}}
	}
	return int32(id), nil
}

func queryInt32(r *http.Request, name string) int32 {
	v, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 32)
	if err != nil {
		return 0
	}
	return int32(v)
}
