package http

import (
	"context"
	"io"
	"net/http"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/service"
)

type RentalHandler struct {
	rentalSvc  service.RentalService
	paymentSvc service.PaymentService
}

func NewRentalHandler(rentalSvc service.RentalService, paymentSvc service.PaymentService) *RentalHandler {
	return &RentalHandler{rentalSvc: rentalSvc, paymentSvc: paymentSvc}
}

type createRentalRequest struct {
	GpuID int32  `json:"gpuId"`
	Task  string `json:"task"`
}

type rejectRentalRequest struct {
	Reason string `json:"reason"`
}

type paymentRequest struct {
	PhoneNumber string   `json:"phoneNumber"`
	Amount      *float64 `json:"amount"`
}

// callbackAck is the only body the gateway expects back, whatever happened.
var callbackAck = map[string]any{"ResultCode": 0, "ResultDesc": "Accepted"}

func (h *RentalHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createRentalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := h.rentalSvc.CreateRental(r.Context(), userID, req.GpuID, req.Task)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rt)
}

func (h *RentalHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	rentals, err := h.rentalSvc.ListRentals(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rentals))
}

func (h *RentalHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.rentalSvc.GetRental)
}

func (h *RentalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.rentalSvc.ApproveRental)
}

func (h *RentalHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.rentalSvc.CancelRental)
}

func (h *RentalHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.rentalSvc.StopRental)
}

func (h *RentalHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRentalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.transition(w, r, func(ctx context.Context, userID, id int32) (*domain.Rental, error) {
		return h.rentalSvc.RejectRental(ctx, userID, id, req.Reason)
	})
}

func (h *RentalHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID, id int32) (*domain.Rental, error)) {
	userID, id, err := callerAndID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := fn(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (h *RentalHandler) Cost(w http.ResponseWriter, r *http.Request) {
	userID, id, err := callerAndID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cost, err := h.rentalSvc.CurrentCost(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cost)
}

func (h *RentalHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	userID, id, err := callerAndID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.paymentSvc.InitiatePayment(r.Context(), userID, id, req.PhoneNumber, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *RentalHandler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	userID, id, err := callerAndID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.paymentSvc.PaymentStatus(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PaymentCallback accepts the gateway's asynchronous result. Processing failures are
// logged by the service and never surfaced to the gateway. Resolution runs to completion
// even if the gateway hangs up first.
func (h *RentalHandler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err == nil {
		h.paymentSvc.HandleCallback(context.WithoutCancel(r.Context()), raw)
	}
	writeJSON(w, http.StatusOK, callbackAck)
}
