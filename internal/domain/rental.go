package domain

import "time"

type RentalStatus string

const (
	RentalStatusPendingApproval RentalStatus = "pending_approval"
	RentalStatusApproved        RentalStatus = "approved"
	RentalStatusRequiresPayment RentalStatus = "requires_payment"
	RentalStatusRunning         RentalStatus = "running"
	RentalStatusCompleted       RentalStatus = "completed"
	RentalStatusRejected        RentalStatus = "rejected"
	RentalStatusCancelled       RentalStatus = "cancelled"
)

// IsTerminal reports whether no further transition can happen from s.
func (s RentalStatus) IsTerminal() bool {
	switch s {
	case RentalStatusCompleted, RentalStatusRejected, RentalStatusCancelled:
		return true
	}
	return false
}

// HoldsGpu reports whether a rental in status s keeps its GPU unavailable.
func (s RentalStatus) HoldsGpu() bool {
	switch s {
	case RentalStatusPendingApproval, RentalStatusApproved, RentalStatusRequiresPayment, RentalStatusRunning:
		return true
	}
	return false
}

// IsPayable reports whether a payment may be initiated from s.
func (s RentalStatus) IsPayable() bool {
	return s == RentalStatusApproved || s == RentalStatusRequiresPayment
}

type RentalPaymentStatus string

const (
	RentalPaymentUnpaid   RentalPaymentStatus = "unpaid"
	RentalPaymentPaid     RentalPaymentStatus = "paid"
	RentalPaymentRefunded RentalPaymentStatus = "refunded"
)

type Rental struct {
	ID                 int32               `json:"id"`
	GpuID              int32               `json:"gpuId"`
	RenterID           int32               `json:"renterId"`
	Task               string              `json:"task"`
	Status             RentalStatus        `json:"status"`
	StartTime          time.Time           `json:"startTime"`
	EndTime            *time.Time          `json:"endTime"`
	TotalCost          *float64            `json:"totalCost"`
	PaymentIntentID    *string             `json:"paymentIntentId"`
	PaymentStatus      RentalPaymentStatus `json:"paymentStatus"`
	RejectionReason    *string             `json:"rejectionReason,omitempty"`
	ApprovedAt         *time.Time          `json:"approvedAt,omitempty"`
	PaymentInitiatedAt *time.Time          `json:"-"`
	CreatedAt          time.Time           `json:"createdAt"`
}

// RentalPatch is the set of rental fields the orchestrator may change.
// ClearPaymentInitiated resets the initiation marker to NULL.
type RentalPatch struct {
	Status                *RentalStatus
	StartTime             *time.Time
	EndTime               *time.Time
	TotalCost             *float64
	PaymentIntentID       *string
	PaymentStatus         *RentalPaymentStatus
	RejectionReason       *string
	ApprovedAt            *time.Time
	ClearPaymentInitiated bool
}
