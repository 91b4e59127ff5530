package domain

import (
	"encoding/json"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusPending
}

const PaymentMethodMpesa = "mpesa"

type Payment struct {
	ID              int32           `json:"id"`
	UserID          int32           `json:"userId"`
	RentalID        *int32          `json:"rentalId"`
	Amount          float64         `json:"amount"`
	PaymentIntentID string          `json:"paymentIntentId"`
	Status          PaymentStatus   `json:"status"`
	PaymentMethod   string          `json:"paymentMethod"`
	PhoneNumber     string          `json:"phoneNumber"`
	TransactionID   *string         `json:"transactionId,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type PaymentPatch struct {
	Status        *PaymentStatus
	TransactionID *string
	Amount        *float64
	Metadata      json.RawMessage
}
