package domain

import "time"

type NotificationType string

const (
	NotificationRentalRequest   NotificationType = "rental_request"
	NotificationRentalApproved  NotificationType = "rental_approved"
	NotificationRentalRejected  NotificationType = "rental_rejected"
	NotificationRentalCancelled NotificationType = "rental_cancelled"
	NotificationRentalStarted   NotificationType = "rental_started"
	NotificationRentalCompleted NotificationType = "rental_completed"
	NotificationBilling         NotificationType = "billing"
	NotificationPaymentFailed   NotificationType = "payment_failed"
)

type Notification struct {
	ID        int32            `json:"id"`
	UserID    int32            `json:"userId"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	RelatedID *int32           `json:"relatedId"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}
