package service

import (
	"context"
	"encoding/json"
	"time"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/mpesa"
	"coreshare-backend/internal/utils"
)

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, string, error)
	Login(ctx context.Context, username, password string) (*domain.User, string, error)
}

type UserService interface {
	GetUser(ctx context.Context, userID int32) (*domain.User, error)
}

type GpuService interface {
	ListGpus(ctx context.Context, available *bool) ([]domain.Gpu, error)
	ListPopularGpus(ctx context.Context) ([]domain.GpuPopularity, error)
	ListMyGpus(ctx context.Context, ownerID int32) ([]domain.Gpu, error)
	GetGpu(ctx context.Context, id int32) (*domain.Gpu, error)
	CreateGpu(ctx context.Context, ownerID int32, in GpuInput) (*domain.Gpu, error)
	UpdateGpu(ctx context.Context, ownerID, id int32, patch domain.GpuPatch) (*domain.Gpu, error)
	DeleteGpu(ctx context.Context, ownerID, id int32) error
	ListGpuRentals(ctx context.Context, ownerID, gpuID int32) ([]domain.Rental, error)
}

type RentalService interface {
	CreateRental(ctx context.Context, renterID, gpuID int32, task string) (*domain.Rental, error)
	ApproveRental(ctx context.Context, ownerID, rentalID int32) (*domain.Rental, error)
	RejectRental(ctx context.Context, ownerID, rentalID int32, reason string) (*domain.Rental, error)
	CancelRental(ctx context.Context, renterID, rentalID int32) (*domain.Rental, error)
	StopRental(ctx context.Context, callerID, rentalID int32) (*domain.Rental, error)
	GetRental(ctx context.Context, userID, rentalID int32) (*domain.Rental, error)
	ListRentals(ctx context.Context, renterID int32) ([]domain.Rental, error)
	CurrentCost(ctx context.Context, userID, rentalID int32) (*RentalCost, error)
	ExpirePendingApprovals(ctx context.Context, olderThan time.Duration) (int, error)
}

type PaymentService interface {
	InitiatePayment(ctx context.Context, renterID, rentalID int32, phoneNumber string, amount *float64) (*PaymentInitiation, error)
	PaymentStatus(ctx context.Context, userID, rentalID int32) (*PaymentStatusResult, error)
	ResolvePayment(ctx context.Context, checkoutRequestID string, res Resolution) (*domain.Payment, error)
	HandleCallback(ctx context.Context, raw []byte)
	ReconcilePending(ctx context.Context, olderThan time.Duration, limit int32) (int, error)
}

type ReviewService interface {
	CreateReview(ctx context.Context, reviewerID int32, in ReviewInput) (*domain.Review, error)
	ListGpuReviews(ctx context.Context, gpuID int32) ([]domain.Review, error)
}

type NotificationService interface {
	GetNotifications(ctx context.Context, userID int32, page, pageSize int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, userID, notificationID int32) error
}

type ChatService interface {
	CreateSession(ctx context.Context, userID int32) (*ChatSessionView, error)
	SendMessage(ctx context.Context, userID int32, sessionID string, msg ChatMessage) (*ChatReply, error)
	ExpireSessions(now time.Time) int
}

// PaymentGateway is the subset of the M-Pesa client the payment flow depends on.
type PaymentGateway interface {
	InitiatePush(ctx context.Context, in mpesa.PushRequest) (*mpesa.PushResponse, error)
	CheckStatus(ctx context.Context, checkoutRequestID string) (*mpesa.StatusResult, error)
}

// Dispatcher delivers committed notifications out of band.
type Dispatcher interface {
	Enqueue(notes ...domain.Notification)
}

type RegisterInput struct {
	Username    string          `json:"username"`
	Email       string          `json:"email"`
	Password    string          `json:"password"`
	Name        string          `json:"name"`
	PhoneNumber string          `json:"phoneNumber"`
	Role        domain.UserRole `json:"role"`
}

type GpuInput struct {
	Name         string  `json:"name"`
	Manufacturer string  `json:"manufacturer"`
	VRAM         int32   `json:"vram"`
	CudaCores    int32   `json:"cudaCores"`
	Description  string  `json:"description"`
	PricePerHour float64 `json:"pricePerHour"`
}

type ReviewInput struct {
	RentalID int32  `json:"rentalId"`
	Rating   int32  `json:"rating"`
	Comment  string `json:"comment"`
}

// RentalCost is the cost of a rental so far. Final is set once the rental completed.
type RentalCost struct {
	RentalID int32               `json:"rentalId"`
	Status   domain.RentalStatus `json:"status"`
	Final    bool                `json:"final"`
	utils.RentalCostBreakdown
}

type PaymentInitiation struct {
	Message           string `json:"message"`
	CheckoutRequestID string `json:"checkoutRequestId"`
}

type PaymentStatusResult struct {
	Status  domain.PaymentStatus `json:"status"`
	Details PaymentDetails       `json:"details"`
}

type PaymentDetails struct {
	PaymentID         int32               `json:"paymentId"`
	RentalID          int32               `json:"rentalId"`
	RentalStatus      domain.RentalStatus `json:"rentalStatus"`
	Amount            float64             `json:"amount"`
	CheckoutRequestID string              `json:"checkoutRequestId"`
	TransactionID     string              `json:"transactionId,omitempty"`
	Message           string              `json:"message,omitempty"`
}

// Resolution is a gateway verdict for one checkout, from a poll or a callback.
type Resolution struct {
	Outcome       mpesa.Outcome
	TransactionID string
	Amount        float64
	Description   string
	Raw           json.RawMessage
}
