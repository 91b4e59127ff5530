package http

import (
	"context"
	"time"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockAuthService struct{ mock.Mock }

func (m *MockAuthService) Register(ctx context.Context, in service.RegisterInput) (*domain.User, string, error) {
	args := m.Called(ctx, in)
	u, _ := args.Get(0).(*domain.User)
	return u, args.String(1), args.Error(2)
}

func (m *MockAuthService) Login(ctx context.Context, username, password string) (*domain.User, string, error) {
	args := m.Called(ctx, username, password)
	u, _ := args.Get(0).(*domain.User)
	return u, args.String(1), args.Error(2)
}

type MockUserService struct{ mock.Mock }

func (m *MockUserService) GetUser(ctx context.Context, userID int32) (*domain.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

type MockGpuService struct{ mock.Mock }

func (m *MockGpuService) ListGpus(ctx context.Context, available *bool) ([]domain.Gpu, error) {
	args := m.Called(ctx, available)
	g, _ := args.Get(0).([]domain.Gpu)
	return g, args.Error(1)
}

func (m *MockGpuService) ListPopularGpus(ctx context.Context) ([]domain.GpuPopularity, error) {
	args := m.Called(ctx)
	g, _ := args.Get(0).([]domain.GpuPopularity)
	return g, args.Error(1)
}

func (m *MockGpuService) ListMyGpus(ctx context.Context, ownerID int32) ([]domain.Gpu, error) {
	args := m.Called(ctx, ownerID)
	g, _ := args.Get(0).([]domain.Gpu)
	return g, args.Error(1)
}

func (m *MockGpuService) GetGpu(ctx context.Context, id int32) (*domain.Gpu, error) {
	args := m.Called(ctx, id)
	g, _ := args.Get(0).(*domain.Gpu)
	return g, args.Error(1)
}

func (m *MockGpuService) CreateGpu(ctx context.Context, ownerID int32, in service.GpuInput) (*domain.Gpu, error) {
	args := m.Called(ctx, ownerID, in)
	g, _ := args.Get(0).(*domain.Gpu)
	return g, args.Error(1)
}

func (m *MockGpuService) UpdateGpu(ctx context.Context, ownerID, id int32, patch domain.GpuPatch) (*domain.Gpu, error) {
	args := m.Called(ctx, ownerID, id, patch)
	g, _ := args.Get(0).(*domain.Gpu)
	return g, args.Error(1)
}

func (m *MockGpuService) DeleteGpu(ctx context.Context, ownerID, id int32) error {
	return m.Called(ctx, ownerID, id).Error(0)
}

func (m *MockGpuService) ListGpuRentals(ctx context.Context, ownerID, gpuID int32) ([]domain.Rental, error) {
	args := m.Called(ctx, ownerID, gpuID)
	r, _ := args.Get(0).([]domain.Rental)
	return r, args.Error(1)
}

type MockRentalService struct{ mock.Mock }

func (m *MockRentalService) rental(args mock.Arguments) (*domain.Rental, error) {
	r, _ := args.Get(0).(*domain.Rental)
	return r, args.Error(1)
}

func (m *MockRentalService) CreateRental(ctx context.Context, renterID, gpuID int32, task string) (*domain.Rental, error) {
	return m.rental(m.Called(ctx, renterID, gpuID, task))
}

func (m *MockRentalService) ApproveRental(ctx context.Context, ownerID, rentalID int32) (*domain.Rental, error) {
	return m.rental(m.Called(ctx, ownerID, rentalID))
}

func (m *MockRentalService) RejectRental(ctx context.Context, ownerID, rentalID int32, reason string) (*domain.Rental, error) {
	return m.rental(m.Called(ctx, ownerID, rentalID, reason))
}

func (m *MockRentalService) CancelRental(ctx context.Context, renterID, rentalID int32) (*domain.Rental, error) {
	return m.rental(m.Called(ctx, renterID, rentalID))
}

func (m *MockRentalService) StopRental(ctx context.Context, callerID, rentalID int32) (*domain.Rental, error) {
	return m.rental(m.Called(ctx, callerID, rentalID))
}

func (m *MockRentalService) GetRental(ctx context.Context, userID, rentalID int32) (*domain.Rental, error) {
	return m.rental(m.Called(ctx, userID, rentalID))
}

func (m *MockRentalService) ListRentals(ctx context.Context, renterID int32) ([]domain.Rental, error) {
	args := m.Called(ctx, renterID)
	r, _ := args.Get(0).([]domain.Rental)
	return r, args.Error(1)
}

func (m *MockRentalService) CurrentCost(ctx context.Context, userID, rentalID int32) (*service.RentalCost, error) {
	args := m.Called(ctx, userID, rentalID)
	c, _ := args.Get(0).(*service.RentalCost)
	return c, args.Error(1)
}

func (m *MockRentalService) ExpirePendingApprovals(ctx context.Context, olderThan time.Duration) (int, error) {
	args := m.Called(ctx, olderThan)
	return args.Int(0), args.Error(1)
}

type MockPaymentService struct{ mock.Mock }

func (m *MockPaymentService) InitiatePayment(ctx context.Context, renterID, rentalID int32, phoneNumber string, amount *float64) (*service.PaymentInitiation, error) {
	args := m.Called(ctx, renterID, rentalID, phoneNumber, amount)
	p, _ := args.Get(0).(*service.PaymentInitiation)
	return p, args.Error(1)
}

func (m *MockPaymentService) PaymentStatus(ctx context.Context, userID, rentalID int32) (*service.PaymentStatusResult, error) {
	args := m.Called(ctx, userID, rentalID)
	p, _ := args.Get(0).(*service.PaymentStatusResult)
	return p, args.Error(1)
}

func (m *MockPaymentService) ResolvePayment(ctx context.Context, checkoutRequestID string, res service.Resolution) (*domain.Payment, error) {
	args := m.Called(ctx, checkoutRequestID, res)
	p, _ := args.Get(0).(*domain.Payment)
	return p, args.Error(1)
}

func (m *MockPaymentService) HandleCallback(ctx context.Context, raw []byte) {
	m.Called(ctx, raw)
}

func (m *MockPaymentService) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int32) (int, error) {
	args := m.Called(ctx, olderThan, limit)
	return args.Int(0), args.Error(1)
}

type MockReviewService struct{ mock.Mock }

func (m *MockReviewService) CreateReview(ctx context.Context, reviewerID int32, in service.ReviewInput) (*domain.Review, error) {
	args := m.Called(ctx, reviewerID, in)
	r, _ := args.Get(0).(*domain.Review)
	return r, args.Error(1)
}

func (m *MockReviewService) ListGpuReviews(ctx context.Context, gpuID int32) ([]domain.Review, error) {
	args := m.Called(ctx, gpuID)
	r, _ := args.Get(0).([]domain.Review)
	return r, args.Error(1)
}

type MockNotificationService struct{ mock.Mock }

func (m *MockNotificationService) GetNotifications(ctx context.Context, userID int32, page, pageSize int32) ([]domain.Notification, int32, error) {
	args := m.Called(ctx, userID, page, pageSize)
	n, _ := args.Get(0).([]domain.Notification)
	return n, int32(args.Int(1)), args.Error(2)
}

func (m *MockNotificationService) MarkAsRead(ctx context.Context, userID, notificationID int32) error {
	return m.Called(ctx, userID, notificationID).Error(0)
}

type MockChatService struct{ mock.Mock }

func (m *MockChatService) CreateSession(ctx context.Context, userID int32) (*service.ChatSessionView, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(*service.ChatSessionView)
	return s, args.Error(1)
}

func (m *MockChatService) SendMessage(ctx context.Context, userID int32, sessionID string, msg service.ChatMessage) (*service.ChatReply, error) {
	args := m.Called(ctx, userID, sessionID, msg)
	r, _ := args.Get(0).(*service.ChatReply)
	return r, args.Error(1)
}

func (m *MockChatService) ExpireSessions(now time.Time) int {
	return m.Called(now).Int(0)
}
