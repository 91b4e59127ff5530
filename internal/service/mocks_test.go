package service

import (
	"context"
	"time"

	"coreshare-backend/internal/domain"

	"github.com/stretchr/testify/mock"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}
func (m *MockUserRepo) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}
func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}
func (m *MockUserRepo) Update(ctx context.Context, id int32, patch domain.UserPatch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

type MockGpuRepo struct {
	mock.Mock
}

func (m *MockGpuRepo) Create(ctx context.Context, gpu *domain.Gpu) error {
	args := m.Called(ctx, gpu)
	return args.Error(0)
}
func (m *MockGpuRepo) GetByID(ctx context.Context, id int32) (*domain.Gpu, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Gpu), args.Error(1)
}
func (m *MockGpuRepo) List(ctx context.Context, available *bool) ([]domain.Gpu, error) {
	args := m.Called(ctx, available)
	return args.Get(0).([]domain.Gpu), args.Error(1)
}
func (m *MockGpuRepo) ListByOwner(ctx context.Context, ownerID int32) ([]domain.Gpu, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).([]domain.Gpu), args.Error(1)
}
func (m *MockGpuRepo) ListPopular(ctx context.Context, limit int32) ([]domain.GpuPopularity, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.GpuPopularity), args.Error(1)
}
func (m *MockGpuRepo) Update(ctx context.Context, id int32, patch domain.GpuPatch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}
func (m *MockGpuRepo) Delete(ctx context.Context, id int32) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockGpuRepo) ClaimAvailable(ctx context.Context, id int32) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}
func (m *MockGpuRepo) SetAvailable(ctx context.Context, id int32, available bool) error {
	args := m.Called(ctx, id, available)
	return args.Error(0)
}

type MockRentalRepo struct {
	mock.Mock
}

func (m *MockRentalRepo) Create(ctx context.Context, rental *domain.Rental) error {
	args := m.Called(ctx, rental)
	return args.Error(0)
}
func (m *MockRentalRepo) GetByID(ctx context.Context, id int32) (*domain.Rental, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Rental), args.Error(1)
}
func (m *MockRentalRepo) ListByRenter(ctx context.Context, renterID int32) ([]domain.Rental, error) {
	args := m.Called(ctx, renterID)
	return args.Get(0).([]domain.Rental), args.Error(1)
}
func (m *MockRentalRepo) ListByGpu(ctx context.Context, gpuID int32) ([]domain.Rental, error) {
	args := m.Called(ctx, gpuID)
	return args.Get(0).([]domain.Rental), args.Error(1)
}
func (m *MockRentalRepo) ListByStatusBefore(ctx context.Context, status domain.RentalStatus, createdBefore time.Time) ([]domain.Rental, error) {
	args := m.Called(ctx, status, createdBefore)
	return args.Get(0).([]domain.Rental), args.Error(1)
}
func (m *MockRentalRepo) Update(ctx context.Context, id int32, patch domain.RentalPatch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}
func (m *MockRentalRepo) UpdateIfStatus(ctx context.Context, id int32, expected []domain.RentalStatus, patch domain.RentalPatch) (bool, error) {
	args := m.Called(ctx, id, expected, patch)
	return args.Bool(0), args.Error(1)
}
func (m *MockRentalRepo) ClaimPaymentInitiation(ctx context.Context, id int32, staleBefore time.Time) (bool, error) {
	args := m.Called(ctx, id, staleBefore)
	return args.Bool(0), args.Error(1)
}

type MockReviewRepo struct {
	mock.Mock
}

func (m *MockReviewRepo) Create(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}
func (m *MockReviewRepo) GetByReviewerAndRental(ctx context.Context, reviewerID, rentalID int32) (*domain.Review, error) {
	args := m.Called(ctx, reviewerID, rentalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}
func (m *MockReviewRepo) ListByGpu(ctx context.Context, gpuID int32) ([]domain.Review, error) {
	args := m.Called(ctx, gpuID)
	return args.Get(0).([]domain.Review), args.Error(1)
}

type MockNotificationRepo struct {
	mock.Mock
}

func (m *MockNotificationRepo) Create(ctx context.Context, note *domain.Notification) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}
func (m *MockNotificationRepo) List(ctx context.Context, userID int32, limit, offset int32) ([]domain.Notification, int32, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]domain.Notification), args.Get(1).(int32), args.Error(2)
}
func (m *MockNotificationRepo) MarkAsRead(ctx context.Context, id, userID int32) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}
