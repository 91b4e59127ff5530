package repository

import (
	"context"
	"errors"
	"time"

	"coreshare-backend/internal/domain"
)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("record already exists")
	// ErrIntegrity is returned when a write violates a foreign key or check constraint.
	ErrIntegrity = errors.New("data integrity violation")
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int32) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, id int32, patch domain.UserPatch) error
}

type GpuRepository interface {
	Create(ctx context.Context, gpu *domain.Gpu) error
	GetByID(ctx context.Context, id int32) (*domain.Gpu, error)
	List(ctx context.Context, available *bool) ([]domain.Gpu, error)
	ListByOwner(ctx context.Context, ownerID int32) ([]domain.Gpu, error)
	ListPopular(ctx context.Context, limit int32) ([]domain.GpuPopularity, error)
	Update(ctx context.Context, id int32, patch domain.GpuPatch) error
	Delete(ctx context.Context, id int32) error

	// ClaimAvailable flips available from true to false and reports whether this call did it.
	ClaimAvailable(ctx context.Context, id int32) (bool, error)
	SetAvailable(ctx context.Context, id int32, available bool) error
}

type RentalRepository interface {
	Create(ctx context.Context, rental *domain.Rental) error
	GetByID(ctx context.Context, id int32) (*domain.Rental, error)
	ListByRenter(ctx context.Context, renterID int32) ([]domain.Rental, error)
	ListByGpu(ctx context.Context, gpuID int32) ([]domain.Rental, error)
	// ListByStatusBefore lists rentals in status whose last owner decision predates before:
	// approval time once approved, creation time otherwise.
	ListByStatusBefore(ctx context.Context, status domain.RentalStatus, before time.Time) ([]domain.Rental, error)
	Update(ctx context.Context, id int32, patch domain.RentalPatch) error

	// UpdateIfStatus applies patch only while the rental is in one of expected.
	UpdateIfStatus(ctx context.Context, id int32, expected []domain.RentalStatus, patch domain.RentalPatch) (bool, error)

	// ClaimPaymentInitiation marks a payable rental as having an initiation in progress.
	// A previous claim older than staleBefore is taken over.
	ClaimPaymentInitiation(ctx context.Context, id int32, staleBefore time.Time) (bool, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id int32) (*domain.Payment, error)
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.Payment, error)
	GetByPaymentIntentIDForUpdate(ctx context.Context, paymentIntentID string) (*domain.Payment, error)
	GetLatestByRental(ctx context.Context, rentalID int32) (*domain.Payment, error)
	ListPendingByRental(ctx context.Context, rentalID int32) ([]domain.Payment, error)
	ListPendingBefore(ctx context.Context, createdBefore time.Time, limit int32) ([]domain.Payment, error)
	Update(ctx context.Context, id int32, patch domain.PaymentPatch) error

	// UpdateIfPending applies patch only while the payment is still pending.
	UpdateIfPending(ctx context.Context, id int32, patch domain.PaymentPatch) (bool, error)
}

type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) error
	GetByReviewerAndRental(ctx context.Context, reviewerID, rentalID int32) (*domain.Review, error)
	ListByGpu(ctx context.Context, gpuID int32) ([]domain.Review, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, note *domain.Notification) error
	List(ctx context.Context, userID int32, limit, offset int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, id, userID int32) error
}

// Repositories bundles the repositories bound to one connection or transaction.
type Repositories struct {
	Users         UserRepository
	Gpus          GpuRepository
	Rentals       RentalRepository
	Payments      PaymentRepository
	Reviews       ReviewRepository
	Notifications NotificationRepository
}

// TxManager runs fn inside a database transaction. fn receives repositories bound
// to that transaction; returning an error rolls it back.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
