package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/logger"
	"coreshare-backend/internal/repository"
	"coreshare-backend/internal/utils"
)

const (
	approvalExpiredReason = "Approval window expired"
	// initiationGrace covers a push between its claim and the pending payment row.
	initiationGrace = 5 * time.Minute
)

type rentalService struct {
	tx         repository.TxManager
	repos      repository.Repositories
	dispatcher Dispatcher
	now        func() time.Time
}

func NewRentalService(tx repository.TxManager, repos repository.Repositories, dispatcher Dispatcher) RentalService {
	return &rentalService{
		tx:         tx,
		repos:      repos,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

func (s *rentalService) CreateRental(ctx context.Context, renterID, gpuID int32, task string) (*domain.Rental, error) {
	logger.EnterMethod("rentalService.CreateRental", "renterID", renterID, "gpuID", gpuID)

	var v validator
	task = strings.TrimSpace(task)
	v.check(gpuID > 0, "gpuId", "is required")
	v.check(task != "", "task", "is required")
	if err := v.err(); err != nil {
		return nil, err
	}

	renter, err := s.repos.Users.GetByID(ctx, renterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !renter.Role.CanRent() {
		return nil, fmt.Errorf("%w: role %q cannot rent gpus", ErrForbidden, renter.Role)
	}

	var box outbox
	rental := &domain.Rental{
		GpuID:         gpuID,
		RenterID:      renterID,
		Task:          task,
		Status:        domain.RentalStatusPendingApproval,
		StartTime:     s.now(),
		PaymentStatus: domain.RentalPaymentUnpaid,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		gpu, err := repos.Gpus.GetByID(ctx, gpuID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return invalidField("gpuId", "does not exist")
			}
			return err
		}

		claimed, err := repos.Gpus.ClaimAvailable(ctx, gpuID)
		if err != nil {
			return err
		}
		if !claimed {
			return fmt.Errorf("%w: gpu %d is not available", ErrInvalidState, gpuID)
		}

		if err := repos.Rentals.Create(ctx, rental); err != nil {
			return err
		}

		return box.record(ctx, repos.Notifications, gpu.OwnerID, domain.NotificationRentalRequest,
			"New Rental Request",
			fmt.Sprintf("%s requested to rent %s for: %s", renter.Name, gpu.Name, task),
			rental.ID)
	})
	if err != nil {
		logger.ExitMethodWithError("rentalService.CreateRental", err, "gpuID", gpuID)
		return nil, err
	}
	box.flush(s.dispatcher)

	logger.Info("Rental requested", "rentalID", rental.ID, "gpuID", gpuID, "renterID", renterID)
	logger.ExitMethod("rentalService.CreateRental", "rentalID", rental.ID)
	return rental, nil
}

func (s *rentalService) ApproveRental(ctx context.Context, ownerID, rentalID int32) (*domain.Rental, error) {
	var box outbox
	var rental *domain.Rental
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		rt, gpu, err := loadRentalAndGpu(ctx, repos, rentalID)
		if err != nil {
			return err
		}
		if gpu.OwnerID != ownerID {
			return fmt.Errorf("%w: only the gpu owner can approve rental %d", ErrForbidden, rentalID)
		}
		if rt.Status != domain.RentalStatusPendingApproval {
			return fmt.Errorf("%w: rental %d is %s, not pending approval", ErrInvalidState, rentalID, rt.Status)
		}

		now := s.now()
		approved := domain.RentalStatusApproved
		ok, err := repos.Rentals.UpdateIfStatus(ctx, rentalID,
			[]domain.RentalStatus{domain.RentalStatusPendingApproval},
			domain.RentalPatch{Status: &approved, ApprovedAt: &now})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: rental %d changed while approving", ErrInvalidState, rentalID)
		}
		rt.Status = approved
		rt.ApprovedAt = &now
		rental = rt

		return box.record(ctx, repos.Notifications, rt.RenterID, domain.NotificationRentalApproved,
			"Rental Approved",
			fmt.Sprintf("Your request to rent %s was approved. Complete the payment to start.", gpu.Name),
			rt.ID)
	})
	if err != nil {
		return nil, err
	}
	box.flush(s.dispatcher)
	logger.Info("Rental approved", "rentalID", rentalID, "ownerID", ownerID)
	return rental, nil
}

func (s *rentalService) RejectRental(ctx context.Context, ownerID, rentalID int32, reason string) (*domain.Rental, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Rejected by owner"
	}

	var box outbox
	var rental *domain.Rental
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		rt, gpu, err := loadRentalAndGpu(ctx, repos, rentalID)
		if err != nil {
			return err
		}
		if gpu.OwnerID != ownerID {
			return fmt.Errorf("%w: only the gpu owner can reject rental %d", ErrForbidden, rentalID)
		}
		if rt.Status != domain.RentalStatusPendingApproval {
			return fmt.Errorf("%w: rental %d is %s, not pending approval", ErrInvalidState, rentalID, rt.Status)
		}

		rejected := domain.RentalStatusRejected
		ok, err := repos.Rentals.UpdateIfStatus(ctx, rentalID,
			[]domain.RentalStatus{domain.RentalStatusPendingApproval},
			domain.RentalPatch{Status: &rejected, RejectionReason: &reason})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: rental %d changed while rejecting", ErrInvalidState, rentalID)
		}
		if err := repos.Gpus.SetAvailable(ctx, gpu.ID, true); err != nil {
			return err
		}
		rt.Status = rejected
		rt.RejectionReason = &reason
		rental = rt

		return box.record(ctx, repos.Notifications, rt.RenterID, domain.NotificationRentalRejected,
			"Rental Rejected",
			fmt.Sprintf("Your request to rent %s was rejected: %s", gpu.Name, reason),
			rt.ID)
	})
	if err != nil {
		return nil, err
	}
	box.flush(s.dispatcher)
	logger.Info("Rental rejected", "rentalID", rentalID, "ownerID", ownerID)
	return rental, nil
}

func (s *rentalService) CancelRental(ctx context.Context, renterID, rentalID int32) (*domain.Rental, error) {
	var box outbox
	var rental *domain.Rental
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		rt, gpu, err := loadRentalAndGpu(ctx, repos, rentalID)
		if err != nil {
			return err
		}
		if rt.RenterID != renterID {
			return fmt.Errorf("%w: only the renter can cancel rental %d", ErrForbidden, rentalID)
		}
		if err := cancelRental(ctx, repos, rt, gpu, ""); err != nil {
			return err
		}
		rental = rt

		return box.record(ctx, repos.Notifications, gpu.OwnerID, domain.NotificationRentalCancelled,
			"Rental Cancelled",
			fmt.Sprintf("The rental request for %s was cancelled by the renter.", gpu.Name),
			rt.ID)
	})
	if err != nil {
		return nil, err
	}
	box.flush(s.dispatcher)
	logger.Info("Rental cancelled", "rentalID", rentalID, "renterID", renterID)
	return rental, nil
}

var cancellableStatuses = []domain.RentalStatus{
	domain.RentalStatusPendingApproval,
	domain.RentalStatusApproved,
	domain.RentalStatusRequiresPayment,
}

// cancelRental moves rt to cancelled, frees the gpu and cancels any live payment attempt.
func cancelRental(ctx context.Context, repos repository.Repositories, rt *domain.Rental, gpu *domain.Gpu, reason string) error {
	cancelled := domain.RentalStatusCancelled
	patch := domain.RentalPatch{Status: &cancelled, ClearPaymentInitiated: true}
	if reason != "" {
		patch.RejectionReason = &reason
	}
	ok, err := repos.Rentals.UpdateIfStatus(ctx, rt.ID, cancellableStatuses, patch)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: rental %d is %s and can no longer be cancelled", ErrInvalidState, rt.ID, rt.Status)
	}
	if err := repos.Gpus.SetAvailable(ctx, gpu.ID, true); err != nil {
		return err
	}

	pending, err := repos.Payments.ListPendingByRental(ctx, rt.ID)
	if err != nil {
		return err
	}
	status := domain.PaymentStatusCancelled
	for _, p := range pending {
		if _, err := repos.Payments.UpdateIfPending(ctx, p.ID, domain.PaymentPatch{Status: &status}); err != nil {
			return err
		}
	}

	rt.Status = cancelled
	rt.PaymentInitiatedAt = nil
	if reason != "" {
		rt.RejectionReason = &reason
	}
	return nil
}

func (s *rentalService) StopRental(ctx context.Context, callerID, rentalID int32) (*domain.Rental, error) {
	logger.EnterMethod("rentalService.StopRental", "callerID", callerID, "rentalID", rentalID)

	var box outbox
	var rental *domain.Rental
	var totalCost float64
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		rt, gpu, err := loadRentalAndGpu(ctx, repos, rentalID)
		if err != nil {
			return err
		}
		if callerID != rt.RenterID && callerID != gpu.OwnerID {
			return fmt.Errorf("%w: only the renter or the gpu owner can stop rental %d", ErrForbidden, rentalID)
		}
		if rt.Status != domain.RentalStatusRunning {
			return fmt.Errorf("%w: rental %d is %s, not running", ErrInvalidState, rentalID, rt.Status)
		}

		end := s.now()
		if end.Before(rt.StartTime) {
			end = rt.StartTime
		}
		cost, err := utils.CalculateRentalCost(rt.StartTime, end, gpu.PricePerHour)
		if err != nil {
			return err
		}

		completed := domain.RentalStatusCompleted
		ok, err := repos.Rentals.UpdateIfStatus(ctx, rentalID,
			[]domain.RentalStatus{domain.RentalStatusRunning},
			domain.RentalPatch{Status: &completed, EndTime: &end, TotalCost: &cost})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: rental %d is no longer running", ErrInvalidState, rentalID)
		}
		if err := repos.Gpus.SetAvailable(ctx, gpu.ID, true); err != nil {
			return err
		}
		rt.Status = completed
		rt.EndTime = &end
		rt.TotalCost = &cost
		rental = rt
		totalCost = cost

		if err := box.record(ctx, repos.Notifications, rt.RenterID, domain.NotificationBilling,
			"Rental Billing",
			fmt.Sprintf("Your rental of %s has ended. Total cost: %.2f", gpu.Name, cost),
			rt.ID); err != nil {
			return err
		}
		return box.record(ctx, repos.Notifications, gpu.OwnerID, domain.NotificationRentalCompleted,
			"Rental Completed",
			fmt.Sprintf("The rental of your %s has completed. Earned: %.2f", gpu.Name, cost),
			rt.ID)
	})
	if err != nil {
		logger.ExitMethodWithError("rentalService.StopRental", err, "rentalID", rentalID)
		return nil, err
	}
	box.flush(s.dispatcher)

	logger.Info("Rental completed", "rentalID", rentalID, "stoppedBy", callerID, "totalCost", totalCost)
	logger.ExitMethod("rentalService.StopRental", "rentalID", rentalID)
	return rental, nil
}

func (s *rentalService) GetRental(ctx context.Context, userID, rentalID int32) (*domain.Rental, error) {
	rt, gpu, err := loadRentalAndGpu(ctx, s.repos, rentalID)
	if err != nil {
		return nil, err
	}
	if userID != rt.RenterID && userID != gpu.OwnerID {
		return nil, fmt.Errorf("%w: rental %d belongs to another user", ErrForbidden, rentalID)
	}
	return rt, nil
}

func (s *rentalService) ListRentals(ctx context.Context, renterID int32) ([]domain.Rental, error) {
	return s.repos.Rentals.ListByRenter(ctx, renterID)
}

func (s *rentalService) CurrentCost(ctx context.Context, userID, rentalID int32) (*RentalCost, error) {
	rt, gpu, err := loadRentalAndGpu(ctx, s.repos, rentalID)
	if err != nil {
		return nil, err
	}
	if userID != rt.RenterID && userID != gpu.OwnerID {
		return nil, fmt.Errorf("%w: rental %d belongs to another user", ErrForbidden, rentalID)
	}

	var end time.Time
	switch rt.Status {
	case domain.RentalStatusRunning:
		end = s.now()
		if end.Before(rt.StartTime) {
			end = rt.StartTime
		}
	case domain.RentalStatusCompleted:
		if rt.EndTime == nil {
			return nil, fmt.Errorf("%w: completed rental %d has no end time", ErrInvalidState, rentalID)
		}
		end = *rt.EndTime
	default:
		return nil, fmt.Errorf("%w: rental %d is %s and has not started", ErrInvalidState, rentalID, rt.Status)
	}

	breakdown, err := utils.CalculateRentalCostWithBreakdown(rt.StartTime, end, gpu.PricePerHour)
	if err != nil {
		return nil, err
	}
	cost := &RentalCost{
		RentalID:            rt.ID,
		Status:              rt.Status,
		Final:               rt.Status == domain.RentalStatusCompleted,
		RentalCostBreakdown: breakdown,
	}
	if cost.Final && rt.TotalCost != nil {
		cost.TotalCost = *rt.TotalCost
	}
	return cost, nil
}

// paymentInFlight reports whether a push for rt may still complete: a checkout is pending
// or an initiation was claimed moments ago.
func paymentInFlight(ctx context.Context, repos repository.Repositories, rt *domain.Rental, now time.Time) (bool, error) {
	if rt.PaymentInitiatedAt != nil && now.Sub(*rt.PaymentInitiatedAt) < initiationGrace {
		return true, nil
	}
	pending, err := repos.Payments.ListPendingByRental(ctx, rt.ID)
	if err != nil {
		return false, err
	}
	return len(pending) > 0, nil
}

// ExpirePendingApprovals cancels rentals still waiting for the owner, or for the renter to
// start paying, after olderThan. Each rental is expired in its own transaction.
func (s *rentalService) ExpirePendingApprovals(ctx context.Context, olderThan time.Duration) (int, error) {
	now := s.now()
	cutoff := now.Add(-olderThan)
	var stale []domain.Rental
	for _, status := range cancellableStatuses {
		rentals, err := s.repos.Rentals.ListByStatusBefore(ctx, status, cutoff)
		if err != nil {
			return 0, err
		}
		stale = append(stale, rentals...)
	}

	expired := 0
	for i := range stale {
		rentalID := stale[i].ID
		var box outbox
		err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			rt, gpu, err := loadRentalAndGpu(ctx, repos, rentalID)
			if err != nil {
				return err
			}
			if !slices.Contains(cancellableStatuses, rt.Status) {
				return nil
			}
			if rt.Status != domain.RentalStatusPendingApproval {
				busy, err := paymentInFlight(ctx, repos, rt, now)
				if err != nil || busy {
					return err
				}
			}
			if err := cancelRental(ctx, repos, rt, gpu, approvalExpiredReason); err != nil {
				return err
			}
			if err := box.record(ctx, repos.Notifications, rt.RenterID, domain.NotificationRentalCancelled,
				"Rental Expired",
				fmt.Sprintf("Your rental request for %s expired before it started.", gpu.Name),
				rt.ID); err != nil {
				return err
			}
			if err := box.record(ctx, repos.Notifications, gpu.OwnerID, domain.NotificationRentalCancelled,
				"Rental Expired",
				fmt.Sprintf("A rental request for %s expired and the gpu is available again.", gpu.Name),
				rt.ID); err != nil {
				return err
			}
			expired++
			return nil
		})
		if err != nil {
			logger.Error("Failed to expire rental", "rentalID", rentalID, "error", err)
			continue
		}
		box.flush(s.dispatcher)
	}

	if expired > 0 {
		logger.Info("Expired stale rentals", "count", expired, "cutoff", cutoff)
	}
	return expired, nil
}

func loadRentalAndGpu(ctx context.Context, repos repository.Repositories, rentalID int32) (*domain.Rental, *domain.Gpu, error) {
	rt, err := repos.Rentals.GetByID(ctx, rentalID)
	if err != nil {
		return nil, nil, notFound(err, "rental", rentalID)
	}
	gpu, err := repos.Gpus.GetByID(ctx, rt.GpuID)
	if err != nil {
		return nil, nil, notFound(err, "gpu", rt.GpuID)
	}
	return rt, gpu, nil
}
