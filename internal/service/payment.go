package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/logger"
	"coreshare-backend/internal/mpesa"
	"coreshare-backend/internal/repository"
	"coreshare-backend/internal/utils"
)

const defaultPushMessage = "Payment request sent. Enter your M-Pesa PIN on your phone to complete the payment."

var payableStatuses = []domain.RentalStatus{
	domain.RentalStatusApproved,
	domain.RentalStatusRequiresPayment,
}

type paymentService struct {
	tx         repository.TxManager
	repos      repository.Repositories
	gateway    PaymentGateway
	dispatcher Dispatcher
	claimTTL   time.Duration
	now        func() time.Time
}

// NewPaymentService wires the payment flow. claimTTL is how long one initiation
// attempt holds a rental before another request may take it over.
func NewPaymentService(tx repository.TxManager, repos repository.Repositories, gateway PaymentGateway, dispatcher Dispatcher, claimTTL time.Duration) PaymentService {
	if claimTTL <= 0 {
		claimTTL = 90 * time.Second
	}
	return &paymentService{
		tx:         tx,
		repos:      repos,
		gateway:    gateway,
		dispatcher: dispatcher,
		claimTTL:   claimTTL,
		now:        time.Now,
	}
}

func (s *paymentService) InitiatePayment(ctx context.Context, renterID, rentalID int32, phoneNumber string, amount *float64) (*PaymentInitiation, error) {
	logger.EnterMethod("paymentService.InitiatePayment", "renterID", renterID, "rentalID", rentalID)

	var v validator
	phone, err := mpesa.NormalizePhone(phoneNumber)
	v.check(err == nil, "phoneNumber", "must be a valid M-Pesa number")
	if amount != nil {
		v.check(*amount >= 1, "amount", "must be at least 1")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	rental, gpu, err := loadRentalAndGpu(ctx, s.repos, rentalID)
	if err != nil {
		return nil, err
	}
	if rental.RenterID != renterID {
		return nil, fmt.Errorf("%w: only the renter can pay for rental %d", ErrForbidden, rentalID)
	}
	if !rental.Status.IsPayable() {
		return nil, fmt.Errorf("%w: rental %d is %s and cannot be paid", ErrInvalidState, rentalID, rental.Status)
	}

	charge := utils.FirstHourCharge(gpu.PricePerHour)
	if amount != nil {
		charge = *amount
	}

	claimed, err := s.repos.Rentals.ClaimPaymentInitiation(ctx, rentalID, s.now().Add(-s.claimTTL))
	if err != nil {
		return nil, err
	}
	if !claimed {
		return s.inFlightInitiation(ctx, rentalID)
	}

	push, err := s.gateway.InitiatePush(ctx, mpesa.PushRequest{
		PhoneNumber:      phone,
		Amount:           charge,
		AccountReference: fmt.Sprintf("RENTAL%d", rentalID),
		Description:      "GPU rental",
	})
	if err != nil {
		s.releaseClaim(ctx, rentalID)
		logger.ExitMethodWithError("paymentService.InitiatePayment", err, "rentalID", rentalID)
		return nil, gatewayError(err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := supersedePending(ctx, repos, rentalID); err != nil {
			return err
		}

		requiresPayment := domain.RentalStatusRequiresPayment
		checkoutID := push.CheckoutRequestID
		ok, err := repos.Rentals.UpdateIfStatus(ctx, rentalID, payableStatuses,
			domain.RentalPatch{Status: &requiresPayment, PaymentIntentID: &checkoutID})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: rental %d changed while initiating payment", ErrInvalidState, rentalID)
		}

		return repos.Payments.Create(ctx, &domain.Payment{
			UserID:          renterID,
			RentalID:        &rentalID,
			Amount:          push.Amount,
			PaymentIntentID: checkoutID,
			Status:          domain.PaymentStatusPending,
			PaymentMethod:   domain.PaymentMethodMpesa,
			PhoneNumber:     push.PhoneNumber,
			Metadata:        push.Raw,
		})
	})
	if err != nil {
		// The customer may still answer the prompt; the callback will find no payment and be logged.
		logger.Error("Payment push sent but not recorded", "rentalID", rentalID,
			"checkoutRequestID", push.CheckoutRequestID, "error", err)
		s.releaseClaim(ctx, rentalID)
		return nil, err
	}

	message := push.CustomerMessage
	if message == "" {
		message = defaultPushMessage
	}
	logger.Info("Payment initiated", "rentalID", rentalID, "checkoutRequestID", push.CheckoutRequestID, "amount", push.Amount)
	logger.ExitMethod("paymentService.InitiatePayment", "rentalID", rentalID)
	return &PaymentInitiation{Message: message, CheckoutRequestID: push.CheckoutRequestID}, nil
}

// inFlightInitiation answers a request that lost the initiation claim. A pending checkout
// already recorded for the rental is handed back instead of pushing a second prompt.
func (s *paymentService) inFlightInitiation(ctx context.Context, rentalID int32) (*PaymentInitiation, error) {
	rental, err := s.repos.Rentals.GetByID(ctx, rentalID)
	if err != nil {
		return nil, notFound(err, "rental", rentalID)
	}
	if !rental.Status.IsPayable() {
		return nil, fmt.Errorf("%w: rental %d is %s and cannot be paid", ErrInvalidState, rentalID, rental.Status)
	}
	if rental.PaymentIntentID != nil {
		p, err := s.repos.Payments.GetByPaymentIntentID(ctx, *rental.PaymentIntentID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		if err == nil && p.Status == domain.PaymentStatusPending {
			logger.Info("Reusing pending payment", "rentalID", rentalID, "checkoutRequestID", p.PaymentIntentID)
			return &PaymentInitiation{Message: defaultPushMessage, CheckoutRequestID: p.PaymentIntentID}, nil
		}
	}
	return nil, fmt.Errorf("%w: a payment for rental %d is already being initiated", ErrConflict, rentalID)
}

func (s *paymentService) releaseClaim(ctx context.Context, rentalID int32) {
	_, err := s.repos.Rentals.UpdateIfStatus(ctx, rentalID, payableStatuses,
		domain.RentalPatch{ClearPaymentInitiated: true})
	if err != nil {
		logger.Warn("Failed to release payment claim", "rentalID", rentalID, "error", err)
	}
}

// supersedePending cancels earlier pending attempts so at most one checkout is live per rental.
func supersedePending(ctx context.Context, repos repository.Repositories, rentalID int32) error {
	pending, err := repos.Payments.ListPendingByRental(ctx, rentalID)
	if err != nil {
		return err
	}
	cancelled := domain.PaymentStatusCancelled
	for _, p := range pending {
		if _, err := repos.Payments.UpdateIfPending(ctx, p.ID, domain.PaymentPatch{Status: &cancelled}); err != nil {
			return err
		}
		logger.Info("Superseded pending payment", "paymentID", p.ID, "checkoutRequestID", p.PaymentIntentID)
	}
	return nil
}

func gatewayError(err error) error {
	var apiErr *mpesa.APIError
	switch {
	case errors.Is(err, mpesa.ErrInvalidPhone):
		return invalidField("phoneNumber", "must be a valid M-Pesa number")
	case errors.Is(err, mpesa.ErrInvalidAmount):
		return invalidField("amount", "must be at least 1")
	case errors.Is(err, mpesa.ErrTimeout):
		return fmt.Errorf("%w: M-Pesa did not respond in time, please try again", ErrGateway)
	case errors.As(err, &apiErr):
		return fmt.Errorf("%w: %s", ErrGateway, apiErr.Message)
	default:
		return fmt.Errorf("%w: M-Pesa is unavailable, please try again later", ErrGateway)
	}
}

// ResolvePayment applies a gateway verdict to the payment identified by checkoutRequestID
// and its rental. Verdicts for payments that are already terminal change nothing.
func (s *paymentService) ResolvePayment(ctx context.Context, checkoutRequestID string, res Resolution) (*domain.Payment, error) {
	logger.EnterMethod("paymentService.ResolvePayment", "checkoutRequestID", checkoutRequestID, "outcome", res.Outcome)

	if res.Outcome == mpesa.OutcomePending {
		p, err := s.repos.Payments.GetByPaymentIntentID(ctx, checkoutRequestID)
		return p, notFound(err, "payment", checkoutRequestID)
	}

	var box outbox
	var payment *domain.Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		p, err := repos.Payments.GetByPaymentIntentIDForUpdate(ctx, checkoutRequestID)
		if err != nil {
			return notFound(err, "payment", checkoutRequestID)
		}
		payment = p

		if p.Status.IsTerminal() {
			if res.Outcome == mpesa.OutcomeSucceeded && p.Status != domain.PaymentStatusSucceeded {
				logger.Warn("Payment succeeded after it was closed, manual refund required",
					"paymentID", p.ID, "checkoutRequestID", checkoutRequestID, "status", p.Status,
					"transactionID", res.TransactionID)
			}
			return nil
		}

		if res.Outcome == mpesa.OutcomeSucceeded {
			return s.applySuccess(ctx, repos, &box, p, res)
		}
		return s.applyFailure(ctx, repos, &box, p, res)
	})
	if err != nil {
		logger.ExitMethodWithError("paymentService.ResolvePayment", err, "checkoutRequestID", checkoutRequestID)
		return nil, err
	}
	box.flush(s.dispatcher)

	logger.ExitMethod("paymentService.ResolvePayment", "checkoutRequestID", checkoutRequestID, "status", payment.Status)
	return payment, nil
}

func (s *paymentService) applySuccess(ctx context.Context, repos repository.Repositories, box *outbox, p *domain.Payment, res Resolution) error {
	succeeded := domain.PaymentStatusSucceeded
	patch := domain.PaymentPatch{Status: &succeeded, Metadata: res.Raw}
	if res.TransactionID != "" {
		patch.TransactionID = &res.TransactionID
	}
	// record what the gateway actually collected
	if res.Amount > 0 {
		collected := utils.Round2(res.Amount)
		patch.Amount = &collected
	}
	if _, err := repos.Payments.UpdateIfPending(ctx, p.ID, patch); err != nil {
		return err
	}
	p.Status = succeeded
	if patch.TransactionID != nil {
		p.TransactionID = patch.TransactionID
	}
	if patch.Amount != nil {
		p.Amount = *patch.Amount
	}
	logger.Info("Payment succeeded", "paymentID", p.ID, "checkoutRequestID", p.PaymentIntentID, "transactionID", res.TransactionID)

	if p.RentalID == nil {
		return nil
	}
	rental, gpu, err := loadRentalAndGpu(ctx, repos, *p.RentalID)
	if err != nil {
		return err
	}

	initial := utils.FirstHourCharge(gpu.PricePerHour)
	now := s.now()
	running := domain.RentalStatusRunning
	paid := domain.RentalPaymentPaid
	ok, err := repos.Rentals.UpdateIfStatus(ctx, rental.ID,
		[]domain.RentalStatus{domain.RentalStatusRequiresPayment},
		domain.RentalPatch{
			Status:                &running,
			PaymentStatus:         &paid,
			StartTime:             &now,
			TotalCost:             &initial,
			ClearPaymentInitiated: true,
		})
	if err != nil {
		return err
	}
	if !ok {
		logger.Warn("Payment succeeded for a rental no longer awaiting payment, manual refund required",
			"paymentID", p.ID, "rentalID", rental.ID, "rentalStatus", rental.Status)
		return nil
	}

	if err := box.record(ctx, repos.Notifications, rental.RenterID, domain.NotificationRentalStarted,
		"Rental Started",
		fmt.Sprintf("Payment received. Your rental of %s is now running.", gpu.Name),
		rental.ID); err != nil {
		return err
	}
	return box.record(ctx, repos.Notifications, gpu.OwnerID, domain.NotificationRentalStarted,
		"Rental Started",
		fmt.Sprintf("Your %s is now rented and running.", gpu.Name),
		rental.ID)
}

func (s *paymentService) applyFailure(ctx context.Context, repos repository.Repositories, box *outbox, p *domain.Payment, res Resolution) error {
	status := domain.PaymentStatusFailed
	if res.Outcome == mpesa.OutcomeCancelled {
		status = domain.PaymentStatusCancelled
	}
	if _, err := repos.Payments.UpdateIfPending(ctx, p.ID, domain.PaymentPatch{Status: &status, Metadata: res.Raw}); err != nil {
		return err
	}
	p.Status = status
	logger.Info("Payment did not complete", "paymentID", p.ID, "checkoutRequestID", p.PaymentIntentID,
		"status", status, "reason", res.Description)

	if p.RentalID == nil {
		return nil
	}
	ok, err := repos.Rentals.UpdateIfStatus(ctx, *p.RentalID,
		[]domain.RentalStatus{domain.RentalStatusRequiresPayment},
		domain.RentalPatch{ClearPaymentInitiated: true})
	if err != nil || !ok {
		return err
	}

	reason := res.Description
	if reason == "" {
		reason = "the payment was not completed"
	}
	return box.record(ctx, repos.Notifications, p.UserID, domain.NotificationPaymentFailed,
		"Payment Failed",
		fmt.Sprintf("Your M-Pesa payment did not go through: %s. You can try again.", reason),
		*p.RentalID)
}

func (s *paymentService) PaymentStatus(ctx context.Context, userID, rentalID int32) (*PaymentStatusResult, error) {
	rental, gpu, err := loadRentalAndGpu(ctx, s.repos, rentalID)
	if err != nil {
		return nil, err
	}
	if userID != rental.RenterID && userID != gpu.OwnerID {
		return nil, fmt.Errorf("%w: rental %d belongs to another user", ErrForbidden, rentalID)
	}

	p, err := s.repos.Payments.GetLatestByRental(ctx, rentalID)
	if err != nil {
		return nil, notFound(err, "payment for rental", rentalID)
	}

	var message string
	if p.Status == domain.PaymentStatusPending {
		st, err := s.gateway.CheckStatus(ctx, p.PaymentIntentID)
		switch {
		case errors.Is(err, mpesa.ErrTimeout):
			message = "M-Pesa is still processing the payment"
		case err != nil:
			return nil, gatewayError(err)
		case st.Outcome == mpesa.OutcomePending:
			message = "Waiting for the customer to confirm the payment"
		default:
			message = st.ResultDescription
			resolved, err := s.ResolvePayment(ctx, p.PaymentIntentID, Resolution{
				Outcome:     st.Outcome,
				Description: st.ResultDescription,
				Raw:         st.Raw,
			})
			if err != nil {
				return nil, err
			}
			p = resolved
			if rental, err = s.repos.Rentals.GetByID(ctx, rentalID); err != nil {
				return nil, notFound(err, "rental", rentalID)
			}
		}
	}

	details := PaymentDetails{
		PaymentID:         p.ID,
		RentalID:          rentalID,
		RentalStatus:      rental.Status,
		Amount:            p.Amount,
		CheckoutRequestID: p.PaymentIntentID,
		Message:           message,
	}
	if p.TransactionID != nil {
		details.TransactionID = *p.TransactionID
	}
	return &PaymentStatusResult{Status: p.Status, Details: details}, nil
}

// HandleCallback resolves a gateway callback body. It never fails: the gateway must always be acknowledged.
func (s *paymentService) HandleCallback(ctx context.Context, raw []byte) {
	cb := mpesa.DecodeCallback(raw)
	if cb.CheckoutRequestID == "" {
		logger.Warn("Ignoring payment callback without checkout request id", "resultCode", cb.ResultCode,
			"description", cb.ResultDescription)
		return
	}
	logger.Info("Payment callback received", "checkoutRequestID", cb.CheckoutRequestID, "resultCode", cb.ResultCode)

	_, err := s.ResolvePayment(ctx, cb.CheckoutRequestID, Resolution{
		Outcome:       cb.Outcome(),
		TransactionID: cb.TransactionID,
		Amount:        cb.Amount,
		Description:   cb.ResultDescription,
		Raw:           cb.Raw,
	})
	if errors.Is(err, ErrNotFound) {
		logger.Warn("Payment callback for unknown checkout", "checkoutRequestID", cb.CheckoutRequestID)
		return
	}
	if err != nil {
		logger.Error("Failed to apply payment callback", "checkoutRequestID", cb.CheckoutRequestID, "error", err)
	}
}

// ReconcilePending polls the gateway for payments still pending after olderThan, for when a
// callback never arrived. It returns how many payments were resolved.
func (s *paymentService) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int32) (int, error) {
	pending, err := s.repos.Payments.ListPendingBefore(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		st, err := s.gateway.CheckStatus(ctx, p.PaymentIntentID)
		if err != nil {
			if errors.Is(err, mpesa.ErrTimeout) {
				logger.Debug("Payment status query timed out", "checkoutRequestID", p.PaymentIntentID)
			} else {
				logger.Warn("Payment status query failed", "checkoutRequestID", p.PaymentIntentID, "error", err)
			}
			continue
		}
		if st.Outcome == mpesa.OutcomePending {
			continue
		}
		if _, err := s.ResolvePayment(ctx, p.PaymentIntentID, Resolution{
			Outcome:     st.Outcome,
			Description: st.ResultDescription,
			Raw:         st.Raw,
		}); err != nil {
			logger.Error("Failed to reconcile payment", "paymentID", p.ID, "error", err)
			continue
		}
		resolved++
	}
	return resolved, nil
}
