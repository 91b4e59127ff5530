package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/mpesa"

	"github.com/stretchr/testify/require"
)

// fakeGateway stands in for the M-Pesa client.
type fakeGateway struct {
	mu        sync.Mutex
	pushes    []mpesa.PushRequest
	pushErr   error
	statuses  map[string]*mpesa.StatusResult
	statusErr error
	next      int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: map[string]*mpesa.StatusResult{}}
}

func (g *fakeGateway) InitiatePush(ctx context.Context, in mpesa.PushRequest) (*mpesa.PushResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pushes = append(g.pushes, in)
	if g.pushErr != nil {
		return nil, g.pushErr
	}
	g.next++
	return &mpesa.PushResponse{
		MerchantRequestID: fmt.Sprintf("mr-%d", g.next),
		CheckoutRequestID: fmt.Sprintf("ws_CO_%d", g.next),
		CustomerMessage:   "Success. Request accepted for processing",
		PhoneNumber:       in.PhoneNumber,
		Amount:            in.Amount,
		Raw:               []byte(`{"ResponseCode":"0"}`),
	}, nil
}

func (g *fakeGateway) CheckStatus(ctx context.Context, checkoutRequestID string) (*mpesa.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	if st, ok := g.statuses[checkoutRequestID]; ok {
		return st, nil
	}
	return &mpesa.StatusResult{CheckoutRequestID: checkoutRequestID, Outcome: mpesa.OutcomePending}, nil
}

func (g *fakeGateway) setStatus(checkoutID string, outcome mpesa.Outcome, desc string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[checkoutID] = &mpesa.StatusResult{
		CheckoutRequestID: checkoutID,
		Outcome:           outcome,
		ResultDescription: desc,
		Raw:               []byte(`{"ResultCode":"0"}`),
	}
}

func (g *fakeGateway) pushCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pushes)
}

// lifecycle wires the rental and payment services over one in-memory database.
type lifecycle struct {
	ctx      context.Context
	db       *memDB
	disp     *recordingDispatcher
	gateway  *fakeGateway
	rentals  *rentalService
	payments *paymentService
	clock    time.Time

	owner    domain.User
	renter   domain.User
	stranger domain.User
	gpu      domain.Gpu
}

func newLifecycle(t *testing.T) *lifecycle {
	t.Helper()
	lc := &lifecycle{
		ctx:     context.Background(),
		db:      newMemDB(),
		disp:    &recordingDispatcher{},
		gateway: newFakeGateway(),
		clock:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return lc.clock }
	lc.db.clock = now

	lc.rentals = NewRentalService(lc.db, lc.db.repos(), lc.disp).(*rentalService)
	lc.rentals.now = now
	lc.payments = NewPaymentService(lc.db, lc.db.repos(), lc.gateway, lc.disp, 90*time.Second).(*paymentService)
	lc.payments.now = now

	lc.owner = lc.db.addUser(domain.User{Username: "owner", Name: "Olive Owner", Email: "owner@example.com", Role: domain.UserRoleRentee})
	lc.renter = lc.db.addUser(domain.User{Username: "renter", Name: "Ray Renter", Email: "renter@example.com", Role: domain.UserRoleRenter})
	lc.stranger = lc.db.addUser(domain.User{Username: "stranger", Name: "Sam", Email: "sam@example.com", Role: domain.UserRoleBoth})
	lc.gpu = lc.db.addGpu(domain.Gpu{OwnerID: lc.owner.ID, Name: "RTX 4090", Manufacturer: "NVIDIA", VRAM: 24, PricePerHour: 75, Available: true})
	return lc
}

func (lc *lifecycle) advance(d time.Duration) {
	lc.clock = lc.clock.Add(d)
}

// approvedRental walks a new rental through creation and owner approval.
func (lc *lifecycle) approvedRental(t *testing.T) domain.Rental {
	t.Helper()
	rt, err := lc.rentals.CreateRental(lc.ctx, lc.renter.ID, lc.gpu.ID, "train a model")
	require.NoError(t, err)
	_, err = lc.rentals.ApproveRental(lc.ctx, lc.owner.ID, rt.ID)
	require.NoError(t, err)
	return lc.db.rental(rt.ID)
}

// awaitingPayment returns a rental with a pending STK push and its checkout id.
func (lc *lifecycle) awaitingPayment(t *testing.T) (domain.Rental, string) {
	t.Helper()
	rt := lc.approvedRental(t)
	started, err := lc.payments.InitiatePayment(lc.ctx, lc.renter.ID, rt.ID, "0712345678", nil)
	require.NoError(t, err)
	return lc.db.rental(rt.ID), started.CheckoutRequestID
}

// runningRental returns a rental whose payment succeeded.
func (lc *lifecycle) runningRental(t *testing.T) domain.Rental {
	t.Helper()
	rt, checkoutID := lc.awaitingPayment(t)
	_, err := lc.payments.ResolvePayment(lc.ctx, checkoutID, Resolution{Outcome: mpesa.OutcomeSucceeded, TransactionID: "QK12345"})
	require.NoError(t, err)
	return lc.db.rental(rt.ID)
}
