package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/repository"
)

// memDB is an in-memory stand-in for postgres. Transactions are serialized and
// rolled back by restoring a snapshot.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users         map[int32]domain.User
	gpus          map[int32]domain.Gpu
	rentals       map[int32]domain.Rental
	payments      map[int32]domain.Payment
	reviews       map[int32]domain.Review
	notifications map[int32]domain.Notification
	nextID        int32
	clock         func() time.Time
}

func newMemDB() *memDB {
	return &memDB{
		users:         map[int32]domain.User{},
		gpus:          map[int32]domain.Gpu{},
		rentals:       map[int32]domain.Rental{},
		payments:      map[int32]domain.Payment{},
		reviews:       map[int32]domain.Review{},
		notifications: map[int32]domain.Notification{},
		clock:         time.Now,
	}
}

func (db *memDB) repos() repository.Repositories {
	return repository.Repositories{
		Users:         memUsers{db},
		Gpus:          memGpus{db},
		Rentals:       memRentals{db},
		Payments:      memPayments{db},
		Reviews:       memReviews{db},
		Notifications: memNotifications{db},
	}
}

func (db *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	snap := db.snapshot()
	db.mu.Unlock()

	if err := fn(ctx, db.repos()); err != nil {
		db.mu.Lock()
		db.restore(snap)
		db.mu.Unlock()
		return err
	}
	return nil
}

type memSnapshot struct {
	users         map[int32]domain.User
	gpus          map[int32]domain.Gpu
	rentals       map[int32]domain.Rental
	payments      map[int32]domain.Payment
	reviews       map[int32]domain.Review
	notifications map[int32]domain.Notification
}

func (db *memDB) snapshot() memSnapshot {
	return memSnapshot{
		users:         copyMap(db.users),
		gpus:          copyMap(db.gpus),
		rentals:       copyMap(db.rentals),
		payments:      copyMap(db.payments),
		reviews:       copyMap(db.reviews),
		notifications: copyMap(db.notifications),
	}
}

func (db *memDB) restore(s memSnapshot) {
	db.users = s.users
	db.gpus = s.gpus
	db.rentals = s.rentals
	db.payments = s.payments
	db.reviews = s.reviews
	db.notifications = s.notifications
}

func copyMap[V any](m map[int32]V) map[int32]V {
	out := make(map[int32]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (db *memDB) id() int32 {
	db.nextID++
	return db.nextID
}

// test helpers

func (db *memDB) addUser(u domain.User) domain.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	u.ID = db.id()
	db.users[u.ID] = u
	return u
}

func (db *memDB) addGpu(g domain.Gpu) domain.Gpu {
	db.mu.Lock()
	defer db.mu.Unlock()
	g.ID = db.id()
	db.gpus[g.ID] = g
	return g
}

func (db *memDB) addRental(r domain.Rental) domain.Rental {
	db.mu.Lock()
	defer db.mu.Unlock()
	r.ID = db.id()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = db.clock()
	}
	db.rentals[r.ID] = r
	return r
}

func (db *memDB) addPayment(p domain.Payment) domain.Payment {
	db.mu.Lock()
	defer db.mu.Unlock()
	p.ID = db.id()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = db.clock()
	}
	db.payments[p.ID] = p
	return p
}

func (db *memDB) gpu(id int32) domain.Gpu {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.gpus[id]
}

func (db *memDB) rental(id int32) domain.Rental {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.rentals[id]
}

func (db *memDB) paymentByIntent(intent string) (domain.Payment, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, p := range db.payments {
		if p.PaymentIntentID == intent {
			return p, true
		}
	}
	return domain.Payment{}, false
}

func (db *memDB) paymentsFor(rentalID int32) []domain.Payment {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []domain.Payment
	for _, p := range db.payments {
		if p.RentalID != nil && *p.RentalID == rentalID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (db *memDB) notesFor(userID int32) []domain.Notification {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []domain.Notification
	for _, n := range db.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memUsers struct{ db *memDB }

func (r memUsers) Create(ctx context.Context, u *domain.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if existing.Username == u.Username {
			return repository.ErrConflict
		}
	}
	u.ID = r.db.id()
	u.CreatedAt = r.db.clock()
	r.db.users[u.ID] = *u
	return nil
}

func (r memUsers) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r memUsers) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memUsers) Update(ctx context.Context, id int32, p domain.UserPatch) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	r.db.users[id] = u
	return nil
}

type memGpus struct{ db *memDB }

func (r memGpus) Create(ctx context.Context, g *domain.Gpu) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	g.ID = r.db.id()
	g.CreatedAt = r.db.clock()
	r.db.gpus[g.ID] = *g
	return nil
}

func (r memGpus) GetByID(ctx context.Context, id int32) (*domain.Gpu, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	g, ok := r.db.gpus[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &g, nil
}

func (r memGpus) List(ctx context.Context, available *bool) ([]domain.Gpu, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Gpu
	for _, g := range r.db.gpus {
		if available == nil || g.Available == *available {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r memGpus) ListByOwner(ctx context.Context, ownerID int32) ([]domain.Gpu, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Gpu
	for _, g := range r.db.gpus {
		if g.OwnerID == ownerID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r memGpus) ListPopular(ctx context.Context, limit int32) ([]domain.GpuPopularity, error) {
	return nil, nil
}

func (r memGpus) Update(ctx context.Context, id int32, p domain.GpuPatch) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	g, ok := r.db.gpus[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.PricePerHour != nil {
		g.PricePerHour = *p.PricePerHour
	}
	if p.Available != nil {
		g.Available = *p.Available
	}
	r.db.gpus[id] = g
	return nil
}

func (r memGpus) Delete(ctx context.Context, id int32) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.gpus[id]; !ok {
		return repository.ErrNotFound
	}
	for _, rt := range r.db.rentals {
		if rt.GpuID == id {
			return repository.ErrIntegrity
		}
	}
	delete(r.db.gpus, id)
	return nil
}

func (r memGpus) ClaimAvailable(ctx context.Context, id int32) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	g, ok := r.db.gpus[id]
	if !ok || !g.Available {
		return false, nil
	}
	g.Available = false
	r.db.gpus[id] = g
	return true, nil
}

func (r memGpus) SetAvailable(ctx context.Context, id int32, available bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	g, ok := r.db.gpus[id]
	if !ok {
		return repository.ErrNotFound
	}
	g.Available = available
	r.db.gpus[id] = g
	return nil
}

type memRentals struct{ db *memDB }

func (r memRentals) Create(ctx context.Context, rt *domain.Rental) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rt.ID = r.db.id()
	rt.CreatedAt = r.db.clock()
	r.db.rentals[rt.ID] = *rt
	return nil
}

func (r memRentals) GetByID(ctx context.Context, id int32) (*domain.Rental, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rt, ok := r.db.rentals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rt, nil
}

func (r memRentals) filter(keep func(domain.Rental) bool) []domain.Rental {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Rental
	for _, rt := range r.db.rentals {
		if keep(rt) {
			out = append(out, rt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memRentals) ListByRenter(ctx context.Context, renterID int32) ([]domain.Rental, error) {
	return r.filter(func(rt domain.Rental) bool { return rt.RenterID == renterID }), nil
}

func (r memRentals) ListByGpu(ctx context.Context, gpuID int32) ([]domain.Rental, error) {
	return r.filter(func(rt domain.Rental) bool { return rt.GpuID == gpuID }), nil
}

func (r memRentals) ListByStatusBefore(ctx context.Context, status domain.RentalStatus, before time.Time) ([]domain.Rental, error) {
	return r.filter(func(rt domain.Rental) bool {
		since := rt.CreatedAt
		if rt.ApprovedAt != nil {
			since = *rt.ApprovedAt
		}
		return rt.Status == status && since.Before(before)
	}), nil
}

func (r memRentals) Update(ctx context.Context, id int32, p domain.RentalPatch) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rt, ok := r.db.rentals[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.db.rentals[id] = applyRentalPatch(rt, p)
	return nil
}

func (r memRentals) UpdateIfStatus(ctx context.Context, id int32, expected []domain.RentalStatus, p domain.RentalPatch) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rt, ok := r.db.rentals[id]
	if !ok {
		return false, nil
	}
	for _, s := range expected {
		if rt.Status == s {
			r.db.rentals[id] = applyRentalPatch(rt, p)
			return true, nil
		}
	}
	return false, nil
}

func (r memRentals) ClaimPaymentInitiation(ctx context.Context, id int32, staleBefore time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rt, ok := r.db.rentals[id]
	if !ok || !rt.Status.IsPayable() {
		return false, nil
	}
	if rt.PaymentInitiatedAt != nil && !rt.PaymentInitiatedAt.Before(staleBefore) {
		return false, nil
	}
	now := r.db.clock()
	rt.PaymentInitiatedAt = &now
	r.db.rentals[id] = rt
	return true, nil
}

func applyRentalPatch(rt domain.Rental, p domain.RentalPatch) domain.Rental {
	if p.Status != nil {
		rt.Status = *p.Status
	}
	if p.StartTime != nil {
		rt.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		rt.EndTime = p.EndTime
	}
	if p.TotalCost != nil {
		rt.TotalCost = p.TotalCost
	}
	if p.PaymentIntentID != nil {
		rt.PaymentIntentID = p.PaymentIntentID
	}
	if p.PaymentStatus != nil {
		rt.PaymentStatus = *p.PaymentStatus
	}
	if p.RejectionReason != nil {
		rt.RejectionReason = p.RejectionReason
	}
	if p.ApprovedAt != nil {
		rt.ApprovedAt = p.ApprovedAt
	}
	if p.ClearPaymentInitiated {
		rt.PaymentInitiatedAt = nil
	}
	return rt
}

type memPayments struct{ db *memDB }

func (r memPayments) Create(ctx context.Context, p *domain.Payment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.payments {
		if existing.PaymentIntentID == p.PaymentIntentID {
			return repository.ErrConflict
		}
	}
	p.ID = r.db.id()
	p.CreatedAt = r.db.clock()
	p.UpdatedAt = p.CreatedAt
	r.db.payments[p.ID] = *p
	return nil
}

func (r memPayments) GetByID(ctx context.Context, id int32) (*domain.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r memPayments) GetByPaymentIntentID(ctx context.Context, intent string) (*domain.Payment, error) {
	p, ok := r.db.paymentByIntent(intent)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r memPayments) GetByPaymentIntentIDForUpdate(ctx context.Context, intent string) (*domain.Payment, error) {
	return r.GetByPaymentIntentID(ctx, intent)
}

func (r memPayments) GetLatestByRental(ctx context.Context, rentalID int32) (*domain.Payment, error) {
	all := r.db.paymentsFor(rentalID)
	if len(all) == 0 {
		return nil, repository.ErrNotFound
	}
	p := all[len(all)-1]
	return &p, nil
}

func (r memPayments) ListPendingByRental(ctx context.Context, rentalID int32) ([]domain.Payment, error) {
	var out []domain.Payment
	for _, p := range r.db.paymentsFor(rentalID) {
		if p.Status == domain.PaymentStatusPending {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memPayments) ListPendingBefore(ctx context.Context, before time.Time, limit int32) ([]domain.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Payment
	for _, p := range r.db.payments {
		if p.Status == domain.PaymentStatusPending && p.CreatedAt.Before(before) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if int32(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memPayments) Update(ctx context.Context, id int32, p domain.PaymentPatch) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	pay, ok := r.db.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.db.payments[id] = applyPaymentPatch(pay, p)
	return nil
}

func (r memPayments) UpdateIfPending(ctx context.Context, id int32, p domain.PaymentPatch) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	pay, ok := r.db.payments[id]
	if !ok || pay.Status != domain.PaymentStatusPending {
		return false, nil
	}
	r.db.payments[id] = applyPaymentPatch(pay, p)
	return true, nil
}

func applyPaymentPatch(pay domain.Payment, p domain.PaymentPatch) domain.Payment {
	if p.Status != nil {
		pay.Status = *p.Status
	}
	if p.TransactionID != nil {
		pay.TransactionID = p.TransactionID
	}
	if p.Amount != nil {
		pay.Amount = *p.Amount
	}
	if p.Metadata != nil {
		pay.Metadata = p.Metadata
	}
	return pay
}

type memReviews struct{ db *memDB }

func (r memReviews) Create(ctx context.Context, rv *domain.Review) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.reviews {
		if existing.ReviewerID == rv.ReviewerID && existing.RentalID == rv.RentalID {
			return repository.ErrConflict
		}
	}
	rv.ID = r.db.id()
	rv.CreatedAt = r.db.clock()
	r.db.reviews[rv.ID] = *rv
	return nil
}

func (r memReviews) GetByReviewerAndRental(ctx context.Context, reviewerID, rentalID int32) (*domain.Review, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, rv := range r.db.reviews {
		if rv.ReviewerID == reviewerID && rv.RentalID == rentalID {
			return &rv, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memReviews) ListByGpu(ctx context.Context, gpuID int32) ([]domain.Review, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Review
	for _, rv := range r.db.reviews {
		if rv.GpuID == gpuID {
			out = append(out, rv)
		}
	}
	return out, nil
}

type memNotifications struct{ db *memDB }

func (r memNotifications) Create(ctx context.Context, n *domain.Notification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n.ID = r.db.id()
	n.CreatedAt = r.db.clock()
	r.db.notifications[n.ID] = *n
	return nil
}

func (r memNotifications) List(ctx context.Context, userID int32, limit, offset int32) ([]domain.Notification, int32, error) {
	all := r.db.notesFor(userID)
	total := int32(len(all))
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r memNotifications) MarkAsRead(ctx context.Context, id, userID int32) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n, ok := r.db.notifications[id]
	if !ok || n.UserID != userID {
		return repository.ErrNotFound
	}
	n.Read = true
	r.db.notifications[id] = n
	return nil
}

// recordingDispatcher collects everything handed to it after commit.
type recordingDispatcher struct {
	mu    sync.Mutex
	notes []domain.Notification
}

func (d *recordingDispatcher) Enqueue(notes ...domain.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notes = append(d.notes, notes...)
}

func (d *recordingDispatcher) types() []domain.NotificationType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.NotificationType, len(d.notes))
	for i, n := range d.notes {
		out[i] = n.Type
	}
	return out
}
