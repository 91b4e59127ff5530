package postgres

import (
	"context"
	"fmt"
	"time"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/logger"
	"coreshare-backend/internal/repository"

	"github.com/lib/pq"
)

const rentalColumns = `id, gpu_id, renter_id, task, status, start_time, end_time, total_cost, payment_intent_id, payment_status, rejection_reason, approved_at, payment_initiated_at, created_at`

type rentalRepository struct {
	db DBTX
}

func NewRentalRepository(db DBTX) repository.RentalRepository {
	return &rentalRepository{db: db}
}

func (r *rentalRepository) Create(ctx context.Context, rt *domain.Rental) error {
	query := `INSERT INTO rentals (gpu_id, renter_id, task, status, start_time, payment_status)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`
	logger.DatabaseCall("INSERT", "rentals", "gpuID", rt.GpuID, "renterID", rt.RenterID)
	err := r.db.QueryRowContext(ctx, query, rt.GpuID, rt.RenterID, rt.Task, rt.Status, rt.StartTime, rt.PaymentStatus).
		Scan(&rt.ID, &rt.CreatedAt)
	logger.DatabaseResult("INSERT", 1, err, "rentalID", rt.ID)
	return translateError(err)
}

func (r *rentalRepository) GetByID(ctx context.Context, id int32) (*domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE id = $1`
	rt := &domain.Rental{}
	if err := scanRental(r.db.QueryRowContext(ctx, query, id), rt); err != nil {
		return nil, translateError(err)
	}
	return rt, nil
}

func (r *rentalRepository) ListByRenter(ctx context.Context, renterID int32) ([]domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE renter_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, renterID)
}

func (r *rentalRepository) ListByGpu(ctx context.Context, gpuID int32) ([]domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE gpu_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, gpuID)
}

func (r *rentalRepository) ListByStatusBefore(ctx context.Context, status domain.RentalStatus, before time.Time) ([]domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals
	          WHERE status = $1 AND COALESCE(approved_at, created_at) < $2 ORDER BY created_at ASC`
	return r.list(ctx, query, status, before)
}

func (r *rentalRepository) Update(ctx context.Context, id int32, p domain.RentalPatch) error {
	set := rentalSet(p)
	if set.empty() {
		return nil
	}
	query, args := set.build("rentals", id)
	logger.DatabaseCall("UPDATE", "rentals", "rentalID", id)
	return execOne(ctx, r.db, query, args...)
}

func (r *rentalRepository) UpdateIfStatus(ctx context.Context, id int32, expected []domain.RentalStatus, p domain.RentalPatch) (bool, error) {
	set := rentalSet(p)
	if set.empty() {
		return false, nil
	}
	statuses := make([]string, len(expected))
	for i, s := range expected {
		statuses[i] = string(s)
	}
	query, args := set.build("rentals", id)
	args = append(args, pq.Array(statuses))
	query += fmt.Sprintf(" AND status = ANY($%d)", len(args))

	logger.DatabaseCall("UPDATE", "rentals guarded", "rentalID", id, "expected", statuses)
	n, err := execCount(ctx, r.db, query, args...)
	logger.DatabaseResult("UPDATE", n, err, "rentalID", id)
	return n == 1, err
}

func (r *rentalRepository) ClaimPaymentInitiation(ctx context.Context, id int32, staleBefore time.Time) (bool, error) {
	query := `UPDATE rentals SET payment_initiated_at = NOW()
	          WHERE id = $1
	            AND status IN ('approved', 'requires_payment')
	            AND (payment_initiated_at IS NULL OR payment_initiated_at < $2)`
	n, err := execCount(ctx, r.db, query, id, staleBefore)
	logger.DatabaseResult("UPDATE", n, err, "rentalID", id, "operation", "claim payment initiation")
	return n == 1, err
}

// rentalSet is the static field-to-column mapping for RentalPatch.
func rentalSet(p domain.RentalPatch) setList {
	var set setList
	if p.Status != nil {
		set.add("status", *p.Status)
	}
	if p.StartTime != nil {
		set.add("start_time", *p.StartTime)
	}
	if p.EndTime != nil {
		set.add("end_time", *p.EndTime)
	}
	if p.TotalCost != nil {
		set.add("total_cost", *p.TotalCost)
	}
	if p.PaymentIntentID != nil {
		set.add("payment_intent_id", *p.PaymentIntentID)
	}
	if p.PaymentStatus != nil {
		set.add("payment_status", *p.PaymentStatus)
	}
	if p.RejectionReason != nil {
		set.add("rejection_reason", *p.RejectionReason)
	}
	if p.ApprovedAt != nil {
		set.add("approved_at", *p.ApprovedAt)
	}
	if p.ClearPaymentInitiated {
		set.addRaw("payment_initiated_at = NULL")
	}
	return set
}

func (r *rentalRepository) list(ctx context.Context, query string, args ...any) ([]domain.Rental, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var rentals []domain.Rental
	for rows.Next() {
		var rt domain.Rental
		if err := scanRental(rows, &rt); err != nil {
			return nil, err
		}
		rentals = append(rentals, rt)
	}
	return rentals, rows.Err()
}

func scanRental(row scanner, rt *domain.Rental) error {
	return row.Scan(&rt.ID, &rt.GpuID, &rt.RenterID, &rt.Task, &rt.Status, &rt.StartTime, &rt.EndTime, &rt.TotalCost,
		&rt.PaymentIntentID, &rt.PaymentStatus, &rt.RejectionReason, &rt.ApprovedAt, &rt.PaymentInitiatedAt, &rt.CreatedAt)
}
