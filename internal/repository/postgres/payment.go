package postgres

import (
	"context"
	"encoding/json"
	"time"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/logger"
	"coreshare-backend/internal/repository"
)

const paymentColumns = `id, user_id, rental_id, amount, payment_intent_id, status, payment_method, COALESCE(phone_number, ''), transaction_id, metadata, created_at, updated_at`

type paymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) repository.PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `INSERT INTO payments (user_id, rental_id, amount, payment_intent_id, status, payment_method, phone_number, metadata)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at, updated_at`
	logger.DatabaseCall("INSERT", "payments", "paymentIntentID", p.PaymentIntentID)
	err := r.db.QueryRowContext(ctx, query, p.UserID, p.RentalID, p.Amount, p.PaymentIntentID, p.Status, p.PaymentMethod, p.PhoneNumber, jsonParam(p.Metadata)).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	logger.DatabaseResult("INSERT", 1, err, "paymentID", p.ID)
	return translateError(err)
}

func (r *paymentRepository) GetByID(ctx context.Context, id int32) (*domain.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

func (r *paymentRepository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE payment_intent_id = $1`, paymentIntentID)
}

// GetByPaymentIntentIDForUpdate locks the row until the surrounding transaction ends.
func (r *paymentRepository) GetByPaymentIntentIDForUpdate(ctx context.Context, paymentIntentID string) (*domain.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE payment_intent_id = $1 FOR UPDATE`, paymentIntentID)
}

func (r *paymentRepository) GetLatestByRental(ctx context.Context, rentalID int32) (*domain.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE rental_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, rentalID)
}

func (r *paymentRepository) ListPendingByRental(ctx context.Context, rentalID int32) ([]domain.Payment, error) {
	return r.list(ctx, `SELECT `+paymentColumns+` FROM payments WHERE rental_id = $1 AND status = 'pending' ORDER BY created_at ASC`, rentalID)
}

func (r *paymentRepository) ListPendingBefore(ctx context.Context, createdBefore time.Time, limit int32) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE status = 'pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2`
	return r.list(ctx, query, createdBefore, limit)
}

func (r *paymentRepository) Update(ctx context.Context, id int32, p domain.PaymentPatch) error {
	set := paymentSet(p)
	if set.empty() {
		return nil
	}
	query, args := set.build("payments", id)
	return execOne(ctx, r.db, query, args...)
}

func (r *paymentRepository) UpdateIfPending(ctx context.Context, id int32, p domain.PaymentPatch) (bool, error) {
	set := paymentSet(p)
	if set.empty() {
		return false, nil
	}
	query, args := set.build("payments", id)
	query += ` AND status = 'pending'`
	n, err := execCount(ctx, r.db, query, args...)
	logger.DatabaseResult("UPDATE", n, err, "paymentID", id, "operation", "resolve pending payment")
	return n == 1, err
}

func paymentSet(p domain.PaymentPatch) setList {
	var set setList
	if p.Status != nil {
		set.add("status", *p.Status)
	}
	if p.TransactionID != nil {
		set.add("transaction_id", *p.TransactionID)
	}
	if p.Amount != nil {
		set.add("amount", *p.Amount)
	}
	if p.Metadata != nil {
		set.add("metadata", jsonParam(p.Metadata))
	}
	if !set.empty() {
		set.addRaw("updated_at = NOW()")
	}
	return set
}

func (r *paymentRepository) get(ctx context.Context, query string, args ...any) (*domain.Payment, error) {
	p := &domain.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, args...), p); err != nil {
		return nil, translateError(err)
	}
	return p, nil
}

func (r *paymentRepository) list(ctx context.Context, query string, args ...any) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := scanPayment(rows, &p); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(row scanner, p *domain.Payment) error {
	var metadata []byte
	if err := row.Scan(&p.ID, &p.UserID, &p.RentalID, &p.Amount, &p.PaymentIntentID, &p.Status, &p.PaymentMethod,
		&p.PhoneNumber, &p.TransactionID, &metadata, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return err
	}
	if len(metadata) > 0 {
		p.Metadata = json.RawMessage(append([]byte(nil), metadata...))
	}
	return nil
}

// jsonParam passes JSON to a jsonb column as text; lib/pq would send []byte as bytea.
func jsonParam(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
