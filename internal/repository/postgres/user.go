package postgres

import (
	"context"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/logger"
	"coreshare-backend/internal/repository"
)

const userColumns = `id, username, email, password_hash, name, COALESCE(phone_number, ''), role, billing_customer_id, created_at`

type userRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (username, email, password_hash, name, phone_number, role, billing_customer_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`
	logger.DatabaseCall("INSERT", "users", "username", u.Username)
	err := r.db.QueryRowContext(ctx, query, u.Username, u.Email, u.PasswordHash, u.Name, u.PhoneNumber, u.Role, u.BillingCustomerID).
		Scan(&u.ID, &u.CreatedAt)
	logger.DatabaseResult("INSERT", 1, err, "userID", u.ID)
	return translateError(err)
}

func (r *userRepository) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = LOWER($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *userRepository) Update(ctx context.Context, id int32, p domain.UserPatch) error {
	var set setList
	if p.Name != nil {
		set.add("name", *p.Name)
	}
	if p.Email != nil {
		set.add("email", *p.Email)
	}
	if p.PhoneNumber != nil {
		set.add("phone_number", *p.PhoneNumber)
	}
	if p.Role != nil {
		set.add("role", *p.Role)
	}
	if p.BillingCustomerID != nil {
		set.add("billing_customer_id", *p.BillingCustomerID)
	}
	if set.empty() {
		return nil
	}
	query, args := set.build("users", id)
	return execOne(ctx, r.db, query, args...)
}

func scanUser(row scanner) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Name, &u.PhoneNumber, &u.Role, &u.BillingCustomerID, &u.CreatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	return u, nil
}
