package postgres

import (
	"context"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/logger"
	"coreshare-backend/internal/repository"
)

type reviewRepository struct {
	db DBTX
}

func NewReviewRepository(db DBTX) repository.ReviewRepository {
	return &reviewRepository{db: db}
}

// Create relies on the unique (reviewer_id, rental_id) index; a duplicate surfaces as repository.ErrConflict.
func (r *reviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	query := `INSERT INTO reviews (rental_id, gpu_id, reviewer_id, rating, comment)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	logger.DatabaseCall("INSERT", "reviews", "rentalID", rv.RentalID, "reviewerID", rv.ReviewerID)
	err := r.db.QueryRowContext(ctx, query, rv.RentalID, rv.GpuID, rv.ReviewerID, rv.Rating, rv.Comment).Scan(&rv.ID, &rv.CreatedAt)
	logger.DatabaseResult("INSERT", 1, err, "reviewID", rv.ID)
	return translateError(err)
}

func (r *reviewRepository) GetByReviewerAndRental(ctx context.Context, reviewerID, rentalID int32) (*domain.Review, error) {
	query := `SELECT id, rental_id, gpu_id, reviewer_id, rating, COALESCE(comment, ''), created_at
	          FROM reviews WHERE reviewer_id = $1 AND rental_id = $2`
	rv := &domain.Review{}
	err := r.db.QueryRowContext(ctx, query, reviewerID, rentalID).
		Scan(&rv.ID, &rv.RentalID, &rv.GpuID, &rv.ReviewerID, &rv.Rating, &rv.Comment, &rv.CreatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	return rv, nil
}

func (r *reviewRepository) ListByGpu(ctx context.Context, gpuID int32) ([]domain.Review, error) {
	query := `SELECT id, rental_id, gpu_id, reviewer_id, rating, COALESCE(comment, ''), created_at
	          FROM reviews WHERE gpu_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, gpuID)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var reviews []domain.Review
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.ID, &rv.RentalID, &rv.GpuID, &rv.ReviewerID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, rv)
	}
	return reviews, rows.Err()
}
