package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/logger"
	"coreshare-backend/internal/repository"
)

type reviewService struct {
	reviewRepo repository.ReviewRepository
	rentalRepo repository.RentalRepository
	gpuRepo    repository.GpuRepository
}

func NewReviewService(reviewRepo repository.ReviewRepository, rentalRepo repository.RentalRepository, gpuRepo repository.GpuRepository) ReviewService {
	return &reviewService{
		reviewRepo: reviewRepo,
		rentalRepo: rentalRepo,
		gpuRepo:    gpuRepo,
	}
}

func (s *reviewService) CreateReview(ctx context.Context, reviewerID int32, in ReviewInput) (*domain.Review, error) {
	var v validator
	v.check(in.RentalID > 0, "rentalId", "is required")
	v.check(in.Rating >= 1 && in.Rating <= 5, "rating", "must be between 1 and 5")
	if err := v.err(); err != nil {
		return nil, err
	}

	rental, err := s.rentalRepo.GetByID(ctx, in.RentalID)
	if err != nil {
		return nil, notFound(err, "rental", in.RentalID)
	}
	if rental.RenterID != reviewerID {
		return nil, fmt.Errorf("%w: only the renter can review rental %d", ErrForbidden, in.RentalID)
	}
	if rental.Status != domain.RentalStatusCompleted {
		return nil, fmt.Errorf("%w: rental %d is %s, only completed rentals can be reviewed", ErrInvalidState, in.RentalID, rental.Status)
	}

	review := &domain.Review{
		RentalID:   rental.ID,
		GpuID:      rental.GpuID,
		ReviewerID: reviewerID,
		Rating:     in.Rating,
		Comment:    strings.TrimSpace(in.Comment),
	}
	if err := s.reviewRepo.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: rental %d already reviewed", ErrConflict, in.RentalID)
		}
		return nil, err
	}
	logger.Info("Review created", "reviewID", review.ID, "rentalID", rental.ID, "gpuID", rental.GpuID)
	return review, nil
}

func (s *reviewService) ListGpuReviews(ctx context.Context, gpuID int32) ([]domain.Review, error) {
	if _, err := s.gpuRepo.GetByID(ctx, gpuID); err != nil {
		return nil, notFound(err, "gpu", gpuID)
	}
	return s.reviewRepo.ListByGpu(ctx, gpuID)
}
