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

type gpuService struct {
	gpuRepo      repository.GpuRepository
	rentalRepo   repository.RentalRepository
	userRepo     repository.UserRepository
	popularLimit int32
}

func NewGpuService(gpuRepo repository.GpuRepository, rentalRepo repository.RentalRepository, userRepo repository.UserRepository, popularLimit int32) GpuService {
	if popularLimit <= 0 {
		popularLimit = 10
	}
	return &gpuService{
		gpuRepo:      gpuRepo,
		rentalRepo:   rentalRepo,
		userRepo:     userRepo,
		popularLimit: popularLimit,
	}
}

func (s *gpuService) ListGpus(ctx context.Context, available *bool) ([]domain.Gpu, error) {
	return s.gpuRepo.List(ctx, available)
}

func (s *gpuService) ListPopularGpus(ctx context.Context) ([]domain.GpuPopularity, error) {
	return s.gpuRepo.ListPopular(ctx, s.popularLimit)
}

func (s *gpuService) ListMyGpus(ctx context.Context, ownerID int32) ([]domain.Gpu, error) {
	return s.gpuRepo.ListByOwner(ctx, ownerID)
}

func (s *gpuService) GetGpu(ctx context.Context, id int32) (*domain.Gpu, error) {
	gpu, err := s.gpuRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "gpu", id)
	}
	return gpu, nil
}

func (s *gpuService) CreateGpu(ctx context.Context, ownerID int32, in GpuInput) (*domain.Gpu, error) {
	logger.EnterMethod("gpuService.CreateGpu", "ownerID", ownerID, "name", in.Name)

	in.Name = strings.TrimSpace(in.Name)
	in.Manufacturer = strings.TrimSpace(in.Manufacturer)
	var v validator
	v.check(in.Name != "", "name", "is required")
	v.check(in.Manufacturer != "", "manufacturer", "is required")
	v.check(in.VRAM > 0, "vram", "must be positive")
	v.check(in.CudaCores >= 0, "cudaCores", "must not be negative")
	v.check(in.PricePerHour > 0, "pricePerHour", "must be positive")
	if err := v.err(); err != nil {
		return nil, err
	}

	owner, err := s.userRepo.GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !owner.Role.CanList() {
		return nil, fmt.Errorf("%w: role %q cannot list gpus", ErrForbidden, owner.Role)
	}

	gpu := &domain.Gpu{
		OwnerID:      ownerID,
		Name:         in.Name,
		Manufacturer: in.Manufacturer,
		VRAM:         in.VRAM,
		CudaCores:    in.CudaCores,
		Description:  strings.TrimSpace(in.Description),
		PricePerHour: in.PricePerHour,
		Available:    true,
	}
	if err := s.gpuRepo.Create(ctx, gpu); err != nil {
		logger.ExitMethodWithError("gpuService.CreateGpu", err, "ownerID", ownerID)
		return nil, err
	}
	logger.Info("GPU listed", "gpuID", gpu.ID, "ownerID", ownerID)
	logger.ExitMethod("gpuService.CreateGpu", "gpuID", gpu.ID)
	return gpu, nil
}

func (s *gpuService) UpdateGpu(ctx context.Context, ownerID, id int32, patch domain.GpuPatch) (*domain.Gpu, error) {
	gpu, err := s.ownedGpu(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	var v validator
	if patch.Name != nil {
		v.check(strings.TrimSpace(*patch.Name) != "", "name", "must not be empty")
	}
	if patch.Manufacturer != nil {
		v.check(strings.TrimSpace(*patch.Manufacturer) != "", "manufacturer", "must not be empty")
	}
	if patch.VRAM != nil {
		v.check(*patch.VRAM > 0, "vram", "must be positive")
	}
	if patch.CudaCores != nil {
		v.check(*patch.CudaCores >= 0, "cudaCores", "must not be negative")
	}
	if patch.PricePerHour != nil {
		v.check(*patch.PricePerHour > 0, "pricePerHour", "must be positive")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	if patch.Available != nil && *patch.Available && !gpu.Available {
		held, err := s.heldByRental(ctx, id)
		if err != nil {
			return nil, err
		}
		if held {
			return nil, fmt.Errorf("%w: gpu %d has an active rental", ErrInvalidState, id)
		}
	}

	if patch.IsEmpty() {
		return gpu, nil
	}
	if err := s.gpuRepo.Update(ctx, id, patch); err != nil {
		return nil, notFound(err, "gpu", id)
	}
	return s.GetGpu(ctx, id)
}

func (s *gpuService) DeleteGpu(ctx context.Context, ownerID, id int32) error {
	gpu, err := s.ownedGpu(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if !gpu.Available {
		return fmt.Errorf("%w: gpu %d is rented or offline and cannot be deleted", ErrInvalidState, id)
	}

	err = s.gpuRepo.Delete(ctx, id)
	switch {
	case errors.Is(err, repository.ErrIntegrity):
		return fmt.Errorf("%w: gpu %d has rental history and cannot be deleted", ErrInvalidState, id)
	case err != nil:
		return notFound(err, "gpu", id)
	}
	logger.Info("GPU deleted", "gpuID", id, "ownerID", ownerID)
	return nil
}

func (s *gpuService) ListGpuRentals(ctx context.Context, ownerID, gpuID int32) ([]domain.Rental, error) {
	if _, err := s.ownedGpu(ctx, ownerID, gpuID); err != nil {
		return nil, err
	}
	return s.rentalRepo.ListByGpu(ctx, gpuID)
}

func (s *gpuService) ownedGpu(ctx context.Context, ownerID, id int32) (*domain.Gpu, error) {
	gpu, err := s.GetGpu(ctx, id)
	if err != nil {
		return nil, err
	}
	if gpu.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: gpu %d belongs to another user", ErrForbidden, id)
	}
	return gpu, nil
}

func (s *gpuService) heldByRental(ctx context.Context, gpuID int32) (bool, error) {
	rentals, err := s.rentalRepo.ListByGpu(ctx, gpuID)
	if err != nil {
		return false, err
	}
	for _, r := range rentals {
		if r.Status.HoldsGpu() {
			return true, nil
		}
	}
	return false, nil
}
