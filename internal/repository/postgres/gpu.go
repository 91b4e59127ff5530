package postgres

import (
	"context"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/logger"
	"coreshare-backend/internal/repository"
)

const gpuColumns = `id, owner_id, name, manufacturer, vram, cuda_cores, COALESCE(description, ''), price_per_hour, available, created_at`

type gpuRepository struct {
	db DBTX
}

func NewGpuRepository(db DBTX) repository.GpuRepository {
	return &gpuRepository{db: db}
}

func (r *gpuRepository) Create(ctx context.Context, g *domain.Gpu) error {
	query := `INSERT INTO gpus (owner_id, name, manufacturer, vram, cuda_cores, description, price_per_hour, available)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`
	logger.DatabaseCall("INSERT", "gpus", "ownerID", g.OwnerID)
	err := r.db.QueryRowContext(ctx, query, g.OwnerID, g.Name, g.Manufacturer, g.VRAM, g.CudaCores, g.Description, g.PricePerHour, g.Available).
		Scan(&g.ID, &g.CreatedAt)
	logger.DatabaseResult("INSERT", 1, err, "gpuID", g.ID)
	return translateError(err)
}

func (r *gpuRepository) GetByID(ctx context.Context, id int32) (*domain.Gpu, error) {
	query := `SELECT ` + gpuColumns + ` FROM gpus WHERE id = $1`
	g := &domain.Gpu{}
	if err := scanGpu(r.db.QueryRowContext(ctx, query, id), g); err != nil {
		return nil, translateError(err)
	}
	return g, nil
}

func (r *gpuRepository) List(ctx context.Context, available *bool) ([]domain.Gpu, error) {
	query := `SELECT ` + gpuColumns + ` FROM gpus`
	var args []any
	if available != nil {
		query += ` WHERE available = $1`
		args = append(args, *available)
	}
	query += ` ORDER BY created_at DESC`
	return r.list(ctx, query, args...)
}

func (r *gpuRepository) ListByOwner(ctx context.Context, ownerID int32) ([]domain.Gpu, error) {
	query := `SELECT ` + gpuColumns + ` FROM gpus WHERE owner_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, ownerID)
}

// ListPopular ranks GPUs by how many of their rentals completed.
func (r *gpuRepository) ListPopular(ctx context.Context, limit int32) ([]domain.GpuPopularity, error) {
	query := `SELECT g.id, g.owner_id, g.name, g.manufacturer, g.vram, g.cuda_cores, COALESCE(g.description, ''), g.price_per_hour, g.available, g.created_at,
	                 COUNT(r.id) AS completed_rentals
	          FROM gpus g
	          LEFT JOIN rentals r ON r.gpu_id = g.id AND r.status = 'completed'
	          GROUP BY g.id
	          ORDER BY completed_rentals DESC, g.id ASC
	          LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var out []domain.GpuPopularity
	for rows.Next() {
		var p domain.GpuPopularity
		g := &p.Gpu
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.Name, &g.Manufacturer, &g.VRAM, &g.CudaCores, &g.Description, &g.PricePerHour, &g.Available, &g.CreatedAt, &p.CompletedRentals); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *gpuRepository) Update(ctx context.Context, id int32, p domain.GpuPatch) error {
	var set setList
	if p.Name != nil {
		set.add("name", *p.Name)
	}
	if p.Manufacturer != nil {
		set.add("manufacturer", *p.Manufacturer)
	}
	if p.VRAM != nil {
		set.add("vram", *p.VRAM)
	}
	if p.CudaCores != nil {
		set.add("cuda_cores", *p.CudaCores)
	}
	if p.Description != nil {
		set.add("description", *p.Description)
	}
	if p.PricePerHour != nil {
		set.add("price_per_hour", *p.PricePerHour)
	}
	if p.Available != nil {
		set.add("available", *p.Available)
	}
	if set.empty() {
		return nil
	}
	query, args := set.build("gpus", id)
	logger.DatabaseCall("UPDATE", "gpus", "gpuID", id)
	return execOne(ctx, r.db, query, args...)
}

func (r *gpuRepository) Delete(ctx context.Context, id int32) error {
	return execOne(ctx, r.db, `DELETE FROM gpus WHERE id = $1`, id)
}

func (r *gpuRepository) ClaimAvailable(ctx context.Context, id int32) (bool, error) {
	logger.DatabaseCall("UPDATE", "gpus claim", "gpuID", id)
	n, err := execCount(ctx, r.db, `UPDATE gpus SET available = false WHERE id = $1 AND available = true`, id)
	logger.DatabaseResult("UPDATE", n, err, "gpuID", id)
	return n == 1, err
}

func (r *gpuRepository) SetAvailable(ctx context.Context, id int32, available bool) error {
	return execOne(ctx, r.db, `UPDATE gpus SET available = $1 WHERE id = $2`, available, id)
}

func (r *gpuRepository) list(ctx context.Context, query string, args ...any) ([]domain.Gpu, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var gpus []domain.Gpu
	for rows.Next() {
		var g domain.Gpu
		if err := scanGpu(rows, &g); err != nil {
			return nil, err
		}
		gpus = append(gpus, g)
	}
	return gpus, rows.Err()
}

func scanGpu(row scanner, g *domain.Gpu) error {
	return row.Scan(&g.ID, &g.OwnerID, &g.Name, &g.Manufacturer, &g.VRAM, &g.CudaCores, &g.Description, &g.PricePerHour, &g.Available, &g.CreatedAt)
}
