package domain

import "time"

type Gpu struct {
	ID           int32     `json:"id"`
	OwnerID      int32     `json:"ownerId"`
	Name         string    `json:"name"`
	Manufacturer string    `json:"manufacturer"`
	VRAM         int32     `json:"vram"`
	CudaCores    int32     `json:"cudaCores"`
	Description  string    `json:"description"`
	PricePerHour float64   `json:"pricePerHour"`
	Available    bool      `json:"available"`
	CreatedAt    time.Time `json:"createdAt"`
}

// GpuPatch is a partial update; nil fields are left untouched.
type GpuPatch struct {
	Name         *string  `json:"name,omitempty"`
	Manufacturer *string  `json:"manufacturer,omitempty"`
	VRAM         *int32   `json:"vram,omitempty"`
	CudaCores    *int32   `json:"cudaCores,omitempty"`
	Description  *string  `json:"description,omitempty"`
	PricePerHour *float64 `json:"pricePerHour,omitempty"`
	Available    *bool    `json:"available,omitempty"`
}

func (p GpuPatch) IsEmpty() bool {
	return p.Name == nil && p.Manufacturer == nil && p.VRAM == nil && p.CudaCores == nil &&
		p.Description == nil && p.PricePerHour == nil && p.Available == nil
}

// GpuPopularity pairs a GPU with the number of rentals it completed.
type GpuPopularity struct {
	Gpu              Gpu   `json:"gpu"`
	CompletedRentals int32 `json:"completedRentals"`
}
