package domain

import "time"

type Review struct {
	ID         int32     `json:"id"`
	RentalID   int32     `json:"rentalId"`
	GpuID      int32     `json:"gpuId"`
	ReviewerID int32     `json:"reviewerId"`
	Rating     int32     `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
}
