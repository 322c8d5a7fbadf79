package validation

import "time"

// CreateFlashSaleRequest is the payload for POST /api/admin/flash-sales.
type CreateFlashSaleRequest struct {
	Name            string    `json:"name" validate:"required"`
	ProductID       string    `json:"productId" validate:"required"`
	DiscountPercent float64   `json:"discountPercent" validate:"required,gt=0,lt=100"`
	StartTime       time.Time `json:"startTime" validate:"required"`
	EndTime         time.Time `json:"endTime" validate:"required"`
	IsActive        *bool     `json:"isActive,omitempty"` // defaults to true
}

// UpdateFlashSaleRequest is the payload for PATCH /api/admin/flash-sales/:id.
// All fields are optional; only present fields are applied.
type UpdateFlashSaleRequest struct {
	Name            *string    `json:"name,omitempty"`
	ProductID       *string    `json:"productId,omitempty"`
	DiscountPercent *float64   `json:"discountPercent,omitempty" validate:"omitempty,gt=0,lt=100"`
	StartTime       *time.Time `json:"startTime,omitempty"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	IsActive        *bool      `json:"isActive,omitempty"`
}
