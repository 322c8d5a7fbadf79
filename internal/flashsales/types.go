package flashsales

import "time"

// FlashSale is a time-boxed discount override on a product's price.
type FlashSale struct {
	ID              string    `dynamodbav:"id" json:"id"` // PK
	Name            string    `dynamodbav:"name" json:"name"`
	ProductID       string    `dynamodbav:"product_id" json:"product_id"`
	DiscountPercent float64   `dynamodbav:"discount_percent" json:"discount_percent"`
	BasePrice       float64   `dynamodbav:"base_price" json:"base_price"`
	FlashPrice      float64   `dynamodbav:"flash_price" json:"flash_price"`
	StartTime       time.Time `dynamodbav:"start_time" json:"start_time"`
	EndTime         time.Time `dynamodbav:"end_time" json:"end_time"`
	IsActive        bool      `dynamodbav:"is_active" json:"is_active"`
	CreatedAt       time.Time `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt       time.Time `dynamodbav:"updated_at" json:"updated_at"`
}

// ActiveAt reports whether the sale applies at the given instant.
func (f FlashSale) ActiveAt(now time.Time) bool {
	return f.IsActive && !now.Before(f.StartTime) && !now.After(f.EndTime)
}

// ComputeFlashPrice applies a percentage discount to the base price.
func ComputeFlashPrice(basePrice, discountPercent float64) float64 {
	return basePrice * (1 - discountPercent/100)
}
