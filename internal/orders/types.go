package orders

import "time"

// Order statuses
const (
	StatusPending   = "PENDING"
	StatusPaid      = "PAID"
	StatusFulfilled = "FULFILLED"
	StatusCancelled = "CANCELLED"
	StatusRefunded  = "REFUNDED"
)

// LineItem is one purchased product on an order.
type LineItem struct {
	ProductID string  `dynamodbav:"product_id" json:"product_id"`
	Quantity  int     `dynamodbav:"quantity" json:"quantity"`
	Price     float64 `dynamodbav:"price,omitempty" json:"price,omitempty"`
}

// Order represents the item stored in the orders DynamoDB table. Line items
// are embedded on the record, so a single read returns the order with its
// items expanded.
type Order struct {
	OrderID    string     `dynamodbav:"order_id" json:"order_id"` // PK
	CustomerID string     `dynamodbav:"customer_id,omitempty" json:"customer_id,omitempty"`
	Status     string     `dynamodbav:"status" json:"status"`
	Amount     float64    `dynamodbav:"amount" json:"amount"`
	Items      []LineItem `dynamodbav:"items,omitempty" json:"items,omitempty"`
	CreatedAt  time.Time  `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `dynamodbav:"updated_at" json:"updated_at"`
}
