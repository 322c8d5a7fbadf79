package payments

import "time"

// Payment statuses
const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Payment is the item stored in the payments DynamoDB table. The reference is
// assigned by the payment provider and correlates webhook deliveries to the
// record. Raw accumulates every provider payload we have seen; it is merged
// into, never replaced, so earlier delivery data survives later ones.
type Payment struct {
	Reference string                 `dynamodbav:"reference"` // PK
	Status    string                 `dynamodbav:"status"`    // PENDING | SUCCESS | FAILED
	OrderID   string                 `dynamodbav:"order_id,omitempty"`
	Amount    float64                `dynamodbav:"amount,omitempty"`
	Raw       map[string]interface{} `dynamodbav:"raw,omitempty"`
	CreatedAt time.Time              `dynamodbav:"created_at"`
	UpdatedAt time.Time              `dynamodbav:"updated_at"`
}
