package webhook

import (
	"encoding/json"
	"time"
)

// ReplayMessage is the payload republished to the replay queue when an inner
// event handler fails after the webhook was already acknowledged. The worker
// re-runs the same idempotent reconciliation from it.
type ReplayMessage struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Reference string          `json:"reference,omitempty"`
	FailedAt  time.Time       `json:"failed_at"`
	Reason    string          `json:"reason,omitempty"`
}
