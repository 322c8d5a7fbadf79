package webhook

import "encoding/json"

// Event names the provider delivers that we act on. Anything else is
// acknowledged and ignored; the provider expects a 200 for every delivery,
// recognized or not, to avoid redelivery storms.
const (
	EventChargeSuccess = "charge.success"
	EventChargeFailed  = "charge.failed"
)

// Envelope is the provider's webhook payload shape.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ChargeData is the subset of the event data the reconciler needs. The full
// payload is preserved verbatim in Payment.raw.
type ChargeData struct {
	Reference string `json:"reference"`
}
