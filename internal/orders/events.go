package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced      = "OrderPlaced"
	EventOrderUpdated     = "OrderUpdated"
	EventPaymentConfirmed = "PaymentConfirmed"
	EventOrderCancelled   = "OrderCancelled"
	EventPaymentSettled   = "PaymentSettled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// Event is what the checkout flow hands to a publisher after commit.
type Event struct {
	Type    string
	Topic   string
	OrderID string
	TraceID string
	Payload any
}

type LineSnapshot struct {
	ProductID  string `json:"product_id"`
	ProductSKU string `json:"product_sku"`
	Quantity   int    `json:"quantity"`
	UnitPrice  string `json:"unit_price"`
	TotalPrice string `json:"total_price"`
}

type OrderPlacedPayload struct {
	OrderID       string         `json:"order_id"`
	OrderNumber   string         `json:"order_number"`
	UserID        string         `json:"user_id"`
	PaymentMethod PaymentMethod  `json:"payment_method"`
	Subtotal      string         `json:"subtotal"`
	ShippingCost  string         `json:"shipping_cost"`
	Total         string         `json:"total"`
	Lines         []LineSnapshot `json:"lines"`
}

type OrderUpdatedPayload struct {
	OrderID       string        `json:"order_id"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Notes         *string       `json:"notes,omitempty"`
}

type PaymentConfirmedPayload struct {
	OrderID      string    `json:"order_id"`
	OrderNumber  string    `json:"order_number"`
	TrackingCode string    `json:"tracking_code"`
	PaidAt       time.Time `json:"paid_at"`
}

type OrderCancelledPayload struct {
	OrderID string         `json:"order_id"`
	Lines   []LineSnapshot `json:"lines"`
}

// PaymentSettledPayload arrives from the provider relay once money moved.
type PaymentSettledPayload struct {
	OrderID           string `json:"order_id"`
	Provider          string `json:"provider"`
	ProviderPaymentID string `json:"provider_payment_id"`
}

func Snapshot(lines []OrderLine) []LineSnapshot {
	out := make([]LineSnapshot, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineSnapshot{
			ProductID:  l.ProductID,
			ProductSKU: l.ProductSKU,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice.StringFixed(2),
			TotalPrice: l.TotalPrice.StringFixed(2),
		})
	}
	return out
}
