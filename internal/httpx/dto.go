package httpx

import (
	"time"

	"github.com/ariefcatur/go-jewelry-checkout/internal/checkout"
	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	"github.com/ariefcatur/go-jewelry-checkout/internal/tracking"
	"github.com/shopspring/decimal"
)

type placeOrderReq struct {
	PaymentMethod   orders.PaymentMethod   `json:"payment_method"`
	ShippingAddress orders.ShippingAddress `json:"shipping_address"`
	ShippingCost    *decimal.Decimal       `json:"shipping_cost,omitempty"`
	Notes           *string                `json:"notes,omitempty"`
}

type updateOrderReq struct {
	PaymentMethod *orders.PaymentMethod `json:"payment_method,omitempty"`
	Notes         *string               `json:"notes,omitempty"`
}

type confirmPaymentReq struct {
	ProviderPaymentID string `json:"provider_payment_id,omitempty"`
}

type trackingEventReq struct {
	Status      string     `json:"status"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	OccurredAt  *time.Time `json:"occurred_at,omitempty"`
}

// Money leaves the API as fixed two-decimal strings.
func money(d decimal.Decimal) string { return d.StringFixed(2) }

type paymentResp struct {
	ID                string               `json:"id"`
	Method            orders.PaymentMethod `json:"payment_method"`
	Amount            string               `json:"amount"`
	Status            orders.PaymentStatus `json:"status"`
	PixCode           string               `json:"pix_code,omitempty"`
	PixQRCode         string               `json:"pix_qr_code,omitempty"`
	PixTransactionID  string               `json:"pix_transaction_id,omitempty"`
	Provider          string               `json:"payment_provider,omitempty"`
	ProviderPaymentID string               `json:"provider_payment_id,omitempty"`
	ClientSecret      string               `json:"client_secret,omitempty"`
	ExpiresAt         *time.Time           `json:"expires_at,omitempty"`
	PaidAt            *time.Time           `json:"paid_at,omitempty"`
}

func toPayment(p *orders.Payment) *paymentResp {
	if p == nil {
		return nil
	}
	return &paymentResp{
		ID:                p.ID,
		Method:            p.Method,
		Amount:            money(p.Amount),
		Status:            p.Status,
		PixCode:           p.PixCode,
		PixQRCode:         p.PixQRCode,
		PixTransactionID:  p.PixTransactionID,
		Provider:          p.Provider,
		ProviderPaymentID: p.ProviderPaymentID,
		ClientSecret:      p.ClientSecret,
		ExpiresAt:         p.ExpiresAt,
		PaidAt:            p.PaidAt,
	}
}

type placeOrderResp struct {
	OrderID       string               `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	Subtotal      string               `json:"subtotal"`
	ShippingCost  string               `json:"shipping_cost"`
	Total         string               `json:"total"`
	PaymentMethod orders.PaymentMethod `json:"payment_method"`
	Payment       *paymentResp         `json:"payment"`
	Replayed      bool                 `json:"replayed,omitempty"`
}

func toPlaced(res checkout.PlaceOrderResult) placeOrderResp {
	return placeOrderResp{
		OrderID:       res.OrderID,
		OrderNumber:   res.OrderNumber,
		Subtotal:      money(res.Subtotal),
		ShippingCost:  money(res.ShippingCost),
		Total:         money(res.Total),
		PaymentMethod: res.PaymentMethod,
		Payment:       toPayment(&res.Payment),
		Replayed:      res.Replayed,
	}
}

type lineResp struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	ProductSKU  string `json:"product_sku"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TotalPrice  string `json:"total_price"`
}

type orderResp struct {
	ID              string                 `json:"id"`
	OrderNumber     string                 `json:"order_number"`
	Status          orders.Status          `json:"status"`
	PaymentMethod   orders.PaymentMethod   `json:"payment_method"`
	PaymentStatus   orders.PaymentStatus   `json:"payment_status"`
	Subtotal        string                 `json:"subtotal"`
	ShippingCost    string                 `json:"shipping_cost"`
	Total           string                 `json:"total"`
	ShippingAddress orders.ShippingAddress `json:"shipping_address"`
	TrackingCode    *string                `json:"tracking_code,omitempty"`
	Notes           *string                `json:"notes,omitempty"`
	Items           []lineResp             `json:"items"`
	Payment         *paymentResp           `json:"payment,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func toOrder(d *orders.OrderDetail) orderResp {
	o := d.Order
	items := make([]lineResp, 0, len(d.Lines))
	for _, l := range d.Lines {
		items = append(items, lineResp{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			ProductSKU:  l.ProductSKU,
			Quantity:    l.Quantity,
			UnitPrice:   money(l.UnitPrice),
			TotalPrice:  money(l.TotalPrice),
		})
	}
	return orderResp{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		Subtotal:        money(o.Subtotal),
		ShippingCost:    money(o.ShippingCost),
		Total:           money(o.Total),
		ShippingAddress: o.ShippingAddress,
		TrackingCode:    o.TrackingCode,
		Notes:           o.Notes,
		Items:           items,
		Payment:         toPayment(d.CurrentPayment()),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

type productResp struct {
	ID            string `json:"id"`
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	Price         string `json:"price"`
	StockQuantity int    `json:"stock_quantity"`
}

type confirmResp struct {
	OrderID      string    `json:"order_id"`
	OrderNumber  string    `json:"order_number"`
	TrackingCode string    `json:"tracking_code"`
	PaidAt       time.Time `json:"paid_at"`
	AlreadyPaid  bool      `json:"already_paid"`
}

type trackingEventResp struct {
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type trackingResp struct {
	OrderID         string                  `json:"order_id"`
	OrderNumber     string                  `json:"order_number"`
	TrackingCode    string                  `json:"tracking_code"`
	Status          orders.Status           `json:"status"`
	ShippingAddress *orders.ShippingAddress `json:"shipping_address,omitempty"`
	Events          []trackingEventResp     `json:"events"`
	Simulated       bool                    `json:"simulated"`
}

// toTracking leaves the address out unless the caller owns the order.
func toTracking(in *tracking.Info, owner bool) trackingResp {
	events := make([]trackingEventResp, 0, len(in.Events))
	for _, e := range in.Events {
		events = append(events, trackingEventResp{Status: e.Status, Description: e.Description, Location: e.Location, OccurredAt: e.OccurredAt})
	}
	out := trackingResp{
		OrderID:      in.OrderID,
		OrderNumber:  in.OrderNumber,
		TrackingCode: in.TrackingCode,
		Status:       in.Status,
		Events:       events,
		Simulated:    in.Simulated,
	}
	if owner {
		addr := in.ShippingAddress
		out.ShippingAddress = &addr
	}
	return out
}
