package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            string
	SKU           string
	Name          string
	UnitPrice     decimal.Decimal
	StockQuantity int
	IsActive      bool
}

// CartLine is one product+quantity entry in a user's cart.
type CartLine struct {
	UserID    string
	ProductID string
	Quantity  int
}

// CartItem is a cart line joined with the live product row.
type CartItem struct {
	CartLine
	Product Product
}

// ShippingAddress is copied into the order at placement time; later edits
// to the user's address book never reach an existing order.
type ShippingAddress struct {
	CEP         string `json:"cep"`
	Logradouro  string `json:"logradouro"`
	Numero      string `json:"numero,omitempty"`
	Complemento string `json:"complemento,omitempty"`
	Bairro      string `json:"bairro"`
	Localidade  string `json:"localidade"`
	UF          string `json:"uf"`
	Estado      string `json:"estado,omitempty"`
	DDD         string `json:"ddd,omitempty"`
}

type Order struct {
	ID              string
	UserID          string
	OrderNumber     string
	Status          Status
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	Subtotal        decimal.Decimal
	ShippingCost    decimal.Decimal
	Total           decimal.Decimal
	ShippingAddress ShippingAddress
	TrackingCode    *string
	Notes           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type OrderLine struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	ProductSKU  string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

type Payment struct {
	ID                string
	OrderID           string
	Method            PaymentMethod
	Amount            decimal.Decimal
	Status            PaymentStatus
	PixCode           string
	PixQRCode         string
	PixTransactionID  string
	Provider          string
	ProviderPaymentID string
	ClientSecret      string
	ExpiresAt         *time.Time
	PaidAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ClearInstrument drops every provider-specific field so a new instrument
// can be applied without leaking the previous one.
func (p *Payment) ClearInstrument() {
	p.PixCode = ""
	p.PixQRCode = ""
	p.PixTransactionID = ""
	p.Provider = ""
	p.ProviderPaymentID = ""
	p.ClientSecret = ""
	p.ExpiresAt = nil
}

// Reference is the identifier a payment provider reports back on settlement.
func (p *Payment) Reference() string {
	if p.Method == MethodPix {
		return p.PixTransactionID
	}
	return p.ProviderPaymentID
}

// OrderDetail is an order with its lines and payment records.
type OrderDetail struct {
	Order    Order
	Lines    []OrderLine
	Payments []Payment
}

// CurrentPayment returns the most recently created payment, if any.
func (d *OrderDetail) CurrentPayment() *Payment {
	var cur *Payment
	for i := range d.Payments {
		if cur == nil || !d.Payments[i].CreatedAt.Before(cur.CreatedAt) {
			cur = &d.Payments[i]
		}
	}
	return cur
}

type TrackingEvent struct {
	ID          string
	OrderID     string
	Status      string
	Description string
	Location    string
	OccurredAt  time.Time
	CreatedAt   time.Time
}
