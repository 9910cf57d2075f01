package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	"github.com/shopspring/decimal"
)

var ErrUnsupportedMethod = errors.New("unsupported payment method")

// Request carries what a provider needs to issue an instrument. Amount is
// always the order total.
type Request struct {
	Amount      decimal.Decimal
	OrderID     string
	OrderNumber string
	UserID      string
	Description string
	Metadata    map[string]string
}

// Instrument is the provider-specific result of Generate. Only the fields of
// the producing method are set.
type Instrument struct {
	Method orders.PaymentMethod

	PixCode          string
	PixQRCode        string // data:image/png;base64 URI
	PixTransactionID string
	ExpiresAt        *time.Time

	Provider          string
	ProviderPaymentID string
	ClientSecret      string
}

// ApplyTo replaces p's provider fields with the instrument's.
func (in Instrument) ApplyTo(p *orders.Payment) {
	p.ClearInstrument()
	p.Method = in.Method
	p.PixCode = in.PixCode
	p.PixQRCode = in.PixQRCode
	p.PixTransactionID = in.PixTransactionID
	p.ExpiresAt = in.ExpiresAt
	p.Provider = in.Provider
	p.ProviderPaymentID = in.ProviderPaymentID
	p.ClientSecret = in.ClientSecret
}

type Generator interface {
	Method() orders.PaymentMethod
	Generate(ctx context.Context, req Request) (Instrument, error)
}

// Voider is implemented by generators whose instruments live at a provider
// and can be cancelled when the order that owns them never commits.
type Voider interface {
	Void(ctx context.Context, in Instrument) error
}

// Registry dispatches on payment method. The set is fixed at construction.
type Registry struct {
	gens map[orders.PaymentMethod]Generator
}

func NewRegistry(gens ...Generator) *Registry {
	r := &Registry{gens: make(map[orders.PaymentMethod]Generator, len(gens))}
	for _, g := range gens {
		r.gens[g.Method()] = g
	}
	return r
}

func (r *Registry) For(m orders.PaymentMethod) (Generator, error) {
	if r != nil {
		if g, ok := r.gens[m]; ok {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, m)
}

func (r *Registry) Supports(m orders.PaymentMethod) bool {
	_, err := r.For(m)
	return err == nil
}

// Void cancels in at its provider when the generator supports it. Methods
// with nothing to cancel (PIX) return nil.
func (r *Registry) Void(ctx context.Context, in Instrument) error {
	g, err := r.For(in.Method)
	if err != nil {
		return err
	}
	v, ok := g.(Voider)
	if !ok {
		return nil
	}
	return v.Void(ctx, in)
}

// InstrumentOf rebuilds the instrument stored on a payment row.
func InstrumentOf(p orders.Payment) Instrument {
	return Instrument{
		Method:            p.Method,
		PixCode:           p.PixCode,
		PixQRCode:         p.PixQRCode,
		PixTransactionID:  p.PixTransactionID,
		ExpiresAt:         p.ExpiresAt,
		Provider:          p.Provider,
		ProviderPaymentID: p.ProviderPaymentID,
		ClientSecret:      p.ClientSecret,
	}
}

type PixGenerationError struct {
	Reason string
	Err    error
}

func (e *PixGenerationError) Error() string {
	if e.Err != nil {
		return "pix generation: " + e.Reason + ": " + e.Err.Error()
	}
	return "pix generation: " + e.Reason
}

func (e *PixGenerationError) Unwrap() error { return e.Err }

// PaymentProviderError wraps a rejection from an external payment provider.
type PaymentProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *PaymentProviderError) Error() string {
	s := e.Provider + ": "
	if e.Code != "" {
		s += e.Code + ": "
	}
	if e.Message != "" {
		return s + e.Message
	}
	if e.Err != nil {
		return s + e.Err.Error()
	}
	return s + "request failed"
}

func (e *PaymentProviderError) Unwrap() error { return e.Err }
