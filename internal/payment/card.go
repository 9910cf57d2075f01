package payment

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
)

type Intent struct {
	ID           string
	ClientSecret string
}

// IntentCreator is the card provider boundary.
type IntentCreator interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
}

type CardGenerator struct {
	provider string
	currency string
	client   IntentCreator
}

func NewCardGenerator(provider string, client IntentCreator) *CardGenerator {
	return &CardGenerator{provider: provider, currency: "brl", client: client}
}

func (g *CardGenerator) Method() orders.PaymentMethod { return orders.MethodCreditCard }

func (g *CardGenerator) Generate(ctx context.Context, req Request) (Instrument, error) {
	amount := orders.Cents(req.Amount)
	if amount <= 0 {
		return Instrument{}, &PaymentProviderError{
			Provider: g.provider,
			Code:     "amount_invalid",
			Message:  "amount must be positive, got " + req.Amount.String(),
		}
	}

	md := make(map[string]string, len(req.Metadata)+3)
	for k, v := range req.Metadata {
		md[k] = v
	}
	md["order_id"] = req.OrderID
	md["order_number"] = req.OrderNumber
	md["user_id"] = req.UserID

	intent, err := g.client.CreateIntent(ctx, amount, g.currency, md)
	if err != nil {
		var pe *PaymentProviderError
		if errors.As(err, &pe) {
			return Instrument{}, err
		}
		return Instrument{}, &PaymentProviderError{Provider: g.provider, Err: err}
	}
	return Instrument{
		Method:            orders.MethodCreditCard,
		Provider:          g.provider,
		ProviderPaymentID: intent.ID,
		ClientSecret:      intent.ClientSecret,
	}, nil
}

func (g *CardGenerator) Void(ctx context.Context, in Instrument) error {
	if in.ProviderPaymentID == "" {
		return nil
	}
	return g.client.CancelIntent(ctx, in.ProviderPaymentID)
}
