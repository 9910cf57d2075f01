package payment

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

const ProviderStripe = "stripe"

// StripeClient creates and cancels Stripe PaymentIntents.
type StripeClient struct {
	api *client.API
}

func NewStripeClient(secretKey string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{api: api}
}

func (c *StripeClient) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, stripeError(err)
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (c *StripeClient) CancelIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := c.api.PaymentIntents.Cancel(intentID, params); err != nil {
		return stripeError(err)
	}
	return nil
}

func stripeError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &PaymentProviderError{Provider: ProviderStripe, Code: string(se.Code), Message: se.Msg, Err: err}
	}
	return &PaymentProviderError{Provider: ProviderStripe, Err: err}
}
