// Package paymentevents applies provider settlement events to orders.
package paymentevents

import (
	"context"

	"github.com/ariefcatur/go-jewelry-checkout/internal/checkout"
	kafkax "github.com/ariefcatur/go-jewelry-checkout/internal/kafka"
	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Confirmer interface {
	ConfirmPayment(ctx context.Context, in checkout.ConfirmPaymentInput) (checkout.ConfirmPaymentResult, error)
}

type Deduper interface {
	First(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

type Service struct {
	Payments Confirmer
	Dedup    Deduper
	Log      *zap.Logger
}

// HandleSettled is installed as the payment.settled consumer handler. A
// returned error leaves the offset uncommitted.
func (s *Service) HandleSettled(ctx context.Context, m kafkago.Message) error {
	log := s.log()
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		log.Warn("drop undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventPaymentSettled {
		return nil
	}
	log = log.With(
		zap.String("event_id", env.EventID),
		zap.String("order_id", env.CorrelationID),
		zap.String("trace_id", env.TraceID),
	)

	first, err := s.Dedup.First(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		log.Debug("duplicate settlement skipped")
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.PaymentSettledPayload](env.Payload)
	if err != nil || p.OrderID == "" {
		log.Warn("drop settlement with bad payload", zap.Error(err))
		return nil
	}

	res, err := s.Payments.ConfirmPayment(ctx, checkout.ConfirmPaymentInput{
		OrderID:           p.OrderID,
		ProviderPaymentID: p.ProviderPaymentID,
	})
	if err != nil {
		switch checkout.Classify(err) {
		case checkout.CategoryNotFound, checkout.CategoryConflict, checkout.CategoryValidation:
			// retrying cannot change the outcome
			log.Warn("settlement rejected", zap.String("provider", p.Provider), zap.Error(err))
			return nil
		}
		if ferr := s.Dedup.Forget(ctx, env.EventID); ferr != nil {
			log.Error("forget dedup mark", zap.Error(ferr))
		}
		return err
	}
	log.Info("payment settled",
		zap.String("order_number", res.OrderNumber),
		zap.String("tracking_code", res.TrackingCode),
		zap.Bool("already_paid", res.AlreadyPaid),
	)
	return nil
}

func (s *Service) log() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}
