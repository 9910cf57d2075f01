package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-jewelry-checkout/internal/logging"
	"github.com/ariefcatur/go-jewelry-checkout/internal/metrics"
	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	"github.com/ariefcatur/go-jewelry-checkout/internal/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-jewelry-checkout/internal/checkout")

const (
	maxOrderNumberAttempts = 5
	defaultProviderTimeout = 10 * time.Second
	idempotencyScope       = "order:place"
)

// Stage is the last step a placement reached.
type Stage string

const (
	StageStarted        Stage = "STARTED"
	StageValidated      Stage = "VALIDATED"
	StageStockReserved  Stage = "STOCK_RESERVED"
	StageOrderPersisted Stage = "ORDER_PERSISTED"
	StagePaymentCreated Stage = "PAYMENT_CREATED"
	StageCartCleared    Stage = "CART_CLEARED"
	StageCommitted      Stage = "COMMITTED"
	StageRolledBack     Stage = "ROLLED_BACK"
)

// Service runs the order workflow. Store and Payments are required; the
// rest are optional and skipped when nil.
type Service struct {
	Store       orders.Store
	Payments    *payment.Registry
	Idempotency IdempotencyStore
	Cache       OrderCache
	Events      EventPublisher
	Metrics     *metrics.Checkout
	Log         *zap.Logger
	Shipping    ShippingPolicy

	ProviderTimeout time.Duration

	Now           func() time.Time
	NewID         func() string
	OrderNumbers  func(time.Time) string
	TrackingCodes func() string
}

type PlaceOrderInput struct {
	UserID          string
	PaymentMethod   orders.PaymentMethod
	ShippingAddress orders.ShippingAddress
	// ShippingCost overrides the shipping policy when set.
	ShippingCost   *decimal.Decimal
	Notes          *string
	IdempotencyKey string
}

type PlaceOrderResult struct {
	OrderID       string
	OrderNumber   string
	Subtotal      decimal.Decimal
	ShippingCost  decimal.Decimal
	Total         decimal.Decimal
	PaymentMethod orders.PaymentMethod
	Payment       orders.Payment
	// Replayed is set when the result comes from an earlier call with the
	// same idempotency key.
	Replayed bool
}

func (in PlaceOrderInput) validate() error {
	if !in.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, in.PaymentMethod)
	}
	if in.ShippingCost != nil && in.ShippingCost.IsNegative() {
		return fmt.Errorf("%w: shipping cost must not be negative", ErrInvalidInput)
	}
	a := in.ShippingAddress
	if strings.TrimSpace(a.CEP) == "" || strings.TrimSpace(a.Logradouro) == "" ||
		strings.TrimSpace(a.Localidade) == "" || strings.TrimSpace(a.UF) == "" {
		return fmt.Errorf("%w: shipping address requires cep, logradouro, localidade and uf", ErrInvalidInput)
	}
	return nil
}

// PlaceOrder turns the user's cart into a pending order with a payment
// instrument. Stock, order, lines, payment and cart clearing commit together
// or not at all.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (res PlaceOrderResult, err error) {
	ctx, span := tracer.Start(ctx, "checkout.PlaceOrder", trace.WithAttributes(
		attribute.String("payment_method", string(in.PaymentMethod)),
	))
	defer span.End()

	start := s.now()
	stage := StageStarted
	log := s.logger(ctx).With(zap.String("user_id", in.UserID), zap.String("payment_method", string(in.PaymentMethod)))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(Classify(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		s.Metrics.Placement(string(in.PaymentMethod), outcome, string(stage), s.now().Sub(start))
	}()

	if in.UserID == "" {
		return PlaceOrderResult{}, ErrUnauthenticated
	}
	if err := in.validate(); err != nil {
		return PlaceOrderResult{}, err
	}
	gen, err := s.Payments.For(in.PaymentMethod)
	if err != nil {
		return PlaceOrderResult{}, err
	}

	if in.IdempotencyKey != "" && s.Idempotency != nil {
		if id, ok, rerr := s.Idempotency.Recall(ctx, in.UserID, idempotencyScope+":"+in.IdempotencyKey); rerr == nil && ok {
			log.Info("placement replayed", zap.String("order_id", id))
			return s.replay(ctx, id, in.UserID)
		}
		locked, lerr := s.Idempotency.TryLock(ctx, in.UserID, idempotencyScope+":"+in.IdempotencyKey)
		if lerr != nil {
			return PlaceOrderResult{}, fmt.Errorf("idempotency lock: %w", lerr)
		}
		if !locked {
			return PlaceOrderResult{}, ErrDuplicateRequest
		}
		defer func() {
			if err != nil {
				if rerr := s.Idempotency.Release(context.WithoutCancel(ctx), in.UserID, idempotencyScope+":"+in.IdempotencyKey); rerr != nil {
					log.Warn("release idempotency lock", zap.Error(rerr))
				}
			}
		}()
	}

	var (
		created *payment.Instrument
		lines   []orders.OrderLine
	)
	err = s.Store.InTx(ctx, func(tx orders.Tx) error {
		items, err := tx.CartItems(ctx, in.UserID)
		if err != nil {
			return err
		}
		v, err := orders.Validate(items)
		if err != nil {
			return err
		}
		stage = StageValidated

		for _, l := range v.Lines {
			if _, err := tx.DecrementStock(ctx, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}
		stage = StageStockReserved

		shipping := s.shippingCost(in, v.Subtotal)
		now := s.now()
		order := &orders.Order{
			ID:              s.newID(),
			UserID:          in.UserID,
			Status:          orders.StatusPending,
			PaymentMethod:   in.PaymentMethod,
			PaymentStatus:   orders.PaymentPending,
			Subtotal:        v.Subtotal,
			ShippingCost:    shipping,
			Total:           v.Subtotal.Add(shipping),
			ShippingAddress: in.ShippingAddress,
			Notes:           in.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.insertOrder(ctx, tx, order, log); err != nil {
			return err
		}

		lines = make([]orders.OrderLine, 0, len(v.Lines))
		for _, l := range v.Lines {
			lines = append(lines, orders.OrderLine{
				ID:          s.newID(),
				OrderID:     order.ID,
				ProductID:   l.ProductID,
				ProductName: l.ProductName,
				ProductSKU:  l.ProductSKU,
				Quantity:    l.Quantity,
				UnitPrice:   l.UnitPrice,
				TotalPrice:  l.TotalPrice,
			})
		}
		if err := tx.InsertOrderLines(ctx, lines); err != nil {
			return err
		}
		stage = StageOrderPersisted

		inst, err := s.generate(ctx, gen, order)
		if err != nil {
			return err
		}
		created = &inst

		pay := &orders.Payment{
			ID:        s.newID(),
			OrderID:   order.ID,
			Amount:    order.Total,
			Status:    orders.PaymentPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		inst.ApplyTo(pay)
		if err := tx.InsertPayment(ctx, pay); err != nil {
			return err
		}
		stage = StagePaymentCreated

		if _, err := tx.ClearCart(ctx, in.UserID); err != nil {
			return err
		}
		stage = StageCartCleared

		res = PlaceOrderResult{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			Subtotal:      order.Subtotal,
			ShippingCost:  order.ShippingCost,
			Total:         order.Total,
			PaymentMethod: order.PaymentMethod,
			Payment:       *pay,
		}
		return nil
	})
	if err != nil {
		log.Warn("placement failed",
			zap.String("state", string(StageRolledBack)),
			zap.String("last_stage", string(stage)),
			zap.Error(err),
		)
		if created != nil {
			s.void(ctx, *created, log)
		}
		return PlaceOrderResult{}, err
	}
	stage = StageCommitted
	span.SetAttributes(attribute.String("order_id", res.OrderID))
	log.Info("order placed",
		zap.String("order_id", res.OrderID),
		zap.String("order_number", res.OrderNumber),
		zap.String("total", res.Total.StringFixed(2)),
	)

	if in.IdempotencyKey != "" && s.Idempotency != nil {
		if rerr := s.Idempotency.Remember(ctx, in.UserID, idempotencyScope+":"+in.IdempotencyKey, res.OrderID); rerr != nil {
			log.Warn("remember idempotency key", zap.Error(rerr))
		}
	}

	s.publish(ctx, orders.Event{
		Type:    orders.EventOrderPlaced,
		Topic:   orders.TopicOrderPlaced,
		OrderID: res.OrderID,
		Payload: orders.OrderPlacedPayload{
			OrderID:       res.OrderID,
			OrderNumber:   res.OrderNumber,
			UserID:        in.UserID,
			PaymentMethod: res.PaymentMethod,
			Subtotal:      res.Subtotal.StringFixed(2),
			ShippingCost:  res.ShippingCost.StringFixed(2),
			Total:         res.Total.StringFixed(2),
			Lines:         orders.Snapshot(lines),
		},
	})
	return res, nil
}

func (s *Service) replay(ctx context.Context, orderID, userID string) (PlaceOrderResult, error) {
	d, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return PlaceOrderResult{}, err
	}
	if d.Order.UserID != userID {
		return PlaceOrderResult{}, orders.ErrOrderNotFound
	}
	res := PlaceOrderResult{
		OrderID:       d.Order.ID,
		OrderNumber:   d.Order.OrderNumber,
		Subtotal:      d.Order.Subtotal,
		ShippingCost:  d.Order.ShippingCost,
		Total:         d.Order.Total,
		PaymentMethod: d.Order.PaymentMethod,
		Replayed:      true,
	}
	if p := d.CurrentPayment(); p != nil {
		res.Payment = *p
	}
	return res, nil
}

func (s *Service) insertOrder(ctx context.Context, tx orders.Tx, o *orders.Order, log *zap.Logger) error {
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		o.OrderNumber = s.orderNumber(o.CreatedAt)
		err := tx.InsertOrder(ctx, o)
		if !errors.Is(err, orders.ErrDuplicateOrderNumber) {
			return err
		}
		log.Debug("order number collision", zap.String("order_number", o.OrderNumber), zap.Int("attempt", attempt))
	}
	return fmt.Errorf("%w after %d attempts", orders.ErrDuplicateOrderNumber, maxOrderNumberAttempts)
}

// generate calls the provider with its own deadline; a timeout fails the
// surrounding transaction like any other provider error.
func (s *Service) generate(ctx context.Context, gen payment.Generator, o *orders.Order) (payment.Instrument, error) {
	ctx, span := tracer.Start(ctx, "checkout.GeneratePayment", trace.WithAttributes(
		attribute.String("payment_method", string(gen.Method())),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.providerTimeout())
	defer cancel()

	inst, err := gen.Generate(ctx, payment.Request{
		Amount:      o.Total,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Description: "Pedido " + o.OrderNumber,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate payment")
		return payment.Instrument{}, err
	}
	return inst, nil
}

func (s *Service) void(ctx context.Context, in payment.Instrument, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.providerTimeout())
	defer cancel()
	if err := s.Payments.Void(ctx, in); err != nil {
		log.Error("void payment instrument",
			zap.String("provider", in.Provider),
			zap.String("provider_payment_id", in.ProviderPaymentID),
			zap.Error(err),
		)
	}
}

func (s *Service) publish(ctx context.Context, ev orders.Event) {
	if s.Events == nil {
		return
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		ev.TraceID = sc.TraceID().String()
	}
	err := s.Events.Publish(ctx, ev)
	s.Metrics.Event(ev.Topic, err)
	if err != nil {
		s.logger(ctx).Warn("publish event",
			zap.String("event_type", ev.Type),
			zap.String("order_id", ev.OrderID),
			zap.Error(err),
		)
	}
}

func (s *Service) shippingCost(in PlaceOrderInput, subtotal decimal.Decimal) decimal.Decimal {
	if in.ShippingCost != nil {
		return in.ShippingCost.Round(2)
	}
	if s.Shipping == nil {
		return DefaultShipping().Quote(subtotal, in.ShippingAddress)
	}
	return s.Shipping.Quote(subtotal, in.ShippingAddress).Round(2)
}

func (s *Service) logger(ctx context.Context) *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logging.FromContext(ctx)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) orderNumber(t time.Time) string {
	if s.OrderNumbers != nil {
		return s.OrderNumbers(t)
	}
	return NewOrderNumber(t)
}

func (s *Service) trackingCode() string {
	if s.TrackingCodes != nil {
		return s.TrackingCodes()
	}
	return NewTrackingCode()
}

func (s *Service) providerTimeout() time.Duration {
	if s.ProviderTimeout > 0 {
		return s.ProviderTimeout
	}
	return defaultProviderTimeout
}
