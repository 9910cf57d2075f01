package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	"github.com/ariefcatur/go-jewelry-checkout/internal/payment"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type UpdateOrderInput struct {
	OrderID       string
	UserID        string
	PaymentMethod *orders.PaymentMethod
	Notes         *string
}

// UpdateOrder changes the payment method and/or notes of an order whose
// payment is still pending. A method change issues a fresh instrument and
// drops the previous one.
func (s *Service) UpdateOrder(ctx context.Context, in UpdateOrderInput) (d *orders.OrderDetail, err error) {
	ctx, span := tracer.Start(ctx, "checkout.UpdateOrder", trace.WithAttributes(attribute.String("order_id", in.OrderID)))
	defer span.End()
	log := s.logger(ctx).With(zap.String("order_id", in.OrderID), zap.String("user_id", in.UserID))
	defer func() { s.finish(span, err, s.Metrics.Update) }()

	if in.UserID == "" {
		return nil, ErrUnauthenticated
	}
	if in.PaymentMethod == nil && in.Notes == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	var gen payment.Generator
	if in.PaymentMethod != nil {
		if !in.PaymentMethod.Valid() {
			return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, *in.PaymentMethod)
		}
		if gen, err = s.Payments.For(*in.PaymentMethod); err != nil {
			return nil, err
		}
	}

	var created, replaced *payment.Instrument
	var updated orders.Order
	err = s.Store.InTx(ctx, func(tx orders.Tx) error {
		o, err := tx.LockOrder(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if o.UserID != in.UserID {
			return orders.ErrOrderNotFound
		}
		if o.PaymentStatus != orders.PaymentPending || o.Status != orders.StatusPending {
			return &OrderNotUpdatableError{OrderID: o.ID, Action: "be updated", Status: o.Status, PaymentStatus: o.PaymentStatus}
		}
		now := s.now()

		if gen != nil && *in.PaymentMethod != o.PaymentMethod {
			pay, err := tx.CurrentPayment(ctx, o.ID)
			if err != nil {
				return err
			}
			old := payment.InstrumentOf(*pay)

			inst, err := s.generate(ctx, gen, o)
			if err != nil {
				return err
			}
			created = &inst

			inst.ApplyTo(pay)
			pay.Amount = o.Total
			pay.Status = orders.PaymentPending
			pay.UpdatedAt = now
			if err := tx.UpdatePayment(ctx, pay); err != nil {
				return err
			}
			o.PaymentMethod = *in.PaymentMethod
			replaced = &old
		}
		if in.Notes != nil {
			if n := strings.TrimSpace(*in.Notes); n != "" {
				o.Notes = &n
			} else {
				o.Notes = nil
			}
		}
		o.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		updated = *o
		return nil
	})
	if err != nil {
		if created != nil {
			s.void(ctx, *created, log)
		}
		return nil, err
	}
	if replaced != nil {
		s.void(ctx, *replaced, log)
	}
	s.invalidate(ctx, in.OrderID)
	log.Info("order updated", zap.String("payment_method", string(updated.PaymentMethod)))

	s.publish(ctx, orders.Event{
		Type:    orders.EventOrderUpdated,
		Topic:   orders.TopicOrderUpdated,
		OrderID: updated.ID,
		Payload: orders.OrderUpdatedPayload{OrderID: updated.ID, PaymentMethod: updated.PaymentMethod, Notes: updated.Notes},
	})
	return s.Store.GetOrder(ctx, in.OrderID)
}

type ConfirmPaymentInput struct {
	OrderID string
	// ProviderPaymentID, when set, must match the current payment's PIX
	// transaction id or provider intent id.
	ProviderPaymentID string
}

type ConfirmPaymentResult struct {
	OrderID      string
	OrderNumber  string
	TrackingCode string
	PaidAt       time.Time
	AlreadyPaid  bool
}

// ConfirmPayment marks the order paid and assigns its tracking code. Calling
// it on an already paid order returns the existing code and writes nothing.
func (s *Service) ConfirmPayment(ctx context.Context, in ConfirmPaymentInput) (res ConfirmPaymentResult, err error) {
	ctx, span := tracer.Start(ctx, "checkout.ConfirmPayment", trace.WithAttributes(attribute.String("order_id", in.OrderID)))
	defer span.End()
	log := s.logger(ctx).With(zap.String("order_id", in.OrderID))
	defer func() {
		outcome := "ok"
		switch {
		case err != nil:
			outcome = string(Classify(err))
		case res.AlreadyPaid:
			outcome = "already_paid"
		}
		s.finish(span, err, nil)
		s.Metrics.Confirmation(outcome)
	}()

	if in.OrderID == "" {
		return ConfirmPaymentResult{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	err = s.Store.InTx(ctx, func(tx orders.Tx) error {
		o, err := tx.LockOrder(ctx, in.OrderID)
		if err != nil {
			return err
		}
		pay, err := tx.CurrentPayment(ctx, o.ID)
		if err != nil {
			return err
		}
		if in.ProviderPaymentID != "" && pay.Reference() != in.ProviderPaymentID {
			return ErrPaymentMismatch
		}

		res = ConfirmPaymentResult{OrderID: o.ID, OrderNumber: o.OrderNumber}
		if o.PaymentStatus == orders.PaymentPaid && o.TrackingCode != nil {
			res.TrackingCode = *o.TrackingCode
			if pay.PaidAt != nil {
				res.PaidAt = *pay.PaidAt
			}
			res.AlreadyPaid = true
			return nil
		}
		if o.PaymentStatus != orders.PaymentPending || !orders.CanTransition(o.Status, orders.StatusPaid) {
			return &OrderNotUpdatableError{OrderID: o.ID, Action: "confirm payment", Status: o.Status, PaymentStatus: o.PaymentStatus}
		}

		now := s.now()
		pay.Status = orders.PaymentPaid
		pay.PaidAt = &now
		pay.UpdatedAt = now
		if err := tx.UpdatePayment(ctx, pay); err != nil {
			return err
		}

		code := s.trackingCode()
		o.Status = orders.StatusPaid
		o.PaymentStatus = orders.PaymentPaid
		o.TrackingCode = &code
		o.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		res.TrackingCode = code
		res.PaidAt = now
		return nil
	})
	if err != nil {
		return ConfirmPaymentResult{}, err
	}
	if res.AlreadyPaid {
		log.Info("payment already confirmed", zap.String("tracking_code", res.TrackingCode))
		return res, nil
	}

	s.invalidate(ctx, in.OrderID)
	log.Info("payment confirmed", zap.String("tracking_code", res.TrackingCode))
	s.publish(ctx, orders.Event{
		Type:    orders.EventPaymentConfirmed,
		Topic:   orders.TopicPaymentConfirmed,
		OrderID: res.OrderID,
		Payload: orders.PaymentConfirmedPayload{
			OrderID:      res.OrderID,
			OrderNumber:  res.OrderNumber,
			TrackingCode: res.TrackingCode,
			PaidAt:       res.PaidAt,
		},
	})
	return res, nil
}

// CancelOrder cancels a pending order and puts its stock back.
func (s *Service) CancelOrder(ctx context.Context, orderID, userID string) (d *orders.OrderDetail, err error) {
	ctx, span := tracer.Start(ctx, "checkout.CancelOrder", trace.WithAttributes(attribute.String("order_id", orderID)))
	defer span.End()
	log := s.logger(ctx).With(zap.String("order_id", orderID), zap.String("user_id", userID))
	defer func() { s.finish(span, err, s.Metrics.Cancellation) }()

	if userID == "" {
		return nil, ErrUnauthenticated
	}

	var (
		inst  payment.Instrument
		lines []orders.OrderLine
	)
	err = s.Store.InTx(ctx, func(tx orders.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return orders.ErrOrderNotFound
		}
		if o.Status != orders.StatusPending || o.PaymentStatus != orders.PaymentPending {
			return &OrderNotUpdatableError{OrderID: o.ID, Action: "be cancelled", Status: o.Status, PaymentStatus: o.PaymentStatus}
		}

		lines, err = tx.OrderLines(ctx, o.ID)
		if err != nil {
			return err
		}
		for _, l := range lines {
			if _, err := tx.RestoreStock(ctx, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}

		now := s.now()
		pay, err := tx.CurrentPayment(ctx, o.ID)
		if err != nil {
			return err
		}
		inst = payment.InstrumentOf(*pay)
		pay.Status = orders.PaymentFailed
		pay.UpdatedAt = now
		if err := tx.UpdatePayment(ctx, pay); err != nil {
			return err
		}

		o.Status = orders.StatusCancelled
		o.PaymentStatus = orders.PaymentFailed
		o.UpdatedAt = now
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	s.void(ctx, inst, log)
	s.invalidate(ctx, orderID)
	log.Info("order cancelled", zap.Int("lines_restocked", len(lines)))

	s.publish(ctx, orders.Event{
		Type:    orders.EventOrderCancelled,
		Topic:   orders.TopicOrderCancelled,
		OrderID: orderID,
		Payload: orders.OrderCancelledPayload{OrderID: orderID, Lines: orders.Snapshot(lines)},
	})
	return s.Store.GetOrder(ctx, orderID)
}

// GetOrder returns the order only to its owner; anyone else gets
// orders.ErrOrderNotFound.
func (s *Service) GetOrder(ctx context.Context, orderID, userID string) (*orders.OrderDetail, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	log := s.logger(ctx)

	if s.Cache != nil {
		d, ok, err := s.Cache.Get(ctx, orderID)
		if err != nil {
			log.Warn("order cache get", zap.String("order_id", orderID), zap.Error(err))
		}
		if ok {
			if d.Order.UserID != userID {
				return nil, orders.ErrOrderNotFound
			}
			return d, nil
		}
	}

	d, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if d.Order.UserID != userID {
		return nil, orders.ErrOrderNotFound
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, d); err != nil {
			log.Warn("order cache set", zap.String("order_id", orderID), zap.Error(err))
		}
	}
	return d, nil
}

// ListOrders returns the user's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, userID string) ([]orders.OrderDetail, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	return s.Store.ListOrders(ctx, userID)
}

func (s *Service) invalidate(ctx context.Context, orderID string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx, orderID); err != nil {
		s.logger(ctx).Warn("order cache invalidate", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (s *Service) finish(span trace.Span, err error, count func(string)) {
	outcome := "ok"
	if err != nil {
		outcome = string(Classify(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	if count != nil {
		count(outcome)
	}
}
