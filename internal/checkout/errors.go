package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	"github.com/ariefcatur/go-jewelry-checkout/internal/payment"
)

var (
	ErrUnauthenticated  = errors.New("authentication required")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateRequest = errors.New("request with this idempotency key is already in progress")
	ErrPaymentMismatch  = errors.New("payment reference does not match")
)

// OrderNotUpdatableError is returned when an order's state forbids the
// requested change.
type OrderNotUpdatableError struct {
	OrderID       string
	Action        string
	Status        orders.Status
	PaymentStatus orders.PaymentStatus
}

func (e *OrderNotUpdatableError) Error() string {
	return fmt.Sprintf("order %s cannot %s: status %s, payment %s", e.OrderID, e.Action, e.Status, e.PaymentStatus)
}

type Category string

const (
	CategoryValidation      Category = "validation"
	CategoryUnauthorized    Category = "unauthorized"
	CategoryNotFound        Category = "not_found"
	CategoryConflict        Category = "conflict"
	CategoryPaymentProvider Category = "payment_provider"
	CategoryUnavailable     Category = "unavailable"
	CategoryInternal        Category = "internal"
)

// Classify maps any error returned by Service to a stable category.
func Classify(err error) Category {
	var (
		notUpdatable *OrderNotUpdatableError
		pixErr       *payment.PixGenerationError
		provider     *payment.PaymentProviderError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return CategoryUnauthorized
	case orders.IsValidation(err), errors.Is(err, ErrInvalidInput), errors.Is(err, payment.ErrUnsupportedMethod):
		return CategoryValidation
	case errors.Is(err, orders.ErrOrderNotFound), errors.Is(err, orders.ErrProductNotFound):
		return CategoryNotFound
	case errors.As(err, &notUpdatable), errors.Is(err, ErrDuplicateRequest), errors.Is(err, ErrPaymentMismatch):
		return CategoryConflict
	case errors.Is(err, context.DeadlineExceeded):
		// provider errors may wrap a timeout; the caller should retry
		return CategoryUnavailable
	case errors.As(err, &pixErr), errors.As(err, &provider):
		return CategoryPaymentProvider
	default:
		return CategoryInternal
	}
}

// PublicMessage is the text safe to show a caller. Validation and conflict
// messages name the offending product or order; everything else is generic.
func PublicMessage(err error) string {
	switch Classify(err) {
	case CategoryValidation:
		return err.Error()
	case CategoryUnauthorized:
		return "authentication required"
	case CategoryNotFound:
		return "order not found"
	case CategoryConflict:
		var nu *OrderNotUpdatableError
		if errors.As(err, &nu) {
			return fmt.Sprintf("order can no longer %s", nu.Action)
		}
		if errors.Is(err, ErrPaymentMismatch) {
			return "payment reference does not match this order"
		}
		return "a request with this idempotency key is already being processed"
	case CategoryPaymentProvider:
		return "payment could not be created, please try again or choose another method"
	case CategoryUnavailable:
		return "the request timed out, please try again"
	default:
		return "internal error"
	}
}
