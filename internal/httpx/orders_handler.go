package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-jewelry-checkout/internal/checkout"
	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	"github.com/ariefcatur/go-jewelry-checkout/internal/tracking"
	"github.com/go-chi/chi/v5"
)

// Catalog lists the products customers can buy.
type Catalog interface {
	ListProducts(ctx context.Context) ([]orders.Product, error)
}

type OrdersHandler struct {
	Checkout *checkout.Service
	Tracking *tracking.Service
	Catalog  Catalog
}

const maxIdempotencyKey = 128

// Register mounts the authenticated customer routes.
func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.placeOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Patch("/orders/{id}", h.updateOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Get("/orders/{id}/tracking", h.orderTracking)
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderReq
	if err := decodeJSON(r, &req, false); err != nil {
		badRequest(w, err.Error())
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if len(key) > maxIdempotencyKey {
		badRequest(w, "Idempotency-Key is too long")
		return
	}

	res, err := h.Checkout.PlaceOrder(r.Context(), checkout.PlaceOrderInput{
		UserID:          userID(r.Context()),
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		ShippingCost:    req.ShippingCost,
		Notes:           req.Notes,
		IdempotencyKey:  key,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	w.Header().Set("Location", "/v1/orders/"+res.OrderID)
	writeJSON(w, code, toPlaced(res))
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Checkout.ListOrders(ctx, userID(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]orderResp, 0, len(list))
	for i := range list {
		out = append(out, toOrder(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	d, err := h.Checkout.GetOrder(ctx, chi.URLParam(r, "id"), userID(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(d))
}

func (h *OrdersHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderReq
	if err := decodeJSON(r, &req, false); err != nil {
		badRequest(w, err.Error())
		return
	}
	d, err := h.Checkout.UpdateOrder(r.Context(), checkout.UpdateOrderInput{
		OrderID:       chi.URLParam(r, "id"),
		UserID:        userID(r.Context()),
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(d))
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	d, err := h.Checkout.CancelOrder(r.Context(), chi.URLParam(r, "id"), userID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(d))
}

func (h *OrdersHandler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentReq
	if err := decodeJSON(r, &req, true); err != nil {
		badRequest(w, err.Error())
		return
	}
	res, err := h.Checkout.ConfirmPayment(r.Context(), checkout.ConfirmPaymentInput{
		OrderID:           chi.URLParam(r, "id"),
		ProviderPaymentID: req.ProviderPaymentID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmResp{
		OrderID:      res.OrderID,
		OrderNumber:  res.OrderNumber,
		TrackingCode: res.TrackingCode,
		PaidAt:       res.PaidAt,
		AlreadyPaid:  res.AlreadyPaid,
	})
}

func (h *OrdersHandler) orderTracking(w http.ResponseWriter, r *http.Request) {
	info, err := h.Tracking.ForOrder(r.Context(), chi.URLParam(r, "id"), userID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTracking(info, true))
}

func (h *OrdersHandler) trackByCode(w http.ResponseWriter, r *http.Request) {
	info, err := h.Tracking.ByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTracking(info, false))
}

func (h *OrdersHandler) addTrackingEvent(w http.ResponseWriter, r *http.Request) {
	var req trackingEventReq
	if err := decodeJSON(r, &req, false); err != nil {
		badRequest(w, err.Error())
		return
	}
	ev := orders.TrackingEvent{
		OrderID:     chi.URLParam(r, "id"),
		Status:      req.Status,
		Description: req.Description,
		Location:    req.Location,
	}
	if req.OccurredAt != nil {
		ev.OccurredAt = req.OccurredAt.UTC()
	}
	saved, err := h.Tracking.AddEvent(r.Context(), ev)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, trackingEventResp{
		Status:      saved.Status,
		Description: saved.Description,
		Location:    saved.Location,
		OccurredAt:  saved.OccurredAt,
	})
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.ListProducts(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]productResp, 0, len(ps))
	for _, p := range ps {
		out = append(out, productResp{ID: p.ID, SKU: p.SKU, Name: p.Name, Price: money(p.UnitPrice), StockQuantity: p.StockQuantity})
	}
	writeJSON(w, http.StatusOK, out)
}
