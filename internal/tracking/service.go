package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	"github.com/google/uuid"
)

var (
	ErrNoTrackingCode = errors.New("order has no tracking code yet")
	ErrInvalidEvent   = errors.New("tracking event requires a status")
)

type Store interface {
	GetOrder(ctx context.Context, orderID string) (*orders.OrderDetail, error)
	FindOrderByTrackingCode(ctx context.Context, code string) (*orders.Order, error)
	TrackingEvents(ctx context.Context, orderID string) ([]orders.TrackingEvent, error)
	InsertTrackingEvent(ctx context.Context, e *orders.TrackingEvent) error
}

// Info is what a tracking page shows.
type Info struct {
	OrderID         string
	OrderNumber     string
	TrackingCode    string
	Status          orders.Status
	ShippingAddress orders.ShippingAddress
	Events          []orders.TrackingEvent
	Simulated       bool
}

type Service struct {
	Store Store
	Now   func() time.Time
}

// ByCode looks an order up by its public tracking code.
func (s *Service) ByCode(ctx context.Context, code string) (*Info, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrNoTrackingCode
	}
	o, err := s.Store.FindOrderByTrackingCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.info(ctx, o)
}

// ForOrder returns tracking for an order owned by userID.
func (s *Service) ForOrder(ctx context.Context, orderID, userID string) (*Info, error) {
	d, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if d.Order.UserID != userID {
		return nil, orders.ErrOrderNotFound
	}
	if d.Order.TrackingCode == nil {
		return nil, ErrNoTrackingCode
	}
	return s.info(ctx, &d.Order)
}

// AddEvent records a carrier update. OccurredAt defaults to now.
func (s *Service) AddEvent(ctx context.Context, e orders.TrackingEvent) (*orders.TrackingEvent, error) {
	if strings.TrimSpace(e.Status) == "" {
		return nil, ErrInvalidEvent
	}
	now := s.now()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = now
	}
	e.CreatedAt = now
	if err := s.Store.InsertTrackingEvent(ctx, &e); err != nil {
		return nil, fmt.Errorf("insert tracking event: %w", err)
	}
	return &e, nil
}

func (s *Service) info(ctx context.Context, o *orders.Order) (*Info, error) {
	events, err := s.Store.TrackingEvents(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	info := &Info{
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		ShippingAddress: o.ShippingAddress,
		Events:          events,
	}
	if o.TrackingCode != nil {
		info.TrackingCode = *o.TrackingCode
	}
	if len(events) == 0 {
		info.Events = SimulatedTimeline(o.ID, o.CreatedAt, s.now())
		info.Simulated = true
	}
	return info, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

type step struct {
	after       time.Duration
	status      string
	description string
	location    string
}

var timeline = []step{
	{0, "Pedido Confirmado", "Seu pedido foi confirmado e está sendo preparado para envio.", "São Paulo/SP"},
	{2 * time.Hour, "Em Preparação", "Seu pedido está sendo preparado em nosso centro de distribuição.", "São Paulo/SP"},
	{24 * time.Hour, "Enviado", "Seu pedido foi enviado e está a caminho do destino.", "São Paulo/SP"},
	{48 * time.Hour, "Em Trânsito", "Objeto em trânsito para o centro de distribuição.", "Centro de Distribuição"},
	{72 * time.Hour, "Saiu para Entrega", "Objeto saiu para entrega ao destinatário.", "Agência Local"},
}

// SimulatedTimeline is used until a carrier posts real events. Only steps
// whose time has come are returned.
func SimulatedTimeline(orderID string, placedAt, now time.Time) []orders.TrackingEvent {
	var out []orders.TrackingEvent
	for i, st := range timeline {
		at := placedAt.Add(st.after)
		if at.After(now) {
			break
		}
		out = append(out, orders.TrackingEvent{
			ID:          fmt.Sprintf("simulated-%d", i),
			OrderID:     orderID,
			Status:      st.status,
			Description: st.description,
			Location:    st.location,
			OccurredAt:  at,
			CreatedAt:   at,
		})
	}
	return out
}
