package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-jewelry-checkout/internal/memory"
	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var placedAt = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func seedOrder(t *testing.T, s *memory.Store, code *string) {
	t.Helper()
	err := s.InTx(context.Background(), func(tx orders.Tx) error {
		return tx.InsertOrder(context.Background(), &orders.Order{
			ID:              "o1",
			UserID:          "u1",
			OrderNumber:     "EMU000001001",
			Status:          orders.StatusPaid,
			TrackingCode:    code,
			ShippingAddress: orders.ShippingAddress{CEP: "74000-000", Localidade: "Goiania", UF: "GO"},
			CreatedAt:       placedAt,
			UpdatedAt:       placedAt,
		})
	})
	require.NoError(t, err)
}

func TestSimulatedTimeline_OnlyPastSteps(t *testing.T) {
	assert.Len(t, SimulatedTimeline("o1", placedAt, placedAt), 1)
	assert.Len(t, SimulatedTimeline("o1", placedAt, placedAt.Add(25*time.Hour)), 3)

	all := SimulatedTimeline("o1", placedAt, placedAt.Add(100*time.Hour))
	require.Len(t, all, 5)
	assert.Equal(t, "Saiu para Entrega", all[4].Status)
	assert.Equal(t, placedAt.Add(72*time.Hour), all[4].OccurredAt)
}

func TestByCode_FallsBackToSimulation(t *testing.T) {
	store := memory.NewStore()
	code := "BR0A1B2C3D4E5"
	seedOrder(t, store, &code)
	svc := &Service{Store: store, Now: func() time.Time { return placedAt.Add(3 * time.Hour) }}

	info, err := svc.ByCode(context.Background(), " br0a1b2c3d4e5 ")
	require.NoError(t, err)
	assert.True(t, info.Simulated)
	assert.Equal(t, "EMU000001001", info.OrderNumber)
	assert.Equal(t, code, info.TrackingCode)
	assert.Len(t, info.Events, 2)
}

func TestAddEvent_ReplacesSimulation(t *testing.T) {
	store := memory.NewStore()
	code := "BR0A1B2C3D4E5"
	seedOrder(t, store, &code)
	svc := &Service{Store: store, Now: func() time.Time { return placedAt.Add(time.Hour) }}

	_, err := svc.AddEvent(context.Background(), orders.TrackingEvent{OrderID: "o1"})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	ev, err := svc.AddEvent(context.Background(), orders.TrackingEvent{OrderID: "o1", Status: "Postado", Location: "Goiania/GO"})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)

	info, err := svc.ForOrder(context.Background(), "o1", "u1")
	require.NoError(t, err)
	assert.False(t, info.Simulated)
	require.Len(t, info.Events, 1)
	assert.Equal(t, "Postado", info.Events[0].Status)
}

func TestForOrder_Errors(t *testing.T) {
	store := memory.NewStore()
	seedOrder(t, store, nil)
	svc := &Service{Store: store}

	_, err := svc.ForOrder(context.Background(), "o1", "u2")
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)

	_, err = svc.ForOrder(context.Background(), "o1", "u1")
	assert.ErrorIs(t, err, ErrNoTrackingCode)

	_, err = svc.ByCode(context.Background(), "BRNOPE")
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}
