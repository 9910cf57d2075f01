package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout holds the order workflow collectors. A nil *Checkout is valid and
// records nothing.
type Checkout struct {
	placements    *prometheus.CounterVec
	placementTime *prometheus.HistogramVec
	confirmations *prometheus.CounterVec
	updates       *prometheus.CounterVec
	cancellations *prometheus.CounterVec
	events        *prometheus.CounterVec
}

func NewCheckout(reg prometheus.Registerer) *Checkout {
	c := &Checkout{
		placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout", Name: "placements_total",
			Help: "Order placement attempts by outcome and last stage reached.",
		}, []string{"outcome", "stage"}),
		placementTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "checkout", Name: "placement_duration_seconds",
			Help:    "Order placement latency.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"payment_method", "outcome"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout", Name: "payment_confirmations_total",
			Help: "Payment confirmations by outcome.",
		}, []string{"outcome"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout", Name: "order_updates_total",
			Help: "Pending order updates by outcome.",
		}, []string{"outcome"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout", Name: "order_cancellations_total",
			Help: "Order cancellations by outcome.",
		}, []string{"outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout", Name: "events_published_total",
			Help: "Domain events handed to the broker.",
		}, []string{"topic", "outcome"}),
	}
	reg.MustRegister(c.placements, c.placementTime, c.confirmations, c.updates, c.cancellations, c.events)
	return c
}

func (c *Checkout) Placement(method, outcome, stage string, took time.Duration) {
	if c == nil {
		return
	}
	c.placements.WithLabelValues(outcome, stage).Inc()
	c.placementTime.WithLabelValues(method, outcome).Observe(took.Seconds())
}

func (c *Checkout) Confirmation(outcome string) {
	if c == nil {
		return
	}
	c.confirmations.WithLabelValues(outcome).Inc()
}

func (c *Checkout) Update(outcome string) {
	if c == nil {
		return
	}
	c.updates.WithLabelValues(outcome).Inc()
}

func (c *Checkout) Cancellation(outcome string) {
	if c == nil {
		return
	}
	c.cancellations.WithLabelValues(outcome).Inc()
}

func (c *Checkout) Event(topic string, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.events.WithLabelValues(topic, outcome).Inc()
}
