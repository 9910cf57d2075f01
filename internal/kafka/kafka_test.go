package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducer_FlushesOnShutdown(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	for _, topic := range []string{orders.TopicOrderPlaced, orders.TopicPaymentConfirmed} {
		require.NoError(t, p.Publish(context.Background(), kafka.Message{Topic: topic, Key: []byte("o1")}))
	}
	cancel()
	p.WaitClosed()

	assert.True(t, w.closed)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, orders.TopicOrderPlaced, w.msgs[0].Topic)
	assert.Equal(t, orders.TopicPaymentConfirmed, w.msgs[1].Topic)
	assert.False(t, w.msgs[0].Time.IsZero())

	err := p.Publish(context.Background(), kafka.Message{Topic: orders.TopicOrderPlaced})
	assert.ErrorIs(t, err, ErrProducerClosed)
}

func TestProducer_WriteErrorIsLoggedNotFatal(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newProducer(w, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	require.NoError(t, p.Publish(context.Background(), kafka.Message{Topic: orders.TopicOrderPlaced}))
	cancel()
	p.WaitClosed()
	assert.Empty(t, w.msgs)
}

func TestProducer_PublishHonoursContext(t *testing.T) {
	p := newProducer(&fakeWriter{}, 1, nil) // not started: the buffer fills
	require.NoError(t, p.Publish(context.Background(), kafka.Message{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Publish(ctx, kafka.Message{}), context.DeadlineExceeded)
}

type capture struct{ msgs []kafka.Message }

func (c *capture) Publish(_ context.Context, m kafka.Message) error {
	c.msgs = append(c.msgs, m)
	return nil
}

func TestEventPublisher_Envelope(t *testing.T) {
	c := &capture{}
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	pub := &EventPublisher{Producer: c, ServiceName: "checkout-api", Now: func() time.Time { return at }}

	err := pub.Publish(context.Background(), orders.Event{
		Type:    orders.EventPaymentConfirmed,
		Topic:   orders.TopicPaymentConfirmed,
		OrderID: "o1",
		TraceID: "trace-1",
		Payload: orders.PaymentConfirmedPayload{OrderID: "o1", TrackingCode: "BR0A1B2C3D4E5"},
	})
	require.NoError(t, err)
	require.Len(t, c.msgs, 1)

	m := c.msgs[0]
	assert.Equal(t, orders.TopicPaymentConfirmed, m.Topic)
	assert.Equal(t, []byte("o1"), m.Key)
	assert.Equal(t, kafka.Header{Key: "x-event-type", Value: []byte(orders.EventPaymentConfirmed)}, m.Headers[0])
	assert.Equal(t, kafka.Header{Key: "x-event-version", Value: []byte("1")}, m.Headers[1])

	env, err := DecodeEnvelope(m.Value)
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, orders.EventPaymentConfirmed, env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "checkout-api", env.Producer)
	assert.Equal(t, "o1", env.CorrelationID)
	assert.Equal(t, "trace-1", env.TraceID)
	assert.True(t, at.Equal(env.OccurredAt))

	p, err := UnwrapPayload[orders.PaymentConfirmedPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "BR0A1B2C3D4E5", p.TrackingCode)
}

func TestDecodeEnvelope_Garbage(t *testing.T) {
	_, err := DecodeEnvelope([]byte("{"))
	assert.Error(t, err)
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumer_RetriesFailedMessageBeforeLaterOffsets(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Partition: 0, Offset: 1}, {Partition: 0, Offset: 2}}}
	c := newConsumer(r, 2, nil)
	c.backoff = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())

	var (
		mu    sync.Mutex
		calls = map[int64]int{}
		order []int64
	)
	handled := make(chan struct{}, 2)
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			mu.Lock()
			calls[m.Offset]++
			n := calls[m.Offset]
			order = append(order, m.Offset)
			mu.Unlock()
			if m.Offset == 1 && n == 1 {
				return errors.New("db unavailable")
			}
			handled <- struct{}{}
			return nil
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-handled:
		case <-time.After(2 * time.Second):
			t.Fatal("messages were not handled")
		}
	}
	require.Eventually(t, func() bool { return len(r.commits()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[int64]int{1: 2, 2: 1}, calls)
	assert.Equal(t, []int64{1, 1, 2}, order)
	assert.Equal(t, []int64{1, 2}, r.commits())
	assert.True(t, r.closed)
}

func TestConsumer_FailingMessageStaysUncommittedOnShutdown(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Offset: 7}, {Offset: 8}}}
	c := newConsumer(r, 1, nil)
	c.backoff = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())

	attempts := make(chan int64, 64)
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			select {
			case attempts <- m.Offset:
			default:
			}
			return errors.New("always fails")
		})
	}()

	for i := 0; i < 3; i++ {
		assert.Equal(t, int64(7), <-attempts)
	}
	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, r.commits())
}

func TestPartitionSlot(t *testing.T) {
	assert.Equal(t, 0, partitionSlot(0, 3))
	assert.Equal(t, 1, partitionSlot(4, 3))
	assert.Equal(t, 2, partitionSlot(-2, 4))
	assert.Equal(t, 0, partitionSlot(7, 1))
}
