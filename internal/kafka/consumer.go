package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil only when the message is done and its offset may be
// committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	defaultBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

type Consumer struct {
	r       messageReader
	workers int
	backoff time.Duration
	log     *zap.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers, log)
}

func newConsumer(r messageReader, workers int, log *zap.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{r: r, workers: workers, backoff: defaultBackoff, log: log}
}

// Start fetches until ctx ends or the reader fails. Each partition is pinned
// to one worker, and a failing message is retried until it succeeds so no
// later offset of its partition is committed past it.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 4)
		wg.Add(1)
		go func(worker int, in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if ctx.Err() != nil {
					continue // drain; uncommitted messages are redelivered
				}
				c.handle(ctx, h, m, worker)
			}
		}(i, jobs[i])
	}
	defer wg.Wait()
	defer func() {
		for _, ch := range jobs {
			close(ch)
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case jobs[partitionSlot(m.Partition, c.workers)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

func partitionSlot(partition, workers int) int {
	if partition < 0 {
		partition = -partition
	}
	return partition % workers
}

func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message, worker int) {
	log := c.log.With(
		zap.Int("worker", worker),
		zap.String("topic", m.Topic),
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset),
	)
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			break
		}
		log.Error("handle message", zap.Int("attempt", attempt), zap.Duration("retry_in", wait), zap.Error(err))
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		if wait *= 2; wait > maxBackoff {
			wait = maxBackoff
		}
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		log.Error("commit message", zap.Error(err))
	}
}
