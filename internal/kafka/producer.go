package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrProducerClosed = errors.New("kafka producer closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers messages and writes them from a single goroutine. The
// topic is taken from each message.
type Producer struct {
	w     messageWriter
	log   *zap.Logger
	inbox chan kafka.Message
	done  chan struct{}
}

func NewProducer(brokers []string, buf int, log *zap.Logger) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}, buf, log)
}

func newProducer(w messageWriter, buf int, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	if buf <= 0 {
		buf = 256
	}
	return &Producer{w: w, log: log, inbox: make(chan kafka.Message, buf), done: make(chan struct{})}
}

// Start runs the write loop until ctx ends; queued messages are flushed
// before the writer closes.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for {
			select {
			case m := <-p.inbox:
				p.write(m)
			case <-ctx.Done():
				for {
					select {
					case m := <-p.inbox:
						p.write(m)
					default:
						if err := p.w.Close(); err != nil {
							p.log.Warn("kafka writer close", zap.Error(err))
						}
						return
					}
				}
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.log.Error("kafka write",
			zap.String("topic", m.Topic),
			zap.ByteString("key", m.Key),
			zap.Error(err),
		)
	}
}

// Publish queues m. It blocks while the buffer is full.
func (p *Producer) Publish(ctx context.Context, m kafka.Message) error {
	if m.Time.IsZero() {
		m.Time = time.Now()
	}
	select {
	case <-p.done:
		return ErrProducerClosed
	default:
	}
	select {
	case p.inbox <- m:
		return nil
	case <-p.done:
		return ErrProducerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitClosed blocks until the write loop has flushed and exited.
func (p *Producer) WaitClosed() { <-p.done }
