package messaging

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/menu-orders/internal/core/domain"
)

const writeTimeout = 5 * time.Second

var (
	ErrQueueFull       = errors.New("event queue full")
	ErrPublisherClosed = errors.New("publisher closed")
)

// OrderEventMessage is the value written to the order events topic.
type OrderEventMessage struct {
	OrderID   int64              `json:"orderId"`
	Event     domain.OrderStatus `json:"event"`
	Timestamp time.Time          `json:"timestamp"`
	Details   map[string]any     `json:"details"`
	Total     decimal.Decimal    `json:"total"`
	Version   int                `json:"version"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher hands events to a pool of workers so that a slow broker
// never holds up the request that produced the event.
type KafkaPublisher struct {
	writer messageWriter
	queue  chan kafka.Message
	log    logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewKafkaPublisher(brokers []string, topic string, workers, queueSize int, log logrus.FieldLogger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(writer, workers, queueSize, log)
}

func newKafkaPublisher(writer messageWriter, workers, queueSize int, log logrus.FieldLogger) *KafkaPublisher {
	if workers < 1 {
		workers = 1
	}
	p := &KafkaPublisher{
		writer: writer,
		queue:  make(chan kafka.Message, queueSize),
		log:    log,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.workerLoop(id)
		}(i)
	}
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, order domain.Order, event domain.OrderEvent) error {
	msg, err := newMessage(order, event)
	if err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	select {
	case p.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events and waits until the queued ones are written.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return p.writer.Close()
}

func (p *KafkaPublisher) workerLoop(id int) {
	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)

		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			p.log.WithError(err).WithFields(logrus.Fields{
				"worker":   id,
				"order_id": string(msg.Key),
			}).Error("write order event")
		}

		cancel()
	}
}

func newMessage(order domain.Order, event domain.OrderEvent) (kafka.Message, error) {
	value, err := json.Marshal(OrderEventMessage{
		OrderID:   order.ID,
		Event:     event.Event,
		Timestamp: event.Timestamp,
		Details:   event.Details,
		Total:     order.Total,
		Version:   order.Version,
	})
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, "encode order event")
	}

	return kafka.Message{
		Key:   []byte(strconv.FormatInt(order.ID, 10)),
		Value: value,
		Time:  event.Timestamp,
	}, nil
}

// NopPublisher drops events. It stands in when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.Order, domain.OrderEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
