// Package publisher implements the non-blocking, fire-and-forget emitter
// that hands match events to an external event stream. It never blocks
// the matcher thread: admission onto the broker's async producer is
// bounded to a small deadline, no acknowledgment is awaited, and any
// failure to admit is counted rather than retried.
package publisher

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/rishav/order-matching-engine/internal/metrics"
	"github.com/rishav/order-matching-engine/internal/orders"
)

// admissionDeadline bounds how long Emit may block trying to hand a
// message to the producer's input channel before it gives up and counts
// a drop.
const admissionDeadline = time.Millisecond

// Config configures the underlying Kafka-style producer.
type Config struct {
	Brokers []string
	Topic   string
}

// Publisher wraps a sarama async producer configured for fire-and-forget
// delivery: no required acks, a small linger for micro-batching, and a
// background drain of the Errors channel so the producer's internal
// queues never back up (Successes are not returned, so there is nothing
// to drain there).
type Publisher struct {
	producer sarama.AsyncProducer
	topic    string
	shardID  string
	metrics  *metrics.ShardRegistry
	logger   *zap.Logger

	drainDone chan struct{}
}

// New dials the broker and starts the background drain goroutine. A
// dial failure here is the caller's to treat as fatal or not; the core
// matching pipeline never depends on the publisher being reachable.
func New(cfg Config, shardID string, reg *metrics.ShardRegistry, logger *zap.Logger) (*Publisher, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.NoResponse
	saramaCfg.Producer.Return.Successes = false
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Producer.Flush.Frequency = 5 * time.Millisecond
	saramaCfg.Producer.Flush.Messages = 50

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, err
	}

	return NewWithProducer(producer, cfg.Topic, shardID, reg, logger), nil
}

// NewWithProducer builds a publisher over an already-constructed sarama
// producer, skipping the broker dial. Used by tests and by any caller
// that wants to supply a mock producer (see sarama's mocks package)
// instead of dialing a real broker.
func NewWithProducer(producer sarama.AsyncProducer, topic, shardID string, reg *metrics.ShardRegistry, logger *zap.Logger) *Publisher {
	p := &Publisher{
		producer:  producer,
		topic:     topic,
		shardID:   shardID,
		metrics:   reg,
		logger:    logger,
		drainDone: make(chan struct{}),
	}
	go p.drainErrors()
	return p
}

// drainErrors consumes the producer's Errors channel so it never blocks
// internally; delivery failures are counted but not surfaced to the
// caller, per the publisher's fire-and-forget contract.
func (p *Publisher) drainErrors() {
	defer close(p.drainDone)
	for errMsg := range p.producer.Errors() {
		p.metrics.PublishDropsTotal.WithLabelValues(p.shardID).Inc()
		if p.logger != nil {
			p.logger.Warn("publisher broker error", zap.Error(errMsg.Err))
		}
	}
}

// Emit hands a match event to the producer's input channel. It returns
// promptly whether or not the broker is reachable: if the channel cannot
// accept the message within admissionDeadline, the event is dropped and
// publish_drops_total is incremented. Never blocks the matcher thread
// beyond that bound.
func (p *Publisher) Emit(event orders.MatchEvent) {
	start := time.Now()
	payload, err := json.Marshal(event)
	if err != nil {
		p.metrics.PublishDropsTotal.WithLabelValues(p.shardID).Inc()
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Symbol),
		Value: sarama.ByteEncoder(payload),
	}

	timer := time.NewTimer(admissionDeadline)
	defer timer.Stop()

	select {
	case p.producer.Input() <- msg:
		p.metrics.EventPublishDuration.WithLabelValues(p.shardID).Observe(time.Since(start).Seconds())
	case <-timer.C:
		p.metrics.PublishDropsTotal.WithLabelValues(p.shardID).Inc()
		if p.logger != nil {
			p.logger.Warn("publisher admission deadline exceeded, match event dropped")
		}
	}
}

// Shutdown best-effort flushes the producer with a small bounded
// deadline; it never blocks forever waiting on a broker that is gone.
func (p *Publisher) Shutdown(deadline time.Duration) {
	done := make(chan struct{})
	go func() {
		p.producer.AsyncClose()
		<-p.drainDone
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(deadline):
		if p.logger != nil {
			p.logger.Warn("publisher shutdown deadline exceeded, abandoning flush")
		}
	}
}
