package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrMalformed marks a message that can never be processed.
var ErrMalformed = errors.New("malformed message")

// Handler processes one message body. A nil return acks the message; any
// error nacks it to the route's DLQ.
type Handler func(ctx context.Context, body []byte) error

// JSONHandler decodes the body into T before calling fn.
func JSONHandler[T any](fn func(ctx context.Context, task T) error) Handler {
	return func(ctx context.Context, body []byte) error {
		var task T
		if err := json.Unmarshal(body, &task); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return fn(ctx, task)
	}
}

// Outcome callback used for metrics; may be nil.
type OutcomeFunc func(route Route, outcome string)

type Worker struct {
	Conn        *amqp.Connection
	Prefetch    int
	Concurrency int
	Logger      *zap.Logger
	OnOutcome   OutcomeFunc
}

func NewWorker(conn *amqp.Connection, prefetch, concurrency int, logger *zap.Logger) *Worker {
	return &Worker{
		Conn:        conn,
		Prefetch:    prefetch,
		Concurrency: concurrency,
		Logger:      logger,
	}
}

// Consume opens a dedicated channel for route and processes deliveries with
// a bounded pool until ctx is cancelled or the channel closes.
func (w *Worker) Consume(ctx context.Context, route Route, handler Handler) error {
	ch, err := w.Conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel for %s: %w", route.Queue, err)
	}
	defer ch.Close()

	if err := ch.Qos(w.Prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos for %s: %w", route.Queue, err)
	}

	msgs, err := ch.ConsumeWithContext(ctx,
		route.Queue,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer on %s: %w", route.Queue, err)
	}

	w.Logger.Info("worker consuming", zap.String("queue", route.Queue),
		zap.Int("prefetch", w.Prefetch), zap.Int("concurrency", w.Concurrency))

	w.process(ctx, route, msgs, handler)
	return nil
}

// Delivery is the subset of amqp.Delivery the pool needs.
type Delivery interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (w *Worker) process(ctx context.Context, route Route, msgs <-chan amqp.Delivery, handler Handler) {
	concurrency := w.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range msgs {
				w.handle(ctx, route, d.MessageId, d.Body, d, handler)
			}
		}()
	}
	wg.Wait()
}

func (w *Worker) handle(ctx context.Context, route Route, messageID string, body []byte, d Delivery, handler Handler) {
	log := w.Logger.With(zap.String("queue", route.Queue), zap.String("message_id", messageID))

	err := handler(ctx, body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("ack failed", zap.Error(ackErr))
		}
		w.outcome(route, "ok")
	case ctx.Err() != nil:
		// shutting down: hand the message back instead of dead-lettering it
		log.Warn("task interrupted by shutdown, requeued", zap.Error(err))
		d.Nack(false, true)
		w.outcome(route, "requeued")
	case errors.Is(err, ErrMalformed):
		log.Error("malformed message sent to DLQ", zap.Error(err))
		d.Nack(false, false)
		w.outcome(route, "malformed")
	default:
		log.Error("task failed, sent to DLQ", zap.Error(err))
		d.Nack(false, false)
		w.outcome(route, "error")
	}
}

func (w *Worker) outcome(route Route, outcome string) {
	if w.OnOutcome != nil {
		w.OnOutcome(route, outcome)
	}
}
