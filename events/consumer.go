package events

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// HandlerFunc reacts to a post.published event. A returned error requeues
// the delivery.
type HandlerFunc func(ctx context.Context, e PostPublished) error

// Consume feeds deliveries to handle until ctx is cancelled or the channel
// closes. Malformed bodies are dropped, not requeued.
func Consume(ctx context.Context, deliveries <-chan amqp.Delivery, handle HandlerFunc, log *zap.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				log.Warn("delivery channel closed")
				return nil
			}
			handleDelivery(ctx, d, handle, log)
		}
	}
}

func handleDelivery(ctx context.Context, d amqp.Delivery, handle HandlerFunc, log *zap.Logger) {
	e, err := DecodePostPublished(d.Body)
	if err != nil {
		log.Error("invalid event body", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if err := handle(ctx, e); err != nil {
		// One retry; a second failure drops the message so it cannot loop.
		if d.Redelivered {
			log.Error("event handler failed again, dropping", zap.Int64("post_id", e.Payload.PostID), zap.Error(err))
			_ = d.Nack(false, false)
			return
		}
		log.Error("event handler failed, requeueing", zap.Int64("post_id", e.Payload.PostID), zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	if err := d.Ack(false); err != nil {
		log.Error("failed to ack", zap.Error(err))
	}
}
