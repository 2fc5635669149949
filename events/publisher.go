package events

import "context"

type Publisher interface {
	PublishPostPublished(ctx context.Context, e PostPublished) error
}

// NoopPublisher drops every event. Used when RABBITMQ_URL is unset.
type NoopPublisher struct{}

func (NoopPublisher) PublishPostPublished(context.Context, PostPublished) error {
	return nil
}

var (
	_ Publisher = NoopPublisher{}
	_ Publisher = (*RabbitMQPublisher)(nil)
)
