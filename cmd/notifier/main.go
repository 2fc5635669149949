// Command notifier consumes post.published events and logs them. It is the
// hook point for newsletters, cache purges and webhooks.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/eringen/postadmin"
	"github.com/eringen/postadmin/events"
	"github.com/eringen/postadmin/logger"
)

func main() {
	cfg := postadmin.LoadConfig()

	log, err := logger.New(logger.Options{Mode: cfg.Log, Level: cfg.LogLevel, Dir: cfg.LogDir, File: "notifier.log"})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.RabbitMQURL == "" {
		log.Fatal("RABBITMQ_URL is required")
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("failed to open channel", zap.Error(err))
	}
	defer ch.Close()

	deliveries, err := events.Subscribe(ch, "notifier")
	if err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}
	log.Info("notifier started", zap.String("queue", events.QueueName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = events.Consume(ctx, deliveries, func(ctx context.Context, e events.PostPublished) error {
		log.Info("post published",
			zap.Int64("post_id", e.Payload.PostID),
			zap.String("slug", e.Payload.Slug),
			zap.String("name", e.Payload.Name),
			zap.String("url", postadmin.BuildURL(cfg.URL, "posts", e.Payload.Slug)),
		)
		return nil
	}, log)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped", zap.Error(err))
	}
	log.Info("notifier shutting down")
}
