package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"LunaCare/pkg/errors"
	"LunaCare/pkg/logger"
)

// MessageHandler 处理单条消息，ctx 携带从消息头恢复的追踪上下文
type MessageHandler func(ctx context.Context, body []byte) error

type ConsumeOptions struct {
	Queue         string
	ConsumerTag   string
	PrefetchCount int
	Handler       MessageHandler
}

// Consume 阻塞消费直到 ctx 结束或 channel 关闭
// Handler 返回 SkipMessageError 时直接 ack，其他错误 nack 且不重新入队，由死信队列兜底
func Consume(ctx context.Context, opts ConsumeOptions) error {
	c := Connection()
	if c == nil {
		return fmt.Errorf("RabbitMQ connection is nil")
	}

	ch, err := c.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if opts.PrefetchCount > 0 {
		if err := ch.Qos(opts.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	msgs, err := ch.Consume(
		opts.Queue,
		opts.ConsumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log := logger.For("rabbitmq").With(
		zap.String("queue", opts.Queue),
		zap.String("consumer_tag", opts.ConsumerTag),
	)
	log.Info("Started consuming messages", zap.Int("prefetch_count", opts.PrefetchCount))

	for {
		select {
		case <-ctx.Done():
			log.Info("Consumer stopping")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("consumer channel closed")
			}
			handleDelivery(ctx, log, opts, msg)
		}
	}
}

func handleDelivery(ctx context.Context, log *zap.Logger, opts ConsumeOptions, msg amqp.Delivery) {
	msgCtx, span := startConsumeSpan(ctx, opts.Queue, msg)
	err := opts.Handler(msgCtx, msg.Body)
	endConsumeSpan(span, err)

	switch {
	case err == nil:
		_ = msg.Ack(false)
	case errors.IsSkipMessageError(err):
		log.Info("Message skipped", zap.String("message_id", msg.MessageId), zap.Error(err))
		_ = msg.Ack(false)
	default:
		log.Error("Failed to process message", zap.String("message_id", msg.MessageId), zap.Error(err))
		_ = msg.Nack(false, false)
	}
}
