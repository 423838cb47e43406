package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"LunaCare/pkg/logger"
)

// 发布端复用同一个 channel，关闭后在下次发布时重建

var (
	publisherCh *amqp.Channel
	pubMutex    sync.RWMutex // 读写锁，读多写少
)

func getPublisherChannel() (*amqp.Channel, error) {
	pubMutex.RLock()
	if publisherCh != nil && !publisherCh.IsClosed() {
		ch := publisherCh
		pubMutex.RUnlock()
		return ch, nil
	}
	pubMutex.RUnlock()

	pubMutex.Lock()
	defer pubMutex.Unlock()

	if publisherCh != nil && !publisherCh.IsClosed() {
		return publisherCh, nil
	}

	if conn == nil {
		return nil, fmt.Errorf("RabbitMQ connection is nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}

	publisherCh = ch
	closeChan := ch.NotifyClose(make(chan *amqp.Error, 1))

	go func() {
		<-closeChan

		pubMutex.Lock()
		if publisherCh == ch {
			publisherCh = nil
		}
		pubMutex.Unlock()

		logger.For("rabbitmq").Warn("Publisher channel closed, will recreate on next publish")
	}()

	logger.For("rabbitmq").Info("Publisher channel created")

	return ch, nil
}

// PublishMessage 以 JSON 持久化消息发布，并注入追踪上下文
func PublishMessage(ctx context.Context, exchange, routingKey, messageID string, body interface{}) error {
	ch, err := getPublisherChannel()
	if err != nil {
		return err
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = publishWithTracing(ctx, ch, exchange, routingKey, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    messageID,
		Body:         bodyBytes,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		logger.For("rabbitmq").Error("Failed to publish message",
			zap.String("exchange", exchange),
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}
