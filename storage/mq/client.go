package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"LunaCare/config"
	"LunaCare/pkg/logger"
)

var (
	conn     *amqp.Connection
	connOnce sync.Once
	connErr  error
)

// Init 建立 RabbitMQ 连接并声明拓扑
func Init() error {
	connOnce.Do(func() {
		c, err := amqp.Dial(config.Cfg.GetRabbitMQURL())
		if err != nil {
			connErr = fmt.Errorf("failed to dial rabbitmq: %w", err)
			return
		}

		if err := declareTopology(c); err != nil {
			_ = c.Close()
			connErr = err
			return
		}

		conn = c
		logger.Logger.Info("RabbitMQ initialized successfully",
			zap.String("addr", config.Cfg.RabbitMQAddr),
			zap.String("vhost", config.Cfg.RabbitMQVhost),
		)
	})

	return connErr
}

// Connection 返回全局连接，未初始化时为 nil
func Connection() *amqp.Connection {
	return conn
}

// Close 关闭发布 channel 和连接
func Close(ctx context.Context) error {
	if conn == nil {
		return nil
	}

	pubMutex.Lock()
	if publisherCh != nil && !publisherCh.IsClosed() {
		_ = publisherCh.Close()
	}
	publisherCh = nil
	pubMutex.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- conn.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
