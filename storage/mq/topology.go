package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// 推送任务拓扑：direct exchange 绑定单个持久队列，消费失败的消息进入死信队列
const (
	ReminderExchange    = "lunacare.reminder"
	PushRoutingKey      = "reminder.push"
	PushQueue           = "reminder.push"
	deadLetterExchange  = "lunacare.reminder.dlx"
	PushDeadLetterQueue = "reminder.push.dead"
)

func declareTopology(c *amqp.Connection) error {
	ch, err := c.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(ReminderExchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", ReminderExchange, err)
	}
	if err := ch.ExchangeDeclare(deadLetterExchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", deadLetterExchange, err)
	}

	if _, err := ch.QueueDeclare(PushDeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", PushDeadLetterQueue, err)
	}
	if err := ch.QueueBind(PushDeadLetterQueue, PushRoutingKey, deadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", PushDeadLetterQueue, err)
	}

	if _, err := ch.QueueDeclare(PushQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": deadLetterExchange,
	}); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", PushQueue, err)
	}
	if err := ch.QueueBind(PushQueue, PushRoutingKey, ReminderExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", PushQueue, err)
	}

	return nil
}
