package mq

import (
	"fmt"

	"github.com/pontipilat22/logcompany1/internal/shared/logger"
)

const (
	// ExchangeOrderTopic — события заявок от order-сервиса
	ExchangeOrderTopic = "order_topic"

	// ExchangeLocationFanout — поток GPS-позиций для backend-сервисов
	ExchangeLocationFanout = "location_fanout"

	// QueueOrderStatusChanged — смена статуса заявки
	QueueOrderStatusChanged = "order.status_changed"
)

// SetupTopology создает exchanges, queues и bindings tracking-сервиса
func SetupTopology(mq *RabbitMQ, log *logger.Logger) error {
	ch := mq.Channel()
	if ch == nil {
		return fmt.Errorf("rabbitmq channel not available")
	}

	// 1. Exchange: order_topic (topic) — публикуется order-сервисом
	if err := ch.ExchangeDeclare(
		ExchangeOrderTopic,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // args
	); err != nil {
		return fmt.Errorf("declare %s: %w", ExchangeOrderTopic, err)
	}

	// 2. Exchange: location_fanout (fanout) — публикуется tracking-сервисом
	if err := ch.ExchangeDeclare(
		ExchangeLocationFanout,
		"fanout",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare %s: %w", ExchangeLocationFanout, err)
	}

	// 3. Очередь смены статусов заявок
	if _, err := ch.QueueDeclare(QueueOrderStatusChanged, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", QueueOrderStatusChanged, err)
	}
	if err := ch.QueueBind(QueueOrderStatusChanged, QueueOrderStatusChanged, ExchangeOrderTopic, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", QueueOrderStatusChanged, err)
	}

	log.Info(logger.Entry{
		Action:  "topology_setup_complete",
		Message: "tracking exchanges and queues created",
	})
	return nil
}
