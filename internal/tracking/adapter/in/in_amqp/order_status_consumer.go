package in_amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pontipilat22/logcompany1/internal/shared/logger"
	"github.com/pontipilat22/logcompany1/internal/shared/mq"
	"github.com/pontipilat22/logcompany1/internal/tracking/domain"
	"github.com/pontipilat22/logcompany1/internal/tracking/router"
)

// orderStatusMessage — событие смены статуса от order-сервиса
type orderStatusMessage struct {
	OrderID   string          `json:"order_id"`
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// OrderStatusConsumer ретранслирует смену статуса заявки подписчикам
// топика order:<id>. Ядро трекинга само статусы не эмитит.
type OrderStatusConsumer struct {
	mqConn *mq.RabbitMQ
	router *router.Router
	log    *logger.Logger
}

// NewOrderStatusConsumer создает consumer очереди order.status_changed
func NewOrderStatusConsumer(mqConn *mq.RabbitMQ, r *router.Router, log *logger.Logger) *OrderStatusConsumer {
	return &OrderStatusConsumer{mqConn: mqConn, router: r, log: log}
}

// Start читает очередь до отмены контекста
func (c *OrderStatusConsumer) Start(ctx context.Context) error {
	ch := c.mqConn.Channel()
	if ch == nil {
		return fmt.Errorf("rabbitmq channel not available")
	}

	msgs, err := ch.Consume(
		mq.QueueOrderStatusChanged,
		"tracking_order_status", // consumer tag
		false,                   // auto-ack
		false,                   // exclusive
		false,                   // no-local
		false,                   // no-wait
		nil,                     // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.log.Info(logger.Entry{
		Action:  "order_status_consumer_started",
		Message: fmt.Sprintf("consuming from queue: %s", mq.QueueOrderStatusChanged),
	})

	for {
		select {
		case <-ctx.Done():
			c.log.Info(logger.Entry{Action: "order_status_consumer_stopping", Message: "context cancelled"})
			return ctx.Err()

		case msg, ok := <-msgs:
			if !ok {
				c.log.Warn(logger.Entry{Action: "order_status_channel_closed", Message: "message channel closed"})
				return fmt.Errorf("message channel closed")
			}

			if err := c.handleOrderStatus(msg); err != nil {
				c.log.Error(logger.Entry{
					Action:  "handle_order_status_failed",
					Message: err.Error(),
					Error:   &logger.ErrObj{Msg: err.Error()},
				})
				_ = msg.Nack(false, false) // повтор не поможет: сообщение битое
				continue
			}
			_ = msg.Ack(false)
		}
	}
}

func (c *OrderStatusConsumer) handleOrderStatus(msg amqp.Delivery) error {
	var statusMsg orderStatusMessage
	if err := json.Unmarshal(msg.Body, &statusMsg); err != nil {
		return fmt.Errorf("parse order status: %w", err)
	}
	if statusMsg.OrderID == "" {
		return fmt.Errorf("order status without order_id")
	}
	if statusMsg.Timestamp.IsZero() {
		statusMsg.Timestamp = time.Now().UTC()
	}

	c.router.Publish(
		domain.OrderTopic(statusMsg.OrderID),
		domain.EventOrderStatus,
		domain.OrderStatusEvent{
			OrderID:   statusMsg.OrderID,
			Status:    statusMsg.Status,
			Data:      statusMsg.Data,
			Timestamp: statusMsg.Timestamp,
		},
	)

	c.log.Debug(logger.Entry{
		Action:  "order_status_routed",
		Message: statusMsg.OrderID,
		Additional: map[string]any{
			"status": statusMsg.Status,
		},
	})
	return nil
}
