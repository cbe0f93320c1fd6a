package out_amqp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pontipilat22/logcompany1/internal/shared/logger"
	"github.com/pontipilat22/logcompany1/internal/shared/mq"
	out "github.com/pontipilat22/logcompany1/internal/tracking/application/ports/out"
	"github.com/pontipilat22/logcompany1/internal/tracking/domain"
)

// AmqpEventPublisher публикует позиции в location_fanout, чтобы
// backend-сервисы получали GPS-поток без WebSocket-сессии
type AmqpEventPublisher struct {
	mqConn *mq.RabbitMQ
	log    *logger.Logger
}

// NewAmqpEventPublisher создает publisher поверх подключения к RabbitMQ
func NewAmqpEventPublisher(mqConn *mq.RabbitMQ, log *logger.Logger) out.EventPublisher {
	return &AmqpEventPublisher{mqConn: mqConn, log: log}
}

// PublishPositionUpdate отправляет событие в exchange location_fanout
func (p *AmqpEventPublisher) PublishPositionUpdate(ctx context.Context, event domain.PositionUpdateEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal position update: %w", err)
	}

	if err := p.mqConn.Publish(ctx, mq.ExchangeLocationFanout, "", body); err != nil {
		return fmt.Errorf("publish position update: %w", err)
	}

	p.log.Debug(logger.Entry{
		Action:  "position_published",
		Message: "position update published to fanout",
		Additional: map[string]any{
			"driver_id": event.DriverID,
		},
	})
	return nil
}
