// Package router раздает события подписчикам топиков.
//
// Доставка fire-and-forget: сбой доставки одному подписчику не блокирует
// остальных и не всплывает к публикующему — упавшее соединение просто
// вычищается из реестра. Гарантии доставки нет: офлайн-подписчик догоняет
// состояние через запросы latest/track.
//
// Порядок: события одного водителя публикуются синхронно из ingestion
// и попадают в FIFO-буфер каждого подписчика, поэтому каждый подписчик
// видит их в порядке обработки. Между разными водителями порядок не
// гарантируется.
package router

import (
	"encoding/json"

	"github.com/pontipilat22/logcompany1/internal/shared/logger"
	"github.com/pontipilat22/logcompany1/internal/shared/metrics"
	"github.com/pontipilat22/logcompany1/internal/tracking/registry"
)

// envelope — формат всех server→client сообщений
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Router доставляет события в топики через Connection Registry
type Router struct {
	reg *registry.Registry
	log *logger.Logger
	met *metrics.Metrics
}

// New создает роутер поверх реестра соединений
func New(reg *registry.Registry, log *logger.Logger, met *metrics.Metrics) *Router {
	return &Router{reg: reg, log: log, met: met}
}

// Publish доставляет событие всем живым подписчикам топика.
// Payload сериализуется один раз на публикацию.
func (r *Router) Publish(topic, eventType string, payload any) {
	subs := r.reg.SubscribersOf(topic)
	if len(subs) == 0 {
		return
	}

	msg, err := json.Marshal(envelope{Type: eventType, Data: payload})
	if err != nil {
		r.log.Error(logger.Entry{
			Action:  "publish_marshal_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{
				"topic":      topic,
				"event_type": eventType,
			},
		})
		return
	}

	for _, id := range subs {
		sender, ok := r.reg.Sender(id)
		if !ok {
			// Соединение отключилось между snapshot и доставкой
			continue
		}

		if err := sender.Send(msg); err != nil {
			// Мертвый или медленный подписчик: чистим, не ретраим
			r.met.DeliveriesDropped.Inc()
			r.log.Warn(logger.Entry{
				Action:  "delivery_failed",
				Message: err.Error(),
				Additional: map[string]any{
					"connection_id": id,
					"topic":         topic,
				},
			})
			r.reg.Unregister(id)
			sender.Close()
			continue
		}

		r.met.EventsDelivered.Inc()
	}
}
