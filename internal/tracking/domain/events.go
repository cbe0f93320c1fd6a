package domain

import (
	"encoding/json"
	"time"
)

// Типы событий, которые сервер пушит подписчикам
const (
	EventPositionUpdate = "gps:position"
	EventOrderStatus    = "order:status"
)

// PositionUpdateEvent — обновление позиции для подписчиков топика.
// Доставка best-effort: офлайн-подписчик событие теряет и догоняет
// состояние через REST-запросы latest/track.
type PositionUpdateEvent struct {
	DriverID  string    `json:"driver_id"`
	OrderID   *string   `json:"order_id,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     *float64  `json:"speed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPositionUpdateEvent строит событие из сохраненной точки
func NewPositionUpdateEvent(r *PositionReport) PositionUpdateEvent {
	return PositionUpdateEvent{
		DriverID:  r.DriverID,
		OrderID:   r.OrderID,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Speed:     r.Speed,
		Timestamp: r.RecordedAt,
	}
}

// OrderStatusEvent — смена статуса заявки. Эмитится order-сервисом
// через AMQP, ядро трекинга только ретранслирует в топик order:<id>.
type OrderStatusEvent struct {
	OrderID   string          `json:"order_id"`
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
