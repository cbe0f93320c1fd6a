package in_ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pontipilat22/logcompany1/internal/shared/logger"
	"github.com/pontipilat22/logcompany1/internal/shared/metrics"
	"github.com/pontipilat22/logcompany1/internal/shared/ws"
	in "github.com/pontipilat22/logcompany1/internal/tracking/application/ports/in"
	"github.com/pontipilat22/logcompany1/internal/tracking/domain"
	"github.com/pontipilat22/logcompany1/internal/tracking/registry"
)

// Типы входящих сообщений (имена событий платформы)
const (
	msgGpsUpdate       = "gps:update"
	msgGpsBatch        = "gps:batch"
	msgSubscribeDriver = "subscribe:driver"
	msgSubscribeOrder  = "subscribe:order"
	msgUnsubscribe     = "unsubscribe"
)

type gpsPointPayload struct {
	OrderID    *string   `json:"order_id,omitempty"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// TrackingWSHandler связывает WebSocket-хаб с ядром трекинга:
// gps-сообщения идут в ingestion-конвейер, subscribe/unsubscribe — в реестр
type TrackingWSHandler struct {
	hub         *ws.Hub
	reg         *registry.Registry
	ingest      in.IngestPositionUseCase
	ingestBatch in.IngestBatchUseCase
	log         *logger.Logger
	met         *metrics.Metrics
}

// NewTrackingWSHandler создает handler и подписывает его на события хаба
func NewTrackingWSHandler(
	hub *ws.Hub,
	reg *registry.Registry,
	ingest in.IngestPositionUseCase,
	ingestBatch in.IngestBatchUseCase,
	log *logger.Logger,
	met *metrics.Metrics,
) *TrackingWSHandler {
	h := &TrackingWSHandler{
		hub:         hub,
		reg:         reg,
		ingest:      ingest,
		ingestBatch: ingestBatch,
		log:         log,
		met:         met,
	}
	hub.SetMessageHandler(h.HandleMessage)
	hub.SetLifecycleHandlers(h.onConnect, h.onDisconnect)
	return h
}

func (h *TrackingWSHandler) onConnect(client *ws.Client) {
	h.reg.Register(client.ID, client)
	h.met.ActiveConnections.Inc()
}

func (h *TrackingWSHandler) onDisconnect(client *ws.Client) {
	h.reg.Unregister(client.ID)
	h.met.ActiveConnections.Dec()
}

// HandleMessage обрабатывает одно входящее сообщение клиента
func (h *TrackingWSHandler) HandleMessage(client *ws.Client, msgType string, data json.RawMessage) error {
	switch msgType {
	case msgGpsUpdate:
		return h.handleGpsUpdate(client, data)
	case msgGpsBatch:
		return h.handleGpsBatch(client, data)
	case msgSubscribeDriver:
		return h.handleSubscribeDriver(client, data)
	case msgSubscribeOrder:
		return h.handleSubscribeOrder(client, data)
	case msgUnsubscribe:
		return h.handleUnsubscribe(client, data)
	default:
		return fmt.Errorf("unknown message type: %s", msgType)
	}
}

// Водитель шлет GPS-координаты. driver_id берется из аутентифицированной
// сессии, а не из payload — клиент не может писать за другого водителя.
func (h *TrackingWSHandler) handleGpsUpdate(client *ws.Client, data json.RawMessage) error {
	var payload gpsPointPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse gps:update: %w", err)
	}

	result, err := h.ingest.Execute(context.Background(), in.IngestPositionInput{
		DriverID:   client.UserID,
		OrderID:    payload.OrderID,
		Latitude:   payload.Latitude,
		Longitude:  payload.Longitude,
		Accuracy:   payload.Accuracy,
		Speed:      payload.Speed,
		Heading:    payload.Heading,
		RecordedAt: payload.RecordedAt,
	})
	if err != nil {
		return h.sendIngestError(client, err)
	}

	return client.SendJSON(map[string]any{
		"type": "gps:ack",
		"data": map[string]any{
			"status":    "ok",
			"duplicate": result.Duplicate,
			"routed":    result.Routed,
		},
	})
}

// Offline-реплей: батч точек, накопленных без связи
func (h *TrackingWSHandler) handleGpsBatch(client *ws.Client, data json.RawMessage) error {
	var payload struct {
		Points []gpsPointPayload `json:"points"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse gps:batch: %w", err)
	}

	points := make([]in.IngestPositionInput, 0, len(payload.Points))
	for _, p := range payload.Points {
		points = append(points, in.IngestPositionInput{
			DriverID:   client.UserID,
			OrderID:    p.OrderID,
			Latitude:   p.Latitude,
			Longitude:  p.Longitude,
			Accuracy:   p.Accuracy,
			Speed:      p.Speed,
			Heading:    p.Heading,
			RecordedAt: p.RecordedAt,
		})
	}

	result, err := h.ingestBatch.Execute(context.Background(), in.IngestBatchInput{Points: points})
	if err != nil {
		return h.sendIngestError(client, err)
	}

	return client.SendJSON(map[string]any{
		"type": "gps:batch_ack",
		"data": map[string]any{
			"results": result.Results,
		},
	})
}

// Подписка на обновления водителя
func (h *TrackingWSHandler) handleSubscribeDriver(client *ws.Client, data json.RawMessage) error {
	var payload struct {
		DriverID string `json:"driver_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse subscribe:driver: %w", err)
	}
	if payload.DriverID == "" {
		return h.sendSubscribeAck(client, "", false)
	}
	return h.subscribe(client, domain.DriverTopic(payload.DriverID))
}

// Подписка на обновления заявки
func (h *TrackingWSHandler) handleSubscribeOrder(client *ws.Client, data json.RawMessage) error {
	var payload struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse subscribe:order: %w", err)
	}
	if payload.OrderID == "" {
		return h.sendSubscribeAck(client, "", false)
	}
	return h.subscribe(client, domain.OrderTopic(payload.OrderID))
}

func (h *TrackingWSHandler) subscribe(client *ws.Client, topic string) error {
	if err := h.reg.Subscribe(client.ID, topic); err != nil {
		// Гонка с disconnect: логируем и не считаем сбоем
		if errors.Is(err, domain.ErrUnknownConnection) {
			h.log.Debug(logger.Entry{
				Action:  "subscribe_unknown_connection",
				Message: client.ID,
				Additional: map[string]any{
					"topic": topic,
				},
			})
			return nil
		}
		return err
	}
	return h.sendSubscribeAck(client, topic, true)
}

// Отписка от топика
func (h *TrackingWSHandler) handleUnsubscribe(client *ws.Client, data json.RawMessage) error {
	var payload struct {
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse unsubscribe: %w", err)
	}

	success := domain.ValidTopic(payload.Topic)
	if success {
		if err := h.reg.Unsubscribe(client.ID, payload.Topic); err != nil {
			if !errors.Is(err, domain.ErrUnknownConnection) {
				return err
			}
			// Соединение уже снято с учета — отписка не нужна
		}
	}

	return client.SendJSON(map[string]any{
		"type": "unsubscribed",
		"data": map[string]any{
			"success": success,
		},
	})
}

func (h *TrackingWSHandler) sendSubscribeAck(client *ws.Client, topic string, success bool) error {
	return client.SendJSON(map[string]any{
		"type": "subscribed",
		"data": map[string]any{
			"success": success,
			"topic":   topic,
		},
	})
}

func (h *TrackingWSHandler) sendIngestError(client *ws.Client, err error) error {
	code := "invalid_report"
	retryable := false
	if errors.Is(err, domain.ErrStorageUnavailable) {
		code = "storage_unavailable"
		retryable = true
	}
	return client.SendJSON(map[string]any{
		"type": "error",
		"data": map[string]any{
			"code":      code,
			"message":   err.Error(),
			"retryable": retryable,
		},
	})
}
