package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pontipilat22/logcompany1/internal/shared/logger"
	in "github.com/pontipilat22/logcompany1/internal/tracking/application/ports/in"
	"github.com/pontipilat22/logcompany1/internal/tracking/domain"
)

const maxBodySize = 1 << 20 // 1MB

// HTTPHandler обрабатывает HTTP запросы трекинг-сервиса
type HTTPHandler struct {
	ingestUC        in.IngestPositionUseCase
	ingestBatchUC   in.IngestBatchUseCase
	latestUC        in.GetLatestPositionUseCase
	trackUC         in.GetOrderTrackUseCase
	activeDriversUC in.GetActiveDriversUseCase
	log             *logger.Logger
}

// NewHTTPHandler создает новый HTTP handler
func NewHTTPHandler(
	ingestUC in.IngestPositionUseCase,
	ingestBatchUC in.IngestBatchUseCase,
	latestUC in.GetLatestPositionUseCase,
	trackUC in.GetOrderTrackUseCase,
	activeDriversUC in.GetActiveDriversUseCase,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		ingestUC:        ingestUC,
		ingestBatchUC:   ingestBatchUC,
		latestUC:        latestUC,
		trackUC:         trackUC,
		activeDriversUC: activeDriversUC,
		log:             log,
	}
}

// handleHealth обрабатывает health check
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// GpsPointHTTPRequest — HTTP DTO одной GPS-точки.
// driver_id не принимается из тела: водитель определяется по JWT.
type GpsPointHTTPRequest struct {
	OrderID    *string   `json:"order_id,omitempty"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// GpsBatchHTTPRequest — батч точек offline-реплея, в порядке клиента
type GpsBatchHTTPRequest struct {
	Points []GpsPointHTTPRequest `json:"points"`
}

func (req *GpsPointHTTPRequest) toInput(driverID string) in.IngestPositionInput {
	return in.IngestPositionInput{
		DriverID:   driverID,
		OrderID:    req.OrderID,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Accuracy:   req.Accuracy,
		Speed:      req.Speed,
		Heading:    req.Heading,
		RecordedAt: req.RecordedAt,
	}
}

// handleIngestGps обрабатывает POST /api/v1/tracking/gps
func (h *HTTPHandler) handleIngestGps(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	driverID, ok := userIDFromContext(ctx)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req GpsPointHTTPRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	output, err := h.ingestUC.Execute(ctx, req.toInput(driverID))
	if err != nil {
		h.handleUseCaseError(w, err)
		return
	}

	status := http.StatusCreated
	if output.Duplicate {
		status = http.StatusOK
	}
	h.respondJSON(w, status, map[string]interface{}{
		"report_id":   output.ReportID,
		"received_at": output.ReceivedAt,
		"duplicate":   output.Duplicate,
		"routed":      output.Routed,
	})
}

// handleIngestGpsBatch обрабатывает POST /api/v1/tracking/gps/batch
func (h *HTTPHandler) handleIngestGpsBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	driverID, ok := userIDFromContext(ctx)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req GpsBatchHTTPRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	input := in.IngestBatchInput{Points: make([]in.IngestPositionInput, 0, len(req.Points))}
	for i := range req.Points {
		input.Points = append(input.Points, req.Points[i].toInput(driverID))
	}

	output, err := h.ingestBatchUC.Execute(ctx, input)
	if err != nil {
		h.handleUseCaseError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": output.Results,
	})
}

// PositionHTTPResponse — HTTP DTO сохраненной точки
type PositionHTTPResponse struct {
	ID         string    `json:"id"`
	DriverID   string    `json:"driver_id"`
	OrderID    *string   `json:"order_id,omitempty"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
	ReceivedAt time.Time `json:"received_at"`
}

func toPositionResponse(p *domain.PositionReport) PositionHTTPResponse {
	return PositionHTTPResponse{
		ID:         p.ID,
		DriverID:   p.DriverID,
		OrderID:    p.OrderID,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Accuracy:   p.Accuracy,
		Speed:      p.Speed,
		Heading:    p.Heading,
		RecordedAt: p.RecordedAt,
		ReceivedAt: p.ReceivedAt,
	}
}

// handleLatestPosition обрабатывает GET /api/v1/tracking/drivers/{driver_id}/position
func (h *HTTPHandler) handleLatestPosition(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driver_id")

	position, err := h.latestUC.Execute(r.Context(), driverID)
	if err != nil {
		h.handleUseCaseError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, toPositionResponse(position))
}

// handleOrderTrack обрабатывает GET /api/v1/tracking/orders/{order_id}/track
func (h *HTTPHandler) handleOrderTrack(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	points, err := h.trackUC.Execute(r.Context(), orderID)
	if err != nil {
		h.handleUseCaseError(w, err)
		return
	}

	track := make([]PositionHTTPResponse, 0, len(points))
	for i := range points {
		track = append(track, toPositionResponse(&points[i]))
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"order_id": orderID,
		"points":   track,
	})
}

// ActiveDriverHTTPResponse — HTTP DTO активного водителя с последней точкой
type ActiveDriverHTTPResponse struct {
	Position PositionHTTPResponse `json:"position"`

	DriverFirstName string `json:"driver_first_name"`
	DriverLastName  string `json:"driver_last_name"`
	VehiclePlate    string `json:"vehicle_plate,omitempty"`

	OrderNumber *string `json:"order_number,omitempty"`
	OrderStatus *string `json:"order_status,omitempty"`
}

// handleActiveDrivers обрабатывает GET /api/v1/tracking/drivers/active.
// Параметр window_seconds переопределяет окно присутствия из конфигурации.
func (h *HTTPHandler) handleActiveDrivers(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if raw := r.URL.Query().Get("window_seconds"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			h.respondError(w, http.StatusBadRequest, "window_seconds must be a positive integer")
			return
		}
		window = time.Duration(seconds) * time.Second
	}

	active, err := h.activeDriversUC.Execute(r.Context(), window)
	if err != nil {
		h.handleUseCaseError(w, err)
		return
	}

	drivers := make([]ActiveDriverHTTPResponse, 0, len(active))
	for i := range active {
		drivers = append(drivers, ActiveDriverHTTPResponse{
			Position:        toPositionResponse(&active[i].Report),
			DriverFirstName: active[i].DriverFirstName,
			DriverLastName:  active[i].DriverLastName,
			VehiclePlate:    active[i].VehiclePlate,
			OrderNumber:     active[i].OrderNumber,
			OrderStatus:     active[i].OrderStatus,
		})
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"drivers": drivers,
		"count":   len(drivers),
	})
}

// decodeBody парсит JSON тело запроса с лимитом размера
func (h *HTTPHandler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			h.respondError(w, http.StatusBadRequest, "empty request body")
			return false
		}
		h.log.Error(logger.Entry{
			Action:  "parse_request_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		h.respondError(w, http.StatusBadRequest, "invalid request format")
		return false
	}
	return true
}

// handleUseCaseError обрабатывает ошибки use case
func (h *HTTPHandler) handleUseCaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidReport):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrBatchTooLarge):
		h.respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, domain.ErrPositionNotFound):
		h.respondError(w, http.StatusNotFound, "position not found")
	case errors.Is(err, domain.ErrStorageUnavailable):
		h.respondError(w, http.StatusServiceUnavailable, "storage unavailable, retry later")
	default:
		h.log.Error(logger.Entry{
			Action:  "usecase_error",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondJSON отправляет JSON ответ
func (h *HTTPHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error(logger.Entry{
			Action:  "encode_response_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
}

// respondError отправляет JSON с ошибкой
func (h *HTTPHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
