package domain

import (
	"fmt"
	"time"
)

// PositionReport — одна GPS-точка водителя.
// Создается при ingestion, далее неизменяема; ядро никогда не удаляет точки.
type PositionReport struct {
	ID         string
	DriverID   string
	OrderID    *string // опциональная привязка к заявке
	Latitude   float64
	Longitude  float64
	Accuracy   *float64 // метры
	Speed      *float64 // м/с
	Heading    *float64 // градусы 0–360
	RecordedAt time.Time // время фиксации на устройстве
	ReceivedAt time.Time // время приема сервером
}

// Validate проверяет инварианты точки.
// recordedAt может опережать серверное время не более чем на maxClockSkew.
func (r *PositionReport) Validate(now time.Time, maxClockSkew time.Duration) error {
	if r.DriverID == "" {
		return fmt.Errorf("%w: driver id is required", ErrInvalidReport)
	}
	if r.Latitude < -90 || r.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90,90]", ErrInvalidReport, r.Latitude)
	}
	if r.Longitude < -180 || r.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180,180]", ErrInvalidReport, r.Longitude)
	}
	if r.RecordedAt.IsZero() {
		return fmt.Errorf("%w: recorded_at is required", ErrInvalidReport)
	}
	if r.RecordedAt.After(now.Add(maxClockSkew)) {
		return fmt.Errorf("%w: recorded_at %s is in the future", ErrInvalidReport, r.RecordedAt.Format(time.RFC3339))
	}
	if r.Heading != nil && (*r.Heading < 0 || *r.Heading > 360) {
		return fmt.Errorf("%w: heading %v out of range [0,360]", ErrInvalidReport, *r.Heading)
	}
	return nil
}

// IsStale сообщает, слишком ли стара точка для трансляции как "текущая позиция".
// Stale-точки сохраняются в историю, но не рассылаются подписчикам.
func (r *PositionReport) IsStale(now time.Time, threshold time.Duration) bool {
	return now.Sub(r.RecordedAt) > threshold
}

// ActivePosition — последняя точка активного водителя с денормализованными
// полями из справочников users/orders (для карты диспетчера)
type ActivePosition struct {
	Report PositionReport

	DriverFirstName string
	DriverLastName  string
	VehiclePlate    string

	OrderNumber *string
	OrderStatus *string
}
