package domain

import "errors"

var (
	// ErrInvalidReport возвращается при невалидной GPS-точке
	// (координаты вне диапазона, отсутствует recorded_at, время из будущего).
	// Клиент должен исправить данные; retry той же точки бессмыслен.
	ErrInvalidReport = errors.New("invalid position report")

	// ErrPositionNotFound возвращается когда у сущности нет ни одной точки
	ErrPositionNotFound = errors.New("position not found")

	// ErrUnknownConnection возвращается при subscribe/unsubscribe для
	// незарегистрированного соединения. Это гонка с disconnect, не сбой.
	ErrUnknownConnection = errors.New("unknown connection")

	// ErrStorageUnavailable возвращается когда хранилище точек недоступно.
	// GPS-точки идемпотентны, клиент может безопасно повторить отправку.
	ErrStorageUnavailable = errors.New("position storage unavailable")

	// ErrBatchTooLarge возвращается когда батч превышает настроенный лимит
	ErrBatchTooLarge = errors.New("batch too large")
)
