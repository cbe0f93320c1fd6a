package out

import (
	"context"

	"github.com/pontipilat22/logcompany1/internal/tracking/domain"
)

// EventPublisher публикует позиции в шину сообщений для остальных
// backend-сервисов (дашборды диспетчеров, аналитика)
type EventPublisher interface {
	PublishPositionUpdate(ctx context.Context, event domain.PositionUpdateEvent) error
}
