package out_ws

import (
	out "github.com/pontipilat22/logcompany1/internal/tracking/application/ports/out"
	"github.com/pontipilat22/logcompany1/internal/tracking/domain"
	"github.com/pontipilat22/logcompany1/internal/tracking/router"
)

// WsPositionBroadcaster рассылает позиции WS-подписчикам через Topic Router
type WsPositionBroadcaster struct {
	router *router.Router
}

// NewWsPositionBroadcaster создает broadcaster поверх роутера
func NewWsPositionBroadcaster(r *router.Router) out.PositionBroadcaster {
	return &WsPositionBroadcaster{router: r}
}

// BroadcastPosition публикует точку в driver:<id> и, при привязке, в order:<id>
func (b *WsPositionBroadcaster) BroadcastPosition(report *domain.PositionReport) {
	event := domain.NewPositionUpdateEvent(report)

	b.router.Publish(domain.DriverTopic(report.DriverID), domain.EventPositionUpdate, event)

	if report.OrderID != nil && *report.OrderID != "" {
		b.router.Publish(domain.OrderTopic(*report.OrderID), domain.EventPositionUpdate, event)
	}
}
