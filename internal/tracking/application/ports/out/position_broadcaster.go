package out

import "github.com/pontipilat22/logcompany1/internal/tracking/domain"

// PositionBroadcaster рассылает сохраненную точку подписчикам топиков
// driver:<id> и (при наличии привязки) order:<id>. Доставка best-effort,
// ошибки не возвращаются — сбой доставки не откатывает сохранение.
type PositionBroadcaster interface {
	BroadcastPosition(report *domain.PositionReport)
}
