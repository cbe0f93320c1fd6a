package out

import (
	"context"
	"time"

	"github.com/pontipilat22/logcompany1/internal/tracking/domain"
)

// PositionRepository — durable хранилище GPS-точек.
// При равных recorded_at более поздний received_at считается новее,
// при полном совпадении — детерминированный tie-break по id.
type PositionRepository interface {
	// Save сохраняет точку. inserted=false означает, что точка с тем же
	// (driver_id, recorded_at) уже была сохранена (идемпотентный resend).
	Save(ctx context.Context, report *domain.PositionReport) (inserted bool, err error)

	// Latest возвращает последнюю точку водителя по recorded_at.
	// domain.ErrPositionNotFound — если точек нет.
	Latest(ctx context.Context, driverID string) (*domain.PositionReport, error)

	// Track возвращает точки заявки, recorded_at по возрастанию
	Track(ctx context.Context, orderID string) ([]domain.PositionReport, error)

	// ActiveSince возвращает по одной (самой свежей) точке каждого водителя
	// с recorded_at >= since, с денормализованными полями справочников
	ActiveSince(ctx context.Context, since time.Time) ([]domain.ActivePosition, error)
}
