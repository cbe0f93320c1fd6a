package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pontipilat22/logcompany1/internal/shared/logger"
	"github.com/pontipilat22/logcompany1/internal/tracking/domain"
)

// PositionPgRepository — PostgreSQL репозиторий GPS-точек (таблица gps_points)
type PositionPgRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPositionPgRepository создает новый экземпляр репозитория
func NewPositionPgRepository(pool *pgxpool.Pool, log *logger.Logger) *PositionPgRepository {
	return &PositionPgRepository{pool: pool, log: log}
}

const reportColumns = `
	id, driver_id, order_id, latitude, longitude,
	accuracy, speed, heading, recorded_at, received_at`

// Save вставляет точку. Повтор (driver_id, recorded_at) не создает строки:
// точка из offline-реплея могла быть отправлена дважды.
func (r *PositionPgRepository) Save(ctx context.Context, report *domain.PositionReport) (bool, error) {
	query := `
		INSERT INTO gps_points (
			id, driver_id, order_id, latitude, longitude,
			accuracy, speed, heading, recorded_at, received_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (driver_id, recorded_at) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		report.ID,
		report.DriverID,
		report.OrderID,
		report.Latitude,
		report.Longitude,
		report.Accuracy,
		report.Speed,
		report.Heading,
		report.RecordedAt,
		report.ReceivedAt,
	)
	if err != nil {
		r.log.Error(logger.Entry{
			Action:  "db_save_gps_point_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return false, fmt.Errorf("insert gps point: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Latest возвращает последнюю точку водителя.
// Tie-break при равных recorded_at: received_at, затем id.
func (r *PositionPgRepository) Latest(ctx context.Context, driverID string) (*domain.PositionReport, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM gps_points
		WHERE driver_id = $1
		ORDER BY recorded_at DESC, received_at DESC, id DESC
		LIMIT 1
	`

	report, err := scanReport(r.pool.QueryRow(ctx, query, driverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPositionNotFound
		}
		return nil, fmt.Errorf("query latest position: %w", err)
	}
	return report, nil
}

// Track возвращает точки заявки в порядке recorded_at по возрастанию —
// путь, который прошла перевозка за время жизни заявки
func (r *PositionPgRepository) Track(ctx context.Context, orderID string) ([]domain.PositionReport, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM gps_points
		WHERE order_id = $1
		ORDER BY recorded_at ASC, received_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order track: %w", err)
	}
	defer rows.Close()

	track := make([]domain.PositionReport, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track row: %w", err)
		}
		track = append(track, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate track rows: %w", err)
	}
	return track, nil
}

// ActiveSince — одна самая свежая точка на водителя в окне.
// DISTINCT ON с сортировкой по recorded_at DESC выбирает ровно одну
// строку на driver_id; справочники подтягиваются LEFT JOIN.
func (r *PositionPgRepository) ActiveSince(ctx context.Context, since time.Time) ([]domain.ActivePosition, error) {
	query := `
		SELECT DISTINCT ON (p.driver_id)
			p.id, p.driver_id, p.order_id, p.latitude, p.longitude,
			p.accuracy, p.speed, p.heading, p.recorded_at, p.received_at,
			COALESCE(d.first_name, ''), COALESCE(d.last_name, ''), COALESCE(d.vehicle_plate, ''),
			o.order_number, o.status
		FROM gps_points p
		LEFT JOIN drivers d ON d.id = p.driver_id
		LEFT JOIN orders o ON o.id = p.order_id
		WHERE p.recorded_at >= $1
		ORDER BY p.driver_id, p.recorded_at DESC, p.received_at DESC, p.id DESC
	`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query active drivers: %w", err)
	}
	defer rows.Close()

	active := make([]domain.ActivePosition, 0)
	for rows.Next() {
		var pos domain.ActivePosition
		if err := rows.Scan(
			&pos.Report.ID,
			&pos.Report.DriverID,
			&pos.Report.OrderID,
			&pos.Report.Latitude,
			&pos.Report.Longitude,
			&pos.Report.Accuracy,
			&pos.Report.Speed,
			&pos.Report.Heading,
			&pos.Report.RecordedAt,
			&pos.Report.ReceivedAt,
			&pos.DriverFirstName,
			&pos.DriverLastName,
			&pos.VehiclePlate,
			&pos.OrderNumber,
			&pos.OrderStatus,
		); err != nil {
			return nil, fmt.Errorf("scan active driver row: %w", err)
		}
		active = append(active, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active driver rows: %w", err)
	}
	return active, nil
}

func scanReport(row pgx.Row) (*domain.PositionReport, error) {
	report := &domain.PositionReport{}
	err := row.Scan(
		&report.ID,
		&report.DriverID,
		&report.OrderID,
		&report.Latitude,
		&report.Longitude,
		&report.Accuracy,
		&report.Speed,
		&report.Heading,
		&report.RecordedAt,
		&report.ReceivedAt,
	)
	if err != nil {
		return nil, err
	}
	return report, nil
}
