package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pontipilat22/logcompany1/internal/shared/logger"
	"github.com/pontipilat22/logcompany1/internal/tracking/domain"
)

func seedReport(repo *fakePositionRepo, driverID string, orderID *string, recordedAt time.Time) {
	repo.saved = append(repo.saved, &domain.PositionReport{
		ID:         "id-" + driverID + recordedAt.Format("150405"),
		DriverID:   driverID,
		OrderID:    orderID,
		Latitude:   55.75,
		Longitude:  37.62,
		RecordedAt: recordedAt,
		ReceivedAt: recordedAt,
	})
}

func TestGetLatestPosition(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	repo := &fakePositionRepo{}
	seedReport(repo, "d1", nil, now.Add(-time.Hour))
	seedReport(repo, "d1", nil, now.Add(-time.Minute))
	seedReport(repo, "d2", nil, now)

	uc := NewGetLatestPositionUseCase(repo)

	pos, err := uc.Execute(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, now.Add(-time.Minute), pos.RecordedAt)

	t.Run("unknown driver", func(t *testing.T) {
		_, err := uc.Execute(context.Background(), "nobody")
		assert.ErrorIs(t, err, domain.ErrPositionNotFound)
	})

	t.Run("empty driver id", func(t *testing.T) {
		_, err := uc.Execute(context.Background(), "")
		assert.ErrorIs(t, err, domain.ErrInvalidReport)
	})
}

func TestGetOrderTrack(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	orderID := "o1"
	otherOrder := "o2"

	repo := &fakePositionRepo{}
	seedReport(repo, "d1", &orderID, now.Add(-2*time.Minute))
	seedReport(repo, "d1", &orderID, now.Add(-time.Minute))
	seedReport(repo, "d1", &otherOrder, now)
	seedReport(repo, "d1", nil, now)

	uc := NewGetOrderTrackUseCase(repo)

	track, err := uc.Execute(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, track, 2, "only points bound to the order")

	t.Run("empty order id", func(t *testing.T) {
		_, err := uc.Execute(context.Background(), "")
		assert.ErrorIs(t, err, domain.ErrInvalidReport)
	})
}

func TestGetActiveDrivers(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	repo := &fakePositionRepo{}
	seedReport(repo, "d1", nil, now.Add(-10*time.Minute))
	seedReport(repo, "d1", nil, now.Add(-5*time.Minute))
	seedReport(repo, "d2", nil, now.Add(-50*time.Minute))
	seedReport(repo, "d3", nil, now.Add(-2*time.Hour)) // вне окна

	uc := NewGetActiveDriversUseCase(repo, trackingConfig(), logger.NewNop())
	uc.(*getActiveDriversUseCase).now = func() time.Time { return now }

	t.Run("default window from config", func(t *testing.T) {
		active, err := uc.Execute(context.Background(), 0)
		require.NoError(t, err)
		require.Len(t, active, 2)

		byDriver := map[string]domain.ActivePosition{}
		for _, a := range active {
			byDriver[a.Report.DriverID] = a
		}
		require.Contains(t, byDriver, "d1")
		require.Contains(t, byDriver, "d2")
		assert.Equal(t, now.Add(-5*time.Minute), byDriver["d1"].Report.RecordedAt,
			"per driver only the freshest point is returned")
	})

	t.Run("explicit narrow window", func(t *testing.T) {
		active, err := uc.Execute(context.Background(), 7*time.Minute)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "d1", active[0].Report.DriverID)
	})
}
