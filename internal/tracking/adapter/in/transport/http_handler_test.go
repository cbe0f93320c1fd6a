package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pontipilat22/logcompany1/internal/shared/auth"
	"github.com/pontipilat22/logcompany1/internal/shared/config"
	"github.com/pontipilat22/logcompany1/internal/shared/logger"
	"github.com/pontipilat22/logcompany1/internal/shared/ws"
	in "github.com/pontipilat22/logcompany1/internal/tracking/application/ports/in"
	"github.com/pontipilat22/logcompany1/internal/tracking/domain"
)

// Fake use cases: фиксированные ответы через function-поля

type fakeIngestUC struct {
	fn func(in.IngestPositionInput) (*in.IngestPositionOutput, error)
}

func (f *fakeIngestUC) Execute(_ context.Context, input in.IngestPositionInput) (*in.IngestPositionOutput, error) {
	return f.fn(input)
}

type fakeBatchUC struct {
	fn func(in.IngestBatchInput) (*in.IngestBatchOutput, error)
}

func (f *fakeBatchUC) Execute(_ context.Context, input in.IngestBatchInput) (*in.IngestBatchOutput, error) {
	return f.fn(input)
}

type fakeLatestUC struct {
	fn func(string) (*domain.PositionReport, error)
}

func (f *fakeLatestUC) Execute(_ context.Context, driverID string) (*domain.PositionReport, error) {
	return f.fn(driverID)
}

type fakeTrackUC struct {
	fn func(string) ([]domain.PositionReport, error)
}

func (f *fakeTrackUC) Execute(_ context.Context, orderID string) ([]domain.PositionReport, error) {
	return f.fn(orderID)
}

type fakeActiveUC struct {
	fn func(time.Duration) ([]domain.ActivePosition, error)
}

func (f *fakeActiveUC) Execute(_ context.Context, window time.Duration) ([]domain.ActivePosition, error) {
	return f.fn(window)
}

type apiFixture struct {
	server *httptest.Server
	jwt    *auth.JWTService

	ingest *fakeIngestUC
	batch  *fakeBatchUC
	latest *fakeLatestUC
	track  *fakeTrackUC
	active *fakeActiveUC
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	f := &apiFixture{
		jwt: auth.NewJWTService(config.JWTConfig{Secret: "test-secret", ExpiryMinutes: 60}),
		ingest: &fakeIngestUC{fn: func(in.IngestPositionInput) (*in.IngestPositionOutput, error) {
			panic("unexpected ingest call")
		}},
		batch: &fakeBatchUC{fn: func(in.IngestBatchInput) (*in.IngestBatchOutput, error) {
			panic("unexpected batch call")
		}},
		latest: &fakeLatestUC{fn: func(string) (*domain.PositionReport, error) {
			panic("unexpected latest call")
		}},
		track: &fakeTrackUC{fn: func(string) ([]domain.PositionReport, error) {
			panic("unexpected track call")
		}},
		active: &fakeActiveUC{fn: func(time.Duration) ([]domain.ActivePosition, error) {
			panic("unexpected active call")
		}},
	}

	log := logger.NewNop()
	handler := NewHTTPHandler(f.ingest, f.batch, f.latest, f.track, f.active, log)

	hub := ws.NewHub(func(string) (string, string, error) { return "", "", nil }, log)
	mux := NewRouter(handler, hub, f.jwt, prometheus.NewRegistry(), log)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *apiFixture) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *apiFixture) driverToken(t *testing.T, driverID string) string {
	t.Helper()
	token, err := f.jwt.GenerateToken(driverID, "DRIVER", "device-1")
	require.NoError(t, err)
	return token
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_RequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/api/v1/tracking/gps", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.request(t, http.MethodPost, "/api/v1/tracking/gps", "not-a-jwt", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_IngestGps(t *testing.T) {
	f := newAPIFixture(t)

	recordedAt := time.Now().UTC().Truncate(time.Second)
	f.ingest.fn = func(input in.IngestPositionInput) (*in.IngestPositionOutput, error) {
		// driver_id приходит из JWT, не из тела
		assert.Equal(t, "drv-1", input.DriverID)
		assert.Equal(t, 55.75, input.Latitude)
		require.True(t, input.RecordedAt.Equal(recordedAt))
		return &in.IngestPositionOutput{
			ReportID:   "r1",
			ReceivedAt: recordedAt.Add(time.Second),
			Routed:     true,
		}, nil
	}

	resp := f.request(t, http.MethodPost, "/api/v1/tracking/gps", f.driverToken(t, "drv-1"), map[string]any{
		"latitude":    55.75,
		"longitude":   37.62,
		"recorded_at": recordedAt.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "r1", body["report_id"])
	assert.Equal(t, true, body["routed"])
}

func TestAPI_IngestGpsDuplicate(t *testing.T) {
	f := newAPIFixture(t)

	f.ingest.fn = func(in.IngestPositionInput) (*in.IngestPositionOutput, error) {
		return &in.IngestPositionOutput{Duplicate: true}, nil
	}

	resp := f.request(t, http.MethodPost, "/api/v1/tracking/gps", f.driverToken(t, "drv-1"), map[string]any{
		"latitude":    55.75,
		"longitude":   37.62,
		"recorded_at": time.Now().UTC().Format(time.RFC3339),
	})
	// Повтор — не конфликт и не ошибка
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_IngestGpsErrors(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid report", domain.ErrInvalidReport, http.StatusBadRequest},
		{"storage unavailable", domain.ErrStorageUnavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.ingest.fn = func(in.IngestPositionInput) (*in.IngestPositionOutput, error) {
				return nil, tt.err
			}
			resp := f.request(t, http.MethodPost, "/api/v1/tracking/gps", f.driverToken(t, "drv-1"), map[string]any{
				"latitude":    55.75,
				"longitude":   37.62,
				"recorded_at": time.Now().UTC().Format(time.RFC3339),
			})
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestAPI_IngestBatch(t *testing.T) {
	f := newAPIFixture(t)

	f.batch.fn = func(input in.IngestBatchInput) (*in.IngestBatchOutput, error) {
		require.Len(t, input.Points, 2)
		assert.Equal(t, "drv-1", input.Points[0].DriverID)
		return &in.IngestBatchOutput{Results: []in.BatchElementResult{
			{Index: 0, Status: in.BatchStored, ReportID: "r1"},
			{Index: 1, Status: in.BatchRejected, Error: "latitude out of range"},
		}}, nil
	}

	now := time.Now().UTC()
	resp := f.request(t, http.MethodPost, "/api/v1/tracking/gps/batch", f.driverToken(t, "drv-1"), map[string]any{
		"points": []map[string]any{
			{"latitude": 55.75, "longitude": 37.62, "recorded_at": now.Format(time.RFC3339)},
			{"latitude": 200.0, "longitude": 37.62, "recorded_at": now.Format(time.RFC3339)},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[struct {
		Results []in.BatchElementResult `json:"results"`
	}](t, resp)
	require.Len(t, body.Results, 2)
	assert.Equal(t, in.BatchStored, body.Results[0].Status)
	assert.Equal(t, in.BatchRejected, body.Results[1].Status)
}

func TestAPI_BatchTooLarge(t *testing.T) {
	f := newAPIFixture(t)
	f.batch.fn = func(in.IngestBatchInput) (*in.IngestBatchOutput, error) {
		return nil, domain.ErrBatchTooLarge
	}

	resp := f.request(t, http.MethodPost, "/api/v1/tracking/gps/batch", f.driverToken(t, "drv-1"), map[string]any{
		"points": []map[string]any{},
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestAPI_LatestPosition(t *testing.T) {
	f := newAPIFixture(t)

	recordedAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	f.latest.fn = func(driverID string) (*domain.PositionReport, error) {
		if driverID != "drv-1" {
			return nil, domain.ErrPositionNotFound
		}
		return &domain.PositionReport{
			ID:         "r1",
			DriverID:   driverID,
			Latitude:   55.75,
			Longitude:  37.62,
			RecordedAt: recordedAt,
			ReceivedAt: recordedAt.Add(time.Second),
		}, nil
	}

	token := f.driverToken(t, "disp-1")

	resp := f.request(t, http.MethodGet, "/api/v1/tracking/drivers/drv-1/position", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[PositionHTTPResponse](t, resp)
	assert.Equal(t, "drv-1", body.DriverID)
	assert.True(t, body.RecordedAt.Equal(recordedAt))

	t.Run("not found", func(t *testing.T) {
		resp := f.request(t, http.MethodGet, "/api/v1/tracking/drivers/ghost/position", token, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestAPI_ActiveDriversWindow(t *testing.T) {
	f := newAPIFixture(t)

	f.active.fn = func(window time.Duration) ([]domain.ActivePosition, error) {
		assert.Equal(t, 10*time.Minute, window)
		return []domain.ActivePosition{
			{Report: domain.PositionReport{DriverID: "d1"}, DriverFirstName: "Ivan", DriverLastName: "Petrov"},
		}, nil
	}

	resp := f.request(t, http.MethodGet, "/api/v1/tracking/drivers/active?window_seconds=600", f.driverToken(t, "disp-1"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[struct {
		Drivers []ActiveDriverHTTPResponse `json:"drivers"`
		Count   int                        `json:"count"`
	}](t, resp)
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Drivers, 1)
	assert.Equal(t, "Ivan", body.Drivers[0].DriverFirstName)

	t.Run("invalid window", func(t *testing.T) {
		resp := f.request(t, http.MethodGet, "/api/v1/tracking/drivers/active?window_seconds=-5", f.driverToken(t, "disp-1"), nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAPI_OrderTrack(t *testing.T) {
	f := newAPIFixture(t)

	orderID := "o1"
	f.track.fn = func(id string) ([]domain.PositionReport, error) {
		require.Equal(t, orderID, id)
		return []domain.PositionReport{
			{ID: "r1", DriverID: "d1", OrderID: &orderID},
			{ID: "r2", DriverID: "d1", OrderID: &orderID},
		}, nil
	}

	resp := f.request(t, http.MethodGet, "/api/v1/tracking/orders/o1/track", f.driverToken(t, "disp-1"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[struct {
		OrderID string                 `json:"order_id"`
		Points  []PositionHTTPResponse `json:"points"`
	}](t, resp)
	assert.Equal(t, "o1", body.OrderID)
	assert.Len(t, body.Points, 2)
}

func TestAPI_MetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
