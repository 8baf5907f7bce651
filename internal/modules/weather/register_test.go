package weather

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MainakDebnath6/dbms-weather-analysis/internal/migrate"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/modules/weather/repository"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/modules/weather/types"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/mqtt"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/observability"
)

type fakeSubscriber struct {
	handler  mqtt.MessageHandler
	rejected func()
}

func (f *fakeSubscriber) SetMessageHandler(h mqtt.MessageHandler) {
	f.handler = h
}

func (f *fakeSubscriber) SetRejectHandler(fn func()) {
	f.rejected = fn
}

func setup(t *testing.T, sub MQTTSubscriber) (*http.ServeMux, *sql.DB, *observability.Metrics) {
	t.Helper()
	conn, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = migrate.Run(context.Background(), conn, nil)
	require.NoError(t, err)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	mux := http.NewServeMux()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	RegisterFeature(mux, conn, clock, metrics, nil, sub)
	return mux, conn, metrics
}

func num(f float64) *types.Number {
	n := types.Number(f)
	return &n
}

func TestRegisterFeature_Routes(t *testing.T) {
	mux, _, _ := setup(t, nil)

	for _, target := range []string{"/api/history", "/api/analysis?metric=wind_speed"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.JSONEq(t, `[]`, rec.Body.String(), target)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/data",
		strings.NewReader(`{"city":"Lagos","date":"2024-01-01","temperature":30,"humidity":70,"windSpeed":5}`))
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRegisterFeature_MQTTIngest(t *testing.T) {
	sub := &fakeSubscriber{}
	mux, conn, metrics := setup(t, sub)
	require.NotNil(t, sub.handler)
	require.NotNil(t, sub.rejected)

	ctx := context.Background()
	req := types.ObservationRequest{City: "Accra", Date: "2024-01-02", Temperature: num(29), Humidity: num(80), WindSpeed: num(4)}

	require.NoError(t, sub.handler(ctx, req))
	require.ErrorIs(t, sub.handler(ctx, req), repository.ErrDuplicateObservation)
	require.Error(t, sub.handler(ctx, types.ObservationRequest{City: "Accra"}))
	sub.rejected()

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM weather_data`).Scan(&n))
	assert.Equal(t, 1, n)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ObservationsSubmitted.WithLabelValues(observability.SourceMQTT, observability.OutcomeCreated)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ObservationsSubmitted.WithLabelValues(observability.SourceMQTT, observability.OutcomeConflict)))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ObservationsSubmitted.WithLabelValues(observability.SourceMQTT, observability.OutcomeInvalid)))

	// MQTT rows show up through the HTTP read path.
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Contains(t, rec.Body.String(), `"city_name":"Accra"`)
}
