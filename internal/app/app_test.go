package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/EpicMandM/station-booking/internal/config"
	"github.com/EpicMandM/station-booking/internal/logger"
	"github.com/EpicMandM/station-booking/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DBPath:        filepath.Join(t.TempDir(), "bookings.db"),
		HTTPAddr:      "127.0.0.1:0",
		LockTTL:       time.Second,
		SweepInterval: time.Minute,
	}
}

func testFeatures() *service.FeatureConfig {
	return &service.FeatureConfig{
		Stations: []service.StationConfig{
			{ID: "st-1", Name: "Harbour", OwnerID: "olga", RatePerMinute: 0.5},
		},
	}
}

func TestNew(t *testing.T) {
	cfg := testConfig(t)

	t.Run("with all parameters", func(t *testing.T) {
		log := logger.NewWithWriter(&bytes.Buffer{})
		features := testFeatures()

		app := New(cfg, features, log)

		assert.NotNil(t, app)
		assert.Equal(t, cfg, app.config)
		assert.Equal(t, features, app.features)
		assert.Equal(t, log, app.logger)
	})

	t.Run("with nil logger and features", func(t *testing.T) {
		app := New(cfg, nil, nil)

		assert.NotNil(t, app.logger)
		assert.NotNil(t, app.features)
		assert.Nil(t, app.Handler())
		assert.Nil(t, app.Engine())
	})
}

func TestInitialize_ServesReservations(t *testing.T) {
	var buf bytes.Buffer
	app := New(testConfig(t), testFeatures(), logger.NewWithWriter(&buf))
	require.NoError(t, app.Initialize(context.Background()))
	defer func() { assert.NoError(t, app.Close(context.Background())) }()

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Minute)
	body := `{"station_id":"st-1","start":"` + start.Format(time.RFC3339) + `","end":"` + start.Add(time.Hour).Format(time.RFC3339) + `"}`
	req, err := http.NewRequest(http.MethodPost, "/reservations", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", "alice")
	req.Header.Set("X-Actor-Role", "requester")

	w := httptest.NewRecorder()
	app.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Contains(t, buf.String(), "MESSAGE=Stations seeded")
	assert.Contains(t, buf.String(), "COUNT=1")
	assert.Contains(t, buf.String(), "MESSAGE=Using in-process locks")
}

func TestInitialize_InvalidStationSeed(t *testing.T) {
	features := &service.FeatureConfig{Stations: []service.StationConfig{{ID: "st-1"}}}
	app := New(testConfig(t), features, nil)

	err := app.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner_id is required")
	assert.NoError(t, app.Close(context.Background()))
}

func TestInitialize_InvalidRedisURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisURL = "not-a-redis-url"
	app := New(cfg, testFeatures(), nil)

	err := app.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse redis url")
	assert.NoError(t, app.Close(context.Background()))
}

func TestInitialize_CalendarWithoutCredentials(t *testing.T) {
	t.Setenv("SERVICE_ACCOUNT_PATH", "")
	features := testFeatures()
	features.Calendar = service.CalendarConfig{CalendarID: "stations@example.com"}
	app := New(testConfig(t), features, nil)

	err := app.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize calendar service")
	assert.NoError(t, app.Close(context.Background()))
}

func TestRun_NotInitialized(t *testing.T) {
	app := New(testConfig(t), nil, nil)
	err := app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app not initialized")
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	app := New(testConfig(t), testFeatures(), nil)
	require.NoError(t, app.Initialize(context.Background()))
	defer func() { assert.NoError(t, app.Close(context.Background())) }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
