package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/EpicMandM/station-booking/internal/app"
	"github.com/EpicMandM/station-booking/internal/config"
	"github.com/EpicMandM/station-booking/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// TestApp_FullFlow drives the whole stack over HTTP against a sqlite file.
// When REDIS_URL is set the lease locker is exercised as well.
func TestApp_FullFlow(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	cfg := &config.Config{
		DBPath:        filepath.Join(t.TempDir(), "bookings.db"),
		HTTPAddr:      "127.0.0.1:0",
		RedisURL:      os.Getenv("REDIS_URL"),
		LockTTL:       5 * time.Second,
		SweepInterval: time.Minute,
	}
	features := &service.FeatureConfig{
		Stations: []service.StationConfig{
			{ID: "st-int", Name: "Integration", OwnerID: "olga", RatePerMinute: 0.5},
		},
	}

	application := app.New(cfg, features, nil)
	ctx := context.Background()
	require.NoError(t, application.Initialize(ctx))
	defer func() { require.NoError(t, application.Close(ctx)) }()

	srv := httptest.NewServer(application.Handler())
	defer srv.Close()

	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Minute)
	body := fmt.Sprintf(`{"station_id":"st-int","start":%q,"end":%q}`,
		start.Format(time.RFC3339), start.Add(time.Hour).Format(time.RFC3339))

	// Concurrent overlapping requests: exactly one is admitted.
	const workers = 10
	var wg sync.WaitGroup
	codes := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code, _ := call(t, srv.URL, http.MethodPost, "/reservations", fmt.Sprintf("user-%d", i), "requester", body)
			codes[i] = code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		if code == http.StatusCreated {
			created++
		} else {
			assert.Equal(t, http.StatusConflict, code)
		}
	}
	assert.Equal(t, 1, created)

	code, list := call(t, srv.URL, http.MethodGet, "/stations/st-int/reservations", "olga", "owner", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, int64(1), gjson.Get(list, "count").Int())
	id := gjson.Get(list, "data.0.id").Int()

	code, accepted := call(t, srv.URL, http.MethodPost, fmt.Sprintf("/reservations/%d/accept", id), "olga", "owner", "")
	require.Equal(t, http.StatusOK, code, accepted)
	assert.Equal(t, "ACCEPTED", gjson.Get(accepted, "data.state").String())

	code, _ = call(t, srv.URL, http.MethodPost, fmt.Sprintf("/reservations/%d/refuse", id), "olga", "owner", "")
	assert.Equal(t, http.StatusConflict, code)
}

func call(t *testing.T, baseURL, method, path, actorID, role, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, baseURL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", actorID)
	req.Header.Set("X-Actor-Role", role)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var sb strings.Builder
	_, err = sb.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, sb.String()
}
