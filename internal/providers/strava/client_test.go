package strava

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaic/internal/adapters/config"
	"mosaic/pkg/errors"
)

const activitiesJSON = `[
	{"name": "Morning Run", "type": "Run", "distance": 8200, "moving_time": 2760,
	 "kilojoules": 520, "start_date": "2026-08-20T07:00:00Z"},
	{"name": "Evening Ride", "type": "Ride", "distance": 32500, "moving_time": 4680,
	 "kilojoules": 980, "start_date": "2026-08-19T18:00:00Z"}
]`

func stravaServers(t *testing.T) (*httptest.Server, *httptest.Server) {
	t.Helper()
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/oauth/token", r.URL.Path)
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		w.Write([]byte(fmt.Sprintf(`{"access_token": "at-1", "expires_at": %d}`,
			time.Now().Add(time.Hour).Unix())))
	}))

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		assert.Equal(t, "/athlete/activities", r.URL.Path)
		w.Write([]byte(activitiesJSON))
	}))
	return api, auth
}

func testConfig() config.StravaConfig {
	return config.StravaConfig{ClientID: "id", ClientSecret: "secret", RefreshToken: "rt"}
}

func TestFetchUserSummary(t *testing.T) {
	api, auth := stravaServers(t)
	defer api.Close()
	defer auth.Close()

	c := NewWithBaseURLs(testConfig(), api.URL, auth.URL)
	summary, err := c.FetchUserSummary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary["total_workouts"])
	assert.Equal(t, 40.7, summary["total_distance"])
	assert.Equal(t, 1500, summary["total_calories"])

	recent := summary["recent_activities"].([]interface{})
	require.Len(t, recent, 2)
	assert.Equal(t, "Run", recent[0].(map[string]interface{})["type"])
}

func TestGetActivities(t *testing.T) {
	api, auth := stravaServers(t)
	defer api.Close()
	defer auth.Close()

	c := NewWithBaseURLs(testConfig(), api.URL, auth.URL)
	activities, err := c.GetActivities(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, activities, 2)
	assert.Equal(t, "Morning Run", activities[0]["name"])
	assert.Equal(t, 8.2, activities[0]["distance"])
	assert.Equal(t, 46, activities[0]["duration_min"])
}

func TestNotConfigured(t *testing.T) {
	c := New(config.StravaConfig{})
	assert.False(t, c.Authenticated())

	_, err := c.FetchUserSummary(context.Background())
	assert.True(t, errors.Is(err, errors.ErrProviderNotConfigured))
}
