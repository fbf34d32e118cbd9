package sports

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaic/pkg/errors"
)

func sportsServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/test-key/searchteams.php":
			if r.URL.Query().Get("t") == "Lakers" {
				w.Write([]byte(`{"teams": [{"idTeam": "134867", "strTeam": "Los Angeles Lakers",
					"strLeague": "NBA", "strStadium": "Crypto.com Arena"}]}`))
				return
			}
			w.Write([]byte(`{"teams": null}`))
		case "/test-key/lookupteam.php":
			w.Write([]byte(`{"teams": [{"idTeam": "134867", "strTeam": "Los Angeles Lakers", "strLeague": "NBA"}]}`))
		case "/test-key/eventslast.php":
			w.Write([]byte(`{"results": [{"strEvent": "Lakers vs Warriors", "dateEvent": "2026-08-20",
				"strHomeTeam": "Lakers", "strAwayTeam": "Warriors", "intHomeScore": "112", "intAwayScore": "104"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestSearchTeam(t *testing.T) {
	srv := sportsServer(t)
	defer srv.Close()

	c := NewWithBaseURL("test-key", srv.URL)
	team, err := c.SearchTeam(context.Background(), "Lakers")
	require.NoError(t, err)

	assert.Equal(t, "134867", team["id"])
	assert.Equal(t, "Los Angeles Lakers", team["name"])
	assert.Equal(t, "NBA", team["league"])
}

func TestSearchTeamNotFound(t *testing.T) {
	srv := sportsServer(t)
	defer srv.Close()

	c := NewWithBaseURL("test-key", srv.URL)
	_, err := c.SearchTeam(context.Background(), "Nonexistent")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestGetTeamStatsIncludesRecentGames(t *testing.T) {
	srv := sportsServer(t)
	defer srv.Close()

	c := NewWithBaseURL("test-key", srv.URL)
	stats, err := c.GetTeamStats(context.Background(), "134867")
	require.NoError(t, err)

	games := stats["recent_games"].([]interface{})
	require.Len(t, games, 1)
	assert.Equal(t, "Lakers vs Warriors", games[0].(map[string]interface{})["event"])
}

func TestFetchUserSportsSummarySkipsUnknownTeams(t *testing.T) {
	srv := sportsServer(t)
	defer srv.Close()

	c := NewWithBaseURL("test-key", srv.URL)
	summary, err := c.FetchUserSportsSummary(context.Background(), []string{"Lakers", "Nonexistent"})
	require.NoError(t, err)

	teams := summary["teams"].([]interface{})
	require.Len(t, teams, 1)
	assert.Equal(t, "Los Angeles Lakers", teams[0].(map[string]interface{})["name"])
}

func TestOperationsExcludeSearch(t *testing.T) {
	c := NewWithBaseURL("test-key", "http://unused")
	for _, op := range c.Operations() {
		assert.NotEqual(t, "search_team", op.Name)
	}
}
