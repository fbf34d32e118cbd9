package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamespaceFor(t *testing.T) {
	assert.Equal(t, "music", namespaceFor("spotify_get_top_songs"))
	assert.Equal(t, "fitness", namespaceFor("strava_fetch_user_summary"))
	assert.Equal(t, "gaming", namespaceFor("clash_get_player"))
	// Unmapped prefixes namespace under themselves.
	assert.Equal(t, "weather", namespaceFor("weather_get_forecast"))
}

func TestAddMapResultMerges(t *testing.T) {
	data := make(Aggregate)
	data.Add("spotify_get_top_songs", map[string]interface{}{
		"top_songs": []interface{}{"a", "b"},
	})
	data.Add("spotify_get_top_artists", map[string]interface{}{
		"top_artists": []interface{}{"M83"},
	})

	assert.Len(t, data, 1)
	assert.Equal(t, []interface{}{"a", "b"}, data["music"]["top_songs"])
	assert.Equal(t, []interface{}{"M83"}, data["music"]["top_artists"])
}

func TestAddScalarStoredUnderOperation(t *testing.T) {
	data := make(Aggregate)
	data.Add("strava_get_total_distance", 126.4)

	assert.Equal(t, 126.4, data["fitness"]["get_total_distance"])
}

func TestAddCollisionLastWriteWins(t *testing.T) {
	data := make(Aggregate)
	data.Add("spotify_get_top_songs", map[string]interface{}{"count": 1})
	data.Add("spotify_get_recent_songs", map[string]interface{}{"count": 2})

	assert.Equal(t, 2, data["music"]["count"])
}

func TestMerge(t *testing.T) {
	a := Aggregate{"music": {"top_songs": "x"}}
	b := Aggregate{
		"music":  {"top_artists": "y"},
		"gaming": {"player": "z"},
	}
	a.Merge(b)

	assert.Equal(t, "x", a["music"]["top_songs"])
	assert.Equal(t, "y", a["music"]["top_artists"])
	assert.Equal(t, "z", a["gaming"]["player"])
}
