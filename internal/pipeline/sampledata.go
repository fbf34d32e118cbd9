package pipeline

// sampleData is the static fallback dataset, keyed by namespace. It serves
// the legacy generate operation and any request where the agent loop comes
// back empty.
var sampleData = Aggregate{
	"music": {
		"top_songs": []interface{}{
			map[string]interface{}{"title": "Midnight City", "artist": "M83", "plays": 142},
			map[string]interface{}{"title": "Nightcall", "artist": "Kavinsky", "plays": 120},
			map[string]interface{}{"title": "Instant Crush", "artist": "Daft Punk", "plays": 96},
		},
		"top_artists":      []interface{}{"M83", "Daft Punk", "Kavinsky"},
		"top_genres":       []interface{}{"synthwave", "electronic", "indie"},
		"minutes_listened": 8412,
	},
	"stocks": {
		"portfolio": []interface{}{
			map[string]interface{}{"symbol": "AAPL", "price": 228.41, "change_pct": 1.2},
			map[string]interface{}{"symbol": "GOOGL", "price": 182.33, "change_pct": -0.4},
			map[string]interface{}{"symbol": "TSLA", "price": 251.05, "change_pct": 3.1},
		},
		"indices": map[string]interface{}{
			"sp500":  map[string]interface{}{"value": 5712.2, "change_pct": 0.3},
			"nasdaq": map[string]interface{}{"value": 18190.5, "change_pct": 0.7},
		},
	},
	"sports": {
		"teams": []interface{}{
			map[string]interface{}{"name": "Lakers", "wins": 42, "losses": 30, "last_game": "W 112-104"},
			map[string]interface{}{"name": "Warriors", "wins": 39, "losses": 33, "last_game": "L 98-101"},
		},
	},
	"fitness": {
		"total_workouts": 18,
		"total_distance": 126.4,
		"total_calories": 9850,
		"recent_activities": []interface{}{
			map[string]interface{}{"type": "Run", "distance": 8.2, "duration_min": 46},
			map[string]interface{}{"type": "Ride", "distance": 32.5, "duration_min": 78},
		},
	},
	"gaming": {
		"player": map[string]interface{}{
			"name":     "Player",
			"trophies": 5213,
			"wins":     1204,
			"losses":   987,
			"arena":    "Legendary Arena",
		},
	},
}

// sampleDataFor returns the slice of the sample dataset matching the
// planner's suggested sources, or the whole dataset when nothing matches.
func sampleDataFor(sources []string) Aggregate {
	out := make(Aggregate)
	for _, src := range sources {
		if values, ok := sampleData[src]; ok {
			ns := make(map[string]interface{}, len(values))
			for k, v := range values {
				ns[k] = v
			}
			out[src] = ns
		}
	}
	if len(out) == 0 {
		for ns, values := range sampleData {
			copied := make(map[string]interface{}, len(values))
			for k, v := range values {
				copied[k] = v
			}
			out[ns] = copied
		}
	}
	return out
}
