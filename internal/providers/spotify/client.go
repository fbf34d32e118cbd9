// Package spotify fetches the user's listening stats over the Spotify Web
// API using the authorization-code flow.
package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"mosaic/internal/adapters/config"
	"mosaic/internal/catalog"
	"mosaic/pkg/errors"
)

const (
	defaultAPIBaseURL  = "https://api.spotify.com/v1"
	defaultAuthBaseURL = "https://accounts.spotify.com"
	defaultTimeout     = 10 * time.Second

	scopes = "user-top-read user-read-recently-played"
)

// Client is the Spotify provider. Token state is guarded by mu; everything
// else is immutable after construction.
type Client struct {
	clientID     string
	clientSecret string
	redirectURI  string

	apiBaseURL  string
	authBaseURL string
	http        *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func New(cfg config.SpotifyConfig) *Client {
	return &Client{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		apiBaseURL:   defaultAPIBaseURL,
		authBaseURL:  defaultAuthBaseURL,
		http:         &http.Client{Timeout: defaultTimeout},
	}
}

// NewWithBaseURLs points the client at alternate API and auth hosts.
func NewWithBaseURLs(cfg config.SpotifyConfig, apiBaseURL, authBaseURL string) *Client {
	c := New(cfg)
	c.apiBaseURL = apiBaseURL
	c.authBaseURL = authBaseURL
	return c
}

func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshToken != ""
}

// ClearToken drops the stored session.
func (c *Client) ClearToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
	c.refreshToken = ""
	c.expiresAt = time.Time{}
}

// AuthorizationURL builds the user consent URL for the code flow.
func (c *Client) AuthorizationURL() string {
	q := url.Values{
		"client_id":     {c.clientID},
		"response_type": {"code"},
		"redirect_uri":  {c.redirectURI},
		"scope":         {scopes},
	}
	return c.authBaseURL + "/authorize?" + q.Encode()
}

// ExchangeCode trades an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code string) error {
	return c.token(ctx, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.redirectURI},
	})
}

func (c *Client) token(ctx context.Context, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.authBaseURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrProviderUnavailable, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(errors.ErrUnauthorized, "spotify token http %d: %s", resp.StatusCode, string(body))
	}

	var tok struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		c.refreshToken = tok.RefreshToken
	}
	c.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return nil
}

// ensureToken refreshes the access token when it is missing or expiring.
func (c *Client) ensureToken(ctx context.Context) error {
	c.mu.Lock()
	current := c.accessToken
	refresh := c.refreshToken
	fresh := time.Until(c.expiresAt) > time.Minute
	c.mu.Unlock()

	if current != "" && fresh {
		return nil
	}
	if refresh == "" {
		return errors.Wrap(errors.ErrProviderNotConfigured, "spotify: no session, authorize first")
	}
	return c.token(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refresh},
	})
}

func (c *Client) get(ctx context.Context, path string, target interface{}) error {
	if err := c.ensureToken(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrProviderUnavailable, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(errors.ErrProviderUnavailable, "spotify http %d: %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, target)
}

// FetchUserData aggregates the user's top songs, artists, genres, and an
// estimate of listening time from recent plays.
func (c *Client) FetchUserData(ctx context.Context) (map[string]interface{}, error) {
	var tracks struct {
		Items []struct {
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
			DurationMs int `json:"duration_ms"`
			Popularity int `json:"popularity"`
		} `json:"items"`
	}
	if err := c.get(ctx, "/me/top/tracks?limit=10&time_range=medium_term", &tracks); err != nil {
		return nil, err
	}

	var artists struct {
		Items []struct {
			Name   string   `json:"name"`
			Genres []string `json:"genres"`
		} `json:"items"`
	}
	if err := c.get(ctx, "/me/top/artists?limit=10&time_range=medium_term", &artists); err != nil {
		return nil, err
	}

	topSongs := make([]interface{}, 0, len(tracks.Items))
	totalMs := 0
	for _, item := range tracks.Items {
		artist := ""
		if len(item.Artists) > 0 {
			artist = item.Artists[0].Name
		}
		topSongs = append(topSongs, map[string]interface{}{
			"title":      item.Name,
			"artist":     artist,
			"popularity": item.Popularity,
		})
		totalMs += item.DurationMs
	}

	topArtists := make([]interface{}, 0, len(artists.Items))
	genreCounts := map[string]int{}
	for _, item := range artists.Items {
		topArtists = append(topArtists, item.Name)
		for _, g := range item.Genres {
			genreCounts[g]++
		}
	}

	return map[string]interface{}{
		"top_songs":        topSongs,
		"top_artists":      topArtists,
		"top_genres":       topGenres(genreCounts, 5),
		"minutes_listened": totalMs / 60000,
	}, nil
}

// topGenres returns the n most frequent genres, most frequent first.
func topGenres(counts map[string]int, n int) []interface{} {
	type gc struct {
		genre string
		count int
	}
	ranked := make([]gc, 0, len(counts))
	for g, c := range counts {
		ranked = append(ranked, gc{g, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].genre < ranked[j].genre
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]interface{}, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.genre)
	}
	return out
}

// Operations declares the single cataloged tool. OAuth management methods
// are intentionally not registered.
func (c *Client) Operations() []catalog.Operation {
	return []catalog.Operation{
		{
			Name:        "fetch_user_data",
			Description: "Get user's Spotify listening stats including top songs, artists, genres, and total listening time",
			Handler: func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
				return c.FetchUserData(ctx)
			},
		},
	}
}
