// Package clash fetches Clash Royale player and clan data from the
// official API.
package clash

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"mosaic/internal/adapters/config"
	"mosaic/internal/catalog"
	"mosaic/pkg/errors"
)

const (
	defaultBaseURL = "https://api.clashroyale.com/v1"
	defaultTimeout = 10 * time.Second
)

// Client is the Clash Royale provider. It is safe for concurrent use.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// New constructs the provider from configuration.
func New(cfg config.ClashConfig) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// NewWithBaseURL points the client at an alternate API host.
func NewWithBaseURL(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) Authenticated() bool {
	return c.apiKey != ""
}

// encodeTag URL-encodes a player/clan tag, adding the # prefix if missing.
func encodeTag(tag string) string {
	return "%23" + strings.TrimPrefix(tag, "#")
}

func (c *Client) get(ctx context.Context, path string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrProviderUnavailable, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return errors.Wrapf(errors.ErrNotFound, "clash http %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(errors.ErrProviderUnavailable, "clash http %d: %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, target)
}

type playerResponse struct {
	Tag             string `json:"tag"`
	Name            string `json:"name"`
	Trophies        int    `json:"trophies"`
	BestTrophies    int    `json:"bestTrophies"`
	Wins            int    `json:"wins"`
	Losses          int    `json:"losses"`
	BattleCount     int    `json:"battleCount"`
	ThreeCrownWins  int    `json:"threeCrownWins"`
	ChallengeMaxWin int    `json:"challengeMaxWins"`
	ExpLevel        int    `json:"expLevel"`
	Role            string `json:"role"`
	Arena           struct {
		Name string `json:"name"`
	} `json:"arena"`
	Clan *struct {
		Name string `json:"name"`
	} `json:"clan"`
	Cards       []json.RawMessage `json:"cards"`
	CurrentDeck []struct {
		Name       string `json:"name"`
		Level      int    `json:"level"`
		MaxLevel   int    `json:"maxLevel"`
		ElixirCost int    `json:"elixirCost"`
		Rarity     string `json:"rarity"`
	} `json:"currentDeck"`
}

// GetPlayer fetches a player profile by tag (e.g. #ABC123).
func (c *Client) GetPlayer(ctx context.Context, playerTag string) (map[string]interface{}, error) {
	var data playerResponse
	if err := c.get(ctx, "/players/"+encodeTag(playerTag), &data); err != nil {
		return nil, err
	}

	player := map[string]interface{}{
		"tag":                data.Tag,
		"name":               data.Name,
		"trophies":           data.Trophies,
		"best_trophies":      data.BestTrophies,
		"wins":               data.Wins,
		"losses":             data.Losses,
		"battle_count":       data.BattleCount,
		"three_crown_wins":   data.ThreeCrownWins,
		"challenge_max_wins": data.ChallengeMaxWin,
		"arena":              data.Arena.Name,
		"role":               data.Role,
		"exp_level":          data.ExpLevel,
		"cards_count":        len(data.Cards),
	}
	if data.Clan != nil {
		player["clan"] = data.Clan.Name
	}
	return player, nil
}

// GetPlayerBattleLog fetches the player's recent battles, newest first.
func (c *Client) GetPlayerBattleLog(ctx context.Context, playerTag string, limit int) ([]map[string]interface{}, error) {
	if limit <= 0 {
		limit = 10
	}

	var raw []struct {
		Type       string `json:"type"`
		BattleTime string `json:"battleTime"`
		Arena      struct {
			Name string `json:"name"`
		} `json:"arena"`
		Team []struct {
			Crowns int `json:"crowns"`
		} `json:"team"`
		Opponent []struct {
			Name   string `json:"name"`
			Crowns int    `json:"crowns"`
		} `json:"opponent"`
	}
	if err := c.get(ctx, "/players/"+encodeTag(playerTag)+"/battlelog", &raw); err != nil {
		return nil, err
	}

	if len(raw) > limit {
		raw = raw[:limit]
	}

	battles := make([]map[string]interface{}, 0, len(raw))
	for _, b := range raw {
		teamCrowns, oppCrowns := 0, 0
		oppName := ""
		if len(b.Team) > 0 {
			teamCrowns = b.Team[0].Crowns
		}
		if len(b.Opponent) > 0 {
			oppCrowns = b.Opponent[0].Crowns
			oppName = b.Opponent[0].Name
		}

		result := "draw"
		if teamCrowns > oppCrowns {
			result = "win"
		} else if teamCrowns < oppCrowns {
			result = "loss"
		}

		battles = append(battles, map[string]interface{}{
			"type":            b.Type,
			"battle_time":     b.BattleTime,
			"arena":           b.Arena.Name,
			"team_crowns":     teamCrowns,
			"opponent_crowns": oppCrowns,
			"opponent_name":   oppName,
			"result":          result,
		})
	}
	return battles, nil
}

// GetPlayerUpcomingChests fetches the player's upcoming chest cycle.
func (c *Client) GetPlayerUpcomingChests(ctx context.Context, playerTag string) ([]map[string]interface{}, error) {
	var data struct {
		Items []struct {
			Index int    `json:"index"`
			Name  string `json:"name"`
		} `json:"items"`
	}
	if err := c.get(ctx, "/players/"+encodeTag(playerTag)+"/upcomingchests", &data); err != nil {
		return nil, err
	}

	chests := make([]map[string]interface{}, 0, len(data.Items))
	for _, item := range data.Items {
		chests = append(chests, map[string]interface{}{"index": item.Index, "name": item.Name})
	}
	return chests, nil
}

// GetClan fetches clan info by tag.
func (c *Client) GetClan(ctx context.Context, clanTag string) (map[string]interface{}, error) {
	var data struct {
		Tag              string `json:"tag"`
		Name             string `json:"name"`
		Description      string `json:"description"`
		ClanScore        int    `json:"clanScore"`
		ClanWarTrophies  int    `json:"clanWarTrophies"`
		Members          int    `json:"members"`
		RequiredTrophies int    `json:"requiredTrophies"`
		DonationsPerWeek int    `json:"donationsPerWeek"`
	}
	if err := c.get(ctx, "/clans/"+encodeTag(clanTag), &data); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"tag":                data.Tag,
		"name":               data.Name,
		"description":        data.Description,
		"clan_score":         data.ClanScore,
		"clan_war_trophies":  data.ClanWarTrophies,
		"members":            data.Members,
		"required_trophies":  data.RequiredTrophies,
		"donations_per_week": data.DonationsPerWeek,
	}, nil
}

// GetCurrentDeck fetches the player's current deck.
func (c *Client) GetCurrentDeck(ctx context.Context, playerTag string) ([]map[string]interface{}, error) {
	var data playerResponse
	if err := c.get(ctx, "/players/"+encodeTag(playerTag), &data); err != nil {
		return nil, err
	}

	deck := make([]map[string]interface{}, 0, len(data.CurrentDeck))
	for _, card := range data.CurrentDeck {
		deck = append(deck, map[string]interface{}{
			"name":      card.Name,
			"level":     card.Level,
			"max_level": card.MaxLevel,
			"elixir":    card.ElixirCost,
			"rarity":    card.Rarity,
		})
	}
	return deck, nil
}

// FetchUserSummary combines profile, recent battles, deck, and chests into
// one payload. Secondary fetch failures degrade to empty sections; only a
// missing profile is an error.
func (c *Client) FetchUserSummary(ctx context.Context, playerTag string) (map[string]interface{}, error) {
	player, err := c.GetPlayer(ctx, playerTag)
	if err != nil {
		return nil, err
	}

	battles, _ := c.GetPlayerBattleLog(ctx, playerTag, 5)
	deck, _ := c.GetCurrentDeck(ctx, playerTag)
	chests, _ := c.GetPlayerUpcomingChests(ctx, playerTag)
	if len(chests) > 5 {
		chests = chests[:5]
	}

	return map[string]interface{}{
		"player":          player,
		"recent_battles":  emptyIfNil(battles),
		"current_deck":    emptyIfNil(deck),
		"upcoming_chests": emptyIfNil(chests),
		"last_updated":    time.Now().Format(time.RFC3339),
	}, nil
}

func emptyIfNil(items []map[string]interface{}) []map[string]interface{} {
	if items == nil {
		return []map[string]interface{}{}
	}
	return items
}

// Operations declares the cataloged tools. get_player and
// fetch_user_summary carry curated metadata; the rest fall back to their
// doc lines.
func (c *Client) Operations() []catalog.Operation {
	tagParam := catalog.Param{
		Name:        "player_tag",
		Type:        catalog.TypeString,
		Description: "Player tag with # prefix (e.g., '#ABC123')",
		Required:    true,
	}

	return []catalog.Operation{
		{
			Name:        "get_player",
			Description: "Get detailed Clash Royale player profile",
			Params:      []catalog.Param{tagParam},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				tag, _ := args["player_tag"].(string)
				return c.GetPlayer(ctx, tag)
			},
		},
		{
			Name:        "fetch_user_summary",
			Description: "Get Clash Royale player summary with key stats",
			Params:      []catalog.Param{tagParam},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				tag, _ := args["player_tag"].(string)
				return c.FetchUserSummary(ctx, tag)
			},
		},
		{
			Name: "get_player_battle_log",
			Doc:  "Get recent battles for a player",
			Params: []catalog.Param{
				{Name: "player_tag", Type: catalog.TypeString, Required: true},
				{Name: "limit", Type: catalog.TypeInteger},
			},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				tag, _ := args["player_tag"].(string)
				limit, _ := args["limit"].(float64)
				return c.GetPlayerBattleLog(ctx, tag, int(limit))
			},
		},
		{
			Name:   "get_player_upcoming_chests",
			Doc:    "Get upcoming chests for a player",
			Params: []catalog.Param{{Name: "player_tag", Type: catalog.TypeString, Required: true}},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				tag, _ := args["player_tag"].(string)
				return c.GetPlayerUpcomingChests(ctx, tag)
			},
		},
		{
			Name:   "get_clan",
			Doc:    "Get clan info by tag",
			Params: []catalog.Param{{Name: "clan_tag", Type: catalog.TypeString, Required: true}},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				tag, _ := args["clan_tag"].(string)
				return c.GetClan(ctx, tag)
			},
		},
		{
			Name:   "get_current_deck",
			Doc:    "Get player's current deck",
			Params: []catalog.Param{{Name: "player_tag", Type: catalog.TypeString, Required: true}},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				tag, _ := args["player_tag"].(string)
				return c.GetCurrentDeck(ctx, tag)
			},
		},
	}
}
