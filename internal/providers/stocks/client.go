// Package stocks fetches quote data from the Alpha Vantage API.
package stocks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mosaic/internal/adapters/config"
	"mosaic/internal/catalog"
	"mosaic/pkg/errors"
)

const (
	defaultBaseURL = "https://www.alphavantage.co"
	defaultTimeout = 10 * time.Second
)

// indexProxies maps major index names to their ETF proxy symbols; Alpha
// Vantage has no direct index quote endpoint on the free tier.
var indexProxies = []struct {
	name   string
	symbol string
}{
	{"sp500", "SPY"},
	{"nasdaq", "QQQ"},
	{"dow", "DIA"},
}

// Client is the Alpha Vantage provider.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func New(cfg config.StocksConfig) *Client {
	return &Client{
		apiKey:  cfg.AlphaVantageKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

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

type globalQuote struct {
	Quote struct {
		Symbol        string `json:"01. symbol"`
		Price         string `json:"05. price"`
		Volume        string `json:"06. volume"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
}

func (c *Client) quote(ctx context.Context, symbol string) (*globalQuote, error) {
	q := url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {symbol},
		"apikey":   {c.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrProviderUnavailable, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrProviderUnavailable, "alphavantage http %d: %s", resp.StatusCode, string(body))
	}

	var gq globalQuote
	if err := json.Unmarshal(body, &gq); err != nil {
		return nil, err
	}
	if gq.Quote.Symbol == "" {
		return nil, errors.Wrapf(errors.ErrNotFound, "no quote for %s", symbol)
	}
	return &gq, nil
}

// FetchStockInfo fetches the latest quote for one ticker symbol.
func (c *Client) FetchStockInfo(ctx context.Context, symbol string) (map[string]interface{}, error) {
	if symbol == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "symbol is required")
	}

	gq, err := c.quote(ctx, strings.ToUpper(symbol))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"symbol":     gq.Quote.Symbol,
		"price":      parseFloat(gq.Quote.Price),
		"change":     parseFloat(gq.Quote.Change),
		"change_pct": parsePercent(gq.Quote.ChangePercent),
		"volume":     parseFloat(gq.Quote.Volume),
	}, nil
}

// FetchMarketTrends fetches an overview of the major indices via ETF
// proxies. An individual proxy failure drops that index from the result.
func (c *Client) FetchMarketTrends(ctx context.Context) (map[string]interface{}, error) {
	indices := make(map[string]interface{}, len(indexProxies))
	for _, proxy := range indexProxies {
		gq, err := c.quote(ctx, proxy.symbol)
		if err != nil {
			continue
		}
		indices[proxy.name] = map[string]interface{}{
			"value":      parseFloat(gq.Quote.Price),
			"change_pct": parsePercent(gq.Quote.ChangePercent),
		}
	}
	if len(indices) == 0 {
		return nil, errors.Wrap(errors.ErrProviderUnavailable, "no index quotes available")
	}
	return map[string]interface{}{"indices": indices}, nil
}

// FetchPortfolioData fetches quotes for several symbols. Symbols that fail
// carry an error entry instead of aborting the batch.
func (c *Client) FetchPortfolioData(ctx context.Context, symbols []string) (map[string]interface{}, error) {
	if len(symbols) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "at least one symbol is required")
	}

	portfolio := make([]interface{}, 0, len(symbols))
	for _, symbol := range symbols {
		info, err := c.FetchStockInfo(ctx, symbol)
		if err != nil {
			portfolio = append(portfolio, map[string]interface{}{
				"symbol": strings.ToUpper(symbol),
				"error":  err.Error(),
			})
			continue
		}
		portfolio = append(portfolio, info)
	}
	return map[string]interface{}{"portfolio": portfolio}, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func parsePercent(s string) float64 {
	return parseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"))
}

func (c *Client) Operations() []catalog.Operation {
	return []catalog.Operation{
		{
			Name:        "fetch_stock_info",
			Description: "Get real-time stock price, volume, and company info for a ticker symbol",
			Params: []catalog.Param{{
				Name:        "symbol",
				Type:        catalog.TypeString,
				Description: "Stock ticker symbol (e.g., AAPL, TSLA, GOOGL, MSFT, AMZN)",
				Required:    true,
			}},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				symbol, _ := args["symbol"].(string)
				return c.FetchStockInfo(ctx, symbol)
			},
		},
		{
			Name:        "fetch_market_trends",
			Description: "Get current market overview including major indices (S&P 500, NASDAQ, DOW) and top movers",
			Handler: func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
				return c.FetchMarketTrends(ctx)
			},
		},
		{
			Name:        "fetch_portfolio_data",
			Description: "Get portfolio performance data for multiple stock symbols",
			Params: []catalog.Param{{
				Name:        "symbols",
				Type:        catalog.TypeStringArray,
				Description: "List of stock ticker symbols (e.g., ['AAPL', 'GOOGL', 'MSFT'])",
				Required:    true,
			}},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return c.FetchPortfolioData(ctx, stringSlice(args["symbols"]))
			},
		},
	}
}

// stringSlice coerces a decoded JSON array into []string, skipping
// non-string elements.
func stringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
