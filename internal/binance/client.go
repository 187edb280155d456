package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Client talks to the Binance USDT-margined futures REST API. Market data
// endpoints are public; an API key is attached when present.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zap.Logger
}

func New(baseURL string, timeout time.Duration, apiKey string, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// Klines fetches raw kline rows for one symbol. Each row is a positional
// array; interpretation belongs to the market package.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]any, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))
	var rows []any
	if err := c.get(ctx, "/fapi/v1/klines", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Tickers fetches 24h rolling statistics. With an empty symbol the endpoint
// returns the whole universe as an array; with a symbol it returns a single
// object, normalized here to a one-element slice.
func (c *Client) Tickers(ctx context.Context, symbol string) ([]map[string]any, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	var raw json.RawMessage
	if err := c.get(ctx, "/fapi/v1/ticker/24hr", params, &raw); err != nil {
		return nil, err
	}
	var many []map[string]any
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var one map[string]any
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("unexpected ticker payload: %w", err)
	}
	return []map[string]any{one}, nil
}

// Ping checks connectivity without consuming meaningful rate-limit weight.
func (c *Client) Ping(ctx context.Context) error {
	var out map[string]any
	return c.get(ctx, "/fapi/v1/ping", nil, &out)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
