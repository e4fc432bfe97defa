package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   strings.TrimSpace(token),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError carries the status and message of a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/healthz", nil, "")
}

func (c *Client) NewGame(ctx context.Context, seed int64, slot string) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/game", map[string]any{"seed": seed, "slot": slot}, "")
}

func (c *Client) Advance(ctx context.Context, ticks int) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/game/advance", map[string]any{"ticks": ticks}, "")
}

func (c *Client) Dashboard(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/v1/dashboard", nil, "")
}

func (c *Client) Clock(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/v1/clock", nil, "")
}

func (c *Client) ListStocks(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/v1/stocks", nil, "")
}

func (c *Client) StockDetail(ctx context.Context, symbol string) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/v1/stocks/"+url.PathEscape(symbol), nil, "")
}

func (c *Client) PlaceOrder(ctx context.Context, symbol, side, idem string, qtyUnits int64) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/orders", map[string]any{
		"symbol":         symbol,
		"side":           side,
		"quantity_units": qtyUnits,
	}, idem)
}

func (c *Client) Orders(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/v1/orders", nil, "")
}

func (c *Client) Events(ctx context.Context, limit int) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/v1/events?limit="+strconv.Itoa(limit), nil, "")
}

func (c *Client) Expenses(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/v1/expenses", nil, "")
}

func (c *Client) PayExpense(ctx context.Context, account string, amountMicros int64) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/expenses/"+url.PathEscape(account)+"/pay", map[string]any{
		"amount_micros": amountMicros,
	}, "")
}

func (c *Client) RestOptions(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/v1/rest/options", nil, "")
}

func (c *Client) Rest(ctx context.Context, option string) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/rest", map[string]any{"option": option}, "")
}

func (c *Client) Feed(ctx context.Context, board, symbol string, limit int) (map[string]any, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	return c.Do(ctx, http.MethodGet, "/v1/feed/"+url.PathEscape(board)+"?"+q.Encode(), nil, "")
}

func (c *Client) ListSaves(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/v1/saves", nil, "")
}

func (c *Client) Save(ctx context.Context, slot string) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/saves/"+url.PathEscape(slot), nil, "")
}

func (c *Client) Load(ctx context.Context, slot string) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/saves/"+url.PathEscape(slot)+"/load", nil, "")
}

func (c *Client) DeleteSave(ctx context.Context, slot string) (map[string]any, error) {
	return c.Do(ctx, http.MethodDelete, "/v1/saves/"+url.PathEscape(slot), nil, "")
}

func (c *Client) LoopStatus(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/v1/loop", nil, "")
}

func (c *Client) PauseLoop(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/loop/pause", nil, "")
}

func (c *Client) ResumeLoop(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/loop/resume", nil, "")
}

func (c *Client) DebugCash(ctx context.Context, cashMicros int64) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/debug/cash", map[string]any{"cash_micros": cashMicros}, "")
}

func (c *Client) Do(ctx context.Context, method, path string, body map[string]any, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, method, path, body, &out, idem)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// errorMessage pulls "error" out of a JSON error body and falls back to the
// raw text.
func errorMessage(raw []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
