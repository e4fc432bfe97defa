package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketlife/internal/config"
	"marketlife/internal/content"
	"marketlife/internal/game"
	"marketlife/internal/runner"
	"marketlife/internal/savefile"
)

type fakeLoop struct {
	paused bool
}

func (f *fakeLoop) Pause()  { f.paused = true }
func (f *fakeLoop) Resume() { f.paused = false }
func (f *fakeLoop) Status() runner.Status {
	return runner.Status{Running: true, Paused: f.paused, TicksPerStep: 1}
}

type testEnv struct {
	t   *testing.T
	srv *httptest.Server
	tok string
}

func newTestEnv(t *testing.T, cfg config.APIConfig, opts game.Options, loop LoopControl) *testEnv {
	t.Helper()
	cat, err := content.Default()
	require.NoError(t, err)
	rules := game.DefaultRules()
	rules.Phases = game.PhaseDurations{PreMarket: 2, MarketOpen: 10, Settlement: 2}
	opts.Now = func() time.Time { return time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC) }
	svc, err := game.NewService(cat, rules, nil, opts)
	require.NoError(t, err)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("marketlife_ticks_total 0\n"))
	})
	srv := httptest.NewServer(New(cfg, nil, svc, loop, metrics).Handler())
	t.Cleanup(srv.Close)
	return &testEnv{t: t, srv: srv, tok: cfg.APIToken}
}

func (e *testEnv) do(method, path string, body any, headers ...string) (int, map[string]any) {
	e.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/json")
	if e.tok != "" {
		req.Header.Set("Authorization", "Bearer "+e.tok)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{}, game.Options{}, nil)
	code, body := env.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["ok"])
	require.Equal(t, false, body["game"])

	resp, err := http.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthToken(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{APIToken: "s3cret"}, game.Options{}, nil)

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/v1/clock", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	code, _ := env.do(http.MethodGet, "/v1/clock", nil)
	require.Equal(t, http.StatusConflict, code)

	// healthz stays open.
	resp, err = http.Get(env.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGameFlow(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{}, game.Options{}, nil)

	code, body := env.do(http.MethodGet, "/v1/dashboard", nil)
	require.Equal(t, http.StatusConflict, code)
	require.Contains(t, body["error"], "no game")

	code, body = env.do(http.MethodPost, "/v1/game", map[string]any{"seed": 7})
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, float64(1), body["day"])

	order := map[string]any{"symbol": "NIMBUS", "side": "buy", "quantity_units": game.ShareScale}
	code, _ = env.do(http.MethodPost, "/v1/orders", order, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusConflict, code)

	code, body = env.do(http.MethodPost, "/v1/game/advance", map[string]any{"ticks": 3})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(3), body["ticks"])

	code, body = env.do(http.MethodGet, "/v1/clock", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, string(game.PhaseMarketOpen), body["phase"])

	code, body = env.do(http.MethodPost, "/v1/orders", order, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "NIMBUS", body["symbol"])
	require.NotEmpty(t, body["order_id"])

	code, _ = env.do(http.MethodPost, "/v1/orders", order, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusConflict, code)

	code, _ = env.do(http.MethodPost, "/v1/orders", map[string]any{"symbol": "NIMBUS", "side": "short", "quantity_units": 1})
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = env.do(http.MethodPost, "/v1/orders", map[string]any{"symbol": "NIMBUS", "side": "sell", "quantity_units": 100 * game.ShareScale})
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = env.do(http.MethodPost, "/v1/orders", map[string]any{"symbol": "NIMBUS", "bogus": true})
	require.Equal(t, http.StatusBadRequest, code)

	code, body = env.do(http.MethodGet, "/v1/orders", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["orders"], 1)

	code, body = env.do(http.MethodGet, "/v1/stocks", nil)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, body["stocks"])

	code, body = env.do(http.MethodGet, "/v1/stocks/nimbus", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "NIMBUS", body["symbol"])
	code, _ = env.do(http.MethodGet, "/v1/stocks/NOPE", nil)
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = env.do(http.MethodGet, "/v1/stocks/ZZZZZZ", nil)
	require.Equal(t, http.StatusNotFound, code)

	code, body = env.do(http.MethodGet, "/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["positions"], 1)
}

func TestLifeRoutes(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{}, game.Options{}, nil)
	code, _ := env.do(http.MethodPost, "/v1/game", map[string]any{"seed": 3})
	require.Equal(t, http.StatusCreated, code)

	code, body := env.do(http.MethodGet, "/v1/expenses", nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, body["bills"])

	code, _ = env.do(http.MethodPost, "/v1/expenses/casino/pay", map[string]any{"amount_micros": game.MicrosPerStonky})
	require.Equal(t, http.StatusNotFound, code)
	code, _ = env.do(http.MethodPost, "/v1/expenses/rent/pay", map[string]any{"amount_micros": 0})
	require.Equal(t, http.StatusBadRequest, code)

	code, body = env.do(http.MethodGet, "/v1/rest/options", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["options"], 4)

	code, body = env.do(http.MethodPost, "/v1/rest", map[string]any{"option": "nap"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(game.MaxHP), body["hp"])
	code, _ = env.do(http.MethodPost, "/v1/rest", map[string]any{"option": "moon"})
	require.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(http.MethodPost, "/v1/game/advance", map[string]any{"ticks": 14})
	require.Equal(t, http.StatusOK, code)

	code, body = env.do(http.MethodGet, "/v1/feed/global?limit=5", nil)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, body["posts"])
	code, _ = env.do(http.MethodGet, "/v1/feed/reddit", nil)
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = env.do(http.MethodGet, "/v1/feed/hts?limit=-1", nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, body = env.do(http.MethodGet, "/v1/events?limit=3", nil)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "upcoming")

	code, _ = env.do(http.MethodPost, "/v1/game/advance", map[string]any{"ticks": 0})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestSaveRoutes(t *testing.T) {
	store, err := savefile.New(t.TempDir())
	require.NoError(t, err)
	env := newTestEnv(t, config.APIConfig{}, game.Options{Store: store}, nil)

	code, _ := env.do(http.MethodPost, "/v1/saves/alpha", nil)
	require.Equal(t, http.StatusConflict, code)

	code, _ = env.do(http.MethodPost, "/v1/game", map[string]any{"seed": 5, "slot": "alpha"})
	require.Equal(t, http.StatusCreated, code)
	code, _ = env.do(http.MethodPost, "/v1/game/advance", map[string]any{"ticks": 4})
	require.Equal(t, http.StatusOK, code)

	code, body := env.do(http.MethodPost, "/v1/saves/alpha", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(4), body["tick"])

	code, _ = env.do(http.MethodPost, "/v1/game/advance", map[string]any{"ticks": 4})
	require.Equal(t, http.StatusOK, code)
	code, body = env.do(http.MethodPost, "/v1/saves/alpha/load", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(4), body["tick"])

	code, body = env.do(http.MethodGet, "/v1/saves", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "alpha", body["current"])
	require.Len(t, body["slots"], 1)

	code, _ = env.do(http.MethodPost, "/v1/saves/Bad%20Slot", nil)
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = env.do(http.MethodPost, "/v1/saves/ghost/load", nil)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(http.MethodDelete, "/v1/saves/alpha", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = env.do(http.MethodDelete, "/v1/saves/alpha", nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestSavesWithoutStore(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{}, game.Options{}, nil)
	code, _ := env.do(http.MethodGet, "/v1/saves", nil)
	require.Equal(t, http.StatusNotImplemented, code)
}

func TestDebugCash(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{}, game.Options{}, nil)
	code, _ := env.do(http.MethodPost, "/v1/game", nil)
	require.Equal(t, http.StatusCreated, code)
	code, _ = env.do(http.MethodPost, "/v1/debug/cash", map[string]any{"cash_micros": 1})
	require.Equal(t, http.StatusForbidden, code)

	debug := newTestEnv(t, config.APIConfig{}, game.Options{Debug: true}, nil)
	code, _ = debug.do(http.MethodPost, "/v1/game", nil)
	require.Equal(t, http.StatusCreated, code)
	code, body := debug.do(http.MethodPost, "/v1/debug/cash", map[string]any{"cash_micros": 7 * game.MicrosPerStonky})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(7*game.MicrosPerStonky), body["cash_micros"])
}

func TestLoopRoutes(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{}, game.Options{}, nil)
	code, _ := env.do(http.MethodGet, "/v1/loop", nil)
	require.Equal(t, http.StatusNotFound, code)

	loop := &fakeLoop{}
	env = newTestEnv(t, config.APIConfig{}, game.Options{}, loop)
	code, body := env.do(http.MethodPost, "/v1/loop/pause", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["paused"])
	require.True(t, loop.paused)

	code, body = env.do(http.MethodPost, "/v1/loop/resume", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, false, body["paused"])
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, bearerToken(tt.header), strings.TrimSpace(tt.header))
	}
}
