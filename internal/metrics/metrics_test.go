package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"marketlife/internal/game"
)

func TestRecorderObserveStep(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveStep(game.StepReport{
		Tick:           12,
		Day:            2,
		Transition:     &game.Transition{Day: 2, Tick: 12, From: game.PhaseSettlement, To: game.PhasePreMarket},
		Revealed:       []game.EventInstance{{ID: "e1"}, {ID: "e2"}},
		Posts:          []game.Post{{Board: game.BoardHTS}, {Board: game.BoardGlobal}, {Board: game.BoardHTS}},
		Penalties:      []game.Penalty{{Account: "rent", FineMicros: 5 * game.MicrosPerStonky, HP: 3}},
		CashMicros:     120 * game.MicrosPerStonky,
		NetWorthMicros: 150 * game.MicrosPerStonky,
		HP:             80,
	})
	r.ObserveStep(game.StepReport{Tick: 13, Day: 2, HP: 79, GameOver: true})

	require.Equal(t, 2.0, testutil.ToFloat64(r.ticks))
	require.Equal(t, 1.0, testutil.ToFloat64(r.transitions.WithLabelValues(string(game.PhasePreMarket))))
	require.Equal(t, 2.0, testutil.ToFloat64(r.day))
	require.Equal(t, 79.0, testutil.ToFloat64(r.hp))
	require.Equal(t, 2.0, testutil.ToFloat64(r.events.WithLabelValues("revealed")))
	require.Equal(t, 2.0, testutil.ToFloat64(r.posts.WithLabelValues(string(game.BoardHTS))))
	require.Equal(t, 1.0, testutil.ToFloat64(r.penalties.WithLabelValues("rent")))
	require.Equal(t, 5.0, testutil.ToFloat64(r.fines))
	require.Equal(t, 1.0, testutil.ToFloat64(r.gameOver))
}

func TestRecorderObserveOrder(t *testing.T) {
	r := NewRecorder(nil)
	r.ObserveOrder(game.OrderResult{Side: "buy", FeeMicros: 1_500_000, CashMicros: 10 * game.MicrosPerStonky})
	r.ObserveOrder(game.OrderResult{Side: "sell", FeeMicros: 500_000, CashMicros: 20 * game.MicrosPerStonky})

	require.Equal(t, 1.0, testutil.ToFloat64(r.orders.WithLabelValues("buy")))
	require.Equal(t, 2.0, testutil.ToFloat64(r.fees))
	require.Equal(t, 20.0, testutil.ToFloat64(r.cash))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.ObserveStep(game.StepReport{})
	r.ObserveOrder(game.OrderResult{})
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRecorder(reg)
	r.ObserveStep(game.StepReport{Day: 1, HP: 100})

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "marketlife_ticks_total 1")
	require.Contains(t, string(body), "marketlife_hp 100")
}
