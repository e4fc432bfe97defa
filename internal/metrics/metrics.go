// Package metrics exports game progress as Prometheus metrics. Recorder
// satisfies game.Observer so the service can feed it directly.
package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"

	"marketlife/internal/game"
)

const namespace = "marketlife"

type Recorder struct {
	ticks       prom.Counter
	transitions *prom.CounterVec
	day         prom.Gauge
	cash        prom.Gauge
	netWorth    prom.Gauge
	hp          prom.Gauge
	events      *prom.CounterVec
	posts       *prom.CounterVec
	penalties   *prom.CounterVec
	fines       prom.Counter
	orders      *prom.CounterVec
	fees        prom.Counter
	gameOver    prom.Gauge
}

// NewRecorder builds the collectors and registers them on reg. A nil reg
// gets a private registry.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{
		ticks: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Simulation ticks processed",
		}),
		transitions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Day phase transitions by target phase",
		}, []string{"phase"}),
		day: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "day",
			Help:      "Current in-game day",
		}),
		cash: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "cash_stonky",
			Help:      "Wallet balance",
		}),
		netWorth: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "net_worth_stonky",
			Help:      "Cash plus marked-to-market positions",
		}),
		hp: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "hp",
			Help:      "Player health points",
		}),
		events: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Market events by lifecycle stage",
		}, []string{"stage"}),
		posts: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "posts_total",
			Help:      "Community posts published by board",
		}, []string{"board"}),
		penalties: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "penalties_total",
			Help:      "Overdue bill penalties by account",
		}, []string{"account"}),
		fines: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "fines_stonky_total",
			Help:      "Late fines charged",
		}),
		orders: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Filled orders by side",
		}, []string{"side"}),
		fees: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "fees_stonky_total",
			Help:      "Trading fees paid",
		}),
		gameOver: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "game_over",
			Help:      "1 once the player has run out of HP",
		}),
	}
	reg.MustRegister(r.ticks, r.transitions, r.day, r.cash, r.netWorth, r.hp, r.events,
		r.posts, r.penalties, r.fines, r.orders, r.fees, r.gameOver)
	return r
}

func (r *Recorder) ObserveStep(rep game.StepReport) {
	if r == nil {
		return
	}
	r.ticks.Inc()
	if rep.Transition != nil {
		r.transitions.WithLabelValues(string(rep.Transition.To)).Inc()
	}
	r.day.Set(float64(rep.Day))
	r.cash.Set(game.MicrosToStonky(rep.CashMicros))
	r.netWorth.Set(game.MicrosToStonky(rep.NetWorthMicros))
	r.hp.Set(float64(rep.HP))
	r.events.WithLabelValues("scheduled").Add(float64(len(rep.Scheduled)))
	r.events.WithLabelValues("revealed").Add(float64(len(rep.Revealed)))
	r.events.WithLabelValues("expired").Add(float64(len(rep.Expired)))
	for _, p := range rep.Posts {
		r.posts.WithLabelValues(string(p.Board)).Inc()
	}
	for _, p := range rep.Penalties {
		r.penalties.WithLabelValues(p.Account).Inc()
		r.fines.Add(game.MicrosToStonky(p.FineMicros))
	}
	if rep.GameOver {
		r.gameOver.Set(1)
	} else {
		r.gameOver.Set(0)
	}
}

func (r *Recorder) ObserveOrder(res game.OrderResult) {
	if r == nil {
		return
	}
	r.orders.WithLabelValues(res.Side).Inc()
	r.fees.Add(game.MicrosToStonky(res.FeeMicros))
	r.cash.Set(game.MicrosToStonky(res.CashMicros))
}

// Handler serves reg in the OpenMetrics exposition format.
func Handler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
