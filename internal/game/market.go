package game

import (
	"math"
	"math/big"
	"math/rand"
	"sort"
	"strings"
)

type Regime string

const (
	RegimeBull    Regime = "bull"
	RegimeNeutral Regime = "neutral"
	RegimeBear    Regime = "bear"
)

const (
	minPriceMicros = int64(10_000)                // 0.01 stonky
	maxPriceMicros = int64(2_000_000_000_000_000) // 2 trillion stonky
)

type StockDef struct {
	Symbol     string  `yaml:"symbol" json:"symbol"`
	Name       string  `yaml:"name" json:"name"`
	Sector     string  `yaml:"sector" json:"sector"`
	Price      float64 `yaml:"price" json:"price"`
	BaseVolume int64   `yaml:"base_volume" json:"base_volume"`
}

type PricePoint struct {
	Tick        int64 `json:"tick"`
	Day         int   `json:"day"`
	PriceMicros int64 `json:"price_micros"`
}

type Quote struct {
	Symbol          string       `json:"symbol"`
	Name            string       `json:"name"`
	Sector          string       `json:"sector"`
	PriceMicros     int64        `json:"price_micros"`
	AnchorMicros    int64        `json:"anchor_micros"`
	OpenMicros      int64        `json:"open_micros"`
	PrevCloseMicros int64        `json:"prev_close_micros"`
	HighMicros      int64        `json:"high_micros"`
	LowMicros       int64        `json:"low_micros"`
	BaseVolume      int64        `json:"base_volume"`
	DayVolume       int64        `json:"day_volume"`
	TickVolume      int64        `json:"tick_volume"`
	LastReturn      float64      `json:"last_return"`
	History         []PricePoint `json:"history"`
}

// DayChange is the fractional move since the previous close.
func (q Quote) DayChange() float64 {
	if q.PrevCloseMicros <= 0 {
		return 0
	}
	return float64(q.PriceMicros-q.PrevCloseMicros) / float64(q.PrevCloseMicros)
}

// Market is the per-tick price simulator.
type Market struct {
	Regime       Regime
	Volatility   string
	quotes       map[string]*Quote
	order        []string
	historyLimit int
}

func NewMarket(stocks []StockDef, volatility string, historyLimit int) *Market {
	m := &Market{
		Regime:       RegimeNeutral,
		Volatility:   NormalizeVolatility(volatility),
		quotes:       make(map[string]*Quote, len(stocks)),
		historyLimit: historyLimit,
	}
	for _, st := range stocks {
		price := StonkyToMicros(st.Price)
		q := &Quote{
			Symbol:          st.Symbol,
			Name:            st.Name,
			Sector:          st.Sector,
			PriceMicros:     price,
			AnchorMicros:    price,
			OpenMicros:      price,
			PrevCloseMicros: price,
			HighMicros:      price,
			LowMicros:       price,
			BaseVolume:      st.BaseVolume,
		}
		m.quotes[st.Symbol] = q
		m.order = append(m.order, st.Symbol)
	}
	sort.Strings(m.order)
	return m
}

// Step moves every price one tick. influence supplies the aggregated event
// effect per symbol.
func (m *Market) Step(tick int64, day int, influence func(symbol string) Influence, rng *rand.Rand) {
	params := volatilityParams(m.Volatility)
	if rng.Float64() < params.RegimeSwitchProb {
		m.Regime = randomRegime(rng.Float64())
	}
	drift := regimeDrift(m.Regime)

	for _, sym := range m.order {
		q := m.quotes[sym]
		inf := NeutralInfluence
		if influence != nil {
			inf = influence(sym)
		}

		anchorRet := 0.30*drift + params.AnchorNoiseScale*normalish(rng.Float64()) + inf.Bias*params.AnchorNoiseScale
		nextAnchor := clampPrice(evolvePrice(q.AnchorMicros, anchorRet, params.MaxDropPerTick))

		noise := params.NoiseScale * math.Abs(normalish(rng.Float64())) * inf.Magnitude
		if rng.Float64() >= 0.5+inf.Bias {
			noise = -noise
		}
		ret := drift + noise + meanReversion(q.PriceMicros, q.AnchorMicros, params.MeanReversion)
		if rng.Float64() < params.ShockProb {
			ret += signedShock(rng.Float64(), rng.Float64()+inf.Bias, params.ShockScale*inf.Magnitude)
		}
		if rng.Float64() < params.ExtremeShockProb {
			ret += signedShock(rng.Float64(), rng.Float64()+inf.Bias, params.ExtremeShockScale)
		}

		prev := q.PriceMicros
		next := clampPrice(evolvePrice(prev, ret, params.MaxDropPerTick))
		q.PriceMicros = next
		q.AnchorMicros = nextAnchor
		q.LastReturn = float64(next-prev) / float64(prev)

		spread := 0.6 + 0.8*rng.Float64()
		q.TickVolume = int64(float64(q.BaseVolume) * (1 + 12*math.Abs(q.LastReturn)) * inf.VolumeBoost * spread)
		q.DayVolume += q.TickVolume
		if next > q.HighMicros {
			q.HighMicros = next
		}
		if next < q.LowMicros {
			q.LowMicros = next
		}
		q.History = append(q.History, PricePoint{Tick: tick, Day: day, PriceMicros: next})
		if m.historyLimit > 0 && len(q.History) > m.historyLimit {
			q.History = q.History[len(q.History)-m.historyLimit:]
		}
	}
}

func (m *Market) OpenDay() {
	for _, q := range m.quotes {
		q.OpenMicros = q.PriceMicros
		q.HighMicros = q.PriceMicros
		q.LowMicros = q.PriceMicros
		q.DayVolume = 0
		q.TickVolume = 0
		q.LastReturn = 0
	}
}

func (m *Market) CloseDay() {
	for _, q := range m.quotes {
		q.PrevCloseMicros = q.PriceMicros
		q.TickVolume = 0
		q.LastReturn = 0
	}
}

func (m *Market) Quote(symbol string) (Quote, bool) {
	q, ok := m.quotes[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return Quote{}, false
	}
	return copyQuote(q), true
}

func (m *Market) Quotes() []Quote {
	out := make([]Quote, 0, len(m.order))
	for _, sym := range m.order {
		out = append(out, copyQuote(m.quotes[sym]))
	}
	return out
}

// latest returns the quotes without their price history.
func (m *Market) latest() []Quote {
	out := make([]Quote, 0, len(m.order))
	for _, sym := range m.order {
		q := *m.quotes[sym]
		q.History = nil
		out = append(out, q)
	}
	return out
}

func (m *Market) price(symbol string) (int64, bool) {
	q, ok := m.quotes[symbol]
	if !ok {
		return 0, false
	}
	return q.PriceMicros, true
}

// IndexMicros is the equal-weight average price of every stock.
func (m *Market) IndexMicros() int64 {
	if len(m.quotes) == 0 {
		return 0
	}
	sum := new(big.Int)
	for _, q := range m.quotes {
		sum.Add(sum, big.NewInt(q.PriceMicros))
	}
	return sum.Div(sum, big.NewInt(int64(len(m.quotes)))).Int64()
}

func (m *Market) restore(regime Regime, quotes []Quote) {
	if regime != "" {
		m.Regime = regime
	}
	for _, q := range quotes {
		cp := q
		cp.History = append([]PricePoint(nil), q.History...)
		if _, ok := m.quotes[q.Symbol]; !ok {
			m.order = append(m.order, q.Symbol)
		}
		m.quotes[q.Symbol] = &cp
	}
	sort.Strings(m.order)
}

func copyQuote(q *Quote) Quote {
	out := *q
	out.History = append([]PricePoint(nil), q.History...)
	return out
}

func NormalizeVolatility(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "calm", "mor", "wild":
		return v
	default:
		return "mor"
	}
}

func randomRegime(seed float64) Regime {
	switch {
	case seed < 0.33:
		return RegimeBear
	case seed < 0.66:
		return RegimeNeutral
	default:
		return RegimeBull
	}
}

func regimeDrift(regime Regime) float64 {
	switch regime {
	case RegimeBull:
		return 0.00035
	case RegimeBear:
		return -0.00035
	default:
		return 0
	}
}

func meanReversion(price, anchor int64, strength float64) float64 {
	if anchor <= 0 {
		return 0
	}
	return strength * (float64(anchor-price) / float64(anchor))
}

func normalish(seed float64) float64 {
	return (seed + seed - 1)
}

func signedShock(magSeed, signSeed, base float64) float64 {
	mag := base * (0.35 + 2.8*magSeed*magSeed)
	if signSeed < 0.5 {
		return -mag
	}
	return mag
}

func evolvePrice(priceMicros int64, ret, maxDropPerTick float64) int64 {
	if priceMicros <= 0 {
		return 1
	}
	// Bound only the downside; upside can run.
	if ret < -maxDropPerTick {
		ret = -maxDropPerTick
	}
	next := int64(math.Round(float64(priceMicros) * math.Exp(ret)))
	if next < 1 {
		next = 1
	}
	return next
}

func clampPrice(p int64) int64 {
	if p < minPriceMicros {
		return minPriceMicros
	}
	if p > maxPriceMicros {
		return maxPriceMicros
	}
	return p
}

type marketDynamics struct {
	NoiseScale        float64
	ShockProb         float64
	ShockScale        float64
	ExtremeShockProb  float64
	ExtremeShockScale float64
	MeanReversion     float64
	AnchorNoiseScale  float64
	RegimeSwitchProb  float64
	MaxDropPerTick    float64
}

// Tuned for a few hundred trading ticks per in-game day.
func volatilityParams(mode string) marketDynamics {
	switch NormalizeVolatility(mode) {
	case "calm":
		return marketDynamics{
			NoiseScale:        0.0020,
			ShockProb:         0.004,
			ShockScale:        0.010,
			ExtremeShockProb:  0.0004,
			ExtremeShockScale: 0.040,
			MeanReversion:     0.004,
			AnchorNoiseScale:  0.0010,
			RegimeSwitchProb:  0.002,
			MaxDropPerTick:    0.15,
		}
	case "wild":
		return marketDynamics{
			NoiseScale:        0.0075,
			ShockProb:         0.015,
			ShockScale:        0.030,
			ExtremeShockProb:  0.0025,
			ExtremeShockScale: 0.120,
			MeanReversion:     0.0015,
			AnchorNoiseScale:  0.0030,
			RegimeSwitchProb:  0.006,
			MaxDropPerTick:    0.35,
		}
	default:
		return marketDynamics{
			NoiseScale:        0.0040,
			ShockProb:         0.008,
			ShockScale:        0.018,
			ExtremeShockProb:  0.0010,
			ExtremeShockScale: 0.070,
			MeanReversion:     0.0025,
			AnchorNoiseScale:  0.0018,
			RegimeSwitchProb:  0.004,
			MaxDropPerTick:    0.25,
		}
	}
}
