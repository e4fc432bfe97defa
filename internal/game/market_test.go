package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func testStocks() []StockDef {
	return []StockDef{
		{Symbol: "NIMBUS", Name: "Nimbus Labs", Sector: "tech", Price: 100, BaseVolume: 1000},
		{Symbol: "COBOLT", Name: "Cobalt Dynamics", Sector: "materials", Price: 50, BaseVolume: 500},
	}
}

func TestNewMarketOrdersBySymbol(t *testing.T) {
	m := NewMarket(testStocks(), "", 16)
	quotes := m.Quotes()
	require.Len(t, quotes, 2)
	require.Equal(t, "COBOLT", quotes[0].Symbol)
	require.Equal(t, "NIMBUS", quotes[1].Symbol)
	require.Equal(t, "mor", m.Volatility)
	require.Equal(t, int64(75)*MicrosPerStonky, m.IndexMicros())
}

func TestIndexMicrosAtPriceCap(t *testing.T) {
	defs := make([]StockDef, 5)
	for i, sym := range []string{"AAAAAA", "BBBBBB", "CCCCCC", "DDDDDD", "EEEEEE"} {
		defs[i] = StockDef{Symbol: sym, Name: sym, Price: 1, BaseVolume: 1}
	}
	m := NewMarket(defs, "", 4)
	for _, q := range m.quotes {
		q.PriceMicros = maxPriceMicros
	}
	require.Equal(t, maxPriceMicros, m.IndexMicros())
}

func TestMarketStepBoundsHistoryAndPrice(t *testing.T) {
	m := NewMarket(testStocks(), "wild", 5)
	rng := rand.New(rand.NewSource(3))
	for tick := int64(1); tick <= 40; tick++ {
		m.Step(tick, 1, nil, rng)
	}
	for _, q := range m.Quotes() {
		require.Len(t, q.History, 5)
		require.Equal(t, int64(40), q.History[4].Tick)
		require.GreaterOrEqual(t, q.PriceMicros, minPriceMicros)
		require.GreaterOrEqual(t, q.HighMicros, q.PriceMicros)
		require.LessOrEqual(t, q.LowMicros, q.PriceMicros)
		require.Greater(t, q.DayVolume, int64(0))
	}
	for _, q := range m.latest() {
		require.Nil(t, q.History)
	}
}

func TestMarketStepIsDeterministicForSeed(t *testing.T) {
	run := func() []Quote {
		m := NewMarket(testStocks(), "mor", 8)
		rng := rand.New(rand.NewSource(42))
		for tick := int64(1); tick <= 100; tick++ {
			m.Step(tick, 1, nil, rng)
		}
		return m.Quotes()
	}
	require.Equal(t, run(), run())
}

func TestMarketEventBiasMovesPrices(t *testing.T) {
	run := func(bias float64) int64 {
		m := NewMarket(testStocks()[:1], "mor", 8)
		rng := rand.New(rand.NewSource(11))
		inf := func(string) Influence { return Influence{Bias: bias, Magnitude: 1, VolumeBoost: 1} }
		for tick := int64(1); tick <= 200; tick++ {
			m.Step(tick, 1, inf, rng)
		}
		q, _ := m.Quote("NIMBUS")
		return q.PriceMicros
	}
	require.Greater(t, run(maxEventBias), run(-maxEventBias))
}

func TestMarketOpenCloseDay(t *testing.T) {
	m := NewMarket(testStocks(), "calm", 8)
	rng := rand.New(rand.NewSource(5))
	m.OpenDay()
	for tick := int64(1); tick <= 10; tick++ {
		m.Step(tick, 1, nil, rng)
	}
	m.CloseDay()
	for _, q := range m.Quotes() {
		require.Equal(t, q.PriceMicros, q.PrevCloseMicros)
		require.Zero(t, q.DayChange())
		require.Zero(t, q.TickVolume)
	}
	m.OpenDay()
	for _, q := range m.Quotes() {
		require.Equal(t, q.PriceMicros, q.OpenMicros)
		require.Zero(t, q.DayVolume)
	}
}

func TestMarketQuoteLookup(t *testing.T) {
	m := NewMarket(testStocks(), "calm", 8)
	q, ok := m.Quote(" nimbus ")
	require.True(t, ok)
	require.Equal(t, "Nimbus Labs", q.Name)
	_, ok = m.Quote("ZZZZZZ")
	require.False(t, ok)
}

func TestEvolvePriceBoundsDownside(t *testing.T) {
	got := evolvePrice(100*MicrosPerStonky, -5, 0.25)
	require.Greater(t, got, int64(70)*MicrosPerStonky)
	require.Equal(t, int64(1), evolvePrice(0, 0.1, 0.25))
	require.Equal(t, minPriceMicros, clampPrice(1))
}
