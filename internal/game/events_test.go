package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventRevealAndExpireOnce(t *testing.T) {
	m := NewEventManager(nil, nil, 10)
	m.Schedule(EventDef{ID: "cut", Headline: "Rates cut", DurationTicks: 3}, 5)

	revealed, expired := m.Step(4)
	require.Empty(t, revealed)
	require.Empty(t, expired)

	revealed, expired = m.Step(5)
	require.Len(t, revealed, 1)
	require.Empty(t, expired)
	require.Equal(t, EventActive, revealed[0].State)
	require.Equal(t, int64(5), revealed[0].RevealedAt)
	require.Len(t, m.Active(), 1)

	_, expired = m.Step(7)
	require.Empty(t, expired)

	_, expired = m.Step(8)
	require.Len(t, expired, 1)
	require.Equal(t, EventExpired, expired[0].State)
	require.Empty(t, m.Active())

	revealed, expired = m.Step(8)
	require.Empty(t, revealed)
	require.Empty(t, expired)
	require.Len(t, m.History(0), 1)
}

func TestEventScheduleKeepsRevealOrder(t *testing.T) {
	m := NewEventManager(nil, nil, 10)
	m.Schedule(EventDef{ID: "c", DurationTicks: 1}, 9)
	m.Schedule(EventDef{ID: "a", DurationTicks: 1}, 2)
	m.Schedule(EventDef{ID: "b", DurationTicks: 1}, 5)

	var ids []string
	for _, inst := range m.Upcoming() {
		ids = append(ids, inst.DefID)
	}
	require.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestEventInfluenceAggregatesAndClamps(t *testing.T) {
	m := NewEventManager(nil, nil, 10)
	m.Schedule(EventDef{ID: "wide", DurationTicks: 10, Effects: []EventEffect{{Symbol: MarketWide, Bias: 0.3, Magnitude: 0.5}}}, 1)
	m.Schedule(EventDef{ID: "one", DurationTicks: 10, Effects: []EventEffect{{Symbol: "NIMBUS", Bias: 0.3, VolumeBoost: 2}}}, 1)
	m.Step(1)

	nimbus := m.Influence("NIMBUS")
	require.InDelta(t, maxEventBias, nimbus.Bias, 1e-9)
	require.InDelta(t, 1.5, nimbus.Magnitude, 1e-9)
	require.InDelta(t, 3.0, nimbus.VolumeBoost, 1e-9)

	cobolt := m.Influence("COBOLT")
	require.InDelta(t, 0.3, cobolt.Bias, 1e-9)
	require.InDelta(t, 1.0, cobolt.VolumeBoost, 1e-9)

	require.Equal(t, NeutralInfluence, NewEventManager(nil, nil, 0).Influence("NIMBUS"))
}

func TestEventInfluenceMagnitudeFloor(t *testing.T) {
	m := NewEventManager(nil, nil, 10)
	m.Schedule(EventDef{ID: "calm", DurationTicks: 10, Effects: []EventEffect{{Symbol: MarketWide, Magnitude: -5}}}, 0)
	m.Step(0)
	require.InDelta(t, minEventMagnitude, m.Influence("NIMBUS").Magnitude, 1e-9)
}

func TestScheduleDayOncePerDay(t *testing.T) {
	defs := []EventDef{
		{ID: "news", Kind: EventNews, Weight: 1, DurationTicks: 2},
		{ID: "earn", Kind: EventCalendar, DurationTicks: 2},
	}
	calendar := []CalendarEntry{{Day: 1, EventID: "earn", AtTick: 50}}
	m := NewEventManager(defs, calendar, 10)
	rng := rand.New(rand.NewSource(1))

	got := m.ScheduleDay(1, 100, 10, 1, rng)
	require.Len(t, got, 2)
	for _, inst := range got {
		require.GreaterOrEqual(t, inst.RevealTick, int64(100))
		require.Less(t, inst.RevealTick, int64(110))
		if inst.DefID == "earn" {
			require.Equal(t, int64(109), inst.RevealTick)
			require.Equal(t, EventCalendar, inst.Kind)
		}
	}

	require.Nil(t, m.ScheduleDay(1, 100, 10, 1, rng))
	require.Len(t, m.ScheduleDay(2, 200, 10, 1, rng), 1)
}

func TestPickWeightedWithoutReplacement(t *testing.T) {
	defs := []EventDef{{ID: "a", Weight: 1}, {ID: "b", Weight: 5}, {ID: "c", Weight: 0.5}}
	rng := rand.New(rand.NewSource(7))
	got := pickWeighted(defs, 10, rng)
	require.Len(t, got, 3)
	seen := map[string]bool{}
	for _, d := range got {
		require.False(t, seen[d.ID])
		seen[d.ID] = true
	}
	require.Empty(t, pickWeighted([]EventDef{{ID: "z", Weight: 0}}, 1, rng))
}

func TestEventStateRestore(t *testing.T) {
	m := NewEventManager(nil, nil, 10)
	m.Schedule(EventDef{ID: "x", DurationTicks: 2}, 3)
	m.Schedule(EventDef{ID: "y", DurationTicks: 2}, 1)
	m.Step(1)

	other := NewEventManager(nil, nil, 10)
	other.restore(m.state())
	require.Equal(t, m.Active(), other.Active())
	revealed, _ := other.Step(3)
	require.Len(t, revealed, 1)
	require.Equal(t, "x", revealed[0].DefID)
}
