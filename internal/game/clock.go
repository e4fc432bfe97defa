package game

import "fmt"

type Phase string

const (
	PhasePreMarket  Phase = "premarket"
	PhaseMarketOpen Phase = "market_open"
	PhaseSettlement Phase = "settlement"
)

func (p Phase) next() Phase {
	switch p {
	case PhasePreMarket:
		return PhaseMarketOpen
	case PhaseMarketOpen:
		return PhaseSettlement
	default:
		return PhasePreMarket
	}
}

// PhaseDurations is the length of each day phase in ticks.
type PhaseDurations struct {
	PreMarket  int `json:"premarket"`
	MarketOpen int `json:"market_open"`
	Settlement int `json:"settlement"`
}

func DefaultPhaseDurations() PhaseDurations {
	return PhaseDurations{PreMarket: 30, MarketOpen: 240, Settlement: 30}
}

func (d PhaseDurations) Validate() error {
	if d.PreMarket < 1 || d.MarketOpen < 1 || d.Settlement < 1 {
		return fmt.Errorf("phase durations must be >= 1 tick (got %d/%d/%d)", d.PreMarket, d.MarketOpen, d.Settlement)
	}
	return nil
}

func (d PhaseDurations) Length(p Phase) int {
	switch p {
	case PhasePreMarket:
		return d.PreMarket
	case PhaseMarketOpen:
		return d.MarketOpen
	default:
		return d.Settlement
	}
}

func (d PhaseDurations) DayLength() int {
	return d.PreMarket + d.MarketOpen + d.Settlement
}

type Transition struct {
	Day  int   `json:"day"`
	Tick int64 `json:"tick"`
	From Phase `json:"from"`
	To   Phase `json:"to"`
}

// Clock is the day-phase state machine. Day starts at 1; Tick counts every
// simulation step since the game began.
type Clock struct {
	Day       int   `json:"day"`
	Phase     Phase `json:"phase"`
	PhaseTick int   `json:"phase_tick"`
	Tick      int64 `json:"tick"`
}

func NewClock() Clock {
	return Clock{Day: 1, Phase: PhasePreMarket}
}

// Advance moves the clock forward one tick and reports a phase transition
// when the current phase's budget runs out. Day increments only when
// Settlement rolls over into the next PreMarket.
func (c *Clock) Advance(d PhaseDurations) (Transition, bool) {
	c.Tick++
	c.PhaseTick++
	if c.PhaseTick < d.Length(c.Phase) {
		return Transition{}, false
	}
	from := c.Phase
	c.Phase = from.next()
	c.PhaseTick = 0
	if from == PhaseSettlement {
		c.Day++
	}
	return Transition{Day: c.Day, Tick: c.Tick, From: from, To: c.Phase}, true
}

func (c Clock) TicksUntilNextPhase(d PhaseDurations) int {
	return d.Length(c.Phase) - c.PhaseTick
}

func (c Clock) IsMarketOpen() bool {
	return c.Phase == PhaseMarketOpen
}
