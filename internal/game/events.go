package game

import (
	"math/rand"
	"sort"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventNews     EventKind = "news"
	EventCalendar EventKind = "calendar"
)

type EventState string

const (
	EventScheduled EventState = "scheduled"
	EventActive    EventState = "active"
	EventExpired   EventState = "expired"
)

// MarketWide targets every listed stock.
const MarketWide = "*"

type EventEffect struct {
	Symbol      string  `yaml:"symbol" json:"symbol"`
	Bias        float64 `yaml:"bias" json:"bias"`
	Magnitude   float64 `yaml:"magnitude" json:"magnitude"`
	VolumeBoost float64 `yaml:"volume_boost" json:"volume_boost"`
}

type EventDef struct {
	ID            string        `yaml:"id" json:"id"`
	Headline      string        `yaml:"headline" json:"headline"`
	Body          string        `yaml:"body" json:"body"`
	Kind          EventKind     `yaml:"kind" json:"kind"`
	Weight        float64       `yaml:"weight" json:"weight"`
	DurationTicks int           `yaml:"duration_ticks" json:"duration_ticks"`
	Effects       []EventEffect `yaml:"effects" json:"effects"`
}

type CalendarEntry struct {
	Day     int    `yaml:"day" json:"day"`
	EventID string `yaml:"event_id" json:"event_id"`
	AtTick  int    `yaml:"at_tick" json:"at_tick"`
}

type EventInstance struct {
	ID            string        `json:"id"`
	DefID         string        `json:"def_id"`
	Headline      string        `json:"headline"`
	Body          string        `json:"body"`
	Kind          EventKind     `json:"kind"`
	RevealTick    int64         `json:"reveal_tick"`
	DurationTicks int           `json:"duration_ticks"`
	Effects       []EventEffect `json:"effects"`
	State         EventState    `json:"state"`
	RevealedAt    int64         `json:"revealed_at,omitempty"`
	ExpiredAt     int64         `json:"expired_at,omitempty"`
}

func (e EventInstance) targets(symbol string) []EventEffect {
	var out []EventEffect
	for _, eff := range e.Effects {
		if eff.Symbol == MarketWide || eff.Symbol == symbol {
			out = append(out, eff)
		}
	}
	return out
}

// Influence is the combined effect of every active event on one stock.
type Influence struct {
	Bias        float64 `json:"bias"`
	Magnitude   float64 `json:"magnitude"`
	VolumeBoost float64 `json:"volume_boost"`
}

var NeutralInfluence = Influence{Magnitude: 1, VolumeBoost: 1}

const (
	maxEventBias      = 0.45
	minEventMagnitude = 0.25
)

type eventsState struct {
	Pending          []EventInstance `json:"pending"`
	Active           []EventInstance `json:"active"`
	History          []EventInstance `json:"history"`
	ScheduledThrough int             `json:"scheduled_through"`
}

// EventManager owns the reveal/expire lifecycle of event instances.
type EventManager struct {
	defs         map[string]EventDef
	news         []EventDef
	calendar     []CalendarEntry
	historyLimit int
	st           eventsState
}

func NewEventManager(defs []EventDef, calendar []CalendarEntry, historyLimit int) *EventManager {
	m := &EventManager{
		defs:         make(map[string]EventDef, len(defs)),
		calendar:     calendar,
		historyLimit: historyLimit,
	}
	for _, d := range defs {
		m.defs[d.ID] = d
		if d.Kind != EventCalendar && d.Weight > 0 {
			m.news = append(m.news, d)
		}
	}
	return m
}

func (m *EventManager) Schedule(def EventDef, revealTick int64) EventInstance {
	inst := EventInstance{
		ID:            uuid.NewString(),
		DefID:         def.ID,
		Headline:      def.Headline,
		Body:          def.Body,
		Kind:          def.Kind,
		RevealTick:    revealTick,
		DurationTicks: def.DurationTicks,
		Effects:       append([]EventEffect(nil), def.Effects...),
		State:         EventScheduled,
	}
	if inst.Kind == "" {
		inst.Kind = EventNews
	}
	i := sort.Search(len(m.st.Pending), func(i int) bool {
		return m.st.Pending[i].RevealTick > revealTick
	})
	m.st.Pending = append(m.st.Pending, EventInstance{})
	copy(m.st.Pending[i+1:], m.st.Pending[i:])
	m.st.Pending[i] = inst
	return inst
}

// ScheduleDay draws the day's news and calendar events and schedules their
// reveals inside the market-open window starting at openTick. A day is only
// ever scheduled once.
func (m *EventManager) ScheduleDay(day int, openTick int64, window, newsPerDay int, rng *rand.Rand) []EventInstance {
	if day <= m.st.ScheduledThrough || window <= 0 {
		return nil
	}
	m.st.ScheduledThrough = day

	var out []EventInstance
	for _, entry := range m.calendar {
		if entry.Day != day {
			continue
		}
		def, ok := m.defs[entry.EventID]
		if !ok {
			continue
		}
		at := entry.AtTick
		if at < 0 {
			at = 0
		}
		if at > window-1 {
			at = window - 1
		}
		out = append(out, m.Schedule(def, openTick+int64(at)))
	}

	for _, def := range pickWeighted(m.news, newsPerDay, rng) {
		out = append(out, m.Schedule(def, openTick+int64(rng.Intn(window))))
	}
	return out
}

// Step reveals due instances and expires finished ones. Each transition
// happens once per instance.
func (m *EventManager) Step(tick int64) (revealed, expired []EventInstance) {
	for len(m.st.Pending) > 0 && m.st.Pending[0].RevealTick <= tick {
		inst := m.st.Pending[0]
		m.st.Pending = m.st.Pending[1:]
		inst.State = EventActive
		inst.RevealedAt = tick
		m.st.Active = append(m.st.Active, inst)
		revealed = append(revealed, inst)
	}

	kept := m.st.Active[:0]
	for _, inst := range m.st.Active {
		if inst.RevealTick+int64(inst.DurationTicks) <= tick {
			inst.State = EventExpired
			inst.ExpiredAt = tick
			expired = append(expired, inst)
			m.archive(inst)
			continue
		}
		kept = append(kept, inst)
	}
	m.st.Active = kept
	return revealed, expired
}

func (m *EventManager) archive(inst EventInstance) {
	m.st.History = append([]EventInstance{inst}, m.st.History...)
	if m.historyLimit > 0 && len(m.st.History) > m.historyLimit {
		m.st.History = m.st.History[:m.historyLimit]
	}
}

func (m *EventManager) Influence(symbol string) Influence {
	out := NeutralInfluence
	for _, inst := range m.st.Active {
		for _, eff := range inst.targets(symbol) {
			out.Bias += eff.Bias
			out.Magnitude += eff.Magnitude
			out.VolumeBoost += eff.VolumeBoost
		}
	}
	out.Bias = clampFloat(out.Bias, -maxEventBias, maxEventBias)
	if out.Magnitude < minEventMagnitude {
		out.Magnitude = minEventMagnitude
	}
	if out.VolumeBoost < 0 {
		out.VolumeBoost = 0
	}
	return out
}

func (m *EventManager) Active() []EventInstance {
	return append([]EventInstance(nil), m.st.Active...)
}

func (m *EventManager) Upcoming() []EventInstance {
	return append([]EventInstance(nil), m.st.Pending...)
}

func (m *EventManager) History(limit int) []EventInstance {
	if limit <= 0 || limit > len(m.st.History) {
		limit = len(m.st.History)
	}
	return append([]EventInstance(nil), m.st.History[:limit]...)
}

func (m *EventManager) state() eventsState {
	return eventsState{
		Pending:          append([]EventInstance(nil), m.st.Pending...),
		Active:           append([]EventInstance(nil), m.st.Active...),
		History:          append([]EventInstance(nil), m.st.History...),
		ScheduledThrough: m.st.ScheduledThrough,
	}
}

func (m *EventManager) restore(st eventsState) {
	m.st = eventsState{
		Pending:          append([]EventInstance(nil), st.Pending...),
		Active:           append([]EventInstance(nil), st.Active...),
		History:          append([]EventInstance(nil), st.History...),
		ScheduledThrough: st.ScheduledThrough,
	}
	sort.SliceStable(m.st.Pending, func(i, j int) bool {
		return m.st.Pending[i].RevealTick < m.st.Pending[j].RevealTick
	})
}

// pickWeighted draws up to n defs without replacement, proportional to Weight.
func pickWeighted(defs []EventDef, n int, rng *rand.Rand) []EventDef {
	pool := append([]EventDef(nil), defs...)
	var out []EventDef
	for len(out) < n && len(pool) > 0 {
		total := 0.0
		for _, d := range pool {
			total += d.Weight
		}
		if total <= 0 {
			break
		}
		r := rng.Float64() * total
		idx := len(pool) - 1
		for i, d := range pool {
			r -= d.Weight
			if r < 0 {
				idx = i
				break
			}
		}
		out = append(out, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return out
}
