package game

import (
	"fmt"
	"math/rand"
	"time"
)

const SnapshotVersion = 1

// Snapshot is the full persisted state of a Session. Static content is not
// included; a snapshot is restored against the catalog that is loaded at
// the time.
type Snapshot struct {
	Version         int            `json:"version"`
	Seed            int64          `json:"seed"`
	SavedAt         time.Time      `json:"saved_at"`
	Rules           Rules          `json:"rules"`
	Clock           Clock          `json:"clock"`
	GameOver        bool           `json:"game_over"`
	OpenIndexMicros int64          `json:"open_index_micros"`
	Regime          Regime         `json:"regime"`
	Quotes          []Quote        `json:"quotes"`
	Events          eventsState    `json:"events"`
	Expenses        expensesState  `json:"expenses"`
	Player          playerState    `json:"player"`
	HTS             communityState `json:"hts"`
	Global          communityState `json:"global"`
}

func (s *Session) Snapshot(now time.Time) Snapshot {
	return Snapshot{
		Version:         SnapshotVersion,
		Seed:            s.seed,
		SavedAt:         now.UTC(),
		Rules:           s.rules,
		Clock:           s.clock,
		GameOver:        s.over,
		OpenIndexMicros: s.openIndex,
		Regime:          s.market.Regime,
		Quotes:          s.market.Quotes(),
		Events:          s.events.state(),
		Expenses:        s.expenses.state(),
		Player:          s.player.state(),
		HTS:             s.hts.state(),
		Global:          s.global.state(),
	}
}

// RestoreSession rebuilds a session from snap. The random stream is
// reseeded from the seed and the saved tick, so a restored game does not
// replay the draws of the game it was saved from.
func RestoreSession(cat Catalog, snap Snapshot) (*Session, error) {
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if err := snap.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	if snap.Clock.Day < 1 {
		return nil, fmt.Errorf("snapshot clock day must be >= 1")
	}

	s := newSession(cat, snap.Rules, snap.Seed)
	s.rng = rand.New(rand.NewSource(snap.Seed ^ snap.Clock.Tick))
	s.clock = snap.Clock
	s.over = snap.GameOver
	s.openIndex = snap.OpenIndexMicros
	s.market.restore(snap.Regime, snap.Quotes)
	s.events.restore(snap.Events)
	s.expenses.restore(snap.Expenses)
	s.player = restorePlayer(snap.Player)
	s.hts.restore(snap.HTS)
	s.global.restore(snap.Global)
	return s, nil
}

// Info summarizes a snapshot for slot listings.
func (snap Snapshot) Info(slot string) SlotInfo {
	prices := make(map[string]int64, len(snap.Quotes))
	for _, q := range snap.Quotes {
		prices[q.Symbol] = q.PriceMicros
	}
	worth := snap.Player.CashMicros
	for _, pos := range snap.Player.Positions {
		px, ok := prices[pos.Symbol]
		if !ok {
			continue
		}
		if v, err := notionalMicros(px, pos.QuantityUnits); err == nil {
			worth += v
		}
	}
	return SlotInfo{
		Slot:           slot,
		Day:            snap.Clock.Day,
		Tick:           snap.Clock.Tick,
		NetWorthMicros: worth,
		SavedAt:        snap.SavedAt,
	}
}
