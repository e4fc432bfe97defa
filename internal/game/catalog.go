package game

import (
	"errors"
	"fmt"
	"regexp"
)

var accountRE = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

// Catalog is the static content a game is built from.
type Catalog struct {
	Stocks   []StockDef      `yaml:"stocks" json:"stocks"`
	Events   []EventDef      `yaml:"events" json:"events"`
	Calendar []CalendarEntry `yaml:"calendar" json:"calendar"`
	Expenses []ExpenseDef    `yaml:"expenses" json:"expenses"`
	Rest     []RestOption    `yaml:"rest" json:"rest"`
	Posts    PostTemplates   `yaml:"posts" json:"posts"`
}

func (c Catalog) Validate() error {
	var errs []error
	if len(c.Stocks) == 0 {
		errs = append(errs, errors.New("catalog has no stocks"))
	}
	symbols := make(map[string]struct{}, len(c.Stocks))
	for _, st := range c.Stocks {
		if err := ValidateSymbol(st.Symbol); err != nil {
			errs = append(errs, fmt.Errorf("stock %q: %w", st.Symbol, err))
			continue
		}
		if _, dup := symbols[st.Symbol]; dup {
			errs = append(errs, fmt.Errorf("stock %q: duplicate symbol", st.Symbol))
		}
		symbols[st.Symbol] = struct{}{}
		if st.Price <= 0 {
			errs = append(errs, fmt.Errorf("stock %q: price must be > 0", st.Symbol))
		}
		if st.BaseVolume < 0 {
			errs = append(errs, fmt.Errorf("stock %q: base_volume must be >= 0", st.Symbol))
		}
	}

	events := make(map[string]struct{}, len(c.Events))
	for _, ev := range c.Events {
		if ev.ID == "" {
			errs = append(errs, errors.New("event with empty id"))
			continue
		}
		if _, dup := events[ev.ID]; dup {
			errs = append(errs, fmt.Errorf("event %q: duplicate id", ev.ID))
		}
		events[ev.ID] = struct{}{}
		if ev.Kind != "" && ev.Kind != EventNews && ev.Kind != EventCalendar {
			errs = append(errs, fmt.Errorf("event %q: unknown kind %q", ev.ID, ev.Kind))
		}
		if ev.DurationTicks < 1 {
			errs = append(errs, fmt.Errorf("event %q: duration_ticks must be >= 1", ev.ID))
		}
		if ev.Weight < 0 {
			errs = append(errs, fmt.Errorf("event %q: weight must be >= 0", ev.ID))
		}
		for _, eff := range ev.Effects {
			if eff.Symbol == MarketWide {
				continue
			}
			if _, ok := symbols[eff.Symbol]; !ok {
				errs = append(errs, fmt.Errorf("event %q: effect targets unknown stock %q", ev.ID, eff.Symbol))
			}
		}
	}
	for _, entry := range c.Calendar {
		if entry.Day < 1 {
			errs = append(errs, fmt.Errorf("calendar %q: day must be >= 1", entry.EventID))
		}
		if _, ok := events[entry.EventID]; !ok {
			errs = append(errs, fmt.Errorf("calendar: unknown event %q", entry.EventID))
		}
	}

	for _, ex := range c.Expenses {
		if !accountRE.MatchString(ex.Account) {
			errs = append(errs, fmt.Errorf("expense %q: account must match %s", ex.Account, accountRE))
		}
		if ex.Amount <= 0 {
			errs = append(errs, fmt.Errorf("expense %q: amount must be > 0", ex.Account))
		}
		if ex.EveryDays < 1 || ex.FirstDay < 1 || ex.GraceDays < 0 {
			errs = append(errs, fmt.Errorf("expense %q: every_days and first_day must be >= 1, grace_days >= 0", ex.Account))
		}
		if ex.FineBps < 0 || ex.HPPenalty < 0 {
			errs = append(errs, fmt.Errorf("expense %q: fine_bps and hp_penalty must be >= 0", ex.Account))
		}
	}

	rest := make(map[string]struct{}, len(c.Rest))
	for _, r := range c.Rest {
		if r.ID == "" {
			errs = append(errs, errors.New("rest option with empty id"))
			continue
		}
		if _, dup := rest[r.ID]; dup {
			errs = append(errs, fmt.Errorf("rest %q: duplicate id", r.ID))
		}
		rest[r.ID] = struct{}{}
		if r.Cost < 0 || r.HP <= 0 {
			errs = append(errs, fmt.Errorf("rest %q: cost must be >= 0 and hp > 0", r.ID))
		}
	}
	return errors.Join(errs...)
}

func (c Catalog) restOption(id string) (RestOption, bool) {
	for _, r := range c.Rest {
		if r.ID == id {
			return r, true
		}
	}
	return RestOption{}, false
}

// Rules are the tunable numbers of one game; they travel with its save.
type Rules struct {
	Phases            PhaseDurations  `json:"phases"`
	Volatility        string          `json:"volatility"`
	NewsPerDay        int             `json:"news_per_day"`
	DailyHPDecay      int             `json:"daily_hp_decay"`
	StarterCashMicros int64           `json:"starter_cash_micros"`
	HistoryLimit      int             `json:"history_limit"`
	EventHistoryLimit int             `json:"event_history_limit"`
	Community         CommunityConfig `json:"community"`
}

func DefaultRules() Rules {
	return Rules{
		Phases:            DefaultPhaseDurations(),
		Volatility:        "mor",
		NewsPerDay:        3,
		DailyHPDecay:      3,
		StarterCashMicros: StarterCashMicros,
		HistoryLimit:      256,
		EventHistoryLimit: 50,
		Community:         DefaultCommunityConfig(),
	}
}

func (r Rules) Validate() error {
	if err := r.Phases.Validate(); err != nil {
		return err
	}
	if r.NewsPerDay < 0 || r.DailyHPDecay < 0 {
		return fmt.Errorf("news_per_day and daily_hp_decay must be >= 0")
	}
	if r.StarterCashMicros < 0 {
		return fmt.Errorf("starter cash must be >= 0")
	}
	return nil
}
