package game

import "time"

type Dashboard struct {
	Slot               string         `json:"slot"`
	Day                int            `json:"day"`
	Phase              Phase          `json:"phase"`
	Tick               int64          `json:"tick"`
	CashMicros         int64          `json:"cash_micros"`
	NetWorthMicros     int64          `json:"net_worth_micros"`
	PeakNetWorthMicros int64          `json:"peak_net_worth_micros"`
	HP                 int            `json:"hp"`
	GameOver           bool           `json:"game_over"`
	Regime             Regime         `json:"regime"`
	IndexMicros        int64          `json:"index_micros"`
	OutstandingMicros  int64          `json:"outstanding_micros"`
	OverdueBills       int            `json:"overdue_bills"`
	ActiveEvents       int            `json:"active_events"`
	Positions          []PositionView `json:"positions"`
}

type PositionView struct {
	Symbol             string `json:"symbol"`
	DisplayName        string `json:"display_name"`
	QuantityUnits      int64  `json:"quantity_units"`
	AvgPriceMicros     int64  `json:"avg_price_micros"`
	CurrentPriceMicros int64  `json:"current_price_micros"`
	UnrealizedMicros   int64  `json:"unrealized_micros"`
}

type StockView struct {
	Symbol             string  `json:"symbol"`
	DisplayName        string  `json:"display_name"`
	Sector             string  `json:"sector"`
	CurrentPriceMicros int64   `json:"current_price_micros"`
	DayChange          float64 `json:"day_change"`
	DayVolume          int64   `json:"day_volume"`
}

type StockDetail struct {
	StockView
	OpenMicros      int64        `json:"open_micros"`
	HighMicros      int64        `json:"high_micros"`
	LowMicros       int64        `json:"low_micros"`
	PrevCloseMicros int64        `json:"prev_close_micros"`
	Series          []PricePoint `json:"series"`
}

type ClockView struct {
	Clock
	TicksUntilNextPhase int            `json:"ticks_until_next_phase"`
	Phases              PhaseDurations `json:"phases"`
	GameOver            bool           `json:"game_over"`
}

type OrderInput struct {
	Symbol         string
	Side           string
	QuantityUnits  int64
	IdempotencyKey string
}

type OrderResult struct {
	OrderID        string `json:"order_id"`
	Side           string `json:"side"`
	Symbol         string `json:"symbol"`
	QuantityUnits  int64  `json:"quantity_units"`
	PriceMicros    int64  `json:"price_micros"`
	NotionalMicros int64  `json:"notional_micros"`
	FeeMicros      int64  `json:"fee_micros"`
	CashMicros     int64  `json:"cash_micros"`
}

type OrderView struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	QuantityUnits int64  `json:"quantity_units"`
	PriceMicros   int64  `json:"price_micros"`
	FeeMicros     int64  `json:"fee_micros"`
	Day           int    `json:"day"`
	Tick          int64  `json:"tick"`
}

type EventsView struct {
	Active   []EventInstance `json:"active"`
	History  []EventInstance `json:"history"`
	Upcoming int             `json:"upcoming"`
}

type ExpensesView struct {
	Bills       []ExpenseRuntime `json:"bills"`
	TotalMicros int64            `json:"total_micros"`
}

type PayExpenseResult struct {
	Allocation
	CashMicros int64 `json:"cash_micros"`
}

type RestResult struct {
	Option     RestOption `json:"option"`
	HP         int        `json:"hp"`
	CashMicros int64      `json:"cash_micros"`
}

type AdvanceResult struct {
	Ticks       int              `json:"ticks"`
	Clock       Clock            `json:"clock"`
	Transitions []Transition     `json:"transitions"`
	Revealed    []EventInstance  `json:"revealed"`
	Expired     int              `json:"expired"`
	Issued      []ExpenseRuntime `json:"issued"`
	Penalties   []Penalty        `json:"penalties"`
	Posts       int              `json:"posts"`
	GameOver    bool             `json:"game_over"`
}

type SlotInfo struct {
	Slot           string    `json:"slot"`
	Day            int       `json:"day"`
	Tick           int64     `json:"tick"`
	NetWorthMicros int64     `json:"net_worth_micros"`
	SavedAt        time.Time `json:"saved_at"`
}
