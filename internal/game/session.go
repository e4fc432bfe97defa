package game

import (
	"fmt"
	"math/rand"
	"strings"
)

// StepReport describes everything that happened during one tick.
type StepReport struct {
	Tick           int64            `json:"tick"`
	Day            int              `json:"day"`
	Phase          Phase            `json:"phase"`
	Transition     *Transition      `json:"transition,omitempty"`
	Scheduled      []EventInstance  `json:"scheduled,omitempty"`
	Revealed       []EventInstance  `json:"revealed,omitempty"`
	Expired        []EventInstance  `json:"expired,omitempty"`
	Issued         []ExpenseRuntime `json:"issued,omitempty"`
	Penalties      []Penalty        `json:"penalties,omitempty"`
	Posts          []Post           `json:"posts,omitempty"`
	CashMicros     int64            `json:"cash_micros"`
	NetWorthMicros int64            `json:"net_worth_micros"`
	HP             int              `json:"hp"`
	GameOver       bool             `json:"game_over"`
}

// Session is one running game: the clock drives the phase hooks, and every
// other component is advanced from Step. A Session is not safe for
// concurrent use; Service serializes access.
type Session struct {
	rules     Rules
	catalog   Catalog
	seed      int64
	rng       *rand.Rand
	clock     Clock
	market    *Market
	events    *EventManager
	expenses  *ExpenseManager
	player    *Player
	hts       *HTSCommunity
	global    *GlobalCommunity
	openIndex int64
	over      bool
}

func NewSession(cat Catalog, rules Rules, seed int64) (*Session, error) {
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	s := newSession(cat, rules, seed)
	s.rng = rand.New(rand.NewSource(seed))
	s.player = NewPlayer(rules.StarterCashMicros)
	var rep StepReport
	s.beginDay(&rep)
	return s, nil
}

func newSession(cat Catalog, rules Rules, seed int64) *Session {
	return &Session{
		rules:    rules,
		catalog:  cat,
		seed:     seed,
		clock:    NewClock(),
		market:   NewMarket(cat.Stocks, rules.Volatility, rules.HistoryLimit),
		events:   NewEventManager(cat.Events, cat.Calendar, rules.EventHistoryLimit),
		expenses: NewExpenseManager(cat.Expenses),
		hts:      NewHTSCommunity(rules.Community, cat.Posts),
		global:   NewGlobalCommunity(rules.Community, cat.Posts),
	}
}

// Step advances the game by one tick. Once the game is over it only reports
// the final state.
func (s *Session) Step() StepReport {
	if s.over {
		return s.fill(StepReport{})
	}

	var rep StepReport
	if tr, changed := s.clock.Advance(s.rules.Phases); changed {
		rep.Transition = &tr
		s.enterPhase(tr, &rep)
	}

	tick, day := s.clock.Tick, s.clock.Day
	rep.Revealed, rep.Expired = s.events.Step(tick)
	for _, inst := range rep.Revealed {
		s.global.OnEvent(tick, day, inst, s.market.IndexMicros(), s.rng)
	}

	if s.clock.IsMarketOpen() {
		s.market.Step(tick, day, s.events.Influence, s.rng)
		s.hts.Observe(tick, day, s.market.latest(), s.rng)
		s.global.Observe(tick, day, s.market.IndexMicros(), s.openIndex, s.rng)
	}

	rep.Posts = append(rep.Posts, s.hts.Publish(tick)...)
	rep.Posts = append(rep.Posts, s.global.Publish(tick)...)

	s.player.updatePeak(s.netWorth())
	if s.player.hp <= 0 {
		s.over = true
	}
	return s.fill(rep)
}

func (s *Session) fill(rep StepReport) StepReport {
	rep.Tick = s.clock.Tick
	rep.Day = s.clock.Day
	rep.Phase = s.clock.Phase
	rep.CashMicros = s.player.cash
	rep.NetWorthMicros = s.netWorth()
	rep.HP = s.player.hp
	rep.GameOver = s.over
	return rep
}

func (s *Session) enterPhase(tr Transition, rep *StepReport) {
	switch tr.To {
	case PhasePreMarket:
		s.beginDay(rep)
	case PhaseMarketOpen:
		s.market.OpenDay()
		s.openIndex = s.market.IndexMicros()
		s.global.OnOpen(tr.Tick, tr.Day, s.openIndex, s.rng)
	case PhaseSettlement:
		rep.Penalties = s.expenses.Settle(tr.Day)
		for _, p := range rep.Penalties {
			s.player.adjustHP(-p.HP)
		}
		index := s.market.IndexMicros()
		change := 0.0
		if s.openIndex > 0 {
			change = float64(index-s.openIndex) / float64(s.openIndex)
		}
		s.market.CloseDay()
		s.global.OnClose(tr.Tick, tr.Day, change, index, s.rng)
	}
}

// beginDay runs the PreMarket hook: daily wear on HP, new bills and the
// day's event draw. Events reveal inside the coming MarketOpen window.
func (s *Session) beginDay(rep *StepReport) {
	day := s.clock.Day
	if day > 1 {
		s.player.adjustHP(-s.rules.DailyHPDecay)
	}
	rep.Issued = s.expenses.Issue(day)
	openTick := s.clock.Tick + int64(s.rules.Phases.PreMarket-s.clock.PhaseTick)
	rep.Scheduled = s.events.ScheduleDay(day, openTick, s.rules.Phases.MarketOpen, s.rules.NewsPerDay, s.rng)
}

func (s *Session) netWorth() int64 {
	return s.player.cash + s.player.holdingsMicros(s.market.price)
}

func (s *Session) PlaceOrder(in OrderInput) (OrderResult, error) {
	var out OrderResult
	if s.over {
		return out, ErrGameOver
	}
	symbol := strings.ToUpper(strings.TrimSpace(in.Symbol))
	if err := ValidateSymbol(symbol); err != nil {
		return out, err
	}
	side := strings.ToLower(strings.TrimSpace(in.Side))
	if side != "buy" && side != "sell" {
		return out, fmt.Errorf("%w: side must be buy or sell", ErrInvalidInput)
	}
	if in.QuantityUnits <= 0 {
		return out, fmt.Errorf("%w: quantity must be > 0", ErrInvalidInput)
	}
	if !s.clock.IsMarketOpen() {
		return out, ErrMarketClosed
	}
	price, ok := s.market.price(symbol)
	if !ok {
		return out, ErrStockNotFound
	}
	if err := s.player.checkIdempotency(in.IdempotencyKey); err != nil {
		return out, err
	}

	var err error
	if side == "buy" {
		out, err = s.player.buy(symbol, in.QuantityUnits, price)
	} else {
		out, err = s.player.sell(symbol, in.QuantityUnits, price)
	}
	if err != nil {
		return OrderResult{}, err
	}
	s.player.rememberKey(in.IdempotencyKey)

	view := OrderView{
		Symbol:        symbol,
		Side:          side,
		QuantityUnits: in.QuantityUnits,
		PriceMicros:   price,
		FeeMicros:     out.FeeMicros,
		Day:           s.clock.Day,
		Tick:          s.clock.Tick,
	}
	s.player.recordOrder(view)
	out.OrderID = s.player.orders[0].ID
	out.Side = side
	out.Symbol = symbol
	out.QuantityUnits = in.QuantityUnits
	s.player.updatePeak(s.netWorth())
	return out, nil
}

// PayExpense transfers cash to an account; the expense queue decides how
// much of it is kept. Change never leaves the wallet.
func (s *Session) PayExpense(account string, amountMicros int64) (PayExpenseResult, error) {
	if s.over {
		return PayExpenseResult{}, ErrGameOver
	}
	if amountMicros <= 0 {
		return PayExpenseResult{}, fmt.Errorf("%w: amount must be > 0", ErrInvalidInput)
	}
	if !s.expenses.Known(account) {
		return PayExpenseResult{}, fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}
	if s.player.cash < amountMicros {
		return PayExpenseResult{}, ErrInsufficientFunds
	}
	alloc, err := s.expenses.Apply(TransferResult{Account: account, AmountMicros: amountMicros, Day: s.clock.Day})
	if err != nil {
		return PayExpenseResult{}, err
	}
	if err := s.player.spend(alloc.AppliedMicros); err != nil {
		return PayExpenseResult{}, err
	}
	return PayExpenseResult{Allocation: alloc, CashMicros: s.player.cash}, nil
}

func (s *Session) Rest(optionID string) (RestResult, error) {
	if s.over {
		return RestResult{}, ErrGameOver
	}
	opt, ok := s.catalog.restOption(strings.TrimSpace(optionID))
	if !ok {
		return RestResult{}, fmt.Errorf("%w: %s", ErrUnknownRestOption, optionID)
	}
	if err := s.player.spend(StonkyToMicros(opt.Cost)); err != nil {
		return RestResult{}, err
	}
	hp := s.player.adjustHP(opt.HP)
	return RestResult{Option: opt, HP: hp, CashMicros: s.player.cash}, nil
}

func (s *Session) SetCash(micros int64) error {
	if micros < 0 {
		return fmt.Errorf("%w: cash must be >= 0", ErrInvalidInput)
	}
	s.player.cash = micros
	s.player.updatePeak(s.netWorth())
	return nil
}

func (s *Session) RestOptions() []RestOption {
	return append([]RestOption(nil), s.catalog.Rest...)
}

func (s *Session) Over() bool { return s.over }

func (s *Session) Clock() ClockView {
	return ClockView{
		Clock:               s.clock,
		TicksUntilNextPhase: s.clock.TicksUntilNextPhase(s.rules.Phases),
		Phases:              s.rules.Phases,
		GameOver:            s.over,
	}
}

func (s *Session) Dashboard() Dashboard {
	out := Dashboard{
		Day:                s.clock.Day,
		Phase:              s.clock.Phase,
		Tick:               s.clock.Tick,
		CashMicros:         s.player.cash,
		NetWorthMicros:     s.netWorth(),
		PeakNetWorthMicros: s.player.peak,
		HP:                 s.player.hp,
		GameOver:           s.over,
		Regime:             s.market.Regime,
		IndexMicros:        s.market.IndexMicros(),
		ActiveEvents:       len(s.events.Active()),
		Positions:          make([]PositionView, 0, len(s.player.positions)),
	}
	for _, rt := range s.expenses.Due() {
		out.OutstandingMicros += rt.RemainingMicros
		if rt.Overdue {
			out.OverdueBills++
		}
	}
	for _, pos := range s.player.sortedPositions() {
		q, ok := s.market.Quote(pos.Symbol)
		if !ok {
			continue
		}
		value, _ := notionalMicros(q.PriceMicros, pos.QuantityUnits)
		cost, _ := notionalMicros(pos.AvgPriceMicros, pos.QuantityUnits)
		out.Positions = append(out.Positions, PositionView{
			Symbol:             pos.Symbol,
			DisplayName:        q.Name,
			QuantityUnits:      pos.QuantityUnits,
			AvgPriceMicros:     pos.AvgPriceMicros,
			CurrentPriceMicros: q.PriceMicros,
			UnrealizedMicros:   value - cost,
		})
	}
	return out
}

func (s *Session) Stocks() []StockView {
	quotes := s.market.latest()
	out := make([]StockView, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, stockView(q))
	}
	return out
}

func (s *Session) StockDetail(symbol string) (StockDetail, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := ValidateSymbol(symbol); err != nil {
		return StockDetail{}, err
	}
	q, ok := s.market.Quote(symbol)
	if !ok {
		return StockDetail{}, ErrStockNotFound
	}
	return StockDetail{
		StockView:       stockView(q),
		OpenMicros:      q.OpenMicros,
		HighMicros:      q.HighMicros,
		LowMicros:       q.LowMicros,
		PrevCloseMicros: q.PrevCloseMicros,
		Series:          q.History,
	}, nil
}

func stockView(q Quote) StockView {
	return StockView{
		Symbol:             q.Symbol,
		DisplayName:        q.Name,
		Sector:             q.Sector,
		CurrentPriceMicros: q.PriceMicros,
		DayChange:          q.DayChange(),
		DayVolume:          q.DayVolume,
	}
}

func (s *Session) Events(historyLimit int) EventsView {
	return EventsView{
		Active:   s.events.Active(),
		History:  s.events.History(historyLimit),
		Upcoming: len(s.events.Upcoming()),
	}
}

func (s *Session) Expenses() ExpensesView {
	out := ExpensesView{Bills: s.expenses.Due()}
	if out.Bills == nil {
		out.Bills = []ExpenseRuntime{}
	}
	for _, rt := range out.Bills {
		out.TotalMicros += rt.RemainingMicros
	}
	return out
}

func (s *Session) Orders() []OrderView {
	return append([]OrderView(nil), s.player.orders...)
}

func (s *Session) Feed(board Board, symbol string, limit int) ([]Post, error) {
	switch board {
	case BoardHTS:
		return s.hts.Feed(symbol, limit), nil
	case BoardGlobal:
		return s.global.Feed(symbol, limit), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBoard, board)
	}
}
