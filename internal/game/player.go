package game

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const idempotencyWindow = 512

type RestOption struct {
	ID   string  `yaml:"id" json:"id"`
	Name string  `yaml:"name" json:"name"`
	Cost float64 `yaml:"cost" json:"cost"`
	HP   int     `yaml:"hp" json:"hp"`
}

type Position struct {
	Symbol         string `json:"symbol"`
	QuantityUnits  int64  `json:"quantity_units"`
	AvgPriceMicros int64  `json:"avg_price_micros"`
}

type playerState struct {
	CashMicros         int64       `json:"cash_micros"`
	HP                 int         `json:"hp"`
	PeakNetWorthMicros int64       `json:"peak_net_worth_micros"`
	Positions          []Position  `json:"positions"`
	RecentKeys         []string    `json:"recent_keys"`
	Orders             []OrderView `json:"orders"`
}

type Player struct {
	cash      int64
	hp        int
	peak      int64
	positions map[string]*Position
	keys      map[string]struct{}
	keyOrder  []string
	orders    []OrderView
}

func NewPlayer(cashMicros int64) *Player {
	return &Player{
		cash:      cashMicros,
		hp:        MaxHP,
		peak:      cashMicros,
		positions: map[string]*Position{},
		keys:      map[string]struct{}{},
	}
}

func (p *Player) checkIdempotency(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: idempotency key is required", ErrInvalidInput)
	}
	if _, ok := p.keys[strings.TrimSpace(key)]; ok {
		return ErrDuplicateIdempotency
	}
	return nil
}

// rememberKey records a key once its order has gone through; only the most
// recent keys are kept.
func (p *Player) rememberKey(key string) {
	key = strings.TrimSpace(key)
	p.keys[key] = struct{}{}
	p.keyOrder = append(p.keyOrder, key)
	if len(p.keyOrder) > idempotencyWindow {
		delete(p.keys, p.keyOrder[0])
		p.keyOrder = p.keyOrder[1:]
	}
}

func (p *Player) buy(symbol string, qtyUnits, priceMicros int64) (OrderResult, error) {
	var out OrderResult
	notional, err := notionalMicros(priceMicros, qtyUnits)
	if err != nil {
		return out, err
	}
	fee := feeMicros(notional)
	if p.cash-notional-fee < 0 {
		maxUnits, maxNotional, maxFee := maxAffordableBuy(priceMicros, p.cash)
		return out, fmt.Errorf("%w: max buy %.4f shares (notional %.2f + fee %.2f stonky)", ErrInsufficientFunds, UnitsToShares(maxUnits), MicrosToStonky(maxNotional), MicrosToStonky(maxFee))
	}

	pos, ok := p.positions[symbol]
	if !ok {
		p.positions[symbol] = &Position{Symbol: symbol, QuantityUnits: qtyUnits, AvgPriceMicros: priceMicros}
	} else {
		totalOld, err := notionalMicros(pos.AvgPriceMicros, pos.QuantityUnits)
		if err != nil {
			return out, err
		}
		newQty := pos.QuantityUnits + qtyUnits
		newAvg, err := divideMicros(totalOld+notional, newQty)
		if err != nil {
			return out, err
		}
		pos.QuantityUnits = newQty
		pos.AvgPriceMicros = newAvg
	}
	p.cash -= notional + fee
	out.PriceMicros = priceMicros
	out.NotionalMicros = notional
	out.FeeMicros = fee
	out.CashMicros = p.cash
	return out, nil
}

func (p *Player) sell(symbol string, qtyUnits, priceMicros int64) (OrderResult, error) {
	var out OrderResult
	pos, ok := p.positions[symbol]
	if !ok || pos.QuantityUnits < qtyUnits {
		return out, ErrInsufficientShares
	}
	notional, err := notionalMicros(priceMicros, qtyUnits)
	if err != nil {
		return out, err
	}
	fee := feeMicros(notional)
	pos.QuantityUnits -= qtyUnits
	if pos.QuantityUnits == 0 {
		delete(p.positions, symbol)
	}
	p.cash += notional - fee
	out.PriceMicros = priceMicros
	out.NotionalMicros = notional
	out.FeeMicros = fee
	out.CashMicros = p.cash
	return out, nil
}

func (p *Player) recordOrder(v OrderView) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	p.orders = append([]OrderView{v}, p.orders...)
	if len(p.orders) > 100 {
		p.orders = p.orders[:100]
	}
}

func (p *Player) spend(amount int64) error {
	if amount < 0 {
		return fmt.Errorf("amount must be >= 0")
	}
	if p.cash < amount {
		return ErrInsufficientFunds
	}
	p.cash -= amount
	return nil
}

// adjustHP applies delta and keeps HP within [0, MaxHP].
func (p *Player) adjustHP(delta int) int {
	p.hp += delta
	if p.hp > MaxHP {
		p.hp = MaxHP
	}
	if p.hp < 0 {
		p.hp = 0
	}
	return p.hp
}

func (p *Player) holdingsMicros(price func(string) (int64, bool)) int64 {
	var total int64
	for sym, pos := range p.positions {
		px, ok := price(sym)
		if !ok {
			continue
		}
		v, err := notionalMicros(px, pos.QuantityUnits)
		if err != nil {
			continue
		}
		total += v
	}
	return total
}

func (p *Player) updatePeak(netWorth int64) {
	if netWorth > p.peak {
		p.peak = netWorth
	}
}

func (p *Player) sortedPositions() []Position {
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (p *Player) state() playerState {
	return playerState{
		CashMicros:         p.cash,
		HP:                 p.hp,
		PeakNetWorthMicros: p.peak,
		Positions:          p.sortedPositions(),
		RecentKeys:         append([]string(nil), p.keyOrder...),
		Orders:             append([]OrderView(nil), p.orders...),
	}
}

func restorePlayer(st playerState) *Player {
	p := NewPlayer(st.CashMicros)
	p.hp = st.HP
	p.peak = st.PeakNetWorthMicros
	for _, pos := range st.Positions {
		cp := pos
		p.positions[pos.Symbol] = &cp
	}
	for _, k := range st.RecentKeys {
		p.keys[k] = struct{}{}
		p.keyOrder = append(p.keyOrder, k)
	}
	p.orders = append([]OrderView(nil), st.Orders...)
	return p
}
