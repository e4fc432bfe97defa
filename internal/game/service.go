package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	DefaultSlot = "main"
	maxAdvance  = 10_000
)

// SlotStore persists snapshots by slot name. Load returns ErrSlotNotFound
// for a missing slot.
type SlotStore interface {
	Save(ctx context.Context, slot string, snap Snapshot) error
	Load(ctx context.Context, slot string) (Snapshot, error)
	List(ctx context.Context) ([]SlotInfo, error)
	Delete(ctx context.Context, slot string) error
}

// PostSink receives every community post once it is published.
type PostSink interface {
	PublishPosts(ctx context.Context, posts []Post) error
}

type Observer interface {
	ObserveStep(rep StepReport)
	ObserveOrder(res OrderResult)
}

type Options struct {
	Store    SlotStore
	Sink     PostSink
	Observer Observer
	Debug    bool
	Now      func() time.Time
}

type Service struct {
	catalog Catalog
	rules   Rules
	log     *slog.Logger
	opts    Options

	mu   sync.Mutex
	sess *Session
	slot string
}

func NewService(cat Catalog, rules Rules, logger *slog.Logger, opts Options) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		catalog: cat,
		rules:   rules,
		log:     logger,
		opts:    opts,
		slot:    DefaultSlot,
	}, nil
}

func normalizeSlot(slot string) (string, error) {
	slot = strings.ToLower(strings.TrimSpace(slot))
	if slot == "" {
		return DefaultSlot, nil
	}
	if err := ValidateSlot(slot); err != nil {
		return "", err
	}
	return slot, nil
}

// NewGame replaces the running game. A zero seed picks one from the clock.
func (s *Service) NewGame(seed int64, slot string) (Dashboard, error) {
	slot, err := normalizeSlot(slot)
	if err != nil {
		return Dashboard{}, err
	}
	if seed == 0 {
		seed = s.opts.Now().UnixNano()
	}
	sess, err := NewSession(s.catalog, s.rules, seed)
	if err != nil {
		return Dashboard{}, err
	}

	s.mu.Lock()
	s.sess = sess
	s.slot = slot
	d := s.dashboardLocked()
	s.mu.Unlock()

	s.log.Info("new game", "slot", slot, "seed", seed)
	return d, nil
}

func (s *Service) HasGame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess != nil
}

func (s *Service) CurrentSlot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot
}

// Advance runs n ticks and folds their reports together. Published posts are
// handed to the sink after the lock is released.
func (s *Service) Advance(ctx context.Context, n int) (AdvanceResult, error) {
	if n < 1 || n > maxAdvance {
		return AdvanceResult{}, fmt.Errorf("%w: ticks must be between 1 and %d", ErrInvalidInput, maxAdvance)
	}

	s.mu.Lock()
	if s.sess == nil {
		s.mu.Unlock()
		return AdvanceResult{}, ErrNoGame
	}
	if s.sess.Over() {
		s.mu.Unlock()
		return AdvanceResult{}, ErrGameOver
	}
	var (
		out   AdvanceResult
		posts []Post
	)
	for i := 0; i < n; i++ {
		rep := s.sess.Step()
		out.Ticks++
		if rep.Transition != nil {
			out.Transitions = append(out.Transitions, *rep.Transition)
		}
		out.Revealed = append(out.Revealed, rep.Revealed...)
		out.Expired += len(rep.Expired)
		out.Issued = append(out.Issued, rep.Issued...)
		out.Penalties = append(out.Penalties, rep.Penalties...)
		out.Posts += len(rep.Posts)
		posts = append(posts, rep.Posts...)
		if s.opts.Observer != nil {
			s.opts.Observer.ObserveStep(rep)
		}
		if rep.GameOver {
			out.GameOver = true
			break
		}
	}
	out.Clock = s.sess.clock
	s.mu.Unlock()

	for _, tr := range out.Transitions {
		s.log.Info("phase change", "day", tr.Day, "tick", tr.Tick, "from", tr.From, "to", tr.To)
	}
	if out.GameOver {
		s.log.Warn("game over", "day", out.Clock.Day, "tick", out.Clock.Tick)
	}
	if s.opts.Sink != nil && len(posts) > 0 {
		if err := s.opts.Sink.PublishPosts(ctx, posts); err != nil {
			s.log.Error("relay posts failed", "err", err, "posts", len(posts))
		}
	}
	return out, nil
}

// withSession runs fn under the lock against the running game.
func (s *Service) withSession(fn func(*Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return ErrNoGame
	}
	return fn(s.sess)
}

func (s *Service) Dashboard() (Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return Dashboard{}, ErrNoGame
	}
	return s.dashboardLocked(), nil
}

func (s *Service) dashboardLocked() Dashboard {
	d := s.sess.Dashboard()
	d.Slot = s.slot
	return d
}

func (s *Service) Clock() (ClockView, error) {
	var out ClockView
	err := s.withSession(func(sess *Session) error {
		out = sess.Clock()
		return nil
	})
	return out, err
}

func (s *Service) ListStocks() ([]StockView, error) {
	var out []StockView
	err := s.withSession(func(sess *Session) error {
		out = sess.Stocks()
		return nil
	})
	return out, err
}

func (s *Service) StockDetail(symbol string) (StockDetail, error) {
	var out StockDetail
	err := s.withSession(func(sess *Session) error {
		var err error
		out, err = sess.StockDetail(symbol)
		return err
	})
	return out, err
}

func (s *Service) PlaceOrder(in OrderInput) (OrderResult, error) {
	var out OrderResult
	err := s.withSession(func(sess *Session) error {
		var err error
		out, err = sess.PlaceOrder(in)
		return err
	})
	if err != nil {
		return OrderResult{}, err
	}
	if s.opts.Observer != nil {
		s.opts.Observer.ObserveOrder(out)
	}
	s.log.Info("order filled", "order_id", out.OrderID, "symbol", out.Symbol, "side", out.Side, "qty_units", out.QuantityUnits, "price_micros", out.PriceMicros)
	return out, nil
}

func (s *Service) Orders() ([]OrderView, error) {
	var out []OrderView
	err := s.withSession(func(sess *Session) error {
		out = sess.Orders()
		return nil
	})
	return out, err
}

func (s *Service) Events(historyLimit int) (EventsView, error) {
	var out EventsView
	err := s.withSession(func(sess *Session) error {
		out = sess.Events(historyLimit)
		return nil
	})
	return out, err
}

func (s *Service) Expenses() (ExpensesView, error) {
	var out ExpensesView
	err := s.withSession(func(sess *Session) error {
		out = sess.Expenses()
		return nil
	})
	return out, err
}

func (s *Service) PayExpense(account string, amountMicros int64) (PayExpenseResult, error) {
	var out PayExpenseResult
	err := s.withSession(func(sess *Session) error {
		var err error
		out, err = sess.PayExpense(account, amountMicros)
		return err
	})
	if err != nil {
		return PayExpenseResult{}, err
	}
	s.log.Info("expense paid", "account", out.Account, "applied_micros", out.AppliedMicros, "change_micros", out.ChangeMicros, "settled", len(out.Settled))
	return out, nil
}

func (s *Service) RestOptions() []RestOption {
	return append([]RestOption(nil), s.catalog.Rest...)
}

func (s *Service) Rest(optionID string) (RestResult, error) {
	var out RestResult
	err := s.withSession(func(sess *Session) error {
		var err error
		out, err = sess.Rest(optionID)
		return err
	})
	return out, err
}

func (s *Service) Feed(board, symbol string, limit int) ([]Post, error) {
	b, err := ParseBoard(board)
	if err != nil {
		return nil, err
	}
	var out []Post
	err = s.withSession(func(sess *Session) error {
		var err error
		out, err = sess.Feed(b, symbol, limit)
		return err
	})
	return out, err
}

func (s *Service) DebugSetCash(micros int64) (Dashboard, error) {
	if !s.opts.Debug {
		return Dashboard{}, ErrDebugDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return Dashboard{}, ErrNoGame
	}
	if err := s.sess.SetCash(micros); err != nil {
		return Dashboard{}, err
	}
	s.log.Warn("debug cash override", "cash_micros", micros)
	return s.dashboardLocked(), nil
}

// SaveSlot writes the running game to slot; an empty slot means the
// current one. The current slot follows the last save or load.
func (s *Service) SaveSlot(ctx context.Context, slot string) (SlotInfo, error) {
	if s.opts.Store == nil {
		return SlotInfo{}, ErrNoStore
	}
	s.mu.Lock()
	if s.sess == nil {
		s.mu.Unlock()
		return SlotInfo{}, ErrNoGame
	}
	if strings.TrimSpace(slot) == "" {
		slot = s.slot
	}
	slot, err := normalizeSlot(slot)
	if err != nil {
		s.mu.Unlock()
		return SlotInfo{}, err
	}
	sess := s.sess
	snap := sess.Snapshot(s.opts.Now())
	s.mu.Unlock()

	if err := s.opts.Store.Save(ctx, slot, snap); err != nil {
		return SlotInfo{}, err
	}
	// The current slot only moves once the write landed.
	s.mu.Lock()
	if s.sess == sess {
		s.slot = slot
	}
	s.mu.Unlock()
	info := snap.Info(slot)
	s.log.Info("game saved", "slot", slot, "day", info.Day, "tick", info.Tick)
	return info, nil
}

func (s *Service) LoadSlot(ctx context.Context, slot string) (Dashboard, error) {
	if s.opts.Store == nil {
		return Dashboard{}, ErrNoStore
	}
	slot, err := normalizeSlot(slot)
	if err != nil {
		return Dashboard{}, err
	}
	snap, err := s.opts.Store.Load(ctx, slot)
	if err != nil {
		return Dashboard{}, err
	}
	sess, err := RestoreSession(s.catalog, snap)
	if err != nil {
		return Dashboard{}, fmt.Errorf("restore slot %s: %w", slot, err)
	}

	s.mu.Lock()
	s.sess = sess
	s.slot = slot
	d := s.dashboardLocked()
	s.mu.Unlock()

	s.log.Info("game loaded", "slot", slot, "day", d.Day, "tick", d.Tick)
	return d, nil
}

func (s *Service) ListSlots(ctx context.Context) ([]SlotInfo, error) {
	if s.opts.Store == nil {
		return nil, ErrNoStore
	}
	return s.opts.Store.List(ctx)
}

func (s *Service) DeleteSlot(ctx context.Context, slot string) error {
	if s.opts.Store == nil {
		return ErrNoStore
	}
	slot, err := normalizeSlot(slot)
	if err != nil {
		return err
	}
	return s.opts.Store.Delete(ctx, slot)
}

// Autosave saves the running game to its current slot. It is a no-op when
// there is no game or no store.
func (s *Service) Autosave(ctx context.Context) error {
	if s.opts.Store == nil || !s.HasGame() {
		return nil
	}
	_, err := s.SaveSlot(ctx, "")
	return err
}

// Resume loads slot if it exists and otherwise starts a new game there.
func (s *Service) Resume(ctx context.Context, slot string, seed int64) (Dashboard, error) {
	if s.opts.Store != nil {
		d, err := s.LoadSlot(ctx, slot)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, ErrSlotNotFound) {
			return Dashboard{}, err
		}
	}
	return s.NewGame(seed, slot)
}
