package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketlife/internal/config"
	"marketlife/internal/game"
	"marketlife/internal/runner"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// LoopControl exposes the real-time tick loop to the API. It is optional;
// without it the loop routes answer 404.
type LoopControl interface {
	Pause()
	Resume()
	Status() runner.Status
}

type Server struct {
	cfg     config.APIConfig
	log     *slog.Logger
	game    *game.Service
	loop    LoopControl
	metrics http.Handler
	mux     *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, gameSvc *game.Service, loop LoopControl, metrics http.Handler) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		log:     logger,
		game:    gameSvc,
		loop:    loop,
		metrics: metrics,
		mux:     chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "game": s.game.HasGame()})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/game", s.handleNewGame)
		r.Post("/game/advance", s.handleAdvance)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/clock", s.handleClock)

		r.Get("/stocks", s.handleStocksList)
		r.Get("/stocks/{symbol}", s.handleStockDetail)
		r.Get("/orders", s.handleOrdersList)
		r.Post("/orders", s.handleOrder)

		r.Get("/events", s.handleEvents)
		r.Get("/expenses", s.handleExpenses)
		r.Post("/expenses/{account}/pay", s.handlePayExpense)
		r.Get("/rest/options", s.handleRestOptions)
		r.Post("/rest", s.handleRest)
		r.Get("/feed/{board}", s.handleFeed)

		r.Get("/saves", s.handleSavesList)
		r.Post("/saves/{slot}", s.handleSave)
		r.Delete("/saves/{slot}", s.handleDeleteSave)
		r.Post("/saves/{slot}/load", s.handleLoad)

		r.Get("/loop", s.handleLoopStatus)
		r.Post("/loop/pause", s.handleLoopPause)
		r.Post("/loop/resume", s.handleLoopResume)

		r.Post("/debug/cash", s.handleDebugCash)
	})
}

// authMiddleware enforces the static API token when one is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.APIToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Seed int64  `json:"seed"`
		Slot string `json:"slot"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.NewGame(in.Seed, in.Slot)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	in := struct {
		Ticks int `json:"ticks"`
	}{Ticks: 1}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.Advance(r.Context(), in.Ticks)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	out, err := s.game.Dashboard()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleClock(w http.ResponseWriter, _ *http.Request) {
	out, err := s.game.Clock()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStocksList(w http.ResponseWriter, _ *http.Request) {
	out, err := s.game.ListStocks()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stocks": out})
}

func (s *Server) handleStockDetail(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.StockDetail(chi.URLParam(r, "symbol"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOrdersList(w http.ResponseWriter, _ *http.Request) {
	out, err := s.game.Orders()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Symbol        string `json:"symbol"`
		Side          string `json:"side"`
		QuantityUnits int64  `json:"quantity_units"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.game.PlaceOrder(game.OrderInput{
		Symbol:         in.Symbol,
		Side:           in.Side,
		QuantityUnits:  in.QuantityUnits,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.Events(limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExpenses(w http.ResponseWriter, _ *http.Request) {
	out, err := s.game.Expenses()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePayExpense(w http.ResponseWriter, r *http.Request) {
	var in struct {
		AmountMicros int64 `json:"amount_micros"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.PayExpense(chi.URLParam(r, "account"), in.AmountMicros)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRestOptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"options": s.game.RestOptions()})
}

func (s *Server) handleRest(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Option string `json:"option"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.Rest(in.Option)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	posts, err := s.game.Feed(chi.URLParam(r, "board"), r.URL.Query().Get("symbol"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

func (s *Server) handleSavesList(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.ListSlots(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"current": s.game.CurrentSlot(), "slots": out})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.SaveSlot(r.Context(), chi.URLParam(r, "slot"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteSave(w http.ResponseWriter, r *http.Request) {
	if err := s.game.DeleteSlot(r.Context(), chi.URLParam(r, "slot")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.LoadSlot(r.Context(), chi.URLParam(r, "slot"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLoopStatus(w http.ResponseWriter, _ *http.Request) {
	if s.loop == nil {
		writeError(w, http.StatusNotFound, "tick loop is not running in this process")
		return
	}
	writeJSON(w, http.StatusOK, s.loop.Status())
}

func (s *Server) handleLoopPause(w http.ResponseWriter, _ *http.Request) {
	if s.loop == nil {
		writeError(w, http.StatusNotFound, "tick loop is not running in this process")
		return
	}
	s.loop.Pause()
	s.log.Info("tick loop paused")
	writeJSON(w, http.StatusOK, s.loop.Status())
}

func (s *Server) handleLoopResume(w http.ResponseWriter, _ *http.Request) {
	if s.loop == nil {
		writeError(w, http.StatusNotFound, "tick loop is not running in this process")
		return
	}
	s.loop.Resume()
	s.log.Info("tick loop resumed")
	writeJSON(w, http.StatusOK, s.loop.Status())
}

func (s *Server) handleDebugCash(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CashMicros int64 `json:"cash_micros"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.DebugSetCash(in.CashMicros)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrDuplicateIdempotency):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrInsufficientFunds), errors.Is(err, game.ErrInsufficientShares):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrInvalidSymbol), errors.Is(err, game.ErrInvalidSlot),
		errors.Is(err, game.ErrInvalidInput), errors.Is(err, game.ErrUnknownBoard):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrStockNotFound), errors.Is(err, game.ErrSlotNotFound),
		errors.Is(err, game.ErrUnknownAccount), errors.Is(err, game.ErrUnknownRestOption):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrMarketClosed), errors.Is(err, game.ErrGameOver), errors.Is(err, game.ErrNoGame):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrDebugDisabled):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, game.ErrNoStore):
		writeError(w, http.StatusNotImplemented, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON accepts an empty body and leaves out untouched.
func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
