// Package runner drives a game.Service in real time: one job advances the
// simulation on a fixed interval and another autosaves the current slot.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-co-op/gocron/v2"

	"marketlife/internal/config"
	"marketlife/internal/game"
)

// Game is the subset of game.Service the loop needs.
type Game interface {
	Advance(ctx context.Context, n int) (game.AdvanceResult, error)
	Autosave(ctx context.Context) error
	HasGame() bool
}

type Status struct {
	Running       bool   `json:"running"`
	Paused        bool   `json:"paused"`
	TickEvery     string `json:"tick_every"`
	TicksPerStep  int    `json:"ticks_per_step"`
	AutosaveEvery string `json:"autosave_every"`
	Steps         int64  `json:"steps"`
}

type Runner struct {
	game      Game
	loop      config.Loop
	logger    *slog.Logger
	scheduler gocron.Scheduler
	ctx       context.Context
	paused    atomic.Bool
	running   atomic.Bool
	steps     atomic.Int64
}

func New(g Game, loop config.Loop, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if loop.TickEvery <= 0 {
		return nil, fmt.Errorf("tick interval must be > 0")
	}
	if loop.TicksPerStep < 1 {
		loop.TicksPerStep = 1
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	r := &Runner{game: g, loop: loop, logger: logger, scheduler: s, ctx: context.Background()}
	r.paused.Store(loop.Paused)
	return r, nil
}

// Start registers the jobs and starts the scheduler. Jobs stop doing work
// once ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	r.ctx = ctx
	if _, err := r.scheduler.NewJob(
		gocron.DurationJob(r.loop.TickEvery),
		gocron.NewTask(r.tick),
		gocron.WithName("advance"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return fmt.Errorf("failed to create advance job: %w", err)
	}
	if r.loop.AutosaveEvery > 0 {
		if _, err := r.scheduler.NewJob(
			gocron.DurationJob(r.loop.AutosaveEvery),
			gocron.NewTask(r.autosave),
			gocron.WithName("autosave"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return fmt.Errorf("failed to create autosave job: %w", err)
		}
	}
	r.scheduler.Start()
	r.running.Store(true)
	r.logger.Info("runner started",
		"tick_every", r.loop.TickEvery.String(),
		"ticks_per_step", r.loop.TicksPerStep,
		"autosave_every", r.loop.AutosaveEvery.String(),
		"paused", r.paused.Load())
	return nil
}

// Stop shuts the scheduler down and writes a final autosave.
func (r *Runner) Stop(ctx context.Context) error {
	if !r.running.Swap(false) {
		return nil
	}
	err := r.scheduler.Shutdown()
	if saveErr := r.game.Autosave(ctx); saveErr != nil {
		r.logger.Error("final autosave failed", "err", saveErr)
	}
	r.logger.Info("runner stopped", "steps", r.steps.Load())
	return err
}

func (r *Runner) Pause()  { r.paused.Store(true) }
func (r *Runner) Resume() { r.paused.Store(false) }

func (r *Runner) Status() Status {
	return Status{
		Running:       r.running.Load(),
		Paused:        r.paused.Load(),
		TickEvery:     r.loop.TickEvery.String(),
		TicksPerStep:  r.loop.TicksPerStep,
		AutosaveEvery: r.loop.AutosaveEvery.String(),
		Steps:         r.steps.Load(),
	}
}

func (r *Runner) tick() {
	if r.ctx.Err() != nil || r.paused.Load() || !r.game.HasGame() {
		return
	}
	res, err := r.game.Advance(r.ctx, r.loop.TicksPerStep)
	if errors.Is(err, game.ErrGameOver) {
		// A slot loaded after it already ended never reports GameOver in a result.
		r.Pause()
		r.logger.Warn("game already over, loop paused")
		return
	}
	if err != nil {
		r.logger.Error("advance failed", "err", err)
		return
	}
	r.steps.Add(1)
	if res.GameOver {
		r.Pause()
		r.logger.Warn("game over, loop paused", "day", res.Clock.Day, "tick", res.Clock.Tick)
	}
}

func (r *Runner) autosave() {
	if r.ctx.Err() != nil {
		return
	}
	if err := r.game.Autosave(r.ctx); err != nil {
		r.logger.Error("autosave failed", "err", err)
	}
}

// RunOnce advances ticks in batches of batch and autosaves at the end. It
// stops early when the game ends.
func RunOnce(ctx context.Context, g Game, ticks, batch int, logger *slog.Logger) (game.AdvanceResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if ticks < 1 {
		return game.AdvanceResult{}, fmt.Errorf("ticks must be >= 1")
	}
	if batch < 1 {
		batch = 1
	}
	var total game.AdvanceResult
	for done := 0; done < ticks; {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n := batch
		if left := ticks - done; left < n {
			n = left
		}
		res, err := g.Advance(ctx, n)
		if err != nil {
			return total, err
		}
		done += res.Ticks
		merge(&total, res)
		if res.GameOver || res.Ticks < n {
			break
		}
	}
	if err := g.Autosave(ctx); err != nil {
		return total, fmt.Errorf("autosave: %w", err)
	}
	logger.Info("run-once completed",
		"ticks", total.Ticks,
		"day", total.Clock.Day,
		"phase", total.Clock.Phase,
		"posts", total.Posts,
		"game_over", total.GameOver)
	return total, nil
}

func merge(total *game.AdvanceResult, res game.AdvanceResult) {
	total.Ticks += res.Ticks
	total.Clock = res.Clock
	total.Transitions = append(total.Transitions, res.Transitions...)
	total.Revealed = append(total.Revealed, res.Revealed...)
	total.Expired += res.Expired
	total.Issued = append(total.Issued, res.Issued...)
	total.Penalties = append(total.Penalties, res.Penalties...)
	total.Posts += res.Posts
	total.GameOver = res.GameOver
}
