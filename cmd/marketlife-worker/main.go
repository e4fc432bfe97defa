package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketlife/internal/config"
	"marketlife/internal/content"
	"marketlife/internal/db"
	"marketlife/internal/game"
	"marketlife/internal/metrics"
	"marketlife/internal/relay"
	"marketlife/internal/runner"

	prom "github.com/prometheus/client_golang/prometheus"
)

// The worker drives a game headless: it resumes the configured slot and
// advances it on the loop cadence, or once by a fixed number of ticks.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	catalog, err := content.Load(cfg.ContentPath)
	if err != nil {
		logger.Error("load catalog failed", "err", err)
		os.Exit(1)
	}
	rules, err := cfg.Game.Rules()
	if err != nil {
		logger.Error("invalid game rules", "err", err)
		os.Exit(1)
	}

	store, closeStore, err := db.OpenSlots(ctx, cfg.Storage)
	if err != nil {
		logger.Error("open save store failed", "backend", cfg.Backend, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	var sink game.PostSink
	if cfg.Discord.Enabled() {
		discord, err := relay.NewDiscord(cfg.Discord.Token, cfg.Discord.ChannelID)
		if err != nil {
			logger.Error("discord relay init failed", "err", err)
			os.Exit(1)
		}
		sink = discord
	}

	var observer game.Observer
	if cfg.MetricsAddr != "" {
		reg := prom.NewRegistry()
		observer = metrics.NewRecorder(reg)
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
		go func() {
			logger.Info("worker metrics listening", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "err", err)
			}
		}()
	}

	svc, err := game.NewService(catalog, rules, logger, game.Options{
		Store:    store,
		Sink:     sink,
		Observer: observer,
		Debug:    cfg.Game.Debug,
	})
	if err != nil {
		logger.Error("game service init failed", "err", err)
		os.Exit(1)
	}
	if _, err := svc.Resume(ctx, cfg.Slot, cfg.Seed); err != nil {
		logger.Error("resume game failed", "slot", cfg.Slot, "err", err)
		os.Exit(1)
	}

	if cfg.RunOnce {
		res, err := runner.RunOnce(ctx, svc, cfg.RunOnceTicks, cfg.TicksPerStep, logger)
		if err != nil {
			logger.Error("run-once failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed",
			"ticks", res.Ticks,
			"day", res.Clock.Day,
			"phase", res.Clock.Phase,
			"posts", res.Posts,
			"game_over", res.GameOver,
		)
		return
	}

	loop, err := runner.New(svc, cfg.Loop, logger)
	if err != nil {
		logger.Error("runner init failed", "err", err)
		os.Exit(1)
	}
	if err := loop.Start(ctx); err != nil {
		logger.Error("runner start failed", "err", err)
		os.Exit(1)
	}
	logger.Info("worker started", "tick_every", cfg.TickEvery.String(), "ticks_per_step", cfg.TicksPerStep, "volatility", rules.Volatility)

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := loop.Stop(stopCtx); err != nil {
		logger.Error("runner stop failed", "err", err)
	}
	logger.Info("worker shutdown")
}
