package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketlife/internal/api"
	"marketlife/internal/config"
	"marketlife/internal/content"
	"marketlife/internal/db"
	"marketlife/internal/game"
	"marketlife/internal/metrics"
	"marketlife/internal/relay"
	"marketlife/internal/runner"

	prom "github.com/prometheus/client_golang/prometheus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Game.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

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

	reg := prom.NewRegistry()
	recorder := metrics.NewRecorder(reg)

	var sink game.PostSink
	if cfg.Discord.Enabled() {
		discord, err := relay.NewDiscord(cfg.Discord.Token, cfg.Discord.ChannelID)
		if err != nil {
			logger.Error("discord relay init failed", "err", err)
			os.Exit(1)
		}
		sink = discord
	}

	gameSvc, err := game.NewService(catalog, rules, logger, game.Options{
		Store:    store,
		Sink:     sink,
		Observer: recorder,
		Debug:    cfg.Game.Debug,
	})
	if err != nil {
		logger.Error("game service init failed", "err", err)
		os.Exit(1)
	}
	dash, err := gameSvc.Resume(ctx, cfg.Slot, cfg.Seed)
	if err != nil {
		logger.Error("resume game failed", "slot", cfg.Slot, "err", err)
		os.Exit(1)
	}
	logger.Info("game ready", "slot", dash.Slot, "day", dash.Day, "phase", dash.Phase, "tick", dash.Tick)

	loop, err := runner.New(gameSvc, cfg.Loop, logger)
	if err != nil {
		logger.Error("runner init failed", "err", err)
		os.Exit(1)
	}
	if err := loop.Start(ctx); err != nil {
		logger.Error("runner start failed", "err", err)
		os.Exit(1)
	}

	server := api.New(cfg, logger, gameSvc, loop, metrics.Handler(reg))
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("marketlife api listening", "addr", cfg.Addr, "backend", cfg.Backend)
	serveErr := httpServer.ListenAndServe()

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := loop.Stop(stopCtx); err != nil {
		logger.Error("runner stop failed", "err", err)
	}

	if serveErr != nil && serveErr != http.ErrServerClosed {
		logger.Error("server failed", "err", serveErr)
		os.Exit(1)
	}
}
