package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"marketlife/internal/game"
)

const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Storage selects where save slots live.
type Storage struct {
	Backend     string `env:"MARKETLIFE_SAVE_BACKEND" envDefault:"file"`
	SaveDir     string `env:"MARKETLIFE_SAVE_DIR"     envDefault:"saves"`
	SQLitePath  string `env:"MARKETLIFE_SQLITE_PATH"  envDefault:"marketlife.db"`
	DatabaseURL string `env:"DATABASE_URL"`
}

// Game holds the tunables that become game.Rules.
type Game struct {
	ContentPath  string  `env:"MARKETLIFE_CONTENT"`
	Slot         string  `env:"MARKETLIFE_SLOT"             envDefault:"main"`
	Seed         int64   `env:"MARKETLIFE_SEED"             envDefault:"0"`
	Volatility   string  `env:"MARKETLIFE_VOLATILITY"`
	PreMarket    int     `env:"MARKETLIFE_PREMARKET_TICKS"  envDefault:"30"`
	MarketOpen   int     `env:"MARKETLIFE_MARKET_TICKS"     envDefault:"240"`
	Settlement   int     `env:"MARKETLIFE_SETTLEMENT_TICKS" envDefault:"30"`
	NewsPerDay   int     `env:"MARKETLIFE_NEWS_PER_DAY"     envDefault:"3"`
	DailyHPDecay int     `env:"MARKETLIFE_DAILY_HP_DECAY"   envDefault:"3"`
	StarterCash  float64 `env:"MARKETLIFE_STARTER_CASH"    envDefault:"5000"`
	Debug        bool    `env:"MARKETLIFE_DEBUG"            envDefault:"false"`
}

type Loop struct {
	TickEvery     time.Duration `env:"MARKETLIFE_TICK_EVERY"     envDefault:"1s"`
	TicksPerStep  int           `env:"MARKETLIFE_TICKS_PER_STEP" envDefault:"1"`
	AutosaveEvery time.Duration `env:"MARKETLIFE_AUTOSAVE_EVERY" envDefault:"1m"`
	Paused        bool          `env:"MARKETLIFE_PAUSED"         envDefault:"false"`
}

type Discord struct {
	Token     string `env:"MARKETLIFE_DISCORD_TOKEN"`
	ChannelID string `env:"MARKETLIFE_DISCORD_CHANNEL"`
}

func (d Discord) Enabled() bool {
	return d.Token != "" && d.ChannelID != ""
}

type APIConfig struct {
	Addr     string `env:"MARKETLIFE_API_ADDR"  envDefault:":8080"`
	APIToken string `env:"MARKETLIFE_API_TOKEN"`
	Storage
	Game
	Loop
	Discord
}

type WorkerConfig struct {
	RunOnce      bool   `env:"MARKETLIFE_WORKER_RUN_ONCE"     envDefault:"false"`
	RunOnceTicks int    `env:"MARKETLIFE_WORKER_TICKS"        envDefault:"300"`
	MetricsAddr  string `env:"MARKETLIFE_WORKER_METRICS_ADDR"` // serves /metrics when set
	Storage
	Game
	Loop
	Discord
}

type CLIConfig struct {
	APIBaseURL string `env:"MLX_API_BASE_URL"`
	APIToken   string `env:"MLX_API_TOKEN"`
}

// loadDotenv reads .env from the working directory when present. Variables
// already set in the environment win.
func loadDotenv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func LoadAPIFromEnv() (APIConfig, error) {
	var cfg APIConfig
	if err := loadDotenv(); err != nil {
		return cfg, err
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Addr = port
	}
	cfg.APIToken = strings.TrimSpace(cfg.APIToken)
	cfg.Game.Volatility = volatility(cfg.Game.Volatility)
	if err := cfg.Storage.validate(); err != nil {
		return cfg, err
	}
	if err := cfg.Loop.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := loadDotenv(); err != nil {
		return cfg, err
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.Game.Volatility = volatility(cfg.Game.Volatility)
	cfg.MetricsAddr = strings.TrimSpace(cfg.MetricsAddr)
	if err := cfg.Storage.validate(); err != nil {
		return cfg, err
	}
	if err := cfg.Loop.validate(); err != nil {
		return cfg, err
	}
	if cfg.RunOnce && cfg.RunOnceTicks < 1 {
		return cfg, fmt.Errorf("MARKETLIFE_WORKER_TICKS must be >= 1")
	}
	return cfg, nil
}

// LoadCLIFromEnv never fails; empty values fall through to the saved
// profile and then to the built-in default.
func LoadCLIFromEnv() CLIConfig {
	var cfg CLIConfig
	_ = godotenv.Load()
	_ = env.Parse(&cfg)
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	cfg.APIToken = strings.TrimSpace(cfg.APIToken)
	return cfg
}

func (s Storage) validate() error {
	switch s.Backend {
	case BackendFile:
		if strings.TrimSpace(s.SaveDir) == "" {
			return fmt.Errorf("MARKETLIFE_SAVE_DIR is required for the file backend")
		}
	case BackendSQLite:
		if strings.TrimSpace(s.SQLitePath) == "" {
			return fmt.Errorf("MARKETLIFE_SQLITE_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		if strings.TrimSpace(s.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown MARKETLIFE_SAVE_BACKEND %q (want file, sqlite or postgres)", s.Backend)
	}
	return nil
}

func (l Loop) validate() error {
	if l.TickEvery <= 0 {
		return fmt.Errorf("MARKETLIFE_TICK_EVERY must be > 0")
	}
	if l.TicksPerStep < 1 {
		return fmt.Errorf("MARKETLIFE_TICKS_PER_STEP must be >= 1")
	}
	return nil
}

// Rules maps the environment onto game rules, starting from the defaults.
func (g Game) Rules() (game.Rules, error) {
	r := game.DefaultRules()
	r.Phases = game.PhaseDurations{PreMarket: g.PreMarket, MarketOpen: g.MarketOpen, Settlement: g.Settlement}
	r.Volatility = volatility(g.Volatility)
	r.NewsPerDay = g.NewsPerDay
	r.DailyHPDecay = g.DailyHPDecay
	r.StarterCashMicros = game.StonkyToMicros(g.StarterCash)
	if err := r.Validate(); err != nil {
		return r, err
	}
	return r, nil
}

// volatility prefers the explicit setting and falls back to VOLATILITY.
func volatility(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		v = strings.ToLower(strings.TrimSpace(os.Getenv("VOLATILITY")))
	}
	return game.NormalizeVolatility(v)
}
