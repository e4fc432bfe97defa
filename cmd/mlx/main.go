package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "marketlife/internal/cli"
	"marketlife/internal/config"
	"marketlife/internal/game"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type app struct {
	flagBase  string
	flagToken string
	env       config.CLIConfig
}

func main() {
	a := &app{env: config.LoadCLIFromEnv()}

	root := &cobra.Command{
		Use:          "mlx",
		Short:        "Marketlife CLI client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.flagBase, "api", "", "API base URL (default from MLX_API_BASE_URL or profile)")
	root.PersistentFlags().StringVar(&a.flagToken, "token", "", "API bearer token")

	root.AddCommand(
		newConfigCmd(a),
		newNewGameCmd(a),
		newAdvanceCmd(a),
		newDashCmd(a),
		newClockCmd(a),
		newStocksCmd(a),
		newOrdersCmd(a),
		newEventsCmd(a),
		newBillsCmd(a),
		newRestCmd(a),
		newFeedCmd(a),
		newSavesCmd(a),
		newLoopCmd(a),
		newDebugCmd(a),
		newWatchCmd(a),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) client() (*cl.Client, error) {
	profile, err := cl.LoadProfile()
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	base, token := cl.Resolve(a.flagBase, a.flagToken, a.env.APIBaseURL, a.env.APIToken, profile)
	return cl.NewClient(base, token), nil
}

// call runs fn with a client and a request timeout, then renders the result.
func (a *app) call(cmd *cobra.Command, fn func(context.Context, *cl.Client) (map[string]any, error), render func(map[string]any) error) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	out, err := fn(ctx, client)
	if err != nil {
		return err
	}
	return render(out)
}

func newConfigCmd(a *app) *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage saved connection settings",
	}
	var base, token string
	set := &cobra.Command{
		Use:   "set",
		Short: "Save API URL and token to ~/.mlx/profile.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("url") {
				p.APIBaseURL = base
			}
			if cmd.Flags().Changed("api-token") {
				p.APIToken = token
			}
			if err := cl.SaveProfile(p); err != nil {
				return err
			}
			printSuccess("Profile saved.")
			return nil
		},
	}
	set.Flags().StringVar(&base, "url", "", "API base URL")
	set.Flags().StringVar(&token, "api-token", "", "API bearer token")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective connection settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			fmt.Printf("API:   %s\n", client.BaseURL)
			if client.Token == "" {
				fmt.Println("Token: (none)")
			} else {
				fmt.Println("Token: set")
			}
			return nil
		},
	}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the saved profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearProfile(); err != nil {
				return err
			}
			printSuccess("Profile cleared.")
			return nil
		},
	}
	cfg.AddCommand(set, show, clearCmd)
	return cfg
}

func newNewGameCmd(a *app) *cobra.Command {
	var (
		seed int64
		slot string
	)
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new game (replaces the running one)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
				return c.NewGame(ctx, seed, slot)
			}, renderDashboard)
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().StringVar(&slot, "slot", "", "save slot for this game")
	return cmd
}

func newAdvanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "advance [ticks]",
		Short: "Advance the simulation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticks := 1
			if len(args) > 0 {
				v, err := strconv.Atoi(strings.TrimSpace(args[0]))
				if err != nil || v < 1 {
					return fmt.Errorf("ticks must be a positive whole number")
				}
				ticks = v
			}
			return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
				return c.Advance(ctx, ticks)
			}, renderAdvance)
		},
	}
}

func newDashCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dash",
		Short: "Show your dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
				return c.Dashboard(ctx)
			}, renderDashboard)
		},
	}
}

func newClockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clock",
		Short: "Show the day and phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
				return c.Clock(ctx)
			}, renderClock)
		},
	}
}

func newStocksCmd(a *app) *cobra.Command {
	stocks := &cobra.Command{
		Use:     "stocks",
		Short:   "Stock market commands",
		Aliases: []string{"stock"},
	}
	stocks.AddCommand(
		&cobra.Command{
			Use:   "list [SYMBOL]",
			Short: "List stocks or inspect one stock",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(args) == 0 {
					return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
						return c.ListStocks(ctx)
					}, renderStocksList)
				}
				symbol, err := symbolFromArgsOrPrompt(args)
				if err != nil {
					return err
				}
				return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
					return c.StockDetail(ctx, symbol)
				}, renderStockDetail)
			},
		},
		newOrderCmd(a, "buy"),
		newOrderCmd(a, "sell"),
	)
	return stocks
}

func newOrderCmd(a *app, side string) *cobra.Command {
	var shares float64
	cmd := &cobra.Command{
		Use:   side + " [symbol]",
		Short: strings.ToUpper(side[:1]) + side[1:] + " shares",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol, err := symbolFromArgsOrPrompt(args)
			if err != nil {
				return err
			}
			qty := shares
			if qty <= 0 {
				qty, err = promptFloat("Shares to "+side, 0)
				if err != nil {
					return err
				}
			}
			units, err := game.SharesToUnits(qty)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
				return c.PlaceOrder(ctx, symbol, side, idem, units)
			}, func(out map[string]any) error {
				return renderOrderResult(out, side, symbol, qty)
			})
		},
	}
	cmd.Flags().Float64Var(&shares, "shares", 0, "number of shares (prompted when omitted)")
	return cmd
}

func newOrdersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "Show recent fills",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
				return c.Orders(ctx)
			}, renderOrders)
		},
	}
}

func newEventsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show active and past market events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
				return c.Events(ctx, limit)
			}, renderEvents)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "history entries to show")
	return cmd
}

func newBillsCmd(a *app) *cobra.Command {
	bills := &cobra.Command{
		Use:     "bills",
		Short:   "Living expenses",
		Aliases: []string{"expenses"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
				return c.Expenses(ctx)
			}, renderExpenses)
		},
	}
	bills.AddCommand(&cobra.Command{
		Use:   "pay ACCOUNT [amount]",
		Short: "Transfer stonky to an expense account",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := strings.ToLower(strings.TrimSpace(args[0]))
			var (
				amount float64
				err    error
			)
			if len(args) == 2 {
				amount, err = strconv.ParseFloat(strings.TrimSpace(args[1]), 64)
				if err != nil || amount <= 0 {
					return fmt.Errorf("amount must be a positive number")
				}
			} else {
				amount, err = promptFloat("Amount", 0)
				if err != nil {
					return err
				}
			}
			return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
				return c.PayExpense(ctx, account, game.StonkyToMicros(amount))
			}, renderPayment)
		},
	})
	return bills
}

func newRestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rest [option]",
		Short: "Spend stonky to recover HP (lists options when none given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
					return c.RestOptions(ctx)
				}, renderRestOptions)
			}
			option := strings.ToLower(strings.TrimSpace(args[0]))
			return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
				return c.Rest(ctx, option)
			}, renderRest)
		},
	}
}

func newFeedCmd(a *app) *cobra.Command {
	var (
		symbol string
		limit  int
	)
	cmd := &cobra.Command{
		Use:       "feed [hts|global]",
		Short:     "Read the community boards",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(game.BoardHTS), string(game.BoardGlobal)},
		RunE: func(cmd *cobra.Command, args []string) error {
			board := string(game.BoardGlobal)
			if len(args) > 0 {
				board = strings.ToLower(strings.TrimSpace(args[0]))
			}
			sym := strings.ToUpper(strings.TrimSpace(symbol))
			return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
				return c.Feed(ctx, board, sym, limit)
			}, func(out map[string]any) error {
				return renderFeed(out, board)
			})
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "only posts about this symbol")
	cmd.Flags().IntVar(&limit, "limit", 20, "posts to show")
	return cmd
}

func newSavesCmd(a *app) *cobra.Command {
	saves := &cobra.Command{
		Use:     "saves",
		Short:   "Save slots",
		Aliases: []string{"save"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
				return c.ListSaves(ctx)
			}, renderSaves)
		},
	}
	saves.AddCommand(
		&cobra.Command{
			Use:   "write [slot]",
			Short: "Save the running game (current slot by default)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				slot := ""
				if len(args) > 0 {
					slot = args[0]
				}
				return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
					if slot == "" {
						list, err := c.ListSaves(ctx)
						if err != nil {
							return nil, err
						}
						slot, _ = list["current"].(string)
					}
					return c.Save(ctx, slot)
				}, renderSaved)
			},
		},
		&cobra.Command{
			Use:   "load SLOT",
			Short: "Load a save slot",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
					return c.Load(ctx, args[0])
				}, renderDashboard)
			},
		},
		&cobra.Command{
			Use:   "delete SLOT",
			Short: "Delete a save slot",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
					return c.DeleteSave(ctx, args[0])
				}, func(out map[string]any) error {
					return renderSimpleOK(out, "Slot deleted.")
				})
			},
		},
	)
	return saves
}

func newLoopCmd(a *app) *cobra.Command {
	loop := &cobra.Command{
		Use:   "loop",
		Short: "Inspect or control the server tick loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
				return c.LoopStatus(ctx)
			}, renderLoop)
		},
	}
	loop.AddCommand(
		&cobra.Command{
			Use:   "pause",
			Short: "Stop advancing time",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
					return c.PauseLoop(ctx)
				}, renderLoop)
			},
		},
		&cobra.Command{
			Use:   "resume",
			Short: "Resume advancing time",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
					return c.ResumeLoop(ctx)
				}, renderLoop)
			},
		},
	)
	return loop
}

func newDebugCmd(a *app) *cobra.Command {
	debug := &cobra.Command{
		Use:    "debug",
		Short:  "Debug helpers (server must run with MARKETLIFE_DEBUG=true)",
		Hidden: true,
	}
	debug.AddCommand(&cobra.Command{
		Use:   "cash AMOUNT",
		Short: "Set wallet cash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
			if err != nil || amount < 0 {
				return fmt.Errorf("amount must be a non-negative number")
			}
			return a.call(cmd, func(ctx context.Context, c *cl.Client) (map[string]any, error) {
				return c.DebugCash(ctx, game.StonkyToMicros(amount))
			}, renderDashboard)
		},
	})
	return debug
}

func symbolFromArgsOrPrompt(args []string) (string, error) {
	if len(args) > 0 {
		symbol := strings.ToUpper(strings.TrimSpace(args[0]))
		if err := game.ValidateSymbol(symbol); err != nil {
			return "", err
		}
		return symbol, nil
	}
	return promptSymbol("Symbol")
}
