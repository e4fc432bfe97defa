package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	cl "marketlife/internal/cli"
	"marketlife/internal/game"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	upStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	downStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("6")).Padding(0, 1)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

const watchFeedLimit = 8

func newWatchCmd(a *app) *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard that refreshes until you press q",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("watch needs an interactive terminal; use `mlx dash` instead")
			}
			if every < 200*time.Millisecond {
				return fmt.Errorf("--every must be at least 200ms (got %s)", every)
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			m := newWatchModel(cmd.Context(), client, every)
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().DurationVar(&every, "every", time.Second, "refresh interval")
	return cmd
}

type snapshotMsg struct {
	dash   game.Dashboard
	clock  game.ClockView
	posts  []game.Post
	err    error
	at     time.Time
	manual bool // manual refreshes do not schedule another tick
}

type refreshMsg time.Time

type watchModel struct {
	ctx     context.Context
	client  *cl.Client
	every   time.Duration
	width   int
	dash    game.Dashboard
	clock   game.ClockView
	posts   []game.Post
	loaded  bool
	err     error
	updated time.Time
}

func newWatchModel(ctx context.Context, client *cl.Client, every time.Duration) watchModel {
	if ctx == nil {
		ctx = context.Background()
	}
	return watchModel{ctx: ctx, client: client, every: every}
}

func (m watchModel) Init() tea.Cmd {
	return m.fetch(false)
}

func (m watchModel) fetch(manual bool) tea.Cmd {
	ctx, client, every := m.ctx, m.client, m.every
	return func() tea.Msg {
		reqCtx, cancel := context.WithTimeout(ctx, every+5*time.Second)
		defer cancel()
		snap := loadSnapshot(reqCtx, client)
		snap.manual = manual
		return snap
	}
}

func (m watchModel) tick() tea.Cmd {
	return tea.Tick(m.every, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func loadSnapshot(ctx context.Context, client *cl.Client) snapshotMsg {
	out := snapshotMsg{at: time.Now()}
	raw, err := client.Dashboard(ctx)
	if err != nil {
		out.err = err
		return out
	}
	if out.dash, err = decodeInto[game.Dashboard](raw); err != nil {
		out.err = err
		return out
	}
	raw, err = client.Clock(ctx)
	if err != nil {
		out.err = err
		return out
	}
	if out.clock, err = decodeInto[game.ClockView](raw); err != nil {
		out.err = err
		return out
	}
	raw, err = client.Feed(ctx, string(game.BoardHTS), "", watchFeedLimit)
	if err != nil {
		out.err = err
		return out
	}
	feed, err := decodeInto[feedPayload](raw)
	if err != nil {
		out.err = err
		return out
	}
	out.posts = feed.Posts
	return out
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.fetch(true)
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case refreshMsg:
		return m, m.fetch(false)
	case snapshotMsg:
		m.err = msg.err
		if msg.err == nil {
			m.dash, m.clock, m.posts = msg.dash, msg.clock, msg.posts
			m.loaded = true
			m.updated = msg.at
		}
		if msg.manual {
			return m, nil
		}
		return m, m.tick()
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("MARKETLIFE · live"))
	b.WriteString("\n\n")

	if !m.loaded {
		if m.err != nil {
			b.WriteString(errStyle.Render("error: " + m.err.Error()))
		} else {
			b.WriteString("loading...")
		}
		b.WriteString("\n\n" + labelStyle.Render("q quit · r refresh"))
		return b.String()
	}

	d := m.dash
	status := fmt.Sprintf("Day %d · %s · tick %d · next phase in %d",
		d.Day, phaseLabel(d.Phase), d.Tick, m.clock.TicksUntilNextPhase)
	if d.GameOver {
		status += " · " + errStyle.Render("GAME OVER")
	}

	stats := strings.Join([]string{
		row("Cash", formatMicros(d.CashMicros)),
		row("Net worth", formatMicros(d.NetWorthMicros)),
		row("HP", fmt.Sprintf("%d/%d", d.HP, game.MaxHP)),
		row("Index", fmt.Sprintf("%s (%s)", formatMicros(d.IndexMicros), d.Regime)),
		row("Bills", fmt.Sprintf("%s (%d overdue)", formatMicros(d.OutstandingMicros), d.OverdueBills)),
		row("Events", fmt.Sprintf("%d active", d.ActiveEvents)),
	}, "\n")

	var pos []string
	if len(d.Positions) == 0 {
		pos = append(pos, labelStyle.Render("no positions"))
	}
	for _, p := range d.Positions {
		pl := formatMicros(p.UnrealizedMicros)
		switch {
		case p.UnrealizedMicros > 0:
			pl = upStyle.Render("+" + pl)
		case p.UnrealizedMicros < 0:
			pl = downStyle.Render(pl)
		}
		pos = append(pos, fmt.Sprintf("%-7s %9.4f @ %s  %s", p.Symbol, game.UnitsToShares(p.QuantityUnits), formatMicros(p.CurrentPriceMicros), pl))
	}

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Render(stats),
		boxStyle.Render(strings.Join(pos, "\n")),
	)

	var feed []string
	for _, p := range m.posts {
		line := fmt.Sprintf("@%s: %s", p.Author, p.Body)
		if m.width > 8 {
			line = truncate(line, m.width-6)
		}
		switch p.Sentiment {
		case game.SentimentBull:
			line = upStyle.Render("▲ ") + line
		case game.SentimentBear:
			line = downStyle.Render("▼ ") + line
		default:
			line = "• " + line
		}
		feed = append(feed, line)
	}
	if len(feed) == 0 {
		feed = append(feed, labelStyle.Render("quiet on HTS"))
	}

	b.WriteString(status + "\n")
	b.WriteString(top + "\n")
	b.WriteString(boxStyle.Render(strings.Join(feed, "\n")) + "\n")
	footer := "q quit · r refresh · updated " + m.updated.Format("15:04:05")
	if m.err != nil {
		footer += " · " + errStyle.Render("stale: "+m.err.Error())
	}
	b.WriteString(labelStyle.Render(footer))
	return b.String()
}

func row(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-10s", label)) + " " + value
}
