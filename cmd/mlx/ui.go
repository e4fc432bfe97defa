package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"marketlife/internal/game"
	"marketlife/internal/runner"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type stocksPayload struct {
	Stocks []game.StockView `json:"stocks"`
}

type ordersPayload struct {
	Orders []game.OrderView `json:"orders"`
}

type feedPayload struct {
	Posts []game.Post `json:"posts"`
}

type restOptionsPayload struct {
	Options []game.RestOption `json:"options"`
}

type savesPayload struct {
	Current string          `json:"current"`
	Slots   []game.SlotInfo `json:"slots"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptFloat(label string, min float64) (float64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			printWarn("Enter a valid number.")
			continue
		}
		if v <= min {
			printWarn(fmt.Sprintf("Value must be > %.4f", min))
			continue
		}
		return v, nil
	}
}

func promptSymbol(label string) (string, error) {
	for {
		symbol, err := promptRequired(label)
		if err != nil {
			return "", err
		}
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if err := game.ValidateSymbol(symbol); err != nil {
			printWarn(err.Error())
			continue
		}
		return symbol, nil
	}
}

func renderDashboard(raw map[string]any) error {
	d, err := decodeInto[game.Dashboard](raw)
	if err != nil {
		return err
	}

	accent.Printf("\n== DAY %d · %s · slot %s ==\n", d.Day, phaseLabel(d.Phase), d.Slot)
	if d.GameOver {
		danger.Println("GAME OVER: you ran out of HP.")
	}
	openPL := int64(0)
	for _, p := range d.Positions {
		openPL += p.UnrealizedMicros
	}

	fmt.Printf("Cash:               %s stonky\n", formatMicros(d.CashMicros))
	fmt.Printf("Net Worth:          %s stonky\n", formatMicros(d.NetWorthMicros))
	fmt.Printf("Peak Net Worth:     %s stonky\n", formatMicros(d.PeakNetWorthMicros))
	fmt.Printf("P/L vs Start:       %s stonky\n", colorizeMicros(d.NetWorthMicros-game.StarterCashMicros))
	fmt.Printf("Open Position P/L:  %s stonky\n", colorizeMicros(openPL))
	fmt.Printf("HP:                 %s\n", hpBar(d.HP))
	fmt.Printf("Market:             %s, index %s\n", d.Regime, formatMicros(d.IndexMicros))
	fmt.Printf("Bills outstanding:  %s stonky", formatMicros(d.OutstandingMicros))
	if d.OverdueBills > 0 {
		danger.Printf(" (%d overdue)", d.OverdueBills)
	}
	fmt.Println()
	fmt.Printf("Active events:      %d\n", d.ActiveEvents)

	fmt.Println()
	accent.Println("Positions")
	if len(d.Positions) == 0 {
		printInfo("No open positions yet.")
	} else {
		fmt.Printf("%-8s %-22s %10s %12s %12s %9s %14s %14s\n", "SYMBOL", "NAME", "QTY", "BUY", "NOW", "DELTA%", "VALUE", "P/L")
		for _, p := range d.Positions {
			deltaPct := 0.0
			if p.AvgPriceMicros != 0 {
				deltaPct = float64(p.CurrentPriceMicros-p.AvgPriceMicros) / float64(p.AvgPriceMicros) * 100
			}
			fmt.Printf("%-8s %-22s %10.4f %12s %12s %9s %14s %14s\n",
				p.Symbol,
				truncate(p.DisplayName, 22),
				game.UnitsToShares(p.QuantityUnits),
				formatMicros(p.AvgPriceMicros),
				formatMicros(p.CurrentPriceMicros),
				colorizePercent(deltaPct),
				formatMicros(orderNotional(p.CurrentPriceMicros, p.QuantityUnits)),
				colorizeMicros(p.UnrealizedMicros),
			)
		}
	}
	fmt.Println()
	return nil
}

func renderAdvance(raw map[string]any) error {
	res, err := decodeInto[game.AdvanceResult](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== +%d TICKS → day %d, %s ==\n", res.Ticks, res.Clock.Day, phaseLabel(res.Clock.Phase))
	for _, tr := range res.Transitions {
		fmt.Printf("tick %-6d day %-3d %s → %s\n", tr.Tick, tr.Day, phaseLabel(tr.From), phaseLabel(tr.To))
	}
	for _, ev := range res.Revealed {
		warn.Printf("NEWS  %s\n", ev.Headline)
	}
	for _, bill := range res.Issued {
		fmt.Printf("BILL  %-12s %s stonky due day %d\n", bill.Name, formatMicros(bill.AmountMicros), bill.DueDay)
	}
	for _, p := range res.Penalties {
		danger.Printf("LATE  %-12s fine %s, -%d HP\n", p.Account, formatMicros(p.FineMicros), p.HP)
	}
	if res.Posts > 0 {
		printInfo(fmt.Sprintf("%d new community posts.", res.Posts))
	}
	if res.GameOver {
		danger.Println("GAME OVER: you ran out of HP.")
	}
	fmt.Println()
	return nil
}

func renderClock(raw map[string]any) error {
	c, err := decodeInto[game.ClockView](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== DAY %d ==\n", c.Day)
	fmt.Printf("Phase:      %s\n", phaseLabel(c.Phase))
	fmt.Printf("Tick:       %d\n", c.Tick)
	fmt.Printf("Next phase: in %d ticks\n", c.TicksUntilNextPhase)
	fmt.Printf("Day length: %d premarket / %d open / %d settlement\n", c.Phases.PreMarket, c.Phases.MarketOpen, c.Phases.Settlement)
	fmt.Println()
	return nil
}

func renderStocksList(raw map[string]any) error {
	payload, err := decodeInto[stocksPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== STOCK MARKET ==")
	if len(payload.Stocks) == 0 {
		printInfo("No stocks found.")
		return nil
	}
	fmt.Printf("%-8s %-24s %-10s %12s %9s %10s\n", "SYMBOL", "NAME", "SECTOR", "PRICE", "DAY", "VOLUME")
	for _, s := range payload.Stocks {
		fmt.Printf("%-8s %-24s %-10s %12s %9s %10d\n",
			s.Symbol,
			truncate(s.DisplayName, 24),
			truncate(s.Sector, 10),
			formatMicros(s.CurrentPriceMicros),
			colorizePercent(s.DayChange*100),
			s.DayVolume,
		)
	}
	fmt.Println()
	return nil
}

func renderStockDetail(raw map[string]any) error {
	detail, err := decodeInto[game.StockDetail](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== %s (%s) ==\n", detail.Symbol, detail.DisplayName)
	fmt.Printf("Current Price: %s stonky (%s)\n", formatMicros(detail.CurrentPriceMicros), colorizePercent(detail.DayChange*100))
	fmt.Printf("Open/High/Low: %s / %s / %s\n", formatMicros(detail.OpenMicros), formatMicros(detail.HighMicros), formatMicros(detail.LowMicros))
	fmt.Printf("Prev Close:    %s\n", formatMicros(detail.PrevCloseMicros))

	if len(detail.Series) > 1 {
		latest := detail.Series[len(detail.Series)-1].PriceMicros
		oldest := detail.Series[0].PriceMicros
		fmt.Printf("Trend (recent): %s stonky\n", colorizeMicros(latest-oldest))
	}

	if len(detail.Series) > 0 {
		fmt.Println()
		accent.Println("Recent Ticks")
		fmt.Printf("%-6s %-8s %12s\n", "DAY", "TICK", "PRICE")
		start := len(detail.Series) - 8
		if start < 0 {
			start = 0
		}
		for i := len(detail.Series) - 1; i >= start; i-- {
			point := detail.Series[i]
			fmt.Printf("%-6d %-8d %12s\n", point.Day, point.Tick, formatMicros(point.PriceMicros))
		}
	}
	fmt.Println()
	return nil
}

func renderOrderResult(raw map[string]any, side, symbol string, qty float64) error {
	out, err := decodeInto[game.OrderResult](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== ORDER %s ==\n", strings.ToUpper(side))
	fmt.Printf("Symbol:  %s\n", strings.ToUpper(symbol))
	fmt.Printf("Shares:  %.4f\n", qty)
	fmt.Printf("Price:   %s stonky\n", formatMicros(out.PriceMicros))
	fmt.Printf("Notional:%s stonky\n", formatMicros(out.NotionalMicros))
	fmt.Printf("Fee:     %s stonky\n", formatMicros(out.FeeMicros))
	fmt.Printf("Cash:    %s stonky\n", formatMicros(out.CashMicros))
	fmt.Println()
	return nil
}

func renderOrders(raw map[string]any) error {
	out, err := decodeInto[ordersPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== RECENT ORDERS ==")
	if len(out.Orders) == 0 {
		printInfo("No orders yet.")
		return nil
	}
	fmt.Printf("%-5s %-8s %-8s %-5s %10s %12s %10s\n", "DAY", "TICK", "SYMBOL", "SIDE", "QTY", "PRICE", "FEE")
	for _, o := range out.Orders {
		fmt.Printf("%-5d %-8d %-8s %-5s %10.4f %12s %10s\n",
			o.Day, o.Tick, o.Symbol, o.Side,
			game.UnitsToShares(o.QuantityUnits),
			formatMicros(o.PriceMicros),
			formatMicros(o.FeeMicros),
		)
	}
	fmt.Println()
	return nil
}

func renderEvents(raw map[string]any) error {
	out, err := decodeInto[game.EventsView](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== MARKET EVENTS ==")
	if out.Upcoming > 0 {
		printInfo(fmt.Sprintf("%d more scheduled today.", out.Upcoming))
	}
	if len(out.Active) == 0 {
		printInfo("Nothing moving the market right now.")
	}
	for _, ev := range out.Active {
		warn.Printf("LIVE  %s\n", ev.Headline)
		if ev.Body != "" {
			fmt.Printf("      %s\n", ev.Body)
		}
	}
	if len(out.History) > 0 {
		fmt.Println()
		accent.Println("History")
		for _, ev := range out.History {
			fmt.Printf("tick %-6d %-8s %s\n", ev.RevealTick, ev.State, ev.Headline)
		}
	}
	fmt.Println()
	return nil
}

func renderExpenses(raw map[string]any) error {
	out, err := decodeInto[game.ExpensesView](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== BILLS ==")
	if len(out.Bills) == 0 {
		printSuccess("All paid up.")
		return nil
	}
	fmt.Printf("%-12s %-18s %8s %12s %12s %8s\n", "ACCOUNT", "NAME", "DUE DAY", "AMOUNT", "REMAINING", "STATUS")
	for _, b := range out.Bills {
		status := neutral.Sprint("open")
		if b.Overdue {
			status = danger.Sprint("LATE")
		}
		fmt.Printf("%-12s %-18s %8d %12s %12s %8s\n",
			b.Account,
			truncate(b.Name, 18),
			b.DueDay,
			formatMicros(b.AmountMicros),
			formatMicros(b.RemainingMicros),
			status,
		)
	}
	fmt.Printf("\nTotal outstanding: %s stonky\n\n", formatMicros(out.TotalMicros))
	return nil
}

func renderPayment(raw map[string]any) error {
	out, err := decodeInto[game.PayExpenseResult](raw)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Paid %s stonky to %s.", formatMicros(out.AppliedMicros), out.Account))
	if len(out.Settled) > 0 {
		printInfo(fmt.Sprintf("Settled %d bill(s).", len(out.Settled)))
	}
	if out.ChangeMicros > 0 {
		printInfo(fmt.Sprintf("%s stonky was not needed and stays in your wallet.", formatMicros(out.ChangeMicros)))
	}
	fmt.Printf("Cash: %s stonky\n", formatMicros(out.CashMicros))
	return nil
}

func renderRestOptions(raw map[string]any) error {
	out, err := decodeInto[restOptionsPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== REST ==")
	fmt.Printf("%-10s %-24s %10s %6s\n", "ID", "NAME", "COST", "HP")
	for _, o := range out.Options {
		fmt.Printf("%-10s %-24s %10.2f %+6d\n", o.ID, truncate(o.Name, 24), o.Cost, o.HP)
	}
	fmt.Println()
	return nil
}

func renderRest(raw map[string]any) error {
	out, err := decodeInto[game.RestResult](raw)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("%s done.", out.Option.Name))
	fmt.Printf("HP:   %s\n", hpBar(out.HP))
	fmt.Printf("Cash: %s stonky\n", formatMicros(out.CashMicros))
	return nil
}

func renderFeed(raw map[string]any, board string) error {
	out, err := decodeInto[feedPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== %s BOARD ==\n", strings.ToUpper(board))
	if len(out.Posts) == 0 {
		printInfo("Quiet in here.")
		return nil
	}
	for _, p := range out.Posts {
		fmt.Println(formatPostLine(p))
	}
	fmt.Println()
	return nil
}

func formatPostLine(p game.Post) string {
	mark := neutral.Sprint("•")
	switch p.Sentiment {
	case game.SentimentBull:
		mark = success.Sprint("▲")
	case game.SentimentBear:
		mark = danger.Sprint("▼")
	}
	who := "@" + p.Author
	if p.Symbol != "" {
		who += " $" + p.Symbol
	}
	return fmt.Sprintf("%s d%d t%-5d %-28s %s", mark, p.Day, p.Tick, truncate(who, 28), p.Body)
}

func renderSaves(raw map[string]any) error {
	out, err := decodeInto[savesPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== SAVE SLOTS ==")
	if len(out.Slots) == 0 {
		printInfo("No saves yet.")
		return nil
	}
	fmt.Printf("  %-20s %5s %8s %14s %-20s\n", "SLOT", "DAY", "TICK", "NET WORTH", "SAVED")
	for _, s := range out.Slots {
		cur := " "
		if s.Slot == out.Current {
			cur = "*"
		}
		fmt.Printf("%s %-20s %5d %8d %14s %-20s\n", cur, s.Slot, s.Day, s.Tick,
			formatMicros(s.NetWorthMicros), s.SavedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Println()
	return nil
}

func renderSaved(raw map[string]any) error {
	out, err := decodeInto[game.SlotInfo](raw)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Saved to %s (day %d, tick %d).", out.Slot, out.Day, out.Tick))
	return nil
}

func renderLoop(raw map[string]any) error {
	out, err := decodeInto[runner.Status](raw)
	if err != nil {
		return err
	}
	state := success.Sprint("running")
	if out.Paused {
		state = warn.Sprint("paused")
	}
	fmt.Printf("Loop:      %s\n", state)
	fmt.Printf("Cadence:   %d tick(s) every %s\n", out.TicksPerStep, out.TickEvery)
	fmt.Printf("Autosave:  every %s\n", out.AutosaveEvery)
	fmt.Printf("Steps run: %d\n", out.Steps)
	return nil
}

func renderSimpleOK(raw map[string]any, successMessage string) error {
	ok := false
	if v, has := raw["ok"]; has {
		if b, isBool := v.(bool); isBool {
			ok = b
		}
	}
	if ok || successMessage != "" {
		printSuccess(successMessage)
		return nil
	}
	printInfo("Done.")
	return nil
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func phaseLabel(p game.Phase) string {
	switch p {
	case game.PhasePreMarket:
		return "pre-market"
	case game.PhaseMarketOpen:
		return "market open"
	case game.PhaseSettlement:
		return "settlement"
	default:
		return string(p)
	}
}

func hpBar(hp int) string {
	const width = 20
	if hp < 0 {
		hp = 0
	}
	filled := hp * width / game.MaxHP
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	text := fmt.Sprintf("%s %d/%d", bar, hp, game.MaxHP)
	switch {
	case hp <= game.MaxHP/4:
		return danger.Sprint(text)
	case hp <= game.MaxHP/2:
		return warn.Sprint(text)
	default:
		return success.Sprint(text)
	}
}

func colorizeMicros(v int64) string {
	text := signedMicros(v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func colorizePercent(v float64) string {
	text := fmt.Sprintf("%+.2f%%", v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func formatMicros(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := v / game.MicrosPerStonky
	frac := (v % game.MicrosPerStonky) / 10_000
	return fmt.Sprintf("%s%s.%02d", sign, comma(whole), frac)
}

func signedMicros(v int64) string {
	if v > 0 {
		return "+" + formatMicros(v)
	}
	return formatMicros(v)
}

func comma(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		b.WriteByte(',')
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func orderNotional(priceMicros, qtyUnits int64) int64 {
	return (priceMicros*qtyUnits + (game.ShareScale / 2)) / game.ShareScale
}
