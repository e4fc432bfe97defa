package game

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/google/uuid"
)

type Board string

const (
	BoardHTS    Board = "hts"
	BoardGlobal Board = "global"
)

func ParseBoard(s string) (Board, error) {
	switch Board(strings.ToLower(strings.TrimSpace(s))) {
	case BoardHTS:
		return BoardHTS, nil
	case BoardGlobal:
		return BoardGlobal, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownBoard, s)
	}
}

type Sentiment string

const (
	SentimentBull    Sentiment = "bull"
	SentimentBear    Sentiment = "bear"
	SentimentNeutral Sentiment = "neutral"
)

type Post struct {
	ID        string    `json:"id"`
	Board     Board     `json:"board"`
	Symbol    string    `json:"symbol,omitempty"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Sentiment Sentiment `json:"sentiment"`
	Tick      int64     `json:"tick"`
	Day       int       `json:"day"`
}

type PostTemplates struct {
	Authors       []string `yaml:"authors" json:"authors"`
	Bull          []string `yaml:"bull" json:"bull"`
	Bear          []string `yaml:"bear" json:"bear"`
	Neutral       []string `yaml:"neutral" json:"neutral"`
	EventReaction []string `yaml:"event_reaction" json:"event_reaction"`
	OpenBell      []string `yaml:"open_bell" json:"open_bell"`
	CloseBell     []string `yaml:"close_bell" json:"close_bell"`
}

type CommunityConfig struct {
	PriceMoveBps     int     `json:"price_move_bps"`
	VolumeSpikeX     float64 `json:"volume_spike_x"`
	BurstSize        int     `json:"burst_size"`
	BurstSpreadTicks int     `json:"burst_spread_ticks"`
	CooldownTicks    int     `json:"cooldown_ticks"`
	ChatterEvery     int     `json:"chatter_every"`
	FeedLimit        int     `json:"feed_limit"`
}

func DefaultCommunityConfig() CommunityConfig {
	return CommunityConfig{
		PriceMoveBps:     150,
		VolumeSpikeX:     3.5,
		BurstSize:        3,
		BurstSpreadTicks: 6,
		CooldownTicks:    20,
		ChatterEvery:     15,
		FeedLimit:        200,
	}
}

type scheduledPost struct {
	At   int64 `json:"at"`
	Post Post  `json:"post"`
}

type communityState struct {
	Pending  []scheduledPost  `json:"pending"`
	Feed     []Post           `json:"feed"`
	Cooldown map[string]int64 `json:"cooldown,omitempty"`
}

// poster is the shared scheduling core of both boards: posts wait in a
// pending list until their publish tick, then land in a bounded feed,
// newest first.
type poster struct {
	board Board
	cfg   CommunityConfig
	tpl   PostTemplates
	st    communityState
}

func newPoster(board Board, cfg CommunityConfig, tpl PostTemplates) poster {
	return poster{
		board: board,
		cfg:   cfg,
		tpl:   tpl,
		st:    communityState{Cooldown: map[string]int64{}},
	}
}

func (p *poster) schedule(at int64, post Post) {
	post.ID = uuid.NewString()
	post.Board = p.board
	post.Tick = at
	p.st.Pending = append(p.st.Pending, scheduledPost{At: at, Post: post})
}

func (p *poster) burst(tick int64, post Post, templates []string, vars postVars, rng *rand.Rand) {
	spread := p.cfg.BurstSpreadTicks
	if spread < 1 {
		spread = 1
	}
	for i := 0; i < p.cfg.BurstSize; i++ {
		cp := post
		cp.Author = pickAuthor(p.tpl.Authors, rng)
		cp.Body = renderTemplate(pickTemplate(templates, rng), vars)
		p.schedule(tick+1+int64(rng.Intn(spread)), cp)
	}
}

// Publish moves every post due at or before tick into the feed.
func (p *poster) Publish(tick int64) []Post {
	var due []Post
	kept := p.st.Pending[:0]
	for _, sp := range p.st.Pending {
		if sp.At <= tick {
			due = append(due, sp.Post)
			continue
		}
		kept = append(kept, sp)
	}
	p.st.Pending = kept
	if len(due) == 0 {
		return nil
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].Tick < due[j].Tick })
	for _, post := range due {
		p.st.Feed = append([]Post{post}, p.st.Feed...)
	}
	if p.cfg.FeedLimit > 0 && len(p.st.Feed) > p.cfg.FeedLimit {
		p.st.Feed = p.st.Feed[:p.cfg.FeedLimit]
	}
	return due
}

func (p *poster) Feed(symbol string, limit int) []Post {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	out := make([]Post, 0)
	for _, post := range p.st.Feed {
		if symbol != "" && post.Symbol != symbol {
			continue
		}
		out = append(out, post)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (p *poster) Pending() int {
	return len(p.st.Pending)
}

func (p *poster) state() communityState {
	cd := make(map[string]int64, len(p.st.Cooldown))
	for k, v := range p.st.Cooldown {
		cd[k] = v
	}
	return communityState{
		Pending:  append([]scheduledPost(nil), p.st.Pending...),
		Feed:     append([]Post(nil), p.st.Feed...),
		Cooldown: cd,
	}
}

func (p *poster) restore(st communityState) {
	p.st = communityState{
		Pending:  append([]scheduledPost(nil), st.Pending...),
		Feed:     append([]Post(nil), st.Feed...),
		Cooldown: map[string]int64{},
	}
	for k, v := range st.Cooldown {
		p.st.Cooldown[k] = v
	}
}

// HTSCommunity is the per-stock discussion board inside the trading app.
type HTSCommunity struct {
	poster
}

func NewHTSCommunity(cfg CommunityConfig, tpl PostTemplates) *HTSCommunity {
	return &HTSCommunity{poster: newPoster(BoardHTS, cfg, tpl)}
}

// Observe reacts to the latest tick: a big price move or a volume spike on
// a stock triggers a burst of posts, throttled per symbol.
func (h *HTSCommunity) Observe(tick int64, day int, quotes []Quote, rng *rand.Rand) {
	for _, q := range quotes {
		moveBps := math.Abs(q.LastReturn) * 10_000
		moved := h.cfg.PriceMoveBps > 0 && moveBps >= float64(h.cfg.PriceMoveBps)
		spiked := h.cfg.VolumeSpikeX > 0 && q.BaseVolume > 0 && float64(q.TickVolume) >= h.cfg.VolumeSpikeX*float64(q.BaseVolume)
		if !moved && !spiked {
			continue
		}
		if until, ok := h.st.Cooldown[q.Symbol]; ok && tick < until {
			continue
		}
		sentiment := sentimentOf(q.LastReturn)
		h.burst(tick, Post{Symbol: q.Symbol, Sentiment: sentiment, Day: day}, h.templatesFor(sentiment), quoteVars(q, q.LastReturn), rng)
		h.st.Cooldown[q.Symbol] = tick + int64(h.cfg.CooldownTicks)
	}

	if h.cfg.ChatterEvery > 0 && tick%int64(h.cfg.ChatterEvery) == 0 && len(quotes) > 0 {
		q := quotes[rng.Intn(len(quotes))]
		sentiment := sentimentOf(q.DayChange())
		h.schedule(tick+1, Post{
			Symbol:    q.Symbol,
			Sentiment: sentiment,
			Day:       day,
			Author:    pickAuthor(h.tpl.Authors, rng),
			Body:      renderTemplate(pickTemplate(h.templatesFor(sentiment), rng), quoteVars(q, q.DayChange())),
		})
	}
}

func (h *HTSCommunity) templatesFor(s Sentiment) []string {
	switch s {
	case SentimentBull:
		return h.tpl.Bull
	case SentimentBear:
		return h.tpl.Bear
	default:
		return h.tpl.Neutral
	}
}

// GlobalCommunity is the market-wide feed: event reactions and bell posts.
type GlobalCommunity struct {
	poster
}

func NewGlobalCommunity(cfg CommunityConfig, tpl PostTemplates) *GlobalCommunity {
	return &GlobalCommunity{poster: newPoster(BoardGlobal, cfg, tpl)}
}

func (g *GlobalCommunity) OnEvent(tick int64, day int, inst EventInstance, index int64, rng *rand.Rand) {
	bias := 0.0
	for _, eff := range inst.Effects {
		bias += eff.Bias
	}
	vars := postVars{headline: inst.Headline, index: index}
	g.burst(tick, Post{Sentiment: sentimentOf(bias), Day: day}, g.tpl.EventReaction, vars, rng)
}

func (g *GlobalCommunity) OnOpen(tick int64, day int, index int64, rng *rand.Rand) {
	g.schedule(tick, Post{
		Sentiment: SentimentNeutral,
		Day:       day,
		Author:    pickAuthor(g.tpl.Authors, rng),
		Body:      renderTemplate(pickTemplate(g.tpl.OpenBell, rng), postVars{index: index}),
	})
}

func (g *GlobalCommunity) OnClose(tick int64, day int, change float64, index int64, rng *rand.Rand) {
	g.schedule(tick, Post{
		Sentiment: sentimentOf(change),
		Day:       day,
		Author:    pickAuthor(g.tpl.Authors, rng),
		Body:      renderTemplate(pickTemplate(g.tpl.CloseBell, rng), postVars{pct: change, index: index}),
	})
}

// Observe posts market-wide chatter about the index at half the HTS rate.
func (g *GlobalCommunity) Observe(tick int64, day int, index, openIndex int64, rng *rand.Rand) {
	every := int64(g.cfg.ChatterEvery) * 2
	if every <= 0 || tick%every != 0 {
		return
	}
	change := 0.0
	if openIndex > 0 {
		change = float64(index-openIndex) / float64(openIndex)
	}
	sentiment := sentimentOf(change)
	var templates []string
	switch sentiment {
	case SentimentBull:
		templates = g.tpl.Bull
	case SentimentBear:
		templates = g.tpl.Bear
	default:
		templates = g.tpl.Neutral
	}
	g.schedule(tick+1, Post{
		Sentiment: sentiment,
		Day:       day,
		Author:    pickAuthor(g.tpl.Authors, rng),
		Body:      renderTemplate(pickTemplate(templates, rng), postVars{symbol: "INDEX", name: "market index", pct: change, price: index, index: index}),
	})
}

func sentimentOf(v float64) Sentiment {
	switch {
	case v > 0:
		return SentimentBull
	case v < 0:
		return SentimentBear
	default:
		return SentimentNeutral
	}
}

type postVars struct {
	symbol   string
	name     string
	pct      float64
	price    int64
	headline string
	index    int64
}

func quoteVars(q Quote, pct float64) postVars {
	return postVars{symbol: q.Symbol, name: q.Name, pct: pct, price: q.PriceMicros}
}

func renderTemplate(tpl string, v postVars) string {
	r := strings.NewReplacer(
		"{symbol}", v.symbol,
		"{name}", v.name,
		"{pct}", fmt.Sprintf("%+.2f%%", v.pct*100),
		"{price}", fmt.Sprintf("%.2f", MicrosToStonky(v.price)),
		"{headline}", v.headline,
		"{index}", fmt.Sprintf("%.2f", MicrosToStonky(v.index)),
	)
	return r.Replace(tpl)
}

func pickTemplate(list []string, rng *rand.Rand) string {
	if len(list) == 0 {
		return "{symbol} {pct}"
	}
	return list[rng.Intn(len(list))]
}

func pickAuthor(list []string, rng *rand.Rand) string {
	if len(list) == 0 {
		return "anon"
	}
	return list[rng.Intn(len(list))]
}
