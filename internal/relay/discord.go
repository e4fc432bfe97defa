// Package relay forwards community posts to a Discord channel.
package relay

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"marketlife/internal/game"
)

// Discord caps message content at 2000 characters.
const maxMessageLen = 2000

type sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Discord struct {
	client    sender
	channelID string
}

func NewDiscord(token, channelID string) (*Discord, error) {
	token = strings.TrimSpace(token)
	channelID = strings.TrimSpace(channelID)
	if token == "" || channelID == "" {
		return nil, fmt.Errorf("discord token and channel are required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &Discord{client: s, channelID: channelID}, nil
}

// PublishPosts packs posts into as few messages as fit and sends them in
// order. It stops at the first failed send.
func (d *Discord) PublishPosts(ctx context.Context, posts []game.Post) error {
	for _, msg := range pack(posts, maxMessageLen) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := d.client.ChannelMessageSend(d.channelID, msg, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("discord send: %w", err)
		}
	}
	return nil
}

func formatPost(p game.Post) string {
	var b strings.Builder
	b.WriteString(sentimentMark(p.Sentiment))
	b.WriteString(" **")
	b.WriteString(strings.ToUpper(string(p.Board)))
	if p.Symbol != "" {
		b.WriteString(" $")
		b.WriteString(p.Symbol)
	}
	b.WriteString("** ")
	b.WriteString(p.Author)
	fmt.Fprintf(&b, " (day %d): ", p.Day)
	b.WriteString(p.Body)
	return b.String()
}

func sentimentMark(s game.Sentiment) string {
	switch s {
	case game.SentimentBull:
		return "▲"
	case game.SentimentBear:
		return "▼"
	default:
		return "•"
	}
}

func pack(posts []game.Post, limit int) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, p := range posts {
		line := formatPost(p)
		if len(line) > limit {
			cut := limit - 3
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			line = line[:cut] + "..."
		}
		if cur.Len() > 0 && cur.Len()+1+len(line) > limit {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
