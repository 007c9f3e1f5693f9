// Package discord is the chat surface: it parses prefixed commands, calls the
// engine and renders outcomes as embeds. It holds no game rules.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"hustle/internal/game"
	"hustle/internal/market"
)

const commandTimeout = 15 * time.Second

type Bot struct {
	session *discordgo.Session
	game    *game.Service
	market  *market.Oracle
	log     *slog.Logger
	prefix  string
	now     func() time.Time
	ctx     context.Context
}

func newBot(svc *game.Service, oracle *market.Oracle, logger *slog.Logger, prefix string) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = "!"
	}
	return &Bot{
		game:   svc,
		market: oracle,
		log:    logger,
		prefix: prefix,
		now:    time.Now,
		ctx:    context.Background(),
	}
}

// New builds a bot on a gateway session. Nothing connects until Run.
func New(token, prefix string, svc *game.Service, oracle *market.Oracle, logger *slog.Logger) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("discord token is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentDirectMessages | discordgo.IntentMessageContent
	b := newBot(svc, oracle, logger, prefix)
	b.session = s
	s.AddHandler(b.onReady)
	s.AddHandler(b.onMessage)
	return b, nil
}

// Run connects and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	<-ctx.Done()
	b.log.Info("discord shutdown")
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("close discord session: %w", err)
	}
	return nil
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("discord connected", "user", r.User.Username, "guilds", len(r.Guilds), "prefix", b.prefix)
}

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()
	embed := b.handle(ctx, m.Author.ID, m.ID, m.Content)
	if embed == nil {
		return
	}
	if _, err := s.ChannelMessageSendEmbed(m.ChannelID, embed); err != nil {
		b.log.Error("send reply failed", "channel_id", m.ChannelID, "err", err)
	}
}

// handle turns one message into a reply embed, or nil when the message is
// not a command.
func (b *Bot) handle(ctx context.Context, userID, messageID, content string) *discordgo.MessageEmbed {
	name, args, ok := parseInvocation(content, b.prefix)
	if !ok {
		return nil
	}
	cmd, ok := lookup(name)
	if !ok {
		return notFoundEmbed(b.prefix, name, suggest(name, commandNames()))
	}
	if len(args) < cmd.MinArgs {
		return usageEmbed(b.prefix, cmd)
	}
	embed, err := cmd.run(b, ctx, call{UserID: userID, MessageID: messageID, Args: args})
	switch {
	case errors.Is(err, errUsage):
		return usageEmbed(b.prefix, cmd)
	case err != nil:
		b.log.Error("command failed", "command", cmd.Name, "user_id", userID, "err", err)
		return errorEmbed()
	}
	return embed
}
