// Package discord is the chat command surface. It turns prefix commands into
// reconciliations, and doubles as the recipient resolver and direct messenger
// used for download notifications.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-reqlarr/internal/domain"
	"github.com/tbourn/go-reqlarr/internal/services"
)

const (
	cmdRequestMovie  = "request_movie"
	cmdRequestSeries = "request_series"
	cmdHelp          = "help"

	genericFailure = "Something went wrong while recording your request. Please try again later."

	// resolveTimeout bounds the user lookup a dispatcher worker runs.
	resolveTimeout = 5 * time.Second
)

// Session is the subset of *discordgo.Session the bot talks to.
type Session interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
}

// Reconciler is the request pipeline behind the request commands.
type Reconciler interface {
	Reconcile(ctx context.Context, user string, kind domain.Kind, title string) (services.Outcome, error)
}

// Bot dispatches prefix commands read from guild channels and DMs.
type Bot struct {
	session    Session
	dg         *discordgo.Session // nil when built over a fake session
	reconciler Reconciler
	prefix     string
}

// New creates a gateway session for token. The connection is opened by Open.
func New(token, prefix string, rec Reconciler) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("discord: empty bot token")
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: new session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	b := newBot(dg, prefix, rec)
	b.dg = dg
	dg.AddHandler(b.onMessageCreate)
	dg.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		log.Info().Str("bot_user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord session ready")
	})
	return b, nil
}

func newBot(s Session, prefix string, rec Reconciler) *Bot {
	if prefix == "" {
		prefix = "!"
	}
	return &Bot{session: s, reconciler: rec, prefix: prefix}
}

// Open connects to the gateway.
func (b *Bot) Open() error {
	if b.dg == nil {
		return nil
	}
	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("discord: open: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (b *Bot) Close() error {
	if b.dg == nil {
		return nil
	}
	return b.dg.Close()
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil {
		return
	}
	b.handle(context.Background(), m.Message)
}

// handle runs one command and replies in the originating channel.
func (b *Bot) handle(ctx context.Context, m *discordgo.Message) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	name, arg, ok := b.parse(m.Content)
	if !ok {
		return
	}

	var reply string
	switch name {
	case cmdRequestMovie:
		reply = b.request(ctx, m.Author.Username, domain.KindMovie, name, arg)
	case cmdRequestSeries:
		reply = b.request(ctx, m.Author.Username, domain.KindSeries, name, arg)
	case cmdHelp:
		reply = b.helpText()
	default:
		log.Debug().Str("command", name).Str("author", m.Author.Username).Msg("unknown command")
		return
	}

	if _, err := b.session.ChannelMessageSend(m.ChannelID, reply, discordgo.WithContext(ctx)); err != nil {
		log.Warn().Err(err).Str("channel_id", m.ChannelID).Str("command", name).Msg("reply failed")
	}
}

// parse splits "<prefix><name> <arg...>". Command names are case-sensitive.
func (b *Bot) parse(content string) (name, arg string, ok bool) {
	rest, found := strings.CutPrefix(content, b.prefix)
	if !found || rest == "" {
		return "", "", false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 || !strings.HasPrefix(rest, fields[0]) {
		return "", "", false
	}
	name = fields[0]
	arg = strings.TrimSpace(strings.TrimPrefix(rest, name))
	return name, arg, true
}

func (b *Bot) request(ctx context.Context, user string, kind domain.Kind, name, title string) string {
	if title == "" {
		return b.usage(name)
	}
	out, err := b.reconciler.Reconcile(ctx, user, kind, title)
	switch {
	case err == nil:
		return out.Message
	case errors.Is(err, services.ErrPersistence):
		return genericFailure
	case errors.Is(err, services.ErrEmptyTitle):
		return b.usage(name)
	default:
		log.Error().Err(err).Str("command", name).Str("user", user).Msg("request command failed")
		return genericFailure
	}
}

func (b *Bot) usage(name string) string {
	return fmt.Sprintf("Usage: %s%s <title>", b.prefix, name)
}

func (b *Bot) helpText() string {
	var sb strings.Builder
	sb.WriteString("ReqLarr - Movie & Series Request Bot\n")
	fmt.Fprintf(&sb, "%s%s <title>  request a movie through Radarr\n", b.prefix, cmdRequestMovie)
	fmt.Fprintf(&sb, "%s%s <title>  request a series through Sonarr\n", b.prefix, cmdRequestSeries)
	fmt.Fprintf(&sb, "%s%s  show this message", b.prefix, cmdHelp)
	return sb.String()
}

// ResolveRecipient maps a webhook user to a Discord user id. Only numeric
// snowflakes of existing users resolve.
func (b *Bot) ResolveRecipient(ctx context.Context, user string) (string, error) {
	id := strings.TrimSpace(user)
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return "", fmt.Errorf("%w: %q is not a user id", services.ErrRecipientNotFound, user)
	}
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()
	u, err := b.session.User(id, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("%w: %w", services.ErrRecipientNotFound, err)
	}
	if u == nil || u.ID == "" {
		return "", fmt.Errorf("%w: %q", services.ErrRecipientNotFound, user)
	}
	return u.ID, nil
}

// SendDirect opens (or reuses) the DM channel with recipientID and posts text.
func (b *Bot) SendDirect(ctx context.Context, recipientID, text string) error {
	ch, err := b.session.UserChannelCreate(recipientID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: open dm: %w", err)
	}
	if _, err := b.session.ChannelMessageSend(ch.ID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send dm: %w", err)
	}
	return nil
}
