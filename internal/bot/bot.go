// Package bot exposes draft sessions to Discord: a /draft slash command opens
// sessions for a channel and confirmed results are announced back there.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/DoyleJ11/nabi-draft/internal/lobby"
	"github.com/DoyleJ11/nabi-draft/internal/result"
	"github.com/DoyleJ11/nabi-draft/internal/service"
)

const commandName = "draft"

// Session is the part of *discordgo.Session the bot talks to.
type Session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ApplicationCommandCreate(appID, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Config struct {
	ApplicationID string
	// GuildID registers the command for one guild only; empty registers it globally.
	GuildID string
	// PublicBaseURL prefixes the session links handed out in replies.
	PublicBaseURL string
	// ResultChannel receives results of sessions not opened from Discord.
	ResultChannel string
	Service       service.Service
	Logger        *zap.Logger
	Timeout       time.Duration
}

type Bot struct {
	session Session
	cfg     Config
	log     *zap.Logger
	cmdID   string

	mu       sync.Mutex
	channels map[string]string // session id -> channel that opened it
}

var _ lobby.Recorder = (*Bot)(nil)

// New opens a discordgo session for token. The connection is made by Start.
func New(token string, cfg Config) (*Bot, error) {
	if token == "" {
		return nil, errors.New("discord token cannot be empty")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return NewWithSession(s, cfg)
}

func NewWithSession(s Session, cfg Config) (*Bot, error) {
	if cfg.Service == nil {
		return nil, errors.New("draft service cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	b := &Bot{
		session:  s,
		cfg:      cfg,
		log:      cfg.Logger.Named("bot"),
		channels: make(map[string]string),
	}
	s.AddHandler(b.handleInteraction)
	return b, nil
}

// Command is the /draft application command definition.
func Command() *discordgo.ApplicationCommand {
	opts := []*discordgo.ApplicationCommandOption{{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "title",
		Description: "Name shown in the draft room",
		Required:    true,
	}}
	for n := 1; n <= 9; n++ {
		opts = append(opts, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        fmt.Sprintf("player%d", n),
			Description: "Player taking part in the draft",
		})
	}
	return &discordgo.ApplicationCommand{
		Name:        commandName,
		Description: "Ban/pick drafts for in-house games",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "create",
				Description: "Open a draft room with you and the listed players",
				Options:     opts,
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "result",
				Description: "Show the result of a finished draft",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "code",
					Description: "Six character session code",
					Required:    true,
				}},
			},
		},
	}
}

// Start connects to the gateway and registers /draft.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord connection: %w", err)
	}
	appID := b.appID()
	if appID == "" {
		return errors.New("discord application id unknown")
	}
	created, err := b.session.ApplicationCommandCreate(appID, b.cfg.GuildID, Command())
	if err != nil {
		return fmt.Errorf("register /%s: %w", commandName, err)
	}
	b.cmdID = created.ID
	b.log.Info("command registered", zap.String("command", commandName), zap.String("guild", b.cfg.GuildID))
	return nil
}

// Stop removes the command and closes the gateway connection.
func (b *Bot) Stop() error {
	if b.cmdID != "" {
		if err := b.session.ApplicationCommandDelete(b.appID(), b.cfg.GuildID, b.cmdID); err != nil {
			b.log.Warn("delete command", zap.Error(err))
		}
	}
	return b.session.Close()
}

func (b *Bot) appID() string {
	if b.cfg.ApplicationID != "" {
		return b.cfg.ApplicationID
	}
	if ds, ok := b.session.(*discordgo.Session); ok && ds.State != nil && ds.State.User != nil {
		return ds.State.User.ID
	}
	return ""
}

func (b *Bot) handleInteraction(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.Timeout)
	defer cancel()
	if err := b.handle(ctx, i); err != nil {
		b.log.Error("handle interaction", zap.String("command", i.ApplicationCommandData().Name), zap.Error(err))
	}
}

func (b *Bot) handle(ctx context.Context, i *discordgo.InteractionCreate) error {
	data := i.ApplicationCommandData()
	if data.Name != commandName || len(data.Options) == 0 {
		return nil
	}
	sub := data.Options[0]
	switch sub.Name {
	case "create":
		return b.handleCreate(ctx, i, data, sub)
	case "result":
		return b.handleResult(ctx, i, sub)
	default:
		return respondError(b.session, i, "Unknown subcommand.")
	}
}

func (b *Bot) handleCreate(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	creator := participantOf(invoker(i), i.Member)
	req := service.CreateRequest{Creator: creator, Participants: participants(creator, data, sub.Options)}
	for _, o := range sub.Options {
		if o.Name == "title" {
			req.Title = o.StringValue()
		}
	}

	sess, err := b.cfg.Service.CreateSession(ctx, req)
	if err != nil {
		return respondError(b.session, i, err.Error())
	}
	b.mu.Lock()
	b.channels[sess.ID] = i.ChannelID
	b.mu.Unlock()

	b.log.Info("session opened from discord",
		zap.String("session_id", sess.ID),
		zap.String("channel", i.ChannelID),
		zap.Int("participants", len(sess.Participants)),
	)
	return respondEmbed(b.session, i, sessionEmbed(sess, b.link(sess.ID)))
}

func (b *Bot) handleResult(ctx context.Context, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	var code string
	for _, o := range sub.Options {
		if o.Name == "code" {
			code = strings.ToUpper(strings.TrimSpace(o.StringValue()))
		}
	}
	final, err := b.cfg.Service.GetResult(ctx, code)
	if err != nil {
		return respondError(b.session, i, err.Error())
	}
	return respondEmbed(b.session, i, resultEmbed(final))
}

func (b *Bot) link(sessionID string) string {
	return b.cfg.PublicBaseURL + "/draft/" + sessionID
}

// Record announces a confirmed result in the channel that opened the session,
// or in ResultChannel when the session came from elsewhere.
func (b *Bot) Record(_ context.Context, final result.Final) error {
	b.mu.Lock()
	channel, ok := b.channels[final.SessionID]
	delete(b.channels, final.SessionID)
	b.mu.Unlock()
	if !ok {
		channel = b.cfg.ResultChannel
	}
	if channel == "" {
		return nil
	}
	if _, err := b.session.ChannelMessageSendEmbed(channel, resultEmbed(final)); err != nil {
		return fmt.Errorf("announce %s: %w", final.SessionID, err)
	}
	return nil
}
