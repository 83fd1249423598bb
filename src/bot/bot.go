package bot

import (
	"fmt"
	"log"
	"time"

	"github.com/anonthink/modrelay/src/components/moderation"
	"github.com/bwmarrin/discordgo"
)

type Config struct {
	Token            string
	ModeratorID      string
	ReviewChannelID  string
	PublishChannelID string
	RateLimit        time.Duration
	Transcriber      moderation.Transcriber
}

// Bot wires the Discord session to the moderation engine: inbound DMs become
// submissions, review-channel buttons become decisions.
type Bot struct {
	session *discordgo.Session
	engine  *moderation.Engine
	config  Config
}

func New(config Config) (*Bot, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	engine := moderation.NewEngine(moderation.Config{
		ModeratorID:      config.ModeratorID,
		ReviewChannelID:  config.ReviewChannelID,
		PublishChannelID: config.PublishChannelID,
		RateLimit:        config.RateLimit,
		Messenger:        newMessenger(dg),
		Transcriber:      config.Transcriber,
	})

	b := &Bot{
		session: dg,
		engine:  engine,
		config:  config,
	}

	dg.AddHandler(b.onMessageCreate)
	dg.AddHandler(b.onInteractionCreate)

	dg.Identify.Intents = discordgo.IntentsDirectMessages |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuilds

	return b, nil
}

func (b *Bot) Engine() *moderation.Engine {
	return b.engine
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord connection: %w", err)
	}

	// Moderator commands are registered on the review channel's guild.
	ch, err := b.session.Channel(b.config.ReviewChannelID)
	if err != nil {
		return fmt.Errorf("resolve review channel: %w", err)
	}
	if err := b.registerCommands(ch.GuildID); err != nil {
		return err
	}

	log.Printf("Bot is running as %s", b.session.State.User.Username)
	return nil
}

func (b *Bot) Stop() {
	if err := b.session.Close(); err != nil {
		log.Printf("close discord session: %v", err)
	}
}
