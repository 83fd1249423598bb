package bot

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

const (
	CommandStats = "stats"
	CommandUnban = "unban"
)

var commandDefinitions = []*discordgo.ApplicationCommand{
	{
		Name:        CommandStats,
		Description: "Show moderation statistics",
	},
	{
		Name:        CommandUnban,
		Description: "Unban a submitter",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "user-id",
				Description: "The submitter's user ID",
				Required:    true,
			},
		},
	},
}

func (b *Bot) registerCommands(guildID string) error {
	for _, cmd := range commandDefinitions {
		if _, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, guildID, cmd); err != nil {
			return fmt.Errorf("create %q command: %w", cmd.Name, err)
		}
	}
	return nil
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	actorID := interactionUserID(i)
	if !b.engine.IsModerator(actorID) {
		b.respondEphemeral(s, i, "You don't have permission to use this command.")
		return
	}

	data := i.ApplicationCommandData()
	switch data.Name {
	case CommandStats:
		report := b.engine.Report()
		b.respondEphemeral(s, i, fmt.Sprintf(
			"Published: %d\nRejected: %d\nTotal: %d\nBanned: %d\nPending: %d",
			report.Published, report.Rejected, report.Total, report.Banned, report.Pending))
	case CommandUnban:
		if len(data.Options) == 0 {
			b.respondEphemeral(s, i, "Usage: /unban user-id")
			return
		}
		userID := data.Options[0].StringValue()
		b.engine.Bans().Unban(userID)
		b.respondEphemeral(s, i, "Submitter unbanned.")
	default:
		log.Printf("unknown command %q", data.Name)
	}
}
