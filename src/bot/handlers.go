package bot

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/anonthink/modrelay/src/components/moderation"
	"github.com/anonthink/modrelay/src/logging"
	"github.com/bwmarrin/discordgo"
)

const welcomeText = "Send me any message and I will publish it anonymously to the channel once a moderator approves it."

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	// A moderator message consumes the open edit session first, whichever
	// channel it arrives on. Without a session a moderator DM falls
	// through to ordinary intake below.
	if b.engine.IsModerator(m.Author.ID) && m.Content != "" {
		handled, err := b.engine.ApplyEdit(m.Author.ID, m.Content)
		if err != nil {
			log.Printf("apply edit: %v", err)
		}
		if handled {
			b.reply(s, m, editNotice(err))
			return
		}
	}

	if m.GuildID != "" {
		return
	}

	switch m.Content {
	case "/start", "/help", "start", "help":
		b.reply(s, m, welcomeText)
		return
	}

	in, ok := classify(m)
	if !ok {
		b.reply(s, m, "Unsupported format.")
		return
	}

	_, err := b.engine.Intake(context.Background(), in)
	switch {
	case err == nil:
		b.reply(s, m, "Your submission was sent for review.")
	case errors.Is(err, moderation.ErrBanned):
		// Silent drop.
	default:
		var limited *moderation.RateLimitedError
		if errors.As(err, &limited) {
			b.reply(s, m, fmt.Sprintf("Please wait %d seconds before sending another submission.",
				int(limited.Wait.Seconds())+1))
			return
		}
		log.Printf("intake from %s: %v", logging.AnonTag(m.Author.ID), err)
		b.reply(s, m, "Failed to process your submission. Please try again.")
	}
}

// editNotice picks the moderator's confirmation for a consumed edit. The text
// change took effect either way; err only means the review message could not
// be refreshed.
func editNotice(err error) string {
	if err != nil {
		return "Edit applied, but the review message could not be updated."
	}
	return "Edit applied."
}

// classify maps a Discord message to an inbound submission. Attachments win
// over text; their content type picks the kind.
func classify(m *discordgo.MessageCreate) (moderation.Inbound, bool) {
	in := moderation.Inbound{
		SubmitterID: m.Author.ID,
		MessageID:   m.ID,
		Caption:     m.Content,
	}

	if len(m.Attachments) > 0 {
		att := m.Attachments[0]
		in.Kind = moderation.KindForContentType(att.ContentType)
		in.MediaURL = att.URL
		return in, true
	}

	if m.Content == "" {
		return moderation.Inbound{}, false
	}
	in.Kind = moderation.KindText
	return in, true
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	}
}

func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	action, err := moderation.ParseAction(i.MessageComponentData().CustomID)
	if err != nil {
		log.Printf("decode component payload: %v", err)
		b.respondEphemeral(s, i, "Unknown control.")
		return
	}

	actorID := interactionUserID(i)
	switch action.Type {
	case moderation.ActionApprove:
		b.decide(s, i, actorID, action.Key, moderation.VerdictApprove)
	case moderation.ActionReject:
		b.decide(s, i, actorID, action.Key, moderation.VerdictReject)
	case moderation.ActionEdit:
		b.beginEdit(s, i, actorID, action.Key)
	case moderation.ActionBan:
		b.banSubmitter(s, i, actorID, action.Key)
	}
}

func (b *Bot) decide(s *discordgo.Session, i *discordgo.InteractionCreate, actorID, key string, verdict moderation.Verdict) {
	err := b.engine.Decide(actorID, key, verdict)
	switch {
	case err == nil:
		b.resolveReview(s, i, verdict)
	case errors.Is(err, moderation.ErrNoRights):
		b.respondEphemeral(s, i, "You don't have permission to do this.")
	case errors.Is(err, moderation.ErrStale):
		b.respondEphemeral(s, i, "This submission has already been handled.")
	case errors.Is(err, moderation.ErrDeliveryFailed):
		b.respondEphemeral(s, i, "Failed to publish. Please try again.")
	default:
		log.Printf("decide %s on %s: %v", verdict, key, err)
		b.respondEphemeral(s, i, "Something went wrong.")
	}
}

func (b *Bot) beginEdit(s *discordgo.Session, i *discordgo.InteractionCreate, actorID, key string) {
	err := b.engine.BeginEdit(actorID, key)
	switch {
	case err == nil:
		b.respondEphemeral(s, i, "Send the replacement text as your next message.")
	case errors.Is(err, moderation.ErrNoRights):
		b.respondEphemeral(s, i, "You don't have permission to do this.")
	case errors.Is(err, moderation.ErrStale):
		b.respondEphemeral(s, i, "This submission has already been handled.")
	default:
		log.Printf("begin edit on %s: %v", key, err)
		b.respondEphemeral(s, i, "Something went wrong.")
	}
}

func (b *Bot) banSubmitter(s *discordgo.Session, i *discordgo.InteractionCreate, actorID, submitterID string) {
	if !b.engine.IsModerator(actorID) {
		b.respondEphemeral(s, i, "You don't have permission to do this.")
		return
	}
	b.engine.Bans().Ban(submitterID)
	log.Printf("submitter %s banned", logging.AnonTag(submitterID))
	b.respondEphemeral(s, i, "Submitter banned.")
}

// resolveReview rewrites the review message after a terminal decision:
// outcome color, no more buttons.
func (b *Bot) resolveReview(s *discordgo.Session, i *discordgo.InteractionCreate, verdict moderation.Verdict) {
	outcome := "Published"
	color := 0x00FF00
	if verdict == moderation.VerdictReject {
		outcome = "Rejected"
		color = 0xFF0000
	}

	var embeds []*discordgo.MessageEmbed
	if i.Message != nil && len(i.Message.Embeds) > 0 {
		embed := i.Message.Embeds[0]
		embed.Title = outcome
		embed.Color = color
		embeds = []*discordgo.MessageEmbed{embed}
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     embeds,
			Components: []discordgo.MessageComponent{},
		},
	})
	if err != nil {
		log.Printf("update review message: %v", err)
	}
}

func (b *Bot) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, text string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("interaction respond: %v", err)
	}
}

func (b *Bot) reply(s *discordgo.Session, m *discordgo.MessageCreate, text string) {
	if _, err := s.ChannelMessageSend(m.ChannelID, text); err != nil {
		log.Printf("send reply: %v", err)
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
