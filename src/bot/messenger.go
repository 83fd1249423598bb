package bot

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anonthink/modrelay/src/components/moderation"
	"github.com/anonthink/modrelay/src/logging"
	"github.com/anonthink/modrelay/src/webclient"
	"github.com/bwmarrin/discordgo"
)

const pendingColor = 0xFFFF00

// messenger implements moderation.Messenger over a Discord session.
type messenger struct {
	session    *discordgo.Session
	httpClient *http.Client
}

func newMessenger(session *discordgo.Session) *messenger {
	return &messenger{
		session:    session,
		httpClient: webclient.NewDefault(60 * time.Second),
	}
}

func (m *messenger) SendText(channelID, text string) error {
	_, err := m.session.ChannelMessageSend(channelID, text)
	return err
}

// deliverFuncs dispatches delivery once per kind instead of re-branching at
// every call site. Voice publishes its transcript as text.
var deliverFuncs = map[moderation.Kind]func(m *messenger, channelID string, sub *moderation.Submission) error{
	moderation.KindText:     deliverText,
	moderation.KindVoice:    deliverText,
	moderation.KindPhoto:    deliverFile,
	moderation.KindVideo:    deliverFile,
	moderation.KindDocument: deliverFile,
}

func (m *messenger) Publish(channelID string, sub *moderation.Submission) error {
	deliver, ok := deliverFuncs[sub.Kind]
	if !ok {
		return fmt.Errorf("no delivery for kind %q", sub.Kind)
	}
	return deliver(m, channelID, sub)
}

func deliverText(m *messenger, channelID string, sub *moderation.Submission) error {
	body := sub.Body()
	if body == "" {
		return fmt.Errorf("submission %s has no text to publish", sub.Key)
	}
	_, err := m.session.ChannelMessageSend(channelID, body)
	return err
}

func deliverFile(m *messenger, channelID string, sub *moderation.Submission) error {
	resp, err := m.httpClient.Get(sub.MediaURL)
	if err != nil {
		return fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("fetch media: status %d", resp.StatusCode)
	}

	_, err = m.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: sub.Body(),
		Files: []*discordgo.File{{
			Name:        mediaFileName(sub),
			ContentType: resp.Header.Get("Content-Type"),
			Reader:      resp.Body,
		}},
	})
	return err
}

func mediaFileName(sub *moderation.Submission) string {
	switch sub.Kind {
	case moderation.KindPhoto:
		return "photo.png"
	case moderation.KindVideo:
		return "video.mp4"
	default:
		return "attachment"
	}
}

func (m *messenger) NotifyModerator(channelID string, sub *moderation.Submission) (string, error) {
	msg, err := m.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embed:      reviewEmbed(sub),
		Components: reviewComponents(sub),
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (m *messenger) UpdateReview(channelID, messageID string, sub *moderation.Submission) error {
	embeds := []*discordgo.MessageEmbed{reviewEmbed(sub)}
	components := reviewComponents(sub)
	_, err := m.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    channelID,
		ID:         messageID,
		Embeds:     &embeds,
		Components: &components,
	})
	return err
}

func reviewEmbed(sub *moderation.Submission) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "New submission pending review",
		Description: sub.Body(),
		Color:       pendingColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Kind", Value: string(sub.Kind), Inline: true},
			{Name: "Submitter", Value: logging.AnonTag(sub.SubmitterID), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "ID: " + sub.Key,
		},
		Timestamp: sub.ReceivedAt.Format(time.RFC3339),
	}

	switch sub.Kind {
	case moderation.KindPhoto:
		embed.Image = &discordgo.MessageEmbedImage{URL: sub.MediaURL}
	case moderation.KindVideo, moderation.KindDocument, moderation.KindVoice:
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Media",
			Value: sub.MediaURL,
		})
	}
	return embed
}

func reviewComponents(sub *moderation.Submission) []discordgo.MessageComponent {
	approve := moderation.Action{Type: moderation.ActionApprove, Key: sub.Key}
	reject := moderation.Action{Type: moderation.ActionReject, Key: sub.Key}
	edit := moderation.Action{Type: moderation.ActionEdit, Key: sub.Key}
	ban := moderation.Action{Type: moderation.ActionBan, Key: sub.SubmitterID}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Approve",
					Style:    discordgo.SuccessButton,
					CustomID: approve.CustomID(),
					Emoji:    &discordgo.ComponentEmoji{Name: "✅"},
				},
				discordgo.Button{
					Label:    "Reject",
					Style:    discordgo.DangerButton,
					CustomID: reject.CustomID(),
					Emoji:    &discordgo.ComponentEmoji{Name: "❌"},
				},
				discordgo.Button{
					Label:    "Edit",
					Style:    discordgo.SecondaryButton,
					CustomID: edit.CustomID(),
					Emoji:    &discordgo.ComponentEmoji{Name: "✏️"},
				},
				discordgo.Button{
					Label:    "Ban",
					Style:    discordgo.DangerButton,
					CustomID: ban.CustomID(),
					Emoji:    &discordgo.ComponentEmoji{Name: "🔨"},
				},
			},
		},
	}
}
