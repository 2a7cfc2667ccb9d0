package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/DoyleJ11/nabi-draft/internal/engine"
	"github.com/DoyleJ11/nabi-draft/internal/result"
	"github.com/DoyleJ11/nabi-draft/internal/session"
)

const (
	colorBlue  = 0x3b82f6
	colorRed   = 0xef4444
	colorGreen = 0x22c55e
)

func invoker(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func participantOf(u *discordgo.User, m *discordgo.Member) session.Participant {
	if u == nil {
		return session.Participant{}
	}
	p := session.Participant{ID: u.ID, DisplayName: u.Username, AvatarURL: u.AvatarURL("")}
	if u.GlobalName != "" {
		p.DisplayName = u.GlobalName
	}
	if m != nil && m.Nick != "" {
		p.DisplayName = m.Nick
	}
	if p.DisplayName == "" {
		p.DisplayName = u.ID
	}
	return p
}

// participants lists the creator followed by every distinct player option.
func participants(creator session.Participant, data discordgo.ApplicationCommandInteractionData, opts []*discordgo.ApplicationCommandInteractionDataOption) []session.Participant {
	out := []session.Participant{creator}
	seen := map[string]bool{creator.ID: true}
	for _, o := range opts {
		if o.Type != discordgo.ApplicationCommandOptionUser {
			continue
		}
		id, _ := o.Value.(string)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		u := &discordgo.User{ID: id}
		var m *discordgo.Member
		if data.Resolved != nil {
			if ru, ok := data.Resolved.Users[id]; ok {
				u = ru
			}
			m = data.Resolved.Members[id]
		}
		out = append(out, participantOf(u, m))
	}
	return out
}

func sessionEmbed(sess session.Session, link string) *discordgo.MessageEmbed {
	names := make([]string, 0, len(sess.Participants))
	for _, p := range sess.Participants {
		names = append(names, p.DisplayName)
	}
	return &discordgo.MessageEmbed{
		Title:       sess.Title,
		URL:         link,
		Description: fmt.Sprintf("Draft room **%s** is open. Pick your positions at %s", sess.ID, link),
		Color:       colorGreen,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Players", Value: strings.Join(names, ", ")},
		},
	}
}

func resultEmbed(f result.Final) *discordgo.MessageEmbed {
	title := "Draft " + f.SessionID
	if f.Confirmed {
		title += " confirmed"
	}
	embed := &discordgo.MessageEmbed{Title: title, Color: colorBlue}
	if f.ConfirmedAt != nil {
		embed.Timestamp = f.ConfirmedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	for _, team := range engine.Teams {
		var sb strings.Builder
		for _, role := range engine.Roles {
			champ := f.Picks[team][role]
			if champ == "" {
				champ = "-"
			}
			fmt.Fprintf(&sb, "%s: %s", role, champ)
			if p, ok := f.Lineup[team][role]; ok && p.ID != "" {
				fmt.Fprintf(&sb, " (%s)", p.DisplayName)
			}
			sb.WriteByte('\n')
		}
		if bans := f.Bans[team]; len(bans) > 0 {
			fmt.Fprintf(&sb, "Bans: %s", strings.Join(bans, ", "))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   strings.ToUpper(string(team)),
			Value:  sb.String(),
			Inline: true,
		})
	}
	if f.Adjusted {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "adjusted after the draft"}
	}
	return embed
}

func respondEmbed(s Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}},
	})
}

func respondError(s Session, i *discordgo.InteractionCreate, msg string) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags:  discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{{Title: "Error", Description: msg, Color: colorRed}},
		},
	})
}
