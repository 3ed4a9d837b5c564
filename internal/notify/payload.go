package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/logtrail/logtrail/internal/event"
)

// Discord embed color constants.
const (
	ColorGreen = 0x00FF00 // Player connected
	ColorRed   = 0xFF0000 // Player disconnected
	ColorBlue  = 0x0099FF // Daily report
)

// MaxEmbedsPerRequest is the Discord API limit for embeds per message.
const MaxEmbedsPerRequest = 10

// DiscordPayload represents a Discord webhook request body.
type DiscordPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed represents a Discord embed.
type DiscordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []DiscordEmbedField `json:"fields,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Footer      *DiscordEmbedFooter `json:"footer,omitempty"`
}

// DiscordEmbedField is a titled value inside an embed.
type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// DiscordEmbedFooter is the footer line of an embed.
type DiscordEmbedFooter struct {
	Text string `json:"text"`
}

// BuildPayloads creates Discord payloads from batched session changes.
// May return multiple payloads if changes exceed MaxEmbedsPerRequest.
func BuildPayloads(changes []*event.SessionChange) []DiscordPayload {
	if len(changes) == 0 {
		return nil
	}

	var connects, disconnects []*event.SessionChange
	for _, c := range changes {
		switch c.Kind {
		case event.ChangeConnected:
			connects = append(connects, c)
		case event.ChangeDisconnected:
			disconnects = append(disconnects, c)
		}
	}

	var embeds []DiscordEmbed
	if len(connects) > 0 {
		embeds = append(embeds, buildConnectsEmbed(connects))
	}
	if len(disconnects) > 0 {
		embeds = append(embeds, buildDisconnectsEmbed(disconnects))
	}

	return splitIntoPayloads(embeds)
}

func buildConnectsEmbed(changes []*event.SessionChange) DiscordEmbed {
	names := make([]string, len(changes))
	for i, c := range changes {
		names[i] = fmt.Sprintf("**%s**", event.FormatName(c.DisplayName, c.EnrichedName))
	}

	var desc string
	if len(changes) == 1 {
		desc = names[0] + " connected to the server"
	} else {
		desc = strings.Join(names, ", ") + " connected to the server"
	}

	return DiscordEmbed{
		Title:       "🎮 Player Connected",
		Description: desc,
		Color:       ColorGreen,
		Fields:      identityFields(changes),
		Timestamp:   changes[len(changes)-1].At.Format(time.RFC3339),
	}
}

func buildDisconnectsEmbed(changes []*event.SessionChange) DiscordEmbed {
	lines := make([]string, len(changes))
	for i, c := range changes {
		lines[i] = fmt.Sprintf("**%s** — played %s",
			event.FormatName(c.DisplayName, c.EnrichedName),
			FormatDuration(c.PlaytimeSeconds),
		)
	}

	return DiscordEmbed{
		Title:       "👋 Player Disconnected",
		Description: strings.Join(lines, "\n"),
		Color:       ColorRed,
		Fields:      identityFields(changes),
		Timestamp:   changes[len(changes)-1].At.Format(time.RFC3339),
	}
}

// identityFields adds the player ID field when the batch is a single change;
// batched embeds keep only the names to stay readable.
func identityFields(changes []*event.SessionChange) []DiscordEmbedField {
	if len(changes) != 1 {
		return nil
	}
	c := changes[0]
	return []DiscordEmbedField{
		{Name: "Player ID", Value: "`" + c.PlayerID + "`", Inline: true},
		{Name: "Time", Value: c.At.Format("15:04:05"), Inline: true},
	}
}

func splitIntoPayloads(embeds []DiscordEmbed) []DiscordPayload {
	if len(embeds) == 0 {
		return nil
	}

	var payloads []DiscordPayload
	for start := 0; start < len(embeds); start += MaxEmbedsPerRequest {
		end := start + MaxEmbedsPerRequest
		if end > len(embeds) {
			end = len(embeds)
		}
		payloads = append(payloads, DiscordPayload{Embeds: embeds[start:end]})
	}
	return payloads
}

// FormatDuration renders seconds as "Xh Ym" (or "Ym" under an hour).
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if hours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
