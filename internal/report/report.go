// Package report builds the daily activity summary and delivers it over the
// notification webhook.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/logtrail/logtrail/internal/notify"
	"github.com/logtrail/logtrail/internal/store"
)

// topPlayers is how many players the all-time ranking shows.
const topPlayers = 5

// Stats is the read side the report needs from the session store.
type Stats interface {
	PlaytimeForDate(ctx context.Context, date string) ([]store.PlayerPlaytime, error)
	TotalPlaytimeByPlayer(ctx context.Context, limit int) ([]store.PlayerPlaytime, error)
}

// Reporter assembles and sends the daily summary.
type Reporter struct {
	stats  Stats
	sender notify.Sender
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reporter) { r.logger = logger }
}

// WithNowFunc sets the time source (for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// New creates a Reporter.
func New(stats Stats, sender notify.Sender, opts ...Option) *Reporter {
	r := &Reporter{
		stats:  stats,
		sender: sender,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SendDaily sends yesterday's playtime summary and the all-time top ranking.
// Returns an error only when the stats queries or the send itself fail.
func (r *Reporter) SendDaily(ctx context.Context) error {
	payload, err := r.Build(ctx)
	if err != nil {
		return err
	}

	result, _ := r.sender.Send(ctx, payload)
	if result != notify.SendOK {
		return fmt.Errorf("send daily report: webhook delivery failed")
	}
	r.logger.Info("daily report sent")
	return nil
}

// Build assembles the report payload without sending it.
func (r *Reporter) Build(ctx context.Context) (notify.DiscordPayload, error) {
	now := r.now()
	yesterday := store.Yesterday(now)

	daily, err := r.stats.PlaytimeForDate(ctx, yesterday)
	if err != nil {
		return notify.DiscordPayload{}, fmt.Errorf("query daily stats: %w", err)
	}
	total, err := r.stats.TotalPlaytimeByPlayer(ctx, topPlayers)
	if err != nil {
		return notify.DiscordPayload{}, fmt.Errorf("query total stats: %w", err)
	}

	var fields []notify.DiscordEmbedField
	if field := dailyField(yesterday, daily); field != nil {
		fields = append(fields, *field)
	}
	if field := rankingField(total); field != nil {
		fields = append(fields, *field)
	}

	embed := notify.DiscordEmbed{
		Title:       "📊 Daily Playtime Report",
		Description: "Summary of yesterday's activity",
		Color:       notify.ColorBlue,
		Fields:      fields,
		Timestamp:   now.Format(time.RFC3339),
		Footer:      &notify.DiscordEmbedFooter{Text: "LogTrail"},
	}
	return notify.DiscordPayload{Embeds: []notify.DiscordEmbed{embed}}, nil
}

func dailyField(date string, daily []store.PlayerPlaytime) *notify.DiscordEmbedField {
	if len(daily) == 0 {
		return &notify.DiscordEmbedField{
			Name:  fmt.Sprintf("📅 Playtime on %s", date),
			Value: "No sessions recorded",
		}
	}

	lines := make([]string, len(daily))
	for i, p := range daily {
		lines[i] = fmt.Sprintf("**%s**: %.1fh (%d sessions)", p.DisplayName, p.TotalHours, p.Sessions)
	}
	return &notify.DiscordEmbedField{
		Name:  fmt.Sprintf("📅 Playtime on %s", date),
		Value: strings.Join(lines, "\n"),
	}
}

func rankingField(total []store.PlayerPlaytime) *notify.DiscordEmbedField {
	if len(total) == 0 {
		return nil
	}

	lines := make([]string, len(total))
	for i, p := range total {
		lines[i] = fmt.Sprintf("%d. **%s**: %.1fh", i+1, p.DisplayName, p.TotalHours)
	}
	return &notify.DiscordEmbedField{
		Name:  fmt.Sprintf("🏆 All-time Top %d", topPlayers),
		Value: strings.Join(lines, "\n"),
	}
}
