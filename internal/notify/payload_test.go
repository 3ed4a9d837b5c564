package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/logtrail/logtrail/internal/event"
)

func TestBuildPayloads_Empty(t *testing.T) {
	if got := BuildPayloads(nil); got != nil {
		t.Errorf("BuildPayloads(nil) = %v, want nil", got)
	}
}

func TestBuildPayloads_SingleConnect(t *testing.T) {
	at := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	payloads := BuildPayloads([]*event.SessionChange{{
		Kind:            event.ChangeConnected,
		PlayerID:        "111",
		ConnectionToken: "222",
		DisplayName:     "alice",
		EnrichedName:    "Alice Prime",
		At:              at,
	}})

	if len(payloads) != 1 || len(payloads[0].Embeds) != 1 {
		t.Fatalf("payloads = %+v", payloads)
	}
	embed := payloads[0].Embeds[0]
	if !strings.Contains(embed.Description, "alice(Alice Prime)") {
		t.Errorf("description = %q", embed.Description)
	}
	if embed.Color != ColorGreen {
		t.Errorf("color = %#x, want green", embed.Color)
	}
	if len(embed.Fields) != 2 || embed.Fields[0].Value != "`111`" {
		t.Errorf("fields = %+v", embed.Fields)
	}
}

func TestBuildPayloads_DisconnectIncludesPlaytime(t *testing.T) {
	payloads := BuildPayloads([]*event.SessionChange{{
		Kind:            event.ChangeDisconnected,
		PlayerID:        "111",
		ConnectionToken: "222",
		DisplayName:     "alice",
		At:              time.Now(),
		PlaytimeSeconds: 2*3600 + 13*60,
	}})

	embed := payloads[0].Embeds[0]
	if !strings.Contains(embed.Description, "2h 13m") {
		t.Errorf("description = %q, want playtime", embed.Description)
	}
	if embed.Color != ColorRed {
		t.Errorf("color = %#x, want red", embed.Color)
	}
}

func TestBuildPayloads_GroupsByKind(t *testing.T) {
	changes := []*event.SessionChange{
		{Kind: event.ChangeConnected, DisplayName: "alice", At: time.Now()},
		{Kind: event.ChangeConnected, DisplayName: "bob", At: time.Now()},
		{Kind: event.ChangeDisconnected, DisplayName: "carol", At: time.Now()},
	}
	payloads := BuildPayloads(changes)

	if len(payloads) != 1 {
		t.Fatalf("got %d payloads, want 1", len(payloads))
	}
	if len(payloads[0].Embeds) != 2 {
		t.Fatalf("got %d embeds, want 2 (connects + disconnects)", len(payloads[0].Embeds))
	}
	if !strings.Contains(payloads[0].Embeds[0].Description, "alice") ||
		!strings.Contains(payloads[0].Embeds[0].Description, "bob") {
		t.Errorf("connects embed = %q", payloads[0].Embeds[0].Description)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		secs int64
		want string
	}{
		{0, "0m"},
		{59, "0m"},
		{60, "1m"},
		{3600, "1h 0m"},
		{7980, "2h 13m"},
		{-5, "0m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.secs); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}

func TestFormatName(t *testing.T) {
	if got := event.FormatName("alice", ""); got != "alice" {
		t.Errorf("FormatName = %q", got)
	}
	if got := event.FormatName("alice", "Alice Prime"); got != "alice(Alice Prime)" {
		t.Errorf("FormatName = %q", got)
	}
}
