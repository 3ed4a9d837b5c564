// Package classify turns raw server log lines into typed events.
package classify

import (
	"regexp"

	"github.com/logtrail/logtrail/internal/event"
)

// The four recognized log-line shapes, in evaluation order. Each targets a
// distinct phrase, so order only matters as a tie-break for malformed input.
var (
	// "Accepted connection from 76561198314730173"
	acceptedRe = regexp.MustCompile(`Accepted connection from (\d+)`)
	// "Connected to userid:2806406146"
	linkedRe = regexp.MustCompile(`Connected to userid:(\d+)`)
	// "[userid:2806406146] player dujjonku connected islocalplayer=False"
	connectedRe = regexp.MustCompile(`\[userid:(\d+)\] player (\S+) connected`)
	// "Disconnected from userid:2806406146 with reason App_Min"
	disconnectedRe = regexp.MustCompile(`Disconnected from userid:(\d+)`)
)

// Line classifies a raw log line. A line matching no pattern yields an
// event with Kind Unmatched; that is not an error.
func Line(raw string) event.RawEvent {
	if m := acceptedRe.FindStringSubmatch(raw); m != nil {
		return event.RawEvent{Kind: event.AcceptedConnection, PlayerID: m[1]}
	}
	if m := linkedRe.FindStringSubmatch(raw); m != nil {
		return event.RawEvent{Kind: event.SessionLinked, ConnectionToken: m[1]}
	}
	if m := connectedRe.FindStringSubmatch(raw); m != nil {
		return event.RawEvent{Kind: event.PlayerConnected, ConnectionToken: m[1], DisplayName: m[2]}
	}
	if m := disconnectedRe.FindStringSubmatch(raw); m != nil {
		return event.RawEvent{Kind: event.Disconnected, ConnectionToken: m[1]}
	}
	return event.RawEvent{Kind: event.Unmatched}
}
