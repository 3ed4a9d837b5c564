// Package event provides the shared event models for LogTrail.
// This package is used by classify, correlate, ingest, notify, and api.
package event

import "time"

// Kind identifies which connection-lifecycle fragment a log line describes.
type Kind int

const (
	// Unmatched means the line matched none of the known patterns.
	Unmatched Kind = iota
	// AcceptedConnection is the initial acceptance line carrying the player ID.
	AcceptedConnection
	// SessionLinked is the line assigning a connection token.
	SessionLinked
	// PlayerConnected is the line carrying the in-game display name.
	PlayerConnected
	// Disconnected is the connection teardown line.
	Disconnected
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case AcceptedConnection:
		return "accepted_connection"
	case SessionLinked:
		return "session_linked"
	case PlayerConnected:
		return "player_connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unmatched"
	}
}

// RawEvent is a classified log line. It is produced by classify, consumed
// immediately by the ingest pipeline, and never stored.
type RawEvent struct {
	Kind            Kind
	PlayerID        string
	ConnectionToken string
	DisplayName     string
}

// ChangeKind identifies a durable session transition.
type ChangeKind int

const (
	// ChangeConnected means a new interval was opened.
	ChangeConnected ChangeKind = iota + 1
	// ChangeDisconnected means an open interval was closed.
	ChangeDisconnected
)

// SessionChange describes a committed session transition. It is emitted by
// the ingest pipeline after its transaction commits and consumed by the
// notifier; it never feeds back into durable state.
type SessionChange struct {
	Kind            ChangeKind
	PlayerID        string
	ConnectionToken string
	DisplayName     string
	EnrichedName    string
	At              time.Time
	PlaytimeSeconds int64 // only set for ChangeDisconnected
}

// FormatName combines the in-game display name with the remotely looked-up
// profile name, matching the "name(profile)" convention used in notifications.
func FormatName(display, enriched string) string {
	if enriched == "" {
		return display
	}
	return display + "(" + enriched + ")"
}
