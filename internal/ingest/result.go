package ingest

// Actions reported for lines that changed state.
const (
	ActionPending      = "pending"
	ActionMapped       = "mapped"
	ActionConnected    = "connected"
	ActionDisconnected = "disconnected"
)

// Notes reported for lines that were understood but changed nothing.
// None of these is an error; a shipper's retry needs no special handling.
const (
	NoteAlreadyConnected = "already connected"
	NoteAlreadyProcessed = "already processed"
	NoteNoOpenSession    = "no open session"
	NoteSessionNotFound  = "session not found in memory"
	NoteNoPending        = "no pending connection"
	NoteAmbiguous        = "ambiguous pending correlation"
	SkipNoPattern        = "no pattern matched"
)

// Line is one raw log line as delivered by the shipper. LogID is optional;
// a missing one gets a derived identifier.
type Line struct {
	Raw   string `json:"log"`
	LogID string `json:"log_id,omitempty"`
}

// Result is the structured outcome for one processed line. OK is false only
// for the soft identity-not-found error; no outcome raises to the caller as
// a failure.
type Result struct {
	OK              bool   `json:"ok"`
	Action          string `json:"action,omitempty"`
	Note            string `json:"note,omitempty"`
	Skip            string `json:"skip,omitempty"`
	Err             string `json:"error,omitempty"`
	PlayerID        string `json:"player_id,omitempty"`
	ConnectionToken string `json:"connection_token,omitempty"`
	LogID           string `json:"log_id"`
}
