// Package ingest orchestrates the session reconstruction pipeline: each raw
// log line is classified, updates identity-correlation state, and — for the
// two event kinds that mutate durable state — runs a single transaction that
// checks the idempotency ledger, mutates the session store, and records the
// ledger entry. Side-effect notifications fan out only after commit.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/logtrail/logtrail/internal/classify"
	"github.com/logtrail/logtrail/internal/correlate"
	"github.com/logtrail/logtrail/internal/event"
	"github.com/logtrail/logtrail/internal/lookup"
	"github.com/logtrail/logtrail/internal/store"
)

// DefaultLookupTimeout bounds the profile-name enrichment call. A timeout
// degrades to "no enrichment", never to an ingest failure.
const DefaultLookupTimeout = 10 * time.Second

// Pipeline processes log lines end to end.
type Pipeline struct {
	store    *store.Store
	corr     *correlate.Correlator
	resolver lookup.Resolver
	logger   *slog.Logger
	clock    Clock

	lookupTimeout time.Duration
	onCommit      func(context.Context, event.SessionChange)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithClock sets the time source (for testing).
func WithClock(clock Clock) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// WithResolver sets the profile-name resolver used for enrichment.
func WithResolver(r lookup.Resolver) Option {
	return func(p *Pipeline) { p.resolver = r }
}

// WithLookupTimeout bounds each enrichment call.
func WithLookupTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.lookupTimeout = d
		}
	}
}

// WithOnCommit registers a hook invoked after a session transition commits.
// The hook must not block; notification dispatch queues internally.
func WithOnCommit(fn func(context.Context, event.SessionChange)) Option {
	return func(p *Pipeline) { p.onCommit = fn }
}

// New creates a Pipeline.
func New(st *store.Store, corr *correlate.Correlator, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:         st,
		corr:          corr,
		resolver:      lookup.Nop{},
		logger:        slog.Default(),
		clock:         DefaultClock,
		lookupTimeout: DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process handles one log line and returns its structured outcome. No
// outcome is a caller-visible failure except loss of the storage engine.
func (p *Pipeline) Process(ctx context.Context, line Line) Result {
	logID := line.LogID
	if logID == "" {
		// A random id catches nothing across re-sends, but an ID-less line
		// cannot be matched to an earlier delivery anyway, and it never
		// misreports a distinct line as a duplicate.
		logID = uuid.NewString()
	}
	now := p.clock.Now()

	ev := classify.Line(line.Raw)
	switch ev.Kind {
	case event.AcceptedConnection:
		return p.handleAccepted(ev, logID)
	case event.SessionLinked:
		return p.handleLinked(ev, logID)
	case event.PlayerConnected:
		return p.handlePlayerConnected(ctx, ev, logID, now)
	case event.Disconnected:
		return p.handleDisconnected(ctx, ev, logID, now)
	default:
		return Result{OK: true, Skip: SkipNoPattern, LogID: logID}
	}
}

// ProcessBatch handles an ordered sequence of lines, one result per line.
func (p *Pipeline) ProcessBatch(ctx context.Context, lines []Line) []Result {
	results := make([]Result, 0, len(lines))
	for _, line := range lines {
		results = append(results, p.Process(ctx, line))
	}
	return results
}

func (p *Pipeline) handleAccepted(ev event.RawEvent, logID string) Result {
	p.corr.Register(ev.PlayerID)
	p.logger.Debug("connection accepted", "player_id", ev.PlayerID)
	return Result{OK: true, Action: ActionPending, PlayerID: ev.PlayerID, LogID: logID}
}

func (p *Pipeline) handleLinked(ev event.RawEvent, logID string) Result {
	playerID, err := p.corr.BindToken(ev.ConnectionToken)
	switch {
	case errors.Is(err, correlate.ErrNoPending):
		return Result{OK: true, Note: NoteNoPending, ConnectionToken: ev.ConnectionToken, LogID: logID}
	case errors.Is(err, correlate.ErrAmbiguous):
		p.logger.Warn("refusing to bind token: multiple pending correlations",
			"connection_token", ev.ConnectionToken,
		)
		return Result{OK: true, Note: NoteAmbiguous, ConnectionToken: ev.ConnectionToken, LogID: logID}
	}
	p.logger.Debug("token bound", "player_id", playerID, "connection_token", ev.ConnectionToken)
	return Result{OK: true, Action: ActionMapped, PlayerID: playerID, ConnectionToken: ev.ConnectionToken, LogID: logID}
}

func (p *Pipeline) handlePlayerConnected(ctx context.Context, ev event.RawEvent, logID string, now time.Time) Result {
	// Cheap duplicate pre-check; the in-transaction check below stays
	// authoritative. Keeps re-deliveries from re-running enrichment.
	if done, err := p.store.IsProcessed(ctx, logID); err != nil {
		return p.storageFailure(logID, err)
	} else if done {
		return Result{OK: true, Note: NoteAlreadyProcessed, LogID: logID}
	}

	id, err := p.corr.Resolve(ev.ConnectionToken, ev.DisplayName)
	if err != nil {
		p.logger.Warn("identity not found for connect",
			"connection_token", ev.ConnectionToken,
			"display_name", ev.DisplayName,
		)
		return Result{OK: false, Err: correlate.ErrIdentityNotFound.Error(), ConnectionToken: ev.ConnectionToken, LogID: logID}
	}

	// Enrichment happens outside the correlator lock and outside the
	// transaction; a slow or failing lookup delays but never blocks the open.
	if id.EnrichedName == "" {
		if name := p.enrich(ctx, id.PlayerID); name != "" {
			p.corr.SetEnrichedName(id.ConnectionToken, name)
			id.EnrichedName = name
		}
	}

	var (
		res    Result
		change *event.SessionChange
	)
	txErr := p.store.WithTx(ctx, func(tx *store.Tx) error {
		done, err := tx.IsProcessed(ctx, logID)
		if err != nil {
			return err
		}
		if done {
			res = Result{OK: true, Note: NoteAlreadyProcessed, LogID: logID}
			return nil
		}

		if err := tx.SplitIfCrossedMidnight(ctx, id.PlayerID, id.ConnectionToken, id.DisplayName, id.EnrichedName, now); err != nil {
			return err
		}

		today := now.Format(store.DateFormat)
		open, err := tx.FindOpenInterval(ctx, id.ConnectionToken)
		if err != nil {
			return err
		}
		if open != nil && open.Date == today {
			res = Result{OK: true, Note: NoteAlreadyConnected, PlayerID: id.PlayerID, ConnectionToken: id.ConnectionToken, LogID: logID}
		} else {
			_, inserted, err := tx.OpenInterval(ctx,
				id.PlayerID, id.ConnectionToken, id.DisplayName, id.EnrichedName,
				today, now.Format(store.ClockFormat),
			)
			if err != nil {
				return err
			}
			if inserted {
				res = Result{OK: true, Action: ActionConnected, PlayerID: id.PlayerID, ConnectionToken: id.ConnectionToken, LogID: logID}
				change = &event.SessionChange{
					Kind:            event.ChangeConnected,
					PlayerID:        id.PlayerID,
					ConnectionToken: id.ConnectionToken,
					DisplayName:     id.DisplayName,
					EnrichedName:    id.EnrichedName,
					At:              now,
				}
			} else {
				// Constraint race: a concurrent connect won; benign.
				res = Result{OK: true, Note: NoteAlreadyConnected, PlayerID: id.PlayerID, ConnectionToken: id.ConnectionToken, LogID: logID}
			}
		}

		return tx.RecordProcessed(ctx, logID, id.PlayerID, id.ConnectionToken, store.ActionConnected, now)
	})
	if txErr != nil {
		return p.storageFailure(logID, txErr)
	}

	p.emit(ctx, change)
	return res
}

func (p *Pipeline) handleDisconnected(ctx context.Context, ev event.RawEvent, logID string, now time.Time) Result {
	// The ledger check must precede the identity lookup: a processed
	// disconnect already forgot its identity, so a re-delivered line would
	// otherwise misreport as an unknown session.
	if done, err := p.store.IsProcessed(ctx, logID); err != nil {
		return p.storageFailure(logID, err)
	} else if done {
		return Result{OK: true, Note: NoteAlreadyProcessed, LogID: logID}
	}

	id, ok := p.corr.Lookup(ev.ConnectionToken)
	if !ok {
		// Disconnect for a connection this process never saw resolved,
		// e.g. after a restart. Non-fatal, nothing to mutate.
		p.logger.Debug("disconnect for unknown session", "connection_token", ev.ConnectionToken)
		return Result{OK: true, Note: NoteSessionNotFound, ConnectionToken: ev.ConnectionToken, LogID: logID}
	}

	var (
		res    Result
		change *event.SessionChange
	)
	txErr := p.store.WithTx(ctx, func(tx *store.Tx) error {
		done, err := tx.IsProcessed(ctx, logID)
		if err != nil {
			return err
		}
		if done {
			res = Result{OK: true, Note: NoteAlreadyProcessed, LogID: logID}
			return nil
		}

		if err := tx.SplitIfCrossedMidnight(ctx, id.PlayerID, id.ConnectionToken, id.DisplayName, id.EnrichedName, now); err != nil {
			return err
		}

		open, err := tx.FindOpenInterval(ctx, id.ConnectionToken)
		if err != nil {
			return err
		}
		if open == nil {
			res = Result{OK: true, Note: NoteNoOpenSession, PlayerID: id.PlayerID, ConnectionToken: id.ConnectionToken, LogID: logID}
		} else {
			if err := tx.CloseInterval(ctx, open.ID, now.Format(store.ClockFormat)); err != nil {
				return err
			}
			closed, err := tx.GetInterval(ctx, open.ID)
			if err != nil {
				return err
			}
			res = Result{OK: true, Action: ActionDisconnected, PlayerID: id.PlayerID, ConnectionToken: id.ConnectionToken, LogID: logID}
			change = &event.SessionChange{
				Kind:            event.ChangeDisconnected,
				PlayerID:        id.PlayerID,
				ConnectionToken: id.ConnectionToken,
				DisplayName:     id.DisplayName,
				EnrichedName:    id.EnrichedName,
				At:              now,
			}
			if closed != nil {
				change.PlaytimeSeconds = closed.PlaytimeSeconds
			}
		}

		return tx.RecordProcessed(ctx, logID, id.PlayerID, id.ConnectionToken, store.ActionDisconnected, now)
	})
	if txErr != nil {
		return p.storageFailure(logID, txErr)
	}

	if change != nil {
		p.corr.Forget(id.ConnectionToken)
	}
	p.emit(ctx, change)
	return res
}

// enrich performs the best-effort profile-name lookup with a bounded timeout.
func (p *Pipeline) enrich(ctx context.Context, playerID string) string {
	if p.resolver == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, p.lookupTimeout)
	defer cancel()

	name, err := p.resolver.DisplayName(ctx, playerID)
	if err != nil {
		p.logger.Debug("profile lookup failed", "player_id", playerID, "error", err)
		return ""
	}
	return name
}

func (p *Pipeline) emit(ctx context.Context, change *event.SessionChange) {
	if change == nil || p.onCommit == nil {
		return
	}
	p.onCommit(ctx, *change)
}

// storageFailure is the only unrecoverable outcome: loss of the storage
// engine, surfaced with the underlying cause attached.
func (p *Pipeline) storageFailure(logID string, err error) Result {
	p.logger.Error("storage failure", "log_id", logID, "error", err)
	return Result{OK: false, Err: "storage failure: " + err.Error(), LogID: logID}
}
