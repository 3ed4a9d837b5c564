// Package correlate reconstructs stable player identities from the three
// independently-arriving connection fragments, which share no explicit
// correlation key. It owns two in-memory stores: pending correlations
// (keyed by player ID, ordered by registration) and active identities
// (keyed by connection token). Both are process-lifetime only; a restart
// loses them, which is an accepted tradeoff.
package correlate

import (
	"errors"
	"sync"
	"time"
)

// Soft correlation failures. The ingest pipeline reports these as structured
// results, never as request failures.
var (
	// ErrNoPending means a token arrived with no unlinked pending correlation.
	ErrNoPending = errors.New("no pending connection")
	// ErrAmbiguous means strict mode refused to guess between multiple
	// pending correlations.
	ErrAmbiguous = errors.New("ambiguous pending correlation")
	// ErrIdentityNotFound means neither the pending queue nor the active
	// identities could resolve a player for a token.
	ErrIdentityNotFound = errors.New("identity not found")
)

// DefaultPendingTTL bounds how long an unfinished handshake may linger.
const DefaultPendingTTL = 10 * time.Minute

// Identity is a fully resolved connection.
type Identity struct {
	PlayerID        string
	ConnectionToken string
	DisplayName     string
	EnrichedName    string
}

type pendingEntry struct {
	playerID     string
	token        string // empty until BindToken
	registeredAt time.Time
}

// Correlator tracks the multi-stage identity correlation state machine.
// Every operation is a single mutex-guarded critical section with no
// blocking calls inside; it is safe for concurrent use.
type Correlator struct {
	mu      sync.Mutex
	pending []*pendingEntry     // registration order, oldest first
	active  map[string]Identity // keyed by connection token

	ttl    time.Duration
	strict bool
	now    func() time.Time
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithStrict makes token binding fail closed when more than one correlation
// is pending, instead of guessing the most recent.
func WithStrict(strict bool) Option {
	return func(c *Correlator) { c.strict = strict }
}

// WithPendingTTL sets the eviction age for pending correlations.
func WithPendingTTL(ttl time.Duration) Option {
	return func(c *Correlator) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithNowFunc sets the time source (for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(c *Correlator) { c.now = now }
}

// New creates a Correlator.
func New(opts ...Option) *Correlator {
	c := &Correlator{
		active: make(map[string]Identity),
		ttl:    DefaultPendingTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register records that a connection from playerID was accepted.
// Re-registering an already-pending player resets its entry: the token is
// cleared and the entry moves to the back of the queue.
func (c *Correlator) Register(playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpiredLocked()

	for i, p := range c.pending {
		if p.playerID == playerID {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			break
		}
	}
	c.pending = append(c.pending, &pendingEntry{
		playerID:     playerID,
		registeredAt: c.now(),
	})
}

// BindToken assigns a connection token to a pending correlation and returns
// the player ID it was bound to. The default policy binds to the most
// recently registered still-unlinked player; with strict mode and more than
// one pending correlation it returns ErrAmbiguous instead of guessing.
func (c *Correlator) BindToken(token string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpiredLocked()

	var unlinked []*pendingEntry
	for _, p := range c.pending {
		if p.token == "" {
			unlinked = append(unlinked, p)
		}
	}
	if len(unlinked) == 0 {
		return "", ErrNoPending
	}
	if c.strict && len(unlinked) > 1 {
		return "", ErrAmbiguous
	}

	entry := unlinked[len(unlinked)-1]
	entry.token = token
	return entry.playerID, nil
}

// Resolve completes a correlation: it finds the pending entry bound to
// token, promotes it to an active identity with the given display name, and
// removes it from the pending queue. If no pending entry matches, it falls
// back to an existing active identity for the token (covers re-delivery and
// post-restart races). Returns ErrIdentityNotFound when neither source
// yields a player.
func (c *Correlator) Resolve(token, displayName string) (Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpiredLocked()

	for i, p := range c.pending {
		if p.token == token {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			id := Identity{
				PlayerID:        p.playerID,
				ConnectionToken: token,
				DisplayName:     displayName,
			}
			c.active[token] = id
			return id, nil
		}
	}

	if id, ok := c.active[token]; ok {
		return id, nil
	}
	return Identity{}, ErrIdentityNotFound
}

// SetEnrichedName attaches a remotely looked-up profile name to an active
// identity. A missing identity is ignored; enrichment is best-effort.
func (c *Correlator) SetEnrichedName(token, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.active[token]
	if !ok {
		return
	}
	id.EnrichedName = name
	c.active[token] = id
}

// Lookup returns the active identity for a token, if any.
func (c *Correlator) Lookup(token string) (Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.active[token]
	return id, ok
}

// Forget removes the active identity for a token. Called when the session
// closes.
func (c *Correlator) Forget(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, token)
}

// PendingCount returns the number of pending correlations.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpiredLocked()
	return len(c.pending)
}

// ActiveCount returns the number of active identities.
func (c *Correlator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// evictExpiredLocked drops pending entries older than the TTL so an
// abandoned handshake cannot leak. Must be called with mu held.
func (c *Correlator) evictExpiredLocked() {
	if len(c.pending) == 0 {
		return
	}
	cutoff := c.now().Add(-c.ttl)
	kept := c.pending[:0]
	for _, p := range c.pending {
		if p.registeredAt.After(cutoff) {
			kept = append(kept, p)
		}
	}
	c.pending = kept
}
