package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/logtrail/logtrail/internal/event"
)

// FilterConfig determines which session changes trigger notifications.
type FilterConfig struct {
	NotifyOnConnect    bool
	NotifyOnDisconnect bool
}

// NotifierStatus represents the current status of the notifier.
type NotifierStatus struct {
	Disabled       bool
	DisabledReason string
	DisabledAt     time.Time
	LastError      error
}

// DefaultMaxQueueSize is the default maximum number of changes to keep in queue.
const DefaultMaxQueueSize = 100

// Notifier batches and sends Discord notifications for committed session
// changes. It runs a dedicated goroutine for processing; enqueueing is
// non-blocking and never fails the ingest path.
type Notifier struct {
	sender       Sender
	afterFunc    AfterFunc
	batchDelay   time.Duration
	filter       FilterConfig
	logger       *slog.Logger
	maxQueueSize int

	changeCh chan *event.SessionChange
	flushCh  chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}

	// internal state (protected by mu)
	mu          sync.Mutex
	queue       []*event.SessionChange
	timerHandle TimerHandle
	status      NotifierStatus

	// backoff state
	backoffAttempt int
	backoffUntil   time.Time

	// Stop() protection
	stopOnce sync.Once
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithAfterFunc sets the timer function (for testing).
func WithAfterFunc(af AfterFunc) NotifierOption {
	return func(n *Notifier) { n.afterFunc = af }
}

// WithNotifierLogger sets the logger.
func WithNotifierLogger(logger *slog.Logger) NotifierOption {
	return func(n *Notifier) { n.logger = logger }
}

// WithMaxQueueSize sets the maximum queue size.
func WithMaxQueueSize(size int) NotifierOption {
	return func(n *Notifier) {
		if size > 0 {
			n.maxQueueSize = size
		}
	}
}

// NewNotifier creates a new Notifier.
// Call Run() to start processing changes.
func NewNotifier(sender Sender, batchDelaySec int, filter FilterConfig, opts ...NotifierOption) *Notifier {
	if batchDelaySec <= 0 {
		batchDelaySec = 3 // default
	}

	n := &Notifier{
		sender:       sender,
		afterFunc:    DefaultAfterFunc,
		batchDelay:   time.Duration(batchDelaySec) * time.Second,
		filter:       filter,
		logger:       slog.Default(),
		maxQueueSize: DefaultMaxQueueSize,
		changeCh:     make(chan *event.SessionChange, 64),
		flushCh:      make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		queue:        make([]*event.SessionChange, 0, 16),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Run starts the notification processing loop.
// Blocks until Stop is called or ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	defer close(n.doneCh)

	for {
		select {
		case c := <-n.changeCh:
			n.handleChange(c)

		case <-n.flushCh:
			n.flush(ctx)

		case <-n.stopCh:
			// Best-effort flush on stop
			n.flush(ctx)
			return

		case <-ctx.Done():
			// Fresh context for the final best-effort flush
			n.flush(context.Background())
			return
		}
	}
}

// Enqueue adds a session change to the notification queue.
// Changes are filtered based on configuration.
// Safe to call from any goroutine.
// Non-blocking: if the channel is full, the change is dropped.
func (n *Notifier) Enqueue(change *event.SessionChange) {
	if change == nil {
		return
	}

	n.mu.Lock()
	disabled := n.status.Disabled
	n.mu.Unlock()
	if disabled {
		return
	}

	if !n.shouldNotify(change) {
		return
	}

	select {
	case n.changeCh <- change:
	default:
		n.logger.Warn("notification queue full, change dropped",
			"kind", change.Kind,
		)
	}
}

func (n *Notifier) shouldNotify(change *event.SessionChange) bool {
	switch change.Kind {
	case event.ChangeConnected:
		return n.filter.NotifyOnConnect
	case event.ChangeDisconnected:
		return n.filter.NotifyOnDisconnect
	default:
		return false
	}
}

func (n *Notifier) handleChange(c *event.SessionChange) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.queue = append(n.queue, c)

	// Coalesce: a rapid connect/disconnect flap keeps only the latest
	// change per connection.
	n.coalesceQueueLocked()

	// Enforce queue size limit (drop oldest changes)
	if len(n.queue) > n.maxQueueSize {
		dropped := len(n.queue) - n.maxQueueSize
		n.queue = n.queue[dropped:]
		n.logger.Warn("queue overflow, dropped old changes", "dropped", dropped)
	}

	// Start batch timer if not already running
	if n.timerHandle == nil {
		n.timerHandle = n.afterFunc(n.batchDelay, n.triggerFlush)
	}
}

// coalesceQueueLocked keeps only the latest change per connection token.
// Must be called with mu held.
func (n *Notifier) coalesceQueueLocked() {
	if len(n.queue) <= 1 {
		return
	}

	seen := make(map[string]int) // token -> index in result
	result := make([]*event.SessionChange, 0, len(n.queue))

	for _, c := range n.queue {
		key := c.ConnectionToken
		if key == "" {
			result = append(result, c)
			continue
		}
		if idx, exists := seen[key]; exists {
			result[idx] = c
		} else {
			seen[key] = len(result)
			result = append(result, c)
		}
	}

	n.queue = result
}

func (n *Notifier) triggerFlush() {
	select {
	case n.flushCh <- struct{}{}:
	default:
	}
}

func (n *Notifier) flush(ctx context.Context) {
	n.mu.Lock()
	if len(n.queue) == 0 {
		n.timerHandle = nil
		n.mu.Unlock()
		return
	}

	// Check backoff - keep changes in queue and schedule next flush
	if time.Now().Before(n.backoffUntil) {
		remaining := time.Until(n.backoffUntil)
		n.logger.Debug("in backoff period, keeping changes in queue",
			"queue_size", len(n.queue),
			"backoff_until", n.backoffUntil,
			"remaining", remaining,
		)
		if n.timerHandle == nil {
			n.timerHandle = n.afterFunc(remaining, n.triggerFlush)
		}
		n.mu.Unlock()
		return
	}

	// Take ownership of queue
	changes := n.queue
	n.queue = make([]*event.SessionChange, 0, 16)
	n.timerHandle = nil
	n.mu.Unlock()

	payloads := BuildPayloads(changes)
	for _, payload := range payloads {
		result, retryAfter := n.sender.Send(ctx, payload)
		n.handleSendResult(result, retryAfter)

		// Stop sending more payloads if we hit an error
		if result != SendOK {
			break
		}
	}
}

func (n *Notifier) handleSendResult(result SendResult, retryAfter time.Duration) {
	switch result {
	case SendOK:
		n.backoffAttempt = 0
		n.backoffUntil = time.Time{}

	case SendRetryable:
		n.backoffAttempt++
		delay := retryAfter
		if delay == 0 {
			delay = NewBackoffCalculator(DefaultBackoffConfig).Calculate(n.backoffAttempt)
		}
		n.backoffUntil = time.Now().Add(delay)
		n.logger.Warn("Discord send failed, backing off",
			"attempt", n.backoffAttempt,
			"backoff_until", n.backoffUntil,
		)

	case SendFatal:
		// Stop trying (e.g., invalid webhook URL)
		n.mu.Lock()
		n.status.Disabled = true
		n.status.DisabledReason = "fatal error (invalid webhook or authentication failed)"
		n.status.DisabledAt = time.Now()
		n.mu.Unlock()
		n.logger.Error("Discord send fatal error, notifications disabled")
	}
}

// Stop stops the notifier gracefully.
// Waits for the run loop to finish or until ctx is cancelled.
// Safe to call multiple times.
func (n *Notifier) Stop(ctx context.Context) error {
	n.stopOnce.Do(func() {
		close(n.stopCh)
	})

	select {
	case <-n.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current notifier status.
// Safe for concurrent use.
func (n *Notifier) Status() NotifierStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

// QueueLength returns the current queue length (for testing/monitoring).
// Safe for concurrent use.
func (n *Notifier) QueueLength() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}
