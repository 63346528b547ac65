package attempt

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultWindow is the sliding lockout window.
	DefaultWindow = 30 * time.Minute
	// DefaultThreshold is the failed-attempt count that triggers lockout.
	DefaultThreshold = 5
	// DefaultMaxEntries caps the per-identifier history.
	DefaultMaxEntries = 20
)

// Record is one login attempt for an identifier.
type Record struct {
	Timestamp  time.Time
	Success    bool
	SourceAddr string
}

// Result is the outcome of a lockout check.
type Result struct {
	Allowed           bool
	Reason            string
	AttemptsRemaining int
	LockoutExpiresAt  time.Time
}

// Config tunes the tracker. Zero values fall back to the defaults.
type Config struct {
	Window     time.Duration
	Threshold  int
	MaxEntries int
}

// Tracker keeps an in-memory, per-identifier history of recent login
// attempts and derives rate-limit lockout from it. This is the volatile
// RateLimitWindow policy; the durable AccountLockout counters live on
// the user row and are managed by the auth service. State is process
// local and lost on restart.
type Tracker struct {
	mu         sync.Mutex
	attempts   map[string][]Record
	window     time.Duration
	threshold  int
	maxEntries int
	logger     zerolog.Logger
	now        func() time.Time
}

func NewTracker(cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	return &Tracker{
		attempts:   make(map[string][]Record),
		window:     cfg.Window,
		threshold:  cfg.Threshold,
		maxEntries: cfg.MaxEntries,
		logger:     logger,
		now:        time.Now,
	}
}

// Check reports whether the identifier may attempt a login. The window
// slides: lockout lifts on its own once the oldest failing attempt ages
// out, with no explicit unlock.
func (t *Tracker) Check(identifier string) Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	recent := t.pruneLocked(identifier, now)

	var failed int
	var oldestFailed time.Time
	for _, r := range recent {
		if r.Success {
			continue
		}
		if failed == 0 {
			oldestFailed = r.Timestamp
		}
		failed++
	}

	if failed >= t.threshold {
		expiresAt := oldestFailed.Add(t.window)
		res := Result{
			Allowed:          false,
			Reason:           fmt.Sprintf("too many failed login attempts, try again after %s", expiresAt.Format(time.Kitchen)),
			LockoutExpiresAt: expiresAt,
		}
		t.log(identifier, "lockout in effect", failed, &res)
		return res
	}

	res := Result{
		Allowed:           true,
		AttemptsRemaining: t.threshold - failed,
	}
	t.log(identifier, "attempt allowed", failed, &res)
	return res
}

// Record appends an attempt to the identifier's history. A successful
// attempt resets nothing here; entries only leave by aging out or by
// eviction once the history exceeds its cap.
func (t *Tracker) Record(identifier string, success bool, sourceAddr string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	recent := t.pruneLocked(identifier, now)
	recent = append(recent, Record{Timestamp: now, Success: success, SourceAddr: sourceAddr})
	if len(recent) > t.maxEntries {
		recent = recent[len(recent)-t.maxEntries:]
	}
	t.attempts[identifier] = recent

	t.logger.Info().
		Str("identifier", identifier).
		Bool("success", success).
		Str("source_addr", sourceAddr).
		Int("history_len", len(recent)).
		Msg("login attempt recorded")
}

// pruneLocked drops entries older than the window. Caller holds the lock.
func (t *Tracker) pruneLocked(identifier string, now time.Time) []Record {
	recent := t.attempts[identifier][:0:0]
	for _, r := range t.attempts[identifier] {
		if now.Sub(r.Timestamp) <= t.window {
			recent = append(recent, r)
		}
	}
	if len(recent) == 0 {
		delete(t.attempts, identifier)
	} else {
		t.attempts[identifier] = recent
	}
	return recent
}

// StartCleanup evicts idle identifiers in the background until stop is
// closed. Keeps the map from accumulating one-off identifiers probed by
// scanners.
func (t *Tracker) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = t.window
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.cleanup()
			}
		}
	}()
}

func (t *Tracker) cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for id := range t.attempts {
		t.pruneLocked(id, now)
	}
}

// log writes the security-log line required on every check. Logging must
// never propagate a failure into the login path.
func (t *Tracker) log(identifier, msg string, failed int, res *Result) {
	defer func() {
		_ = recover()
	}()
	ev := t.logger.Info().
		Str("identifier", identifier).
		Int("failed_in_window", failed).
		Bool("allowed", res.Allowed)
	if !res.Allowed {
		ev = ev.Time("lockout_expires_at", res.LockoutExpiresAt)
	}
	ev.Msg(msg)
}
