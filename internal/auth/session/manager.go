package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/medisync/clinic-api/internal/model"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

const (
	// DefaultInactivityTimeout is the sliding idle timeout.
	DefaultInactivityTimeout = 30 * time.Minute
	// hardTTL is a backstop expiry on the underlying cache; the
	// inactivity timer is the real boundary.
	hardTTL = 24 * time.Hour
)

// Config tunes the session manager.
type Config struct {
	InactivityTimeout time.Duration
}

// Manager issues and validates opaque server-side sessions. Expiry is
// lazy: a session idle past the timeout is destroyed on the validation
// that discovers it, before the error is returned, so a racing request
// with the same token observes "not found" rather than "about to
// expire". The read-refresh of last activity runs under the manager's
// mutex; the backing cache alone is not enough because refresh is a
// read-modify-write.
//
// Issue and Validate hand out value snapshots, never the stored struct.
// A request holding a snapshot while the same user switches
// organizations sees a stale but consistent view; the next Validate
// picks up the switch.
type Manager struct {
	mu              sync.Mutex
	store           *cache.Cache
	timeout         time.Duration
	logger          zerolog.Logger
	activeSessions  prometheus.Gauge
	sessionsExpired prometheus.Counter
	now             func() time.Time
}

func NewManager(cfg Config, logger zerolog.Logger, activeSessions prometheus.Gauge, sessionsExpired prometheus.Counter) *Manager {
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = DefaultInactivityTimeout
	}
	return &Manager{
		store:           cache.New(hardTTL, 2*hardTTL),
		timeout:         cfg.InactivityTimeout,
		logger:          logger,
		activeSessions:  activeSessions,
		sessionsExpired: sessionsExpired,
		now:             time.Now,
	}
}

// Issue creates a session for the principal and returns its opaque token.
func (m *Manager) Issue(user *model.User, memberships []uuid.UUID) *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &model.Session{
		Token:                  uuid.NewString(),
		UserID:                 user.ID,
		Username:               user.Username,
		Email:                  user.Email,
		Role:                   user.Role,
		CustomRoleID:           user.CustomRoleID,
		OrganizationID:         user.OrganizationID,
		SelectedOrganizationID: user.OrganizationID,
		Memberships:            memberships,
		LastActivity:           m.now(),
	}
	m.store.Set(s.Token, s, cache.DefaultExpiration)
	if m.activeSessions != nil {
		m.activeSessions.Inc()
	}

	m.logger.Info().
		Str("user_id", user.ID.String()).
		Str("username", user.Username).
		Msg("session issued")
	snapshot := *s
	return &snapshot
}

// Validate looks the token up, enforces the inactivity timeout, and on
// success refreshes last activity (sliding expiration).
func (m *Manager) Validate(token string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, found := m.store.Get(token)
	if !found {
		return nil, ErrSessionNotFound
	}
	s := v.(*model.Session)

	now := m.now()
	if now.Sub(s.LastActivity) > m.timeout {
		// Destroy before returning so a concurrent validation of the
		// same token sees the session gone.
		m.store.Delete(token)
		if m.activeSessions != nil {
			m.activeSessions.Dec()
		}
		if m.sessionsExpired != nil {
			m.sessionsExpired.Inc()
		}
		m.logger.Info().
			Str("user_id", s.UserID.String()).
			Time("last_activity", s.LastActivity).
			Msg("session expired")
		return nil, ErrSessionExpired
	}

	s.LastActivity = now
	m.store.Set(token, s, cache.DefaultExpiration)
	snapshot := *s
	return &snapshot, nil
}

// Destroy removes the session. Destroying an unknown token is a no-op.
func (m *Manager) Destroy(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, found := m.store.Get(token); !found {
		return
	}
	m.store.Delete(token)
	if m.activeSessions != nil {
		m.activeSessions.Dec()
	}
}

// SelectOrganization switches the session's active tenant. The caller
// is responsible for the membership check.
func (m *Manager) SelectOrganization(token string, orgID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, found := m.store.Get(token)
	if !found {
		return ErrSessionNotFound
	}
	s := v.(*model.Session)
	s.SelectedOrganizationID = orgID
	m.store.Set(token, s, cache.DefaultExpiration)
	return nil
}

// Remaining reports the session lifetime left before the inactivity
// timeout fires, without refreshing activity. UX aid, not a boundary.
func (m *Manager) Remaining(token string) (time.Duration, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, found := m.store.Get(token)
	if !found {
		return 0, time.Time{}, ErrSessionNotFound
	}
	s := v.(*model.Session)
	left := m.timeout - m.now().Sub(s.LastActivity)
	if left < 0 {
		left = 0
	}
	return left, s.LastActivity, nil
}
