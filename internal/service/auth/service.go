package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medisync/clinic-api/internal/auth/attempt"
	"github.com/medisync/clinic-api/internal/auth/password"
	"github.com/medisync/clinic-api/internal/auth/session"
	"github.com/medisync/clinic-api/internal/config"
	"github.com/medisync/clinic-api/internal/email"
	"github.com/medisync/clinic-api/internal/model"
	"github.com/medisync/clinic-api/internal/repository"
	"github.com/medisync/clinic-api/internal/service/audit"
	apperrors "github.com/medisync/clinic-api/pkg/errors"
	"github.com/medisync/clinic-api/pkg/metrics"
	"github.com/medisync/clinic-api/pkg/security"
)

// RequestMeta carries the caller's network identity for attempt
// tracking and audit.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Service orchestrates login and credential lifecycle. Two lockout
// policies guard login: the volatile per-identifier attempt window,
// checked before credentials are ever touched, and the durable
// per-account counter stored on the user row.
type Service struct {
	users    repository.UserRepository
	tokens   repository.TokenRepository
	tracker  *attempt.Tracker
	sessions *session.Manager
	hasher   security.PasswordHasher
	email    email.Service
	recorder *audit.Recorder
	metrics  *metrics.Metrics
	logger   *zerolog.Logger
	cfg      config.AuthConfig
	now      func() time.Time
}

func NewService(
	users repository.UserRepository,
	tokens repository.TokenRepository,
	tracker *attempt.Tracker,
	sessions *session.Manager,
	hasher security.PasswordHasher,
	emailSvc email.Service,
	recorder *audit.Recorder,
	m *metrics.Metrics,
	logger *zerolog.Logger,
	cfg config.AuthConfig,
) *Service {
	return &Service{
		users:    users,
		tokens:   tokens,
		tracker:  tracker,
		sessions: sessions,
		hasher:   hasher,
		email:    emailSvc,
		recorder: recorder,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Login authenticates the identifier/password pair and issues a session.
// The attempt window is checked first: a locked-out identifier is
// rejected before the credential store is consulted, so lockout never
// leaks whether the account exists.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest, meta RequestMeta) (*model.LoginResponse, *model.Session, error) {
	if res := s.tracker.Check(req.Identifier); !res.Allowed {
		s.metrics.LoginAttempts.WithLabelValues("rate_limited").Inc()
		s.recorder.Record(audit.Entry{
			Action:     model.AuditActionLockout,
			EntityType: model.AuditEntityAuth,
			Metadata:   map[string]interface{}{"identifier": req.Identifier, "lockout_expires_at": res.LockoutExpiresAt},
			IPAddress:  meta.IPAddress,
			UserAgent:  meta.UserAgent,
		})
		return nil, nil, apperrors.NewRateLimited(res.Reason, res.LockoutExpiresAt)
	}

	user, err := s.users.GetByIdentifier(ctx, req.Identifier)
	if err != nil {
		s.fail(ctx, nil, req.Identifier, meta, "unknown identifier")
		return nil, nil, apperrors.NewUnauthenticated(model.ErrInvalidCredentials)
	}

	if user.Locked(s.now()) {
		s.metrics.LoginAttempts.WithLabelValues("account_locked").Inc()
		s.recorder.Record(audit.Entry{
			UserID:         user.ID,
			OrganizationID: user.OrganizationID,
			Action:         model.AuditActionLockout,
			EntityType:     model.AuditEntityAuth,
			EntityID:       user.ID,
			Metadata:       map[string]interface{}{"durable": true, "locked_until": user.LockedUntil},
			IPAddress:      meta.IPAddress,
			UserAgent:      meta.UserAgent,
		})
		return nil, nil, apperrors.NewRateLimited("account temporarily locked", *user.LockedUntil)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		s.fail(ctx, user, req.Identifier, meta, "bad password")
		return nil, nil, apperrors.NewUnauthenticated(model.ErrInvalidCredentials)
	}

	if !user.Active {
		s.metrics.LoginAttempts.WithLabelValues("inactive").Inc()
		s.recorder.Record(audit.Entry{
			UserID:         user.ID,
			OrganizationID: user.OrganizationID,
			Action:         model.AuditActionLoginFailed,
			EntityType:     model.AuditEntityAuth,
			EntityID:       user.ID,
			Metadata:       map[string]interface{}{"reason": "inactive"},
			IPAddress:      meta.IPAddress,
			UserAgent:      meta.UserAgent,
		})
		return nil, nil, apperrors.NewUnauthenticated(model.ErrAccountInactive)
	}

	s.tracker.Record(req.Identifier, true, meta.IPAddress)
	if err := s.users.RecordLoginSuccess(ctx, user.ID, s.now()); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to record login success")
	}

	memberships, err := s.users.ListMemberships(ctx, user.ID)
	if err != nil {
		return nil, nil, apperrors.NewInternal(fmt.Errorf("failed to load memberships: %w", err))
	}

	orgIDs := membershipOrgs(user, memberships)
	sess := s.sessions.Issue(user, secondaryOrgs(user, memberships))

	s.metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.recorder.Record(audit.Entry{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Action:         model.AuditActionLogin,
		EntityType:     model.AuditEntityAuth,
		EntityID:       user.ID,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
	})

	resp := &model.LoginResponse{
		User:                 user.Summary(),
		RequiresOrgSelection: len(orgIDs) > 1,
	}
	if resp.RequiresOrgSelection {
		resp.Organizations = orgIDs
	}
	return resp, sess, nil
}

// fail records a failed attempt in both lockout policies. The durable
// counter only advances for accounts that exist.
func (s *Service) fail(ctx context.Context, user *model.User, identifier string, meta RequestMeta, reason string) {
	s.tracker.Record(identifier, false, meta.IPAddress)
	s.metrics.LoginAttempts.WithLabelValues("failed").Inc()

	entry := audit.Entry{
		Action:     model.AuditActionLoginFailed,
		EntityType: model.AuditEntityAuth,
		Metadata:   map[string]interface{}{"identifier": identifier, "reason": reason},
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	}

	if user != nil {
		entry.UserID = user.ID
		entry.OrganizationID = user.OrganizationID
		entry.EntityID = user.ID

		var lockedUntil *time.Time
		if user.FailedLoginAttempts+1 >= s.cfg.AccountLockoutThreshold {
			until := s.now().Add(s.cfg.AccountLockoutDuration)
			lockedUntil = &until
			s.metrics.Lockouts.Inc()
		}
		if err := s.users.RecordLoginFailure(ctx, user.ID, lockedUntil); err != nil {
			s.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to record login failure")
		}
	}

	s.recorder.Record(entry)
}

// Logout destroys the session. Destroying an already-gone token is a
// no-op, so logout is idempotent.
func (s *Service) Logout(ctx context.Context, sess *model.Session, meta RequestMeta) {
	s.sessions.Destroy(sess.Token)
	s.recorder.Record(audit.Entry{
		UserID:         sess.UserID,
		OrganizationID: sess.OrganizationID,
		Action:         model.AuditActionLogout,
		EntityType:     model.AuditEntitySession,
		EntityID:       sess.UserID,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
	})
}

// ChangePassword verifies the current secret before accepting the new
// one. Strength rules apply in full; a weak replacement is rejected with
// field-level detail.
func (s *Service) ChangePassword(ctx context.Context, sess *model.Session, req *model.ChangePasswordRequest, meta RequestMeta) error {
	user, err := s.users.Get(ctx, sess.UserID)
	if err != nil {
		return apperrors.NewUnauthenticated(err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.CurrentPassword); err != nil {
		return apperrors.NewUnauthenticated(model.ErrInvalidCredentials)
	}

	if res := password.Validate(req.NewPassword); !res.Valid {
		return apperrors.NewValidation(res.Message, map[string]string{"new_password": res.Message})
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return apperrors.NewInternal(fmt.Errorf("failed to hash password: %w", err))
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return apperrors.NewInternal(fmt.Errorf("failed to update password: %w", err))
	}

	s.recorder.Record(audit.Entry{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Action:         model.AuditActionPasswordChange,
		EntityType:     model.AuditEntityUser,
		EntityID:       user.ID,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
	})

	go func() {
		if err := s.email.SendPasswordChanged(context.Background(), user.Email); err != nil {
			s.logger.Warn().Err(err).Msg("failed to send password change notice")
		}
	}()
	return nil
}

// ForgotPassword issues a single-use reset grant. The response is
// identical whether or not the address matches an account.
func (s *Service) ForgotPassword(ctx context.Context, emailAddr string, meta RequestMeta) error {
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil || !user.Active {
		s.logger.Debug().Str("email", emailAddr).Msg("reset requested for unknown or inactive account")
		return nil
	}

	jti := uuid.NewString()
	expiry := s.now().Add(s.cfg.ResetTokenExpiry)

	claims := jwt.RegisteredClaims{
		ID:        jti,
		Subject:   user.ID.String(),
		ExpiresAt: jwt.NewNumericDate(expiry),
		IssuedAt:  jwt.NewNumericDate(s.now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.ResetTokenSecret))
	if err != nil {
		return apperrors.NewInternal(fmt.Errorf("failed to sign reset token: %w", err))
	}

	if err := s.tokens.StoreResetToken(ctx, user.ID, jti, expiry); err != nil {
		return apperrors.NewInternal(fmt.Errorf("failed to store reset token: %w", err))
	}

	s.metrics.PasswordResets.WithLabelValues("requested").Inc()
	s.recorder.Record(audit.Entry{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Action:         model.AuditActionPasswordReset,
		EntityType:     model.AuditEntityUser,
		EntityID:       user.ID,
		Metadata:       map[string]interface{}{"stage": "requested"},
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
	})

	go func() {
		if err := s.email.SendPasswordReset(context.Background(), user.Email, token); err != nil {
			s.logger.Warn().Err(err).Msg("failed to send reset email")
		}
	}()
	return nil
}

// ResetPassword redeems a reset grant. The signature check catches
// tampered tokens; the jti consume catches replays of genuine ones.
func (s *Service) ResetPassword(ctx context.Context, req *model.ResetPasswordRequest, meta RequestMeta) error {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(req.Token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.ResetTokenSecret), nil
	})
	if err != nil || !parsed.Valid {
		return apperrors.NewBadRequest("invalid or expired reset token", err)
	}

	userID, err := s.tokens.ConsumeResetToken(ctx, claims.ID)
	if err != nil {
		return apperrors.NewBadRequest("invalid or expired reset token", err)
	}
	if claims.Subject != userID.String() {
		return apperrors.NewBadRequest("invalid or expired reset token", nil)
	}

	if res := password.Validate(req.NewPassword); !res.Valid {
		return apperrors.NewValidation(res.Message, map[string]string{"new_password": res.Message})
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return apperrors.NewInternal(fmt.Errorf("failed to hash password: %w", err))
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return apperrors.NewInternal(fmt.Errorf("failed to update password: %w", err))
	}

	user, err := s.users.Get(ctx, userID)
	if err == nil {
		s.metrics.PasswordResets.WithLabelValues("completed").Inc()
		s.recorder.Record(audit.Entry{
			UserID:         user.ID,
			OrganizationID: user.OrganizationID,
			Action:         model.AuditActionPasswordReset,
			EntityType:     model.AuditEntityUser,
			EntityID:       user.ID,
			Metadata:       map[string]interface{}{"stage": "completed"},
			IPAddress:      meta.IPAddress,
			UserAgent:      meta.UserAgent,
		})
		go func() {
			if err := s.email.SendPasswordChanged(context.Background(), user.Email); err != nil {
				s.logger.Warn().Err(err).Msg("failed to send password change notice")
			}
		}()
	}
	return nil
}

// SelectOrganization switches the session's working tenant. Only
// organizations the principal belongs to are eligible.
func (s *Service) SelectOrganization(ctx context.Context, sess *model.Session, orgID uuid.UUID, meta RequestMeta) error {
	if !sess.MemberOf(orgID) {
		return apperrors.NewForbidden("not a member of the requested organization", nil, nil)
	}
	if err := s.sessions.SelectOrganization(sess.Token, orgID); err != nil {
		return apperrors.NewUnauthenticated(err)
	}

	s.recorder.Record(audit.Entry{
		UserID:         sess.UserID,
		OrganizationID: orgID,
		Action:         model.AuditActionOrgSelected,
		EntityType:     model.AuditEntitySession,
		EntityID:       sess.UserID,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
	})
	return nil
}

// SessionStatus reports the idle time remaining without refreshing the
// activity clock.
func (s *Service) SessionStatus(sess *model.Session) (*model.SessionStatus, error) {
	remaining, lastActivity, err := s.sessions.Remaining(sess.Token)
	if err != nil {
		return nil, apperrors.NewUnauthenticated(err)
	}
	return &model.SessionStatus{
		ExpiresIn:    int64(remaining.Seconds()),
		LastActivity: lastActivity,
	}, nil
}

// membershipOrgs returns the distinct organizations a user may work in,
// primary first.
func membershipOrgs(user *model.User, memberships []model.OrganizationMembership) []uuid.UUID {
	orgs := []uuid.UUID{user.OrganizationID}
	seen := map[uuid.UUID]struct{}{user.OrganizationID: {}}
	for _, m := range memberships {
		if _, ok := seen[m.OrganizationID]; ok {
			continue
		}
		seen[m.OrganizationID] = struct{}{}
		orgs = append(orgs, m.OrganizationID)
	}
	return orgs
}

func secondaryOrgs(user *model.User, memberships []model.OrganizationMembership) []uuid.UUID {
	var orgs []uuid.UUID
	for _, m := range memberships {
		if m.OrganizationID != user.OrganizationID {
			orgs = append(orgs, m.OrganizationID)
		}
	}
	return orgs
}
