package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisync/clinic-api/internal/auth/attempt"
	"github.com/medisync/clinic-api/internal/auth/session"
	"github.com/medisync/clinic-api/internal/config"
	"github.com/medisync/clinic-api/internal/model"
	"github.com/medisync/clinic-api/internal/service/audit"
	apperrors "github.com/medisync/clinic-api/pkg/errors"
	"github.com/medisync/clinic-api/pkg/metrics"
	"github.com/medisync/clinic-api/pkg/security"
)

var testMetrics = metrics.NewMetrics("test", "authsvc")

type fakeUserRepo struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*model.User
	memberships map[uuid.UUID][]model.OrganizationMembership
	lookups     int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:       make(map[uuid.UUID]*model.User),
		memberships: make(map[uuid.UUID][]model.OrganizationMembership),
	}
}

func (f *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return f.GetByIdentifier(ctx, email)
}

func (f *fakeUserRepo) GetByIdentifier(_ context.Context, identifier string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	for _, u := range f.users {
		if u.Username == identifier || u.Email == identifier {
			copied := *u
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error { f.users[u.ID] = u; return nil }
func (f *fakeUserRepo) Update(_ context.Context, u *model.User) error { f.users[u.ID] = u; return nil }

func (f *fakeUserRepo) RecordLoginSuccess(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	u.LastLoginAt = &at
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	return nil
}

func (f *fakeUserRepo) RecordLoginFailure(_ context.Context, id uuid.UUID, lockedUntil *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	u.FailedLoginAttempts++
	if lockedUntil != nil {
		u.LockedUntil = lockedUntil
	}
	return nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id].PasswordHash = hash
	return nil
}

func (f *fakeUserRepo) List(_ context.Context, _ uuid.UUID, _ *model.UserFilter) ([]*model.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) ListMemberships(_ context.Context, userID uuid.UUID) ([]model.OrganizationMembership, error) {
	return f.memberships[userID], nil
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	grants map[string]uuid.UUID
	used   map[string]bool
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{grants: make(map[string]uuid.UUID), used: make(map[string]bool)}
}

func (f *fakeTokenRepo) StoreResetToken(_ context.Context, userID uuid.UUID, jti string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants[jti] = userID
	return nil
}

func (f *fakeTokenRepo) ConsumeResetToken(_ context.Context, jti string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.grants[jti]
	if !ok || f.used[jti] {
		return uuid.Nil, fmt.Errorf("invalid, expired or used token")
	}
	f.used[jti] = true
	return userID, nil
}

type fakeAuditRepo struct {
	mu   sync.Mutex
	logs []*model.AuditLog
}

func (f *fakeAuditRepo) Create(_ context.Context, log *model.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeAuditRepo) ListWithPagination(_ context.Context, _ map[string]interface{}) ([]*model.AuditLog, int64, error) {
	return nil, 0, nil
}

func (f *fakeAuditRepo) Cleanup(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

type fakeEmail struct{}

func (fakeEmail) SendPasswordReset(context.Context, string, string) error  { return nil }
func (fakeEmail) SendPasswordChanged(context.Context, string) error        { return nil }
func (fakeEmail) SendCustom(context.Context, string, string, string) error { return nil }

type fixture struct {
	svc    *Service
	users  *fakeUserRepo
	tokens *fakeTokenRepo
	user   *model.User
	orgID  uuid.UUID
}

const testPassword = "Str0ng!Pass"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	users := newFakeUserRepo()
	tokens := newFakeTokenRepo()

	hasher := security.NewBcryptHasher(4)
	hash, err := hasher.Hash(testPassword)
	require.NoError(t, err)

	orgID := uuid.New()
	user := &model.User{
		Base:           model.Base{ID: uuid.New()},
		OrganizationID: orgID,
		Username:       "drsmith",
		Email:          "drsmith@clinic.test",
		PasswordHash:   hash,
		Role:           model.RoleDoctor,
		Active:         true,
	}
	require.NoError(t, users.Create(context.Background(), user))

	tracker := attempt.NewTracker(attempt.Config{}, logger)
	sessions := session.NewManager(session.Config{}, logger, prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_auth_sessions"}), nil)
	recorder := audit.NewRecorder(&fakeAuditRepo{}, nil, "audit.security", &logger, testMetrics)

	svc := NewService(users, tokens, tracker, sessions, hasher, fakeEmail{}, recorder, testMetrics, &logger, config.AuthConfig{
		AccountLockoutThreshold: 5,
		AccountLockoutDuration:  30 * time.Minute,
		ResetTokenSecret:        "test-secret",
		ResetTokenExpiry:        time.Hour,
	})

	return &fixture{svc: svc, users: users, tokens: tokens, user: user, orgID: orgID}
}

func login(f *fixture, identifier, pw string) (*model.LoginResponse, *model.Session, error) {
	return f.svc.Login(context.Background(), &model.LoginRequest{Identifier: identifier, Password: pw}, RequestMeta{IPAddress: "10.0.0.1"})
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)

	resp, sess, err := login(f, "drsmith", testPassword)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, f.user.ID, sess.UserID)
	assert.Equal(t, f.orgID, sess.SelectedOrganizationID)
	assert.False(t, resp.RequiresOrgSelection)
	assert.Empty(t, resp.Organizations)

	stored, err := f.users.Get(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestLoginWrongPasswordIncrementsCounter(t *testing.T) {
	f := newFixture(t)

	_, _, err := login(f, "drsmith", "wrong")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrUnauthenticated, appErr.Code)

	stored, _ := f.users.Get(context.Background(), f.user.ID)
	assert.Equal(t, 1, stored.FailedLoginAttempts)
}

func TestLoginUnknownIdentifierSameError(t *testing.T) {
	f := newFixture(t)

	_, _, errUnknown := login(f, "nobody", "whatever")
	_, _, errWrongPw := login(f, "drsmith", "wrong")

	var a, b *apperrors.AppError
	require.ErrorAs(t, errUnknown, &a)
	require.ErrorAs(t, errWrongPw, &b)
	assert.Equal(t, a.Code, b.Code)
	assert.Equal(t, a.Message, b.Message)
}

func TestLoginLockoutSkipsCredentialStore(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		_, _, err := login(f, "drsmith", "wrong")
		require.Error(t, err)
	}

	lookupsBefore := f.users.lookups
	_, _, err := login(f, "drsmith", testPassword)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrRateLimited, appErr.Code)
	assert.False(t, appErr.RetryAfter.IsZero())
	assert.Equal(t, lookupsBefore, f.users.lookups, "locked-out attempt must not touch the credential store")
}

func TestLoginDurableAccountLock(t *testing.T) {
	f := newFixture(t)
	until := time.Now().Add(10 * time.Minute)
	f.user.LockedUntil = &until
	require.NoError(t, f.users.Update(context.Background(), f.user))

	_, _, err := login(f, "drsmith", testPassword)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrRateLimited, appErr.Code)
}

func TestLoginFifthFailureArmsDurableLock(t *testing.T) {
	f := newFixture(t)
	f.user.FailedLoginAttempts = 4
	require.NoError(t, f.users.Update(context.Background(), f.user))

	_, _, err := login(f, "drsmith", "wrong")
	require.Error(t, err)

	stored, _ := f.users.Get(context.Background(), f.user.ID)
	require.NotNil(t, stored.LockedUntil)
	assert.True(t, stored.LockedUntil.After(time.Now()))
}

func TestLoginInactiveAccount(t *testing.T) {
	f := newFixture(t)
	f.user.Active = false
	require.NoError(t, f.users.Update(context.Background(), f.user))

	_, _, err := login(f, "drsmith", testPassword)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrUnauthenticated, appErr.Code)
}

func TestLoginSuccessClearsDurableCounter(t *testing.T) {
	f := newFixture(t)
	f.user.FailedLoginAttempts = 3
	require.NoError(t, f.users.Update(context.Background(), f.user))

	_, _, err := login(f, "drsmith", testPassword)
	require.NoError(t, err)

	stored, _ := f.users.Get(context.Background(), f.user.ID)
	assert.Zero(t, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockedUntil)
}

func TestLoginMultiOrgRequiresSelection(t *testing.T) {
	f := newFixture(t)
	secondOrg := uuid.New()
	f.users.memberships[f.user.ID] = []model.OrganizationMembership{
		{UserID: f.user.ID, OrganizationID: secondOrg},
	}

	resp, sess, err := login(f, "drsmith", testPassword)
	require.NoError(t, err)
	assert.True(t, resp.RequiresOrgSelection)
	assert.Equal(t, []uuid.UUID{f.orgID, secondOrg}, resp.Organizations)
	assert.Equal(t, f.orgID, sess.SelectedOrganizationID, "primary org stays selected until an explicit choice")
}

func TestSelectOrganization(t *testing.T) {
	f := newFixture(t)
	secondOrg := uuid.New()
	f.users.memberships[f.user.ID] = []model.OrganizationMembership{
		{UserID: f.user.ID, OrganizationID: secondOrg},
	}

	_, sess, err := login(f, "drsmith", testPassword)
	require.NoError(t, err)

	require.NoError(t, f.svc.SelectOrganization(context.Background(), sess, secondOrg, RequestMeta{}))

	_, _, errForeign := login(f, "drsmith", testPassword)
	require.NoError(t, errForeign)
	err = f.svc.SelectOrganization(context.Background(), sess, uuid.New(), RequestMeta{})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	_, sess, err := login(f, "drsmith", testPassword)
	require.NoError(t, err)

	t.Run("wrong current password", func(t *testing.T) {
		err := f.svc.ChangePassword(context.Background(), sess, &model.ChangePasswordRequest{
			CurrentPassword: "wrong", NewPassword: "N3w!Passw0rd",
		}, RequestMeta{})
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.ErrUnauthenticated, appErr.Code)
	})

	t.Run("weak replacement rejected", func(t *testing.T) {
		err := f.svc.ChangePassword(context.Background(), sess, &model.ChangePasswordRequest{
			CurrentPassword: testPassword, NewPassword: "short",
		}, RequestMeta{})
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.ErrValidation, appErr.Code)
		assert.Contains(t, appErr.Fields, "new_password")
	})

	t.Run("accepted", func(t *testing.T) {
		err := f.svc.ChangePassword(context.Background(), sess, &model.ChangePasswordRequest{
			CurrentPassword: testPassword, NewPassword: "N3w!Passw0rd",
		}, RequestMeta{})
		require.NoError(t, err)

		_, _, err = login(f, "drsmith", "N3w!Passw0rd")
		assert.NoError(t, err)
	})
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)

	err := f.svc.ForgotPassword(context.Background(), "ghost@clinic.test", RequestMeta{})
	require.NoError(t, err)
	assert.Empty(t, f.tokens.grants)
}

func TestResetPasswordSingleUse(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.ForgotPassword(context.Background(), f.user.Email, RequestMeta{}))
	require.Len(t, f.tokens.grants, 1)

	var jti string
	for k := range f.tokens.grants {
		jti = k
	}

	claims := jwt.RegisteredClaims{
		ID:        jti,
		Subject:   f.user.ID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	req := &model.ResetPasswordRequest{Token: token, NewPassword: "Fr3sh!Passw0rd"}
	require.NoError(t, f.svc.ResetPassword(context.Background(), req, RequestMeta{}))

	_, _, err = login(f, "drsmith", "Fr3sh!Passw0rd")
	assert.NoError(t, err)

	err = f.svc.ResetPassword(context.Background(), req, RequestMeta{})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
}

func TestResetPasswordTamperedToken(t *testing.T) {
	f := newFixture(t)

	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   f.user.ID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	resetErr := f.svc.ResetPassword(context.Background(), &model.ResetPasswordRequest{
		Token: forged, NewPassword: "Fr3sh!Passw0rd",
	}, RequestMeta{})
	var appErr *apperrors.AppError
	require.ErrorAs(t, resetErr, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
}

func TestLogoutIdempotent(t *testing.T) {
	f := newFixture(t)
	_, sess, err := login(f, "drsmith", testPassword)
	require.NoError(t, err)

	f.svc.Logout(context.Background(), sess, RequestMeta{})
	f.svc.Logout(context.Background(), sess, RequestMeta{})

	_, err = f.svc.SessionStatus(sess)
	assert.Error(t, err)
}
