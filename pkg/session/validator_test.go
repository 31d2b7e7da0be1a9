package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/device-trust/pkg/errors"
	"github.com/tendant/device-trust/pkg/securitylog"
)

type stubDeviceChecker struct {
	untrusted map[uuid.UUID]bool
}

func (s *stubDeviceChecker) IsDeviceUntrusted(ctx context.Context, deviceID uuid.UUID) (bool, error) {
	return s.untrusted[deviceID], nil
}

type stubBlacklist struct {
	blocked map[string]bool
}

func (s *stubBlacklist) IsBlacklisted(ctx context.Context, ip string) (bool, error) {
	return s.blocked[ip], nil
}

type validatorFixture struct {
	repo      *InMemRepository
	devices   *stubDeviceChecker
	blacklist *stubBlacklist
	audit     *securitylog.InMemRepository
	validator *Validator
}

func newValidatorFixture(t *testing.T) *validatorFixture {
	t.Helper()
	repo := NewInMemRepository()
	devices := &stubDeviceChecker{untrusted: make(map[uuid.UUID]bool)}
	blacklist := &stubBlacklist{blocked: make(map[string]bool)}
	audit := securitylog.NewInMemRepository()
	return &validatorFixture{
		repo:      repo,
		devices:   devices,
		blacklist: blacklist,
		audit:     audit,
		validator: NewValidator(repo, devices, blacklist, securitylog.NewService(audit), 30*time.Minute),
	}
}

func (f *validatorFixture) createSession(t *testing.T, lastActivity time.Time) Session {
	t.Helper()
	sess, err := f.repo.Create(context.Background(), Session{
		UserID:       uuid.New(),
		DeviceID:     uuid.New(),
		IPAddress:    "203.0.113.10",
		UserAgent:    "Mozilla/5.0 Chrome/120.0",
		LastActivity: lastActivity,
		CreatedAt:    lastActivity,
	})
	require.NoError(t, err)
	return sess
}

func (f *validatorFixture) params(sess Session) ValidateParams {
	return ValidateParams{
		SessionID: sess.ID,
		IPAddress: sess.IPAddress,
		UserAgent: sess.UserAgent,
	}
}

func TestValidate_Success(t *testing.T) {
	f := newValidatorFixture(t)
	sess := f.createSession(t, time.Now().UTC().Add(-time.Minute))

	got, err := f.validator.Validate(context.Background(), f.params(sess))
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.SessionID)
	assert.Equal(t, sess.UserID, got.UserID)
	assert.Equal(t, sess.DeviceID, got.DeviceID)
}

func TestValidate_RefreshesActivity(t *testing.T) {
	f := newValidatorFixture(t)
	before := time.Now().UTC().Add(-10 * time.Minute)
	sess := f.createSession(t, before)

	_, err := f.validator.Validate(context.Background(), f.params(sess))
	require.NoError(t, err)

	stored, err := f.repo.GetByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastActivity.After(before), "validation must slide the activity window")
}

func TestValidate_UnknownSession(t *testing.T) {
	f := newValidatorFixture(t)

	_, err := f.validator.Validate(context.Background(), ValidateParams{
		SessionID: "no-such-session",
		IPAddress: "203.0.113.10",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAuthenticationRequired))
}

func TestValidate_MissingSessionID(t *testing.T) {
	f := newValidatorFixture(t)

	_, err := f.validator.Validate(context.Background(), ValidateParams{IPAddress: "203.0.113.10"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAuthenticationRequired))
}

func TestValidate_IdleSessionExpiresAndIsDeleted(t *testing.T) {
	f := newValidatorFixture(t)
	// 1801 seconds idle, one past the 1800 second window
	sess := f.createSession(t, time.Now().UTC().Add(-1801*time.Second))

	_, err := f.validator.Validate(context.Background(), f.params(sess))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAuthenticationRequired))

	_, err = f.repo.GetByID(context.Background(), sess.ID)
	assert.Equal(t, ErrSessionNotFound, err)

	assert.Len(t, f.audit.EventsByAction(securitylog.ActionSessionExpired), 1)
}

func TestValidate_SessionJustInsideWindowSurvives(t *testing.T) {
	f := newValidatorFixture(t)
	sess := f.createSession(t, time.Now().UTC().Add(-1799*time.Second))

	_, err := f.validator.Validate(context.Background(), f.params(sess))
	assert.NoError(t, err)
}

func TestValidate_BlacklistedIPRejectedBeforeSessionLookup(t *testing.T) {
	f := newValidatorFixture(t)
	sess := f.createSession(t, time.Now().UTC())
	f.blacklist.blocked["198.51.100.1"] = true

	params := f.params(sess)
	params.IPAddress = "198.51.100.1"

	_, err := f.validator.Validate(context.Background(), params)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAccessRestricted))

	events := f.audit.EventsByAction(securitylog.ActionBlacklistReject)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].UserID, "pre-session rejection cannot be attributed to a user")
}

func TestValidate_BlacklistTakesPrecedenceOverMissingSession(t *testing.T) {
	f := newValidatorFixture(t)
	f.blacklist.blocked["198.51.100.1"] = true

	// no session at all, blacklist still answers first with 403 semantics
	_, err := f.validator.Validate(context.Background(), ValidateParams{
		SessionID: "",
		IPAddress: "198.51.100.1",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAccessRestricted))
}

func TestValidate_UntrustedDeviceRejected(t *testing.T) {
	f := newValidatorFixture(t)
	sess := f.createSession(t, time.Now().UTC())
	f.devices.untrusted[sess.DeviceID] = true

	_, err := f.validator.Validate(context.Background(), f.params(sess))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAccessRestricted))

	// the session itself is not deleted, untrust acts at validation time
	_, err = f.repo.GetByID(context.Background(), sess.ID)
	assert.NoError(t, err)

	events := f.audit.EventsByAction(securitylog.ActionUntrustedReject)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].UserID)
	assert.Equal(t, sess.UserID, *events[0].UserID)
}

func TestValidate_DriftIsLoggedButNotBlocked(t *testing.T) {
	f := newValidatorFixture(t)
	sess := f.createSession(t, time.Now().UTC())

	params := f.params(sess)
	params.IPAddress = "203.0.113.200"
	params.UserAgent = "Mozilla/5.0 Firefox/121.0"

	got, err := f.validator.Validate(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.SessionID)

	events := f.audit.EventsByAction(securitylog.ActionSessionDrift)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Description, "ip_changed=true")
	assert.Contains(t, events[0].Description, "ua_changed=true")
}

func TestValidate_NoDriftEventWhenUnchanged(t *testing.T) {
	f := newValidatorFixture(t)
	sess := f.createSession(t, time.Now().UTC())

	_, err := f.validator.Validate(context.Background(), f.params(sess))
	require.NoError(t, err)
	assert.Empty(t, f.audit.EventsByAction(securitylog.ActionSessionDrift))
}
