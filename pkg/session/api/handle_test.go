package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/device-trust/pkg/securitylog"
	"github.com/tendant/device-trust/pkg/session"
)

type allowAllDevices struct{}

func (allowAllDevices) IsDeviceUntrusted(ctx context.Context, deviceID uuid.UUID) (bool, error) {
	return false, nil
}

type staticBlacklist map[string]bool

func (b staticBlacklist) IsBlacklisted(ctx context.Context, ip string) (bool, error) {
	return b[ip], nil
}

func setupHandler(t *testing.T, blacklist staticBlacklist) (*SessionHandler, *session.InMemRepository) {
	t.Helper()
	repo := session.NewInMemRepository()
	audit := securitylog.NewService(securitylog.NewInMemRepository())
	validator := session.NewValidator(repo, allowAllDevices{}, blacklist, audit, 30*time.Minute)
	service := session.NewService(repo, audit, 30*time.Minute)
	return NewSessionHandler(validator, service), repo
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_MissingTokenReturns401(t *testing.T) {
	handler, _ := setupHandler(t, staticBlacklist{})

	r := httptest.NewRequest("GET", "/api/devices", nil)
	w := httptest.NewRecorder()
	handler.Middleware(okHandler()).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_ValidSessionPassesThrough(t *testing.T) {
	handler, repo := setupHandler(t, staticBlacklist{})
	sess, err := repo.Create(context.Background(), session.Session{
		UserID:   uuid.New(),
		DeviceID: uuid.New(),
	})
	require.NoError(t, err)

	var captured *session.Context
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	r := httptest.NewRequest("GET", "/api/devices", nil)
	r.AddCookie(&http.Cookie{Name: SessionTokenCookie, Value: sess.ID})
	w := httptest.NewRecorder()
	handler.Middleware(next).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, captured)
	assert.Equal(t, sess.UserID, captured.UserID)
}

func TestMiddleware_BlacklistedIPReturns403(t *testing.T) {
	handler, repo := setupHandler(t, staticBlacklist{"198.51.100.1": true})
	sess, err := repo.Create(context.Background(), session.Session{
		UserID:   uuid.New(),
		DeviceID: uuid.New(),
	})
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/api/devices", nil)
	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	r.AddCookie(&http.Cookie{Name: SessionTokenCookie, Value: sess.ID})
	w := httptest.NewRecorder()
	handler.Middleware(okHandler()).ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMiddleware_ExpiredSessionReturns401(t *testing.T) {
	handler, repo := setupHandler(t, staticBlacklist{})
	sess, err := repo.Create(context.Background(), session.Session{
		UserID:       uuid.New(),
		DeviceID:     uuid.New(),
		LastActivity: time.Now().UTC().Add(-time.Hour),
	})
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/api/devices", nil)
	r.Header.Set("Authorization", "Bearer "+sess.ID)
	w := httptest.NewRecorder()
	handler.Middleware(okHandler()).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.Equal(t, "", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer token-from-header")
	assert.Equal(t, "token-from-header", TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: SessionTokenCookie, Value: "token-from-cookie"})
	assert.Equal(t, "token-from-cookie", TokenFromRequest(r), "cookie wins over header")
}
