package risk

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/device-trust/pkg/device"
	"github.com/tendant/device-trust/pkg/fingerprint"
	"github.com/tendant/device-trust/pkg/reputation"
)

type stubDeviceStore struct {
	device      device.Device
	found       bool
	writtenBack bool
	lastScore   int
	lastRep     string
}

func (s *stubDeviceStore) GetDeviceByUserAndFingerprint(ctx context.Context, userID uuid.UUID, fp string) (device.Device, error) {
	if !s.found {
		return device.Device{}, device.ErrDeviceNotFound
	}
	return s.device, nil
}

func (s *stubDeviceStore) UpdateDeviceRisk(ctx context.Context, id uuid.UUID, riskScore int, ipReputation string) (device.Device, error) {
	s.writtenBack = true
	s.lastScore = riskScore
	s.lastRep = ipReputation
	return s.device, nil
}

type stubReputation struct {
	result reputation.Result
	calls  int
}

func (s *stubReputation) Check(ctx context.Context, ip string) reputation.Result {
	s.calls++
	return s.result
}

// daytime avoids the odd hours factor in tests that do not exercise it
var daytime = time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)

const chromeAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Chrome/120.0"

func baselineInput(userID uuid.UUID) Input {
	return Input{
		UserID:      userID,
		Fingerprint: "fp-1",
		IPAddress:   "203.0.113.10",
		UserAgent:   chromeAgent,
		At:          daytime,
	}
}

func TestAssess_TrustedRecentDeviceSkipsScoring(t *testing.T) {
	userID := uuid.New()
	store := &stubDeviceStore{
		found: true,
		device: device.Device{
			ID:          uuid.New(),
			UserID:      userID,
			TrustStatus: device.TrustStatusTrusted,
			LastUsedAt:  daytime.Add(-time.Hour),
		},
	}
	rep := &stubReputation{}
	scorer := NewScorer(store, rep, 90*24*time.Hour)

	input := baselineInput(userID)
	input.FailedLoginCount = 10 // would otherwise score high

	assessment, err := scorer.Assess(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, assessment.TrustedFastPath)
	assert.Equal(t, 0, assessment.Score)
	assert.Equal(t, LevelLow, assessment.Level)
	assert.Equal(t, 0, rep.calls, "fast path must not consult reputation providers")
	assert.False(t, store.writtenBack)
}

func TestAssess_TrustedButStaleDeviceIsScored(t *testing.T) {
	userID := uuid.New()
	store := &stubDeviceStore{
		found: true,
		device: device.Device{
			ID:          uuid.New(),
			UserID:      userID,
			TrustStatus: device.TrustStatusTrusted,
			LastUsedAt:  daytime.Add(-91 * 24 * time.Hour),
		},
	}
	rep := &stubReputation{result: reputation.Result{Status: reputation.StatusNormal}}
	scorer := NewScorer(store, rep, 90*24*time.Hour)

	assessment, err := scorer.Assess(context.Background(), baselineInput(userID))
	require.NoError(t, err)

	assert.False(t, assessment.TrustedFastPath)
	assert.Equal(t, 1, rep.calls)
}

func TestAssess_FactorWeights(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Input)
		repStatus reputation.Status
		wantScore int
	}{
		{
			name:      "clean login scores zero",
			mutate:    func(in *Input) {},
			repStatus: reputation.StatusNormal,
			wantScore: 0,
		},
		{
			name:      "failed logins above threshold",
			mutate:    func(in *Input) { in.FailedLoginCount = 4 },
			repStatus: reputation.StatusNormal,
			wantScore: 40,
		},
		{
			name:      "failed logins at threshold do not count",
			mutate:    func(in *Input) { in.FailedLoginCount = 3 },
			repStatus: reputation.StatusNormal,
			wantScore: 0,
		},
		{
			name:      "suspicious ip",
			mutate:    func(in *Input) {},
			repStatus: reputation.StatusSuspicious,
			wantScore: 20,
		},
		{
			name:      "unknown user agent",
			mutate:    func(in *Input) { in.UserAgent = "curl/8.0" },
			repStatus: reputation.StatusNormal,
			wantScore: 20,
		},
		{
			name:      "odd hours",
			mutate:    func(in *Input) { in.At = time.Date(2025, 6, 15, 3, 30, 0, 0, time.UTC) },
			repStatus: reputation.StatusNormal,
			wantScore: 10,
		},
		{
			name: "inconsistent fingerprint",
			mutate: func(in *Input) {
				in.Info = fingerprint.DeviceInfo{
					WebGL: &fingerprint.WebGLInfo{Renderer: "Google SwiftShader"},
				}
			},
			repStatus: reputation.StatusNormal,
			wantScore: 30,
		},
		{
			name: "all factors cap at 100",
			mutate: func(in *Input) {
				in.FailedLoginCount = 10
				in.UserAgent = "python-requests/2.31"
				in.At = time.Date(2025, 6, 15, 2, 0, 0, 0, time.UTC)
				in.Info = fingerprint.DeviceInfo{
					WebGL: &fingerprint.WebGLInfo{Renderer: "llvmpipe (LLVM 15.0)"},
				}
			},
			repStatus: reputation.StatusSuspicious,
			wantScore: 100,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			userID := uuid.New()
			store := &stubDeviceStore{}
			rep := &stubReputation{result: reputation.Result{Status: tc.repStatus, Score: 90}}
			scorer := NewScorer(store, rep, 90*24*time.Hour)

			input := baselineInput(userID)
			tc.mutate(&input)

			assessment, err := scorer.Assess(context.Background(), input)
			require.NoError(t, err)
			assert.Equal(t, tc.wantScore, assessment.Score)
		})
	}
}

func TestAssess_Bands(t *testing.T) {
	assert.Equal(t, LevelLow, LevelForScore(0))
	assert.Equal(t, LevelLow, LevelForScore(29))
	assert.Equal(t, LevelMedium, LevelForScore(30))
	assert.Equal(t, LevelMedium, LevelForScore(59))
	assert.Equal(t, LevelHigh, LevelForScore(60))
	assert.Equal(t, LevelHigh, LevelForScore(100))
}

func TestAssess_WritesBackToKnownDevice(t *testing.T) {
	userID := uuid.New()
	store := &stubDeviceStore{
		found: true,
		device: device.Device{
			ID:          uuid.New(),
			UserID:      userID,
			TrustStatus: device.TrustStatusPending,
			LastUsedAt:  daytime.Add(-time.Hour),
		},
	}
	rep := &stubReputation{result: reputation.Result{Status: reputation.StatusSuspicious, Score: 90}}
	scorer := NewScorer(store, rep, 90*24*time.Hour)

	input := baselineInput(userID)
	input.FailedLoginCount = 5

	assessment, err := scorer.Assess(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 60, assessment.Score)
	assert.Equal(t, LevelHigh, assessment.Level)
	assert.True(t, store.writtenBack)
	assert.Equal(t, 60, store.lastScore)
	assert.Equal(t, string(reputation.StatusSuspicious), store.lastRep)
}

func TestAssess_UnknownDeviceSkipsWriteback(t *testing.T) {
	store := &stubDeviceStore{}
	rep := &stubReputation{result: reputation.Result{Status: reputation.StatusNormal}}
	scorer := NewScorer(store, rep, 90*24*time.Hour)

	_, err := scorer.Assess(context.Background(), baselineInput(uuid.New()))
	require.NoError(t, err)
	assert.False(t, store.writtenBack)
}

func TestPlatformMismatch(t *testing.T) {
	info := fingerprint.DeviceInfo{
		Navigator: &fingerprint.NavigatorInfo{Platform: "Win32"},
	}
	assert.True(t, platformMismatch(info, "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"))
	assert.False(t, platformMismatch(info, "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"))

	// absent platform signal never counts as a mismatch
	assert.False(t, platformMismatch(fingerprint.DeviceInfo{}, "Mozilla/5.0 (Windows NT 10.0)"))
}

func TestImplausibleScreen(t *testing.T) {
	assert.False(t, implausibleScreen(nil))
	assert.False(t, implausibleScreen(&fingerprint.ScreenInfo{Width: 1920, Height: 1080}))
	assert.False(t, implausibleScreen(&fingerprint.ScreenInfo{}))
	assert.True(t, implausibleScreen(&fingerprint.ScreenInfo{Width: -1, Height: 1080}))
	assert.True(t, implausibleScreen(&fingerprint.ScreenInfo{Width: 20, Height: 1080}))
	assert.True(t, implausibleScreen(&fingerprint.ScreenInfo{Width: 99999, Height: 1080}))
}
