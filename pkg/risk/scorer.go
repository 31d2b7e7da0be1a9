package risk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/device-trust/pkg/device"
	"github.com/tendant/device-trust/pkg/fingerprint"
	"github.com/tendant/device-trust/pkg/reputation"
)

// Scoring weights. Factors are additive and the total is capped at 100.
const (
	WeightFailedLogins   = 40
	WeightSuspiciousIP   = 20
	WeightUnknownAgent   = 20
	WeightOddHours       = 10
	WeightInconsistentFP = 30

	MaxScore = 100

	// FailedLoginThreshold is the number of recent failed logins above
	// which the failed login factor applies
	FailedLoginThreshold = 3
)

// Level is the risk band derived from the numeric score
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// LevelForScore maps a numeric score to its band
func LevelForScore(score int) Level {
	switch {
	case score < 30:
		return LevelLow
	case score < 60:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// knownAgents are the browser families accepted without penalty
var knownAgents = []string{"chrome", "firefox", "safari", "edge", "opera"}

// headlessRenderers are WebGL renderer strings typical of automation
// environments rather than real browsers
var headlessRenderers = []string{"swiftshader", "llvmpipe", "mesa offscreen"}

// Input carries the login-time signals for one assessment
type Input struct {
	UserID      uuid.UUID
	Fingerprint string
	IPAddress   string
	UserAgent   string
	Info        fingerprint.DeviceInfo

	// FailedLoginCount is the caller-supplied count of failed login
	// attempts for this account over the last hour
	FailedLoginCount int

	// At is the assessment time; zero means now
	At time.Time
}

// Assessment is the outcome of scoring one login
type Assessment struct {
	Score      int               `json:"score"`
	Level      Level             `json:"level"`
	Reputation reputation.Status `json:"ip_reputation"`
	Factors    []string          `json:"factors,omitempty"`

	// TrustedFastPath is set when the device was trusted and recently
	// used, so scoring was skipped entirely
	TrustedFastPath bool `json:"trusted_fast_path,omitempty"`
}

// DeviceStore is the slice of the device registry the scorer needs
type DeviceStore interface {
	GetDeviceByUserAndFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (device.Device, error)
	UpdateDeviceRisk(ctx context.Context, id uuid.UUID, riskScore int, ipReputation string) (device.Device, error)
}

// ReputationChecker looks up the reputation of a source address
type ReputationChecker interface {
	Check(ctx context.Context, ip string) reputation.Result
}

// Scorer computes login risk scores from device, reputation and request
// signals and records each assessment on the device record.
type Scorer struct {
	devices      DeviceStore
	reputation   ReputationChecker
	activeWindow time.Duration
}

// NewScorer creates a risk scorer
func NewScorer(devices DeviceStore, reputationChecker ReputationChecker, activeWindow time.Duration) *Scorer {
	return &Scorer{
		devices:      devices,
		reputation:   reputationChecker,
		activeWindow: activeWindow,
	}
}

// Assess scores one login attempt.
//
// A trusted device used within the active window short-circuits to a low
// risk assessment without consulting reputation providers. Otherwise the
// score is the capped sum of the applicable factors, and the result is
// written back to the device record when one exists.
func (s *Scorer) Assess(ctx context.Context, input Input) (Assessment, error) {
	now := input.At
	if now.IsZero() {
		now = time.Now().UTC()
	}

	dev, err := s.devices.GetDeviceByUserAndFingerprint(ctx, input.UserID, input.Fingerprint)
	deviceKnown := err == nil
	if err != nil && err != device.ErrDeviceNotFound {
		return Assessment{}, fmt.Errorf("failed to look up device: %w", err)
	}

	if deviceKnown && dev.TrustStatus == device.TrustStatusTrusted && dev.ActiveSince(now, s.activeWindow) {
		slog.Debug("trusted device fast path", "userID", input.UserID, "deviceID", dev.ID)
		return Assessment{
			Score:           0,
			Level:           LevelLow,
			Reputation:      reputation.StatusNormal,
			TrustedFastPath: true,
		}, nil
	}

	var score int
	var factors []string

	if input.FailedLoginCount > FailedLoginThreshold {
		score += WeightFailedLogins
		factors = append(factors, "failed_logins")
	}

	rep := s.reputation.Check(ctx, input.IPAddress)
	if rep.Status == reputation.StatusSuspicious {
		score += WeightSuspiciousIP
		factors = append(factors, "suspicious_ip")
	}

	if !isKnownAgent(input.UserAgent) {
		score += WeightUnknownAgent
		factors = append(factors, "unknown_user_agent")
	}

	if hour := now.UTC().Hour(); hour >= 1 && hour < 6 {
		score += WeightOddHours
		factors = append(factors, "odd_hours")
	}

	if inconsistent(input.Info, input.UserAgent) {
		score += WeightInconsistentFP
		factors = append(factors, "inconsistent_fingerprint")
	}

	if score > MaxScore {
		score = MaxScore
	}

	assessment := Assessment{
		Score:      score,
		Level:      LevelForScore(score),
		Reputation: rep.Status,
		Factors:    factors,
	}

	if deviceKnown {
		if _, err := s.devices.UpdateDeviceRisk(ctx, dev.ID, score, string(rep.Status)); err != nil {
			return Assessment{}, fmt.Errorf("failed to record assessment: %w", err)
		}
	}

	slog.Info("risk assessed",
		"userID", input.UserID,
		"score", score,
		"level", assessment.Level,
		"factors", strings.Join(factors, ","))
	return assessment, nil
}

func isKnownAgent(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, agent := range knownAgents {
		if strings.Contains(ua, agent) {
			return true
		}
	}
	return false
}

// inconsistent detects fingerprint bundles whose signals contradict each
// other or the request headers
func inconsistent(info fingerprint.DeviceInfo, userAgent string) bool {
	if platformMismatch(info, userAgent) {
		return true
	}
	if headlessRenderer(info) {
		return true
	}
	if implausibleScreen(info.Screen) {
		return true
	}
	return false
}

// platformMismatch reports whether the navigator platform contradicts the
// operating system claimed by the user agent
func platformMismatch(info fingerprint.DeviceInfo, userAgent string) bool {
	if info.Navigator == nil || info.Navigator.Platform == "" {
		return false
	}

	platform := strings.ToLower(info.Navigator.Platform)
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "windows"):
		return !strings.Contains(platform, "win")
	case strings.Contains(ua, "mac os") || strings.Contains(ua, "macintosh"):
		return !strings.Contains(platform, "mac") && !strings.Contains(platform, "iphone") && !strings.Contains(platform, "ipad")
	case strings.Contains(ua, "linux") || strings.Contains(ua, "android"):
		return !strings.Contains(platform, "linux") && !strings.Contains(platform, "android") && !strings.Contains(platform, "arm")
	}
	return false
}

func headlessRenderer(info fingerprint.DeviceInfo) bool {
	var renderers []string
	if info.WebGL != nil {
		renderers = append(renderers, info.WebGL.Renderer, info.WebGL.UnmaskedRenderer)
	}
	renderers = append(renderers, info.GPUInfo)

	for _, r := range renderers {
		lower := strings.ToLower(r)
		for _, headless := range headlessRenderers {
			if lower != "" && strings.Contains(lower, headless) {
				return true
			}
		}
	}
	return false
}

func implausibleScreen(screen *fingerprint.ScreenInfo) bool {
	if screen == nil {
		return false
	}
	// zero means the signal was absent, only reject actual nonsense
	if screen.Width < 0 || screen.Height < 0 {
		return true
	}
	if screen.Width > 16384 || screen.Height > 16384 {
		return true
	}
	if (screen.Width > 0 && screen.Width < 100) || (screen.Height > 0 && screen.Height < 100) {
		return true
	}
	return false
}
