package fingerprint

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInfo() DeviceInfo {
	return DeviceInfo{
		Screen: &ScreenInfo{
			Width:      1920,
			Height:     1080,
			ColorDepth: 24,
			PixelRatio: 1.5,
		},
		Navigator: &NavigatorInfo{
			Platform:            "MacIntel",
			Language:            "en-US",
			HardwareConcurrency: 8,
			MaxTouchPoints:      0,
			DeviceMemory:        16,
		},
		WebGL: &WebGLInfo{
			Vendor:   "WebKit",
			Renderer: "WebKit WebGL",
		},
		Fonts:     []string{"Arial", "Helvetica", "Times New Roman"},
		Timezone:  "America/New_York",
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Chrome/120.0",
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	info := testInfo()

	first := Generate(info)
	second := Generate(info)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestGenerate_ListOrderDoesNotMatter(t *testing.T) {
	info := testInfo()
	hash := Generate(info)

	permuted := testInfo()
	permuted.Fonts = []string{"Times New Roman", "Arial", "Helvetica"}
	assert.Equal(t, hash, Generate(permuted))

	permuted.MediaDevices = []string{"videoinput", "audioinput"}
	withMedia := testInfo()
	withMedia.MediaDevices = []string{"audioinput", "videoinput"}
	assert.Equal(t, Generate(withMedia), Generate(permuted))
}

func TestGenerate_DifferentSignalsDiffer(t *testing.T) {
	info := testInfo()
	hash := Generate(info)

	changed := testInfo()
	changed.Screen.Width = 2560
	assert.NotEqual(t, hash, Generate(changed))

	changed = testInfo()
	changed.Timezone = "Europe/Berlin"
	assert.NotEqual(t, hash, Generate(changed))
}

func TestGenerate_MissingFieldsUseDefaults(t *testing.T) {
	// A completely empty bundle still produces a stable fingerprint
	empty := Generate(DeviceInfo{})
	assert.Len(t, empty, 64)
	assert.Equal(t, empty, Generate(DeviceInfo{}))

	// Empty string fields canonicalize the same as absent ones
	assert.Equal(t, empty, Generate(DeviceInfo{CPUClass: "", GPUInfo: ""}))
}

func TestCanonicalize_FixedFieldOrder(t *testing.T) {
	info := DeviceInfo{
		UserAgent: "agent",
		Timezone:  "UTC",
		Fonts:     []string{"b", "a"},
	}

	canonical := Canonicalize(info)
	assert.Contains(t, canonical, "agent|UTC|")
	assert.Contains(t, canonical, "a,b")
}

func TestFromRequest(t *testing.T) {
	body := bytes.NewBufferString(`{"screen":{"width":800,"height":600},"timezone":"UTC"}`)
	r := httptest.NewRequest("POST", "/api/devices/register", body)
	r.Header.Set("User-Agent", "Mozilla/5.0 Chrome/120.0")

	info, err := FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, 800, info.Screen.Width)
	assert.Equal(t, "UTC", info.Timezone)
	assert.Equal(t, "Mozilla/5.0 Chrome/120.0", info.UserAgent)
}

func TestFromRequest_EmptyBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/devices/register", nil)
	r.Header.Set("User-Agent", "agent")
	r.Header.Set("Timezone", "Asia/Tokyo")

	info, err := FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "agent", info.UserAgent)
	assert.Equal(t, "Asia/Tokyo", info.Timezone)
}

func TestFromRequest_MalformedBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/devices/register", bytes.NewBufferString("{not json"))

	_, err := FromRequest(r)
	assert.Error(t, err)
}
