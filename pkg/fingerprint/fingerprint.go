package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// unknownValue substitutes any absent client signal so that a missing field
// never fails fingerprinting and always canonicalizes the same way.
const unknownValue = "unknown"

// ScreenInfo describes the client screen geometry
type ScreenInfo struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	ColorDepth int     `json:"colorDepth"`
	PixelRatio float64 `json:"pixelRatio"`
}

// NavigatorInfo describes navigator traits reported by the client
type NavigatorInfo struct {
	Platform            string  `json:"platform"`
	Language            string  `json:"language"`
	HardwareConcurrency int     `json:"hardwareConcurrency"`
	MaxTouchPoints      int     `json:"maxTouchPoints"`
	DeviceMemory        float64 `json:"deviceMemory"`
}

// WebGLInfo describes the WebGL vendor/renderer strings and parameters
type WebGLInfo struct {
	Vendor           string            `json:"vendor"`
	Renderer         string            `json:"renderer"`
	UnmaskedVendor   string            `json:"unmaskedVendor"`
	UnmaskedRenderer string            `json:"unmaskedRenderer"`
	Parameters       map[string]string `json:"parameters"`
}

// DeviceInfo is the typed signal bundle submitted by the client.
// Every field is optional; absent fields are substituted with fixed
// placeholders during canonicalization rather than failing.
type DeviceInfo struct {
	Screen       *ScreenInfo            `json:"screen,omitempty"`
	Navigator    *NavigatorInfo         `json:"navigator,omitempty"`
	WebGL        *WebGLInfo             `json:"webgl,omitempty"`
	Fonts        []string               `json:"fonts,omitempty"`
	AudioContext map[string]interface{} `json:"audioContext,omitempty"`
	CPUClass     string                 `json:"cpuClass,omitempty"`
	GPUInfo      string                 `json:"gpuInfo,omitempty"`
	BatteryInfo  string                 `json:"batteryInfo,omitempty"`
	MediaDevices []string               `json:"mediaDevices,omitempty"`
	Storage      map[string]interface{} `json:"storage,omitempty"`
	Timezone     string                 `json:"timezone,omitempty"`

	// UserAgent comes from the request header, not the JSON payload
	UserAgent string `json:"-"`
}

// Generate canonicalizes the signal bundle and returns its SHA-256 hex
// digest. The digest is one-way and opaque; the same device with the same
// software state always reproduces the same value. List-valued fields are
// sorted before hashing so client-side enumeration order never changes
// the result.
func Generate(info DeviceInfo) string {
	combined := Canonicalize(info)
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// Canonicalize serializes the signal bundle deterministically. Field order
// is fixed, lists are sorted, maps are emitted in sorted key order, and
// absent values collapse to fixed placeholders.
func Canonicalize(info DeviceInfo) string {
	var b strings.Builder

	writeField(&b, orDefault(info.UserAgent))
	writeField(&b, orDefault(info.Timezone))

	screen := info.Screen
	if screen == nil {
		screen = &ScreenInfo{}
	}
	writeField(&b, fmt.Sprintf("%d,%d,%d,%s",
		screen.Width, screen.Height, screen.ColorDepth, formatFloat(screen.PixelRatio)))

	nav := info.Navigator
	if nav == nil {
		nav = &NavigatorInfo{}
	}
	writeField(&b, fmt.Sprintf("%s,%s,%d,%d,%s",
		orDefault(nav.Platform), orDefault(nav.Language),
		nav.HardwareConcurrency, nav.MaxTouchPoints, formatFloat(nav.DeviceMemory)))

	webgl := info.WebGL
	if webgl == nil {
		webgl = &WebGLInfo{}
	}
	writeField(&b, fmt.Sprintf("%s,%s,%s,%s,%s",
		orDefault(webgl.Vendor), orDefault(webgl.Renderer),
		orDefault(webgl.UnmaskedVendor), orDefault(webgl.UnmaskedRenderer),
		canonicalStringMap(webgl.Parameters)))

	writeField(&b, canonicalList(info.Fonts))
	writeField(&b, canonicalMap(info.AudioContext))
	writeField(&b, orDefault(info.CPUClass))
	writeField(&b, orDefault(info.GPUInfo))
	writeField(&b, orDefault(info.BatteryInfo))
	writeField(&b, canonicalList(info.MediaDevices))
	writeField(&b, canonicalMap(info.Storage))

	return strings.TrimSuffix(b.String(), "|")
}

// FromRequest decodes the fingerprint submission payload from an HTTP
// request and fills in the ambient User-Agent header and the
// client-supplied Timezone header when the payload omits one.
// A missing or empty body yields an all-defaults bundle.
func FromRequest(r *http.Request) (DeviceInfo, error) {
	var info DeviceInfo
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&info); err != nil && !errors.Is(err, io.EOF) {
			return DeviceInfo{}, fmt.Errorf("failed to decode fingerprint payload: %w", err)
		}
	}

	info.UserAgent = r.UserAgent()
	if info.Timezone == "" {
		info.Timezone = r.Header.Get("Timezone")
	}
	return info, nil
}

func writeField(b *strings.Builder, v string) {
	b.WriteString(v)
	b.WriteString("|")
}

func orDefault(v string) string {
	if v == "" {
		return unknownValue
	}
	return v
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// canonicalList sorts a copy of the list so that differing client-side
// enumeration order never changes the fingerprint
func canonicalList(values []string) string {
	if len(values) == 0 {
		return ""
	}
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func canonicalStringMap(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, ";")
}

func canonicalMap(m map[string]interface{}) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, ";")
}
