// Package risk scores login attempts from device, reputation and request
// signals.
//
// The score is an additive composition of independent factors capped at
// 100 and banded into low, medium and high. Trusted devices seen within
// the active window bypass scoring entirely, which also avoids the
// external reputation lookup on the common path.
package risk
