// Package fingerprint derives a stable, opaque device identity from raw
// client signals.
//
// The client submits a JSON bundle of optional signals (screen geometry,
// navigator traits, WebGL strings, installed fonts, audio context, media
// devices, storage hints) alongside the ambient User-Agent header and a
// timezone value. The bundle is canonicalized (fixed field order, sorted
// lists and map keys, fixed placeholders for absent fields) and hashed
// with SHA-256. The resulting hex digest identifies the device: the same
// physical device in the same software state always reproduces the same
// digest, and the digest cannot be reversed to recover the raw signals.
//
//	info, err := fingerprint.FromRequest(r)
//	if err != nil {
//		// malformed payload
//	}
//	hash := fingerprint.Generate(info)
package fingerprint
