// Package session manages authentication sessions and their per-request
// validation.
//
// A session is always paired with a device fingerprint record at creation
// and identified by an opaque random token. Validation runs a fixed
// sequence of checks (ip blacklist, device trust, idle expiry, drift
// observation) and refreshes the sliding activity window on success.
// Expired sessions are deleted lazily when expiry is observed.
package session
