// Package securitylog appends audit events to the shared security log.
//
// Every component of the trust engine writes here: device trust changes,
// evictions, session revocations, expiry detections, blacklist and
// untrusted-device rejections, and drift observations. The store is
// append-only from this service's perspective; the surrounding
// application owns querying and retention.
package securitylog
