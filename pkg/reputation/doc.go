// Package reputation resolves IP address reputation from independent
// third-party providers.
//
// Two providers are queried in parallel; the merged score is the maximum
// of the normalized provider scores, and the status is suspicious when
// either provider crosses its own high-confidence threshold. A short-TTL
// cache fronts the providers so that repeated requests from one address
// do not repeatedly hit rate-limited APIs.
//
// Provider failures of any kind (transport error, timeout, non-200,
// unparseable body) degrade to "no data" from that provider. Reputation
// lookups therefore never fail: a third-party outage must not block
// login risk evaluation.
package reputation
