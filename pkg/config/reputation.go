package config

import "time"

// ReputationConfig contains IP reputation lookup settings.
// Fields have no env tags - populate manually or use NewReputationConfigFromEnv() for standard env var names.
type ReputationConfig struct {
	// LookupTimeout bounds each provider round trip. A provider that does
	// not answer in time contributes nothing to the merged result.
	LookupTimeout time.Duration

	// CacheTTL is how long a cached lookup stays fresh before providers
	// are consulted again for the same address.
	CacheTTL time.Duration

	// AbuseDB provider (abuseConfidenceScore style API)
	AbuseDBBaseURL   string
	AbuseDBAPIKey    string
	AbuseDBThreshold int

	// QualityScore provider (fraud_score style API)
	QualityScoreBaseURL   string
	QualityScoreAPIKey    string
	QualityScoreThreshold int
}

// DefaultReputationConfig returns a ReputationConfig with sensible defaults
func DefaultReputationConfig() ReputationConfig {
	return ReputationConfig{
		LookupTimeout:         3 * time.Second,
		CacheTTL:              time.Hour,
		AbuseDBBaseURL:        "https://api.abuseipdb.com/api/v2",
		AbuseDBThreshold:      75,
		QualityScoreBaseURL:   "https://ipqualityscore.com/api/json",
		QualityScoreThreshold: 85,
	}
}

// NewReputationConfigFromEnv loads ReputationConfig from standard environment variables.
//
// Environment variables:
//   - REPUTATION_LOOKUP_TIMEOUT: Per-lookup timeout (default: 3s)
//   - REPUTATION_CACHE_TTL: Cache freshness window (default: 1h)
//   - REPUTATION_ABUSEDB_BASE_URL, REPUTATION_ABUSEDB_API_KEY, REPUTATION_ABUSEDB_THRESHOLD
//   - REPUTATION_QUALITYSCORE_BASE_URL, REPUTATION_QUALITYSCORE_API_KEY, REPUTATION_QUALITYSCORE_THRESHOLD
func NewReputationConfigFromEnv() ReputationConfig {
	return ReputationConfig{
		LookupTimeout:         GetEnvDuration("REPUTATION_LOOKUP_TIMEOUT", 3*time.Second),
		CacheTTL:              GetEnvDuration("REPUTATION_CACHE_TTL", time.Hour),
		AbuseDBBaseURL:        GetEnvOrDefault("REPUTATION_ABUSEDB_BASE_URL", "https://api.abuseipdb.com/api/v2"),
		AbuseDBAPIKey:         GetEnvOrDefault("REPUTATION_ABUSEDB_API_KEY", ""),
		AbuseDBThreshold:      GetEnvInt("REPUTATION_ABUSEDB_THRESHOLD", 75),
		QualityScoreBaseURL:   GetEnvOrDefault("REPUTATION_QUALITYSCORE_BASE_URL", "https://ipqualityscore.com/api/json"),
		QualityScoreAPIKey:    GetEnvOrDefault("REPUTATION_QUALITYSCORE_API_KEY", ""),
		QualityScoreThreshold: GetEnvInt("REPUTATION_QUALITYSCORE_THRESHOLD", 85),
	}
}
