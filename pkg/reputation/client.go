package reputation

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Status classifies an IP address
type Status string

const (
	StatusNormal     Status = "normal"
	StatusSuspicious Status = "suspicious"
)

// Result is the merged verdict across all providers
type Result struct {
	Status Status `json:"status"`
	Score  int    `json:"score"`
}

// Client merges verdicts from independent reputation providers behind a
// freshness-bounded cache.
//
// The degrade-gracefully contract is load-bearing: a provider outage,
// timeout or malformed response is treated as "no data" from that
// provider and never surfaces as an error. With no responding providers
// the result is StatusNormal with score 0.
type Client struct {
	providers []Provider
	cache     CacheRepository
	cacheTTL  time.Duration
}

// NewClient creates a reputation client. cache may be nil to disable caching.
func NewClient(cache CacheRepository, cacheTTL time.Duration, providers ...Provider) *Client {
	return &Client{
		providers: providers,
		cache:     cache,
		cacheTTL:  cacheTTL,
	}
}

// Check resolves the reputation of an IP address.
// Private, loopback, link-local and unparseable addresses are always
// StatusNormal and never dispatch an external call.
func (c *Client) Check(ctx context.Context, ip string) Result {
	if !isPublicAddress(ip) {
		return Result{Status: StatusNormal, Score: 0}
	}

	if c.cache != nil {
		entry, err := c.cache.Get(ctx, ip)
		if err == nil && time.Since(entry.LastChecked) < c.cacheTTL {
			return Result{Status: entry.Status, Score: entry.Score}
		}
	}

	result := c.queryProviders(ctx, ip)

	if c.cache != nil {
		err := c.cache.Upsert(ctx, CacheEntry{
			IPAddress:   ip,
			Status:      result.Status,
			Score:       result.Score,
			LastChecked: time.Now().UTC(),
		})
		if err != nil {
			slog.Warn("failed to cache reputation result", "ip", ip, "err", err)
		}
	}

	return result
}

// queryProviders fans out to all providers and merges whatever responded.
// Merged score is the maximum of the normalized provider scores; status is
// suspicious if any provider crossed its own threshold.
func (c *Client) queryProviders(ctx context.Context, ip string) Result {
	results := make([]*ProviderResult, len(c.providers))

	var wg sync.WaitGroup
	for i, provider := range c.providers {
		wg.Add(1)
		go func(i int, provider Provider) {
			defer wg.Done()
			res, err := provider.Lookup(ctx, ip)
			if err != nil {
				slog.Warn("reputation provider unavailable", "provider", provider.Name(), "ip", ip, "err", err)
				return
			}
			results[i] = &res
		}(i, provider)
	}
	wg.Wait()

	merged := Result{Status: StatusNormal, Score: 0}
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.Score > merged.Score {
			merged.Score = res.Score
		}
		if res.Suspicious {
			merged.Status = StatusSuspicious
		}
	}
	return merged
}

// isPublicAddress reports whether the address is routable enough to be
// worth an external lookup
func isPublicAddress(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return false
	}
	if parsed.IsLinkLocalUnicast() || parsed.IsLinkLocalMulticast() {
		return false
	}
	return true
}
