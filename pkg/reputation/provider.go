package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// ProviderResult is a single provider's normalized verdict for an address.
// Score is on a 0-100 scale regardless of the provider's native range.
type ProviderResult struct {
	Score      int
	Suspicious bool
}

// Provider is a single third-party reputation source
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (ProviderResult, error)
}

// AbuseDBProvider queries an abuse-confidence style API
// (GET {base}/check?ipAddress=x with an API key header, response
// {"data":{"abuseConfidenceScore":N}} where N is 0-100).
type AbuseDBProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	threshold  int
}

// NewAbuseDBProvider creates a provider for an abuse-confidence style API.
// An address scoring at or above threshold is flagged suspicious.
func NewAbuseDBProvider(httpClient *http.Client, baseURL, apiKey string, threshold int) *AbuseDBProvider {
	return &AbuseDBProvider{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		threshold:  threshold,
	}
}

// Name returns the provider name for logging
func (p *AbuseDBProvider) Name() string {
	return "abusedb"
}

// Lookup queries the provider for an IP address
func (p *AbuseDBProvider) Lookup(ctx context.Context, ip string) (ProviderResult, error) {
	endpoint := fmt.Sprintf("%s/check?ipAddress=%s", p.baseURL, url.QueryEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ProviderResult{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return ProviderResult{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ProviderResult{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			AbuseConfidenceScore int `json:"abuseConfidenceScore"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ProviderResult{}, fmt.Errorf("failed to decode response: %w", err)
	}

	score := clampScore(body.Data.AbuseConfidenceScore)
	return ProviderResult{
		Score:      score,
		Suspicious: score >= p.threshold,
	}, nil
}

// QualityScoreProvider queries a fraud-score style API
// (GET {base}/ip/{key}/{ip}, response {"fraud_score":N} where N is 0-100).
type QualityScoreProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	threshold  int
}

// NewQualityScoreProvider creates a provider for a fraud-score style API.
// An address scoring at or above threshold is flagged suspicious.
func NewQualityScoreProvider(httpClient *http.Client, baseURL, apiKey string, threshold int) *QualityScoreProvider {
	return &QualityScoreProvider{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		threshold:  threshold,
	}
}

// Name returns the provider name for logging
func (p *QualityScoreProvider) Name() string {
	return "qualityscore"
}

// Lookup queries the provider for an IP address
func (p *QualityScoreProvider) Lookup(ctx context.Context, ip string) (ProviderResult, error) {
	endpoint := fmt.Sprintf("%s/ip/%s/%s", p.baseURL, url.PathEscape(p.apiKey), url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ProviderResult{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return ProviderResult{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ProviderResult{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		FraudScore int `json:"fraud_score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ProviderResult{}, fmt.Errorf("failed to decode response: %w", err)
	}

	score := clampScore(body.FraudScore)
	return ProviderResult{
		Score:      score,
		Suspicious: score >= p.threshold,
	}, nil
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
