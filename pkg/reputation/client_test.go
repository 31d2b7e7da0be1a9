package reputation

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func abuseDBServer(t *testing.T, score int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		fmt.Fprintf(w, `{"data":{"abuseConfidenceScore":%d}}`, score)
	}))
}

func qualityScoreServer(t *testing.T, score int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		fmt.Fprintf(w, `{"fraud_score":%d}`, score)
	}))
}

func failingServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
}

const publicIP = "203.0.113.42"

func TestCheck_MergesMaximumScore(t *testing.T) {
	abuse := abuseDBServer(t, 30, nil)
	defer abuse.Close()
	quality := qualityScoreServer(t, 55, nil)
	defer quality.Close()

	client := NewClient(nil, time.Hour,
		NewAbuseDBProvider(http.DefaultClient, abuse.URL, "key", 75),
		NewQualityScoreProvider(http.DefaultClient, quality.URL, "key", 85),
	)

	result := client.Check(context.Background(), publicIP)
	assert.Equal(t, 55, result.Score)
	assert.Equal(t, StatusNormal, result.Status)
}

func TestCheck_SuspiciousWhenEitherProviderCrossesThreshold(t *testing.T) {
	abuse := abuseDBServer(t, 10, nil)
	defer abuse.Close()
	quality := qualityScoreServer(t, 90, nil)
	defer quality.Close()

	client := NewClient(nil, time.Hour,
		NewAbuseDBProvider(http.DefaultClient, abuse.URL, "key", 75),
		NewQualityScoreProvider(http.DefaultClient, quality.URL, "key", 85),
	)

	result := client.Check(context.Background(), publicIP)
	assert.Equal(t, StatusSuspicious, result.Status)
	assert.Equal(t, 90, result.Score)
}

func TestCheck_AllProvidersFailingDegradesToNormal(t *testing.T) {
	abuse := failingServer(t)
	defer abuse.Close()
	quality := failingServer(t)
	defer quality.Close()

	client := NewClient(nil, time.Hour,
		NewAbuseDBProvider(http.DefaultClient, abuse.URL, "key", 75),
		NewQualityScoreProvider(http.DefaultClient, quality.URL, "key", 85),
	)

	result := client.Check(context.Background(), publicIP)
	assert.Equal(t, StatusNormal, result.Status)
	assert.Equal(t, 0, result.Score)
}

func TestCheck_OneProviderFailingUsesTheOther(t *testing.T) {
	abuse := failingServer(t)
	defer abuse.Close()
	quality := qualityScoreServer(t, 88, nil)
	defer quality.Close()

	client := NewClient(nil, time.Hour,
		NewAbuseDBProvider(http.DefaultClient, abuse.URL, "key", 75),
		NewQualityScoreProvider(http.DefaultClient, quality.URL, "key", 85),
	)

	result := client.Check(context.Background(), publicIP)
	assert.Equal(t, StatusSuspicious, result.Status)
	assert.Equal(t, 88, result.Score)
}

func TestCheck_MalformedResponseDegradesToNormal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "{not json")
	}))
	defer server.Close()

	client := NewClient(nil, time.Hour,
		NewAbuseDBProvider(http.DefaultClient, server.URL, "key", 75),
	)

	result := client.Check(context.Background(), publicIP)
	assert.Equal(t, StatusNormal, result.Status)
}

func TestCheck_SlowProviderDegradesToNormal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, `{"fraud_score":99}`)
	}))
	defer server.Close()

	slowClient := &http.Client{Timeout: 50 * time.Millisecond}
	client := NewClient(nil, time.Hour,
		NewQualityScoreProvider(slowClient, server.URL, "key", 85),
	)

	result := client.Check(context.Background(), publicIP)
	assert.Equal(t, StatusNormal, result.Status)
	assert.Equal(t, 0, result.Score)
}

func TestCheck_PrivateAddressesNeverDispatch(t *testing.T) {
	var calls int32
	server := abuseDBServer(t, 100, &calls)
	defer server.Close()

	client := NewClient(nil, time.Hour,
		NewAbuseDBProvider(http.DefaultClient, server.URL, "key", 75),
	)

	for _, ip := range []string{"10.0.0.5", "192.168.1.10", "172.16.0.1", "127.0.0.1", "::1", "0.0.0.0", "not-an-ip", ""} {
		result := client.Check(context.Background(), ip)
		assert.Equal(t, StatusNormal, result.Status, "ip %q", ip)
		assert.Equal(t, 0, result.Score, "ip %q", ip)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestCheck_CacheHitSkipsProviders(t *testing.T) {
	var calls int32
	server := abuseDBServer(t, 80, &calls)
	defer server.Close()

	cache := NewInMemCacheRepository()
	client := NewClient(cache, time.Hour,
		NewAbuseDBProvider(http.DefaultClient, server.URL, "key", 75),
	)

	first := client.Check(context.Background(), publicIP)
	assert.Equal(t, StatusSuspicious, first.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	second := client.Check(context.Background(), publicIP)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "fresh cache entry must not re-dispatch")
}

func TestCheck_StaleCacheEntryRefreshes(t *testing.T) {
	var calls int32
	server := abuseDBServer(t, 10, &calls)
	defer server.Close()

	cache := NewInMemCacheRepository()
	cache.Upsert(context.Background(), CacheEntry{
		IPAddress:   publicIP,
		Status:      StatusSuspicious,
		Score:       95,
		LastChecked: time.Now().UTC().Add(-2 * time.Hour),
	})

	client := NewClient(cache, time.Hour,
		NewAbuseDBProvider(http.DefaultClient, server.URL, "key", 75),
	)

	result := client.Check(context.Background(), publicIP)
	assert.Equal(t, StatusNormal, result.Status)
	assert.Equal(t, 10, result.Score)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
