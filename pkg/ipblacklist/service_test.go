package ipblacklist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBlacklisted(t *testing.T) {
	service := NewService(NewInMemRepository())
	ctx := context.Background()

	blocked, err := service.IsBlacklisted(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.False(t, blocked)

	err = service.Block(ctx, Entry{IPAddress: "198.51.100.1", Reason: "abuse report"})
	require.NoError(t, err)

	blocked, err = service.IsBlacklisted(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.True(t, blocked, "entry without expiry is permanent")
}

func TestIsBlacklisted_ExpiredEntryAllows(t *testing.T) {
	service := NewService(NewInMemRepository())
	ctx := context.Background()

	expired := time.Now().UTC().Add(-time.Minute)
	err := service.Block(ctx, Entry{IPAddress: "198.51.100.2", Reason: "temporary block", ExpiresAt: &expired})
	require.NoError(t, err)

	blocked, err := service.IsBlacklisted(ctx, "198.51.100.2")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestBlockAndUnblock(t *testing.T) {
	service := NewService(NewInMemRepository())
	ctx := context.Background()

	err := service.Block(ctx, Entry{IPAddress: "", Reason: "missing ip"})
	assert.Error(t, err)

	require.NoError(t, service.Block(ctx, Entry{IPAddress: "198.51.100.3"}))
	require.NoError(t, service.Unblock(ctx, "198.51.100.3"))

	blocked, err := service.IsBlacklisted(ctx, "198.51.100.3")
	require.NoError(t, err)
	assert.False(t, blocked)
}
