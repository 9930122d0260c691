package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestNopClaimerAlwaysGrants(t *testing.T) {
	var c Claimer = NopClaimer{}
	assert.True(t, c.Claim(context.Background(), "acc", "1"))
	assert.True(t, c.Claim(context.Background(), "acc", "1"))
	c.Release(context.Background(), "acc", "1")
}

func TestRedisClaimerFailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	c := NewRedisClaimer(rdb, time.Minute, zaptest.NewLogger(t))
	assert.True(t, c.Claim(context.Background(), "acc", "1"))
	assert.NotPanics(t, func() { c.Release(context.Background(), "acc", "1") })
}

func TestClaimKey(t *testing.T) {
	assert.Equal(t, "mailtriage:claim:acc-1:42", claimKey("acc-1", "42"))
}
