package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Claimer grants at most one worker the right to enrich a given message.
type Claimer interface {
	// Claim returns true if the caller is the first to claim (account, uid).
	Claim(ctx context.Context, accountID, uid string) bool
	// Release gives up a claim whose message was not stored, so the next
	// run can enrich it.
	Release(ctx context.Context, accountID, uid string)
}

// NopClaimer grants every claim. It is used when no Redis is configured.
type NopClaimer struct{}

// Claim implements Claimer.
func (NopClaimer) Claim(context.Context, string, string) bool { return true }

// Release implements Claimer.
func (NopClaimer) Release(context.Context, string, string) {}

// RedisClaimer implements Claimer with SETNX keys that expire after ttl.
type RedisClaimer struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisClaimer creates a claimer backed by rdb.
func NewRedisClaimer(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisClaimer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisClaimer{rdb: rdb, ttl: ttl, logger: logger}
}

// Claim implements Claimer. When Redis is unreachable the claim is granted,
// so an outage degrades to store-level dedup instead of stopping ingestion.
func (c *RedisClaimer) Claim(ctx context.Context, accountID, uid string) bool {
	key := claimKey(accountID, uid)

	ok, err := c.rdb.SetNX(ctx, key, 1, c.ttl).Result()
	if err != nil {
		c.logger.Warn("redis claim failed, allowing processing",
			zap.String("account_id", accountID),
			zap.String("uid", uid),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		c.logger.Info("message already claimed",
			zap.String("account_id", accountID),
			zap.String("uid", uid),
		)
	}
	return ok
}

// Release implements Claimer. A failed delete is logged; the key then
// expires after the claim TTL.
func (c *RedisClaimer) Release(ctx context.Context, accountID, uid string) {
	if err := c.rdb.Del(ctx, claimKey(accountID, uid)).Err(); err != nil {
		c.logger.Warn("redis claim release failed",
			zap.String("account_id", accountID),
			zap.String("uid", uid),
			zap.Error(err),
		)
	}
}

func claimKey(accountID, uid string) string {
	return fmt.Sprintf("mailtriage:claim:%s:%s", accountID, uid)
}
