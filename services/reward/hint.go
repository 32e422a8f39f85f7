package reward

import (
	"context"
	"errors"
	"time"

	"knowledge-ledger/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const hintTTL = 24 * time.Hour

// HintCache remembers committed transaction ids so repeats are rejected without a database read.
// The unique index on knowledge_rewards stays authoritative.
type HintCache interface {
	Lookup(ctx context.Context, transactionID string) (rewardID string, ok bool)
	Remember(ctx context.Context, transactionID, rewardID string)
}

type redisHints struct {
	rdb *redis.Client
}

func NewHintCache(rdb *redis.Client) HintCache {
	if rdb == nil {
		return noHints{}
	}
	return &redisHints{rdb: rdb}
}

func (h *redisHints) Lookup(ctx context.Context, transactionID string) (string, bool) {
	id, err := h.rdb.Get(ctx, rediskey.BuildRewardTrxKey(transactionID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("reward hint lookup failed", zap.String("transaction_id", transactionID), zap.Error(err))
		}
		return "", false
	}
	return id, true
}

func (h *redisHints) Remember(ctx context.Context, transactionID, rewardID string) {
	if err := h.rdb.Set(ctx, rediskey.BuildRewardTrxKey(transactionID), rewardID, hintTTL).Err(); err != nil {
		zap.L().Warn("failed to cache reward hint", zap.String("transaction_id", transactionID), zap.Error(err))
	}
}

type noHints struct{}

func (noHints) Lookup(context.Context, string) (string, bool) { return "", false }

func (noHints) Remember(context.Context, string, string) {}
