package sequence

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"knowledge-ledger/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

const rewardPrefix = "RWD"

var Module = fx.Module("sequence",
	fx.Provide(NewGenerator),
)

type Generator interface {
	NextRewardCode(ctx context.Context) (string, error)
}

type Params struct {
	fx.In

	Redis *redis.Client `optional:"true"`
}

// NewGenerator uses redis when available so codes are unique across replicas.
func NewGenerator(p Params) Generator {
	if p.Redis == nil {
		return NewLocalGenerator()
	}
	return &RedisGenerator{rdb: p.Redis}
}

type RedisGenerator struct {
	rdb *redis.Client
}

func (g *RedisGenerator) NextRewardCode(ctx context.Context) (string, error) {
	today := time.Now().UTC().Format("060102")
	key := rediskey.BuildDailySequenceKey(rewardPrefix, today)

	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}

	if seq == 1 {
		_ = g.rdb.Expire(ctx, key, 48*time.Hour).Err()
	}

	return format(rewardPrefix, today, seq)
}

// LocalGenerator keeps per-day counters in memory.
type LocalGenerator struct {
	mu   sync.Mutex
	day  string
	next int64
}

func NewLocalGenerator() *LocalGenerator {
	return &LocalGenerator{}
}

func (g *LocalGenerator) NextRewardCode(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	today := time.Now().UTC().Format("060102")

	g.mu.Lock()
	if g.day != today {
		g.day, g.next = today, 0
	}
	g.next++
	seq := g.next
	g.mu.Unlock()

	return format(rewardPrefix, today, seq)
}

func format(prefix, day string, seq int64) (string, error) {
	encodedSeq := strings.ToUpper(fmt.Sprintf("%03s", strconv.FormatInt(seq, 36)))

	suffix, err := randomAlphaNumeric(2)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%s-%s%s", prefix, day, encodedSeq, suffix), nil
}

func randomAlphaNumeric(n int) (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		b[i] = chars[num.Int64()]
	}
	return string(b), nil
}
