// Package ratelimit implements the Rate Limiter (C5): a Redis sorted-set
// sliding window, one entry per admitted request, grounded on the
// original gateway's rate_limiter.py and on the teacher's
// jobxredis.RedisQueue pipeline idiom.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/unigatehq/gateway/pkg/errx"
	"github.com/unigatehq/gateway/pkg/kernel"
)

const keyPrefix = "rate_limit:"

// Result is the outcome of a rate-limit check, carrying enough
// information to populate the standard rate-limit response headers.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter enforces a sliding-window request limit per application over
// a rolling window.
type Limiter struct {
	rdb    *redis.Client
	window time.Duration
}

func New(rdb *redis.Client, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, window: window}
}

// Check admits or rejects one request against appID's limit, recording
// the request if admitted. It mirrors the original's two-pipeline
// shape exactly: first trim the window and count, then — only if under
// limit — add this request's entry and refresh the key's expiry.
func (l *Limiter) Check(ctx context.Context, appID kernel.AppID, limit int) (Result, error) {
	key := keyPrefix + appID.String()
	now := time.Now()
	nowMS := now.UnixMilli()
	windowStart := nowMS - l.window.Milliseconds()

	pipe1 := l.rdb.TxPipeline()
	pipe1.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))
	countCmd := pipe1.ZCard(ctx, key)
	if _, err := pipe1.Exec(ctx); err != nil {
		return Result{}, errx.Wrap(err, "rate limit check failed", errx.TypeExternal)
	}
	current := int(countCmd.Val())

	if current >= limit {
		retryAfter := l.window
		if entries, err := l.rdb.ZRangeWithScores(ctx, key, 0, 0).Result(); err == nil && len(entries) > 0 {
			earliestMS := int64(entries[0].Score)
			resetMS := earliestMS + l.window.Milliseconds()
			if wait := resetMS - nowMS; wait > 0 {
				retryAfter = time.Duration(wait) * time.Millisecond
			}
		}
		return Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    now.Add(retryAfter),
			RetryAfter: retryAfter,
		}, nil
	}

	pipe2 := l.rdb.TxPipeline()
	pipe2.ZAdd(ctx, key, redis.Z{Score: float64(nowMS), Member: uuid.NewString()})
	pipe2.Expire(ctx, key, l.window+time.Second)
	if _, err := pipe2.Exec(ctx); err != nil {
		return Result{}, errx.Wrap(err, "rate limit admit failed", errx.TypeExternal)
	}

	remaining := limit - current - 1
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   now.Add(l.window),
	}, nil
}
