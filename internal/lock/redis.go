package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Redis takes locks shared by every process talking to the same Redis.
type Redis struct {
	client  *redislock.Client
	ttl     time.Duration
	retries int
	backoff time.Duration
	log     *slog.Logger
}

// RedisOptions tunes lock expiry and retrying.
type RedisOptions struct {
	TTL     time.Duration
	Retries int
	Backoff time.Duration
}

func NewRedis(rdb redis.UniversalClient, opts RedisOptions, logger *slog.Logger) *Redis {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 50 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: redislock.New(rdb), ttl: opts.TTL, retries: opts.Retries, backoff: opts.Backoff, log: logger}
}

var _ Locker = (*Redis)(nil)

func (r *Redis) Acquire(ctx context.Context, keys ...string) (Release, error) {
	keys = normalize(keys)
	held := make([]*redislock.Lock, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				r.log.Warn("lock release failed", "key", held[i].Key(), "err", err)
			}
		}
	}
	for _, k := range keys {
		l, err := r.client.Obtain(ctx, k, r.ttl, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(r.backoff), r.retries),
		})
		if errors.Is(err, redislock.ErrNotObtained) {
			release()
			return nil, fmt.Errorf("%s: %w", k, ErrNotObtained)
		}
		if err != nil {
			release()
			return nil, err
		}
		held = append(held, l)
	}
	done := false
	return func() {
		if done {
			return
		}
		done = true
		release()
	}, nil
}
