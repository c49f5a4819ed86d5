package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/EpicMandM/station-booking/internal/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLeaseTTL   = 10 * time.Second
	defaultRetryDelay = 25 * time.Millisecond
	keyPrefix         = "station-booking:lock:"
)

// releaseScript deletes the lease only if this holder still owns it.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// RedisLocker is a Locker shared by every instance pointing at the same Redis.
// Each lock is a lease (SET NX PX) owned by a random token; the TTL bounds how
// long a crashed holder can block a station.
type RedisLocker struct {
	client     *redis.Client
	logger     *logger.Logger
	ttl        time.Duration
	retryDelay time.Duration
	newToken   func() string
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	if log == nil {
		log = logger.New()
	}
	return &RedisLocker{
		client:     client,
		logger:     log,
		ttl:        ttl,
		retryDelay: defaultRetryDelay,
		newToken:   uuid.NewString,
	}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := l.newToken()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// The caller's context may already be cancelled; the release must still go out.
		n, err := l.client.Eval(context.Background(), releaseScript, []string{redisKey}, token).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Error("Failed to release lock", logger.F("KEY", key), logger.Error(err))
			return
		}
		if n == 0 {
			l.logger.Warn("Lock lease expired before release", logger.F("KEY", key), logger.Reason("ttl_exceeded"))
		}
	}, nil
}
