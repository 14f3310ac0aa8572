package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"review-console/internal/domain"
	"review-console/internal/ports"
)

const keyPrefix = "review:lease:"

// releaseScript deletes the lease only if it still carries our token, so a
// lease that expired and was taken by someone else is left alone.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Options struct {
	Address  string
	Password string
	DB       int
}

func NewClient(opts Options) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

// Locker hands out per-application transition leases backed by SET NX.
type Locker struct {
	client goredis.UniversalClient
	logger ports.Logger
}

func NewLocker(client goredis.UniversalClient, logger ports.Logger) *Locker {
	return &Locker{client: client, logger: logger}
}

func leaseKey(appID string) string { return keyPrefix + appID }

func (l *Locker) Acquire(ctx context.Context, appID string, ttl time.Duration) (func(context.Context), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, leaseKey(appID), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease for %s: %w", appID, err)
	}
	if !ok {
		return nil, fmt.Errorf("application %s: %w", appID, domain.ErrTransitionInFlight)
	}
	return func(ctx context.Context) {
		if err := releaseScript.Run(ctx, l.client, []string{leaseKey(appID)}, token).Err(); err != nil && l.logger != nil {
			l.logger.Warn(ctx, "lease release failed", "application_id", appID, "error", err)
		}
	}, nil
}

func (l *Locker) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

var _ ports.TransitionLocker = (*Locker)(nil)
