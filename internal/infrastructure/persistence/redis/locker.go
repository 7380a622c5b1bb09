package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nutriscan/tracker/internal/ports/outbound"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lock only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const (
	minRetryDelay = 10 * time.Millisecond
	maxRetryDelay = 200 * time.Millisecond
)

// Locker serialises work per user across instances with SET NX PX
type Locker struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

var _ outbound.UserLocker = (*Locker)(nil)

// NewLocker creates a distributed user locker. ttl bounds how long a
// crashed holder can block others.
func NewLocker(client redis.UniversalClient, prefix string, ttl time.Duration, logger *zap.Logger) *Locker {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &Locker{client: client, ttl: ttl, prefix: prefix, logger: logger.Named("redis-locker")}
}

// Lock polls until the lock is acquired or ctx is done
func (l *Locker) Lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	key := l.prefix + "lock:user:" + userID.String()
	token := uuid.NewString()
	delay := minRetryDelay

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire user lock: %w", err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}

	return func() {
		// The caller's ctx may already be cancelled; release regardless.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("Failed to release user lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
