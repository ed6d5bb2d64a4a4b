package redisstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is a single-holder lock on one key, taken with SET NX PX.
type Lease struct {
	store  *Store
	key    string
	logger *slog.Logger
}

func NewLease(s *Store, key string, logger *slog.Logger) *Lease {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lease{store: s, key: key, logger: logger}
}

// Acquire tries to take the lease for ttl. ok is false when someone else holds it.
func (l *Lease) Acquire(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.store.Client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// release must run even if the caller's context is done
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.store.Client, []string{l.key}, token).Err(); err != nil {
			l.logger.Warn("release lease failed", "key", l.key, "err", err)
		}
	}
	return release, true, nil
}
